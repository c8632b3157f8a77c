package convert

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/addoodi/yt2audi/internal/config"
	"github.com/addoodi/yt2audi/internal/encoder"
	"github.com/addoodi/yt2audi/internal/log"
	"github.com/addoodi/yt2audi/internal/model"
)

// FFmpeg executable and progress-protocol constants
const (
	FFmpegCommand  = "ffmpeg"
	FFprobeCommand = "ffprobe"

	ProgressPipeTarget = "pipe:2"
	ProgressTimePrefix = "out_time_us="

	dirPermissions = 0o755
)

// ErrTranscode wraps every conversion failure: nonzero ffmpeg exit, probe
// failure, or missing output.
var ErrTranscode = errors.New("transcode failed")

// runner executes an external command and returns its combined output.
// Injected so probing is testable without ffprobe installed.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Service converts videos according to a profile using a previously selected
// encoder.
type Service struct {
	profile     *config.Profile
	encoder     encoder.Encoder
	ffmpegPath  string
	ffprobePath string
	run         runner
	logger      zerolog.Logger
}

// NewService creates a converter bound to a profile and encoder.
func NewService(profile *config.Profile, enc encoder.Encoder) *Service {
	return &Service{
		profile:     profile,
		encoder:     enc,
		ffmpegPath:  FFmpegCommand,
		ffprobePath: FFprobeCommand,
		run:         execRunner,
		logger:      log.WithComponent("convert"),
	}
}

// Encoder returns the encoder this service was built with.
func (s *Service) Encoder() encoder.Encoder {
	return s.encoder
}

// Encode transcodes inputPath into outputDir. When meta is non-nil the
// output path is the deterministic PredictOutputPath result; otherwise the
// sanitized input stem is used. Progress receives fractional completion in
// [0,1]. A failed run removes the partial output file.
func (s *Service) Encode(
	ctx context.Context,
	inputPath string,
	outputDir string,
	meta *model.Metadata,
	thumbnailPath string,
	progress model.EncodeProgressFunc,
) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("%w: input file not found: %s", ErrTranscode, inputPath)
	}
	if err := os.MkdirAll(outputDir, dirPermissions); err != nil {
		return "", fmt.Errorf("%w: cannot create output dir %s: %v", ErrTranscode, outputDir, err)
	}

	var outputPath string
	if meta != nil {
		outputPath = s.PredictOutputPath(meta, outputDir)
	} else {
		stem := SanitizeFilename(strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath)))
		outputPath = filepath.Join(outputDir, stem+"."+s.profile.Output.Container)
	}

	info, err := s.Probe(ctx, inputPath)
	if err != nil {
		return "", err
	}

	if thumbnailPath != "" {
		if _, err := os.Stat(thumbnailPath); err != nil {
			thumbnailPath = ""
		}
	}

	args := s.buildArgs(inputPath, outputPath, info, meta, thumbnailPath)

	s.logger.Info().
		Str("input", inputPath).
		Str("output", outputPath).
		Str("encoder", string(s.encoder)).
		Msg("conversion started")
	s.logger.Debug().Str("cmd", s.ffmpegPath+" "+strings.Join(args, " ")).Msg("ffmpeg command")

	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("%w: cannot create stderr pipe: %v", ErrTranscode, err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: cannot start ffmpeg: %v", ErrTranscode, err)
	}

	s.monitorProgress(stderr, info.Duration, progress)

	if err := cmd.Wait(); err != nil {
		os.Remove(outputPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: ffmpeg exited: %v", ErrTranscode, err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("%w: conversion finished but output missing: %s", ErrTranscode, outputPath)
	}

	if progress != nil {
		progress(1)
	}
	s.logger.Info().Str("output", outputPath).Msg("conversion completed")
	return outputPath, nil
}

// monitorProgress reads the -progress key=value stream and converts
// out_time_us lines into fractional completion.
func (s *Service) monitorProgress(r io.Reader, totalDuration float64, progress model.EncodeProgressFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, ProgressTimePrefix) {
			continue
		}
		us, err := strconv.ParseInt(strings.TrimPrefix(line, ProgressTimePrefix), 10, 64)
		if err != nil {
			continue
		}
		if progress != nil && totalDuration > 0 {
			frac := float64(us) / 1e6 / totalDuration
			if frac > 1 {
				frac = 1
			}
			progress(frac)
		}
	}
}

// buildArgs constructs the full ffmpeg argument list for one conversion.
func (s *Service) buildArgs(inputPath, outputPath string, info *ProbeInfo, meta *model.Metadata, thumbnailPath string) []string {
	video := s.profile.Video
	audio := s.profile.Audio
	output := s.profile.Output

	args := []string{"-hide_banner", "-i", inputPath}
	if thumbnailPath != "" {
		args = append(args, "-i", thumbnailPath)
	}

	args = append(args, "-map", "0:v:0", "-map", "0:a:0")
	if thumbnailPath != "" {
		// Attach the cover art as a stream-copied still, not a re-encode.
		args = append(args, "-map", "1:v:0", "-c:v:1", "mjpeg", "-disposition:v:1", "attached_pic")
	}

	args = append(args, "-c:v:0", string(s.encoder))
	args = append(args, "-preset", encoder.Preset(s.encoder))
	args = append(args, encoder.QualityArgs(s.encoder, video.QualityCQ)...)
	args = append(args, "-profile:v:0", video.Profile)
	args = append(args, "-level:v:0", video.Level)
	args = append(args, "-pix_fmt:v:0", video.PixelFormat)

	var filters []string
	if info.Width > video.MaxWidth || info.Height > video.MaxHeight {
		if video.MaintainAspectRatio {
			filters = append(filters, fmt.Sprintf(
				"scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease",
				video.MaxWidth, video.MaxHeight))
		} else {
			filters = append(filters, fmt.Sprintf("scale=%d:%d", video.MaxWidth, video.MaxHeight))
		}
	}
	if info.FPS > float64(video.MaxFPS) {
		filters = append(filters, fmt.Sprintf("fps=fps=%d", video.MaxFPS))
	}
	// -filter:v:0 keeps the graph off the attached-pic stream; bare -vf
	// would scale the cover art too.
	if len(filters) > 0 {
		args = append(args, "-filter:v:0", strings.Join(filters, ","))
	}

	if video.MaxBitrateMbps > 0 {
		kbps := int(video.MaxBitrateMbps * 1000)
		args = append(args,
			"-b:v:0", fmt.Sprintf("%dk", kbps),
			"-maxrate:v:0", fmt.Sprintf("%dk", kbps),
			"-bufsize:v:0", fmt.Sprintf("%dk", kbps*2),
		)
	}
	args = append(args, video.ExtraArgs...)

	args = append(args,
		"-c:a:0", audio.Codec,
		"-b:a:0", fmt.Sprintf("%dk", audio.BitrateKbps),
		"-ar:a:0", strconv.Itoa(audio.SampleRate),
		"-ac:a:0", strconv.Itoa(audio.Channels),
	)
	args = append(args, audio.ExtraArgs...)

	if meta != nil {
		if meta.Title != "" {
			args = append(args, "-metadata", "title="+meta.Title)
		}
		if artist := meta.ArtistOrUploader(); artist != "" {
			args = append(args, "-metadata", "artist="+artist)
			args = append(args, "-metadata", "album_artist="+artist)
		}
		args = append(args, "-metadata", "album="+meta.AlbumName())
		if d := meta.FormattedUploadDate(); d != "" {
			args = append(args, "-metadata", "date="+d)
		}
		args = append(args, "-metadata", "genre=Video")
		if meta.ID != "" {
			args = append(args, "-metadata", "comment=YouTube ID: "+meta.ID)
		}
	}

	// The head unit cannot use subtitle, data or chapter streams.
	args = append(args, "-sn", "-dn", "-map_chapters", "-1")

	if output.Faststart {
		args = append(args, "-movflags", "+faststart")
	}

	args = append(args, "-progress", ProgressPipeTarget, "-nostats")
	args = append(args, "-y", outputPath)
	return args
}

// EstimateOutputSize predicts the output size in bytes from the input's
// duration and the profile's target bitrates.
func (s *Service) EstimateOutputSize(ctx context.Context, inputPath string) (int64, error) {
	info, err := s.Probe(ctx, inputPath)
	if err != nil {
		return 0, err
	}

	videoBps := float64(info.BitRate)
	if s.profile.Video.MaxBitrateMbps > 0 {
		videoBps = s.profile.Video.MaxBitrateMbps * 1e6
	}
	audioBps := float64(s.profile.Audio.BitrateKbps) * 1000

	return int64((videoBps + audioBps) / 8 * info.Duration), nil
}
