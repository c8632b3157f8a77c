package sizelimit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/addoodi/yt2audi/internal/config"
	"github.com/addoodi/yt2audi/internal/log"
)

// FFmpeg constants for splitting and compression
const (
	FFmpegCommand  = "ffmpeg"
	FFprobeCommand = "ffprobe"

	// segmentSafetyMargin keeps predicted segment sizes 5% under the
	// ceiling to absorb container overhead and bitrate variance.
	segmentSafetyMargin = 0.95

	// minSegmentSeconds is the floor for derived segment durations.
	minSegmentSeconds = 1.0

	// audioReserveKbps is subtracted from the compression budget for audio.
	audioReserveKbps = 128

	// minVideoKbps is the floor for the compressed video bitrate.
	minVideoKbps = 500

	// defaultSplitTemplate is used when the profile carries no template.
	defaultSplitTemplate = "{stem}_part%03d.{ext}"

	compressedSuffix = "_compressed"

	splitTimeout    = 10 * time.Minute
	compressTimeout = time.Hour
	probeTimeout    = 30 * time.Second

	dirPermissions = 0o755
)

// ErrRemediation wraps every size remediation failure.
var ErrRemediation = errors.New("size remediation failed")

type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Remediator applies the profile's on-size-exceed policy to finished output
// files. The policy is read-only input; nothing here mutates the profile.
type Remediator struct {
	output      config.Output
	ffmpegPath  string
	ffprobePath string
	run         runner
	logger      zerolog.Logger
}

// NewRemediator creates a remediator for the given output policy.
func NewRemediator(output config.Output) *Remediator {
	return &Remediator{
		output:      output,
		ffmpegPath:  FFmpegCommand,
		ffprobePath: FFprobeCommand,
		run:         execRunner,
		logger:      log.WithComponent("sizelimit"),
	}
}

// Remediate brings path under the size ceiling according to the configured
// action. Returns the resulting file list: the original when it already
// fits or under warn, one or more parts under split, one file under
// compress, and an empty list under skip.
func (r *Remediator) Remediate(ctx context.Context, path, outputDir string) ([]string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: input not found: %s", ErrRemediation, path)
	}

	maxBytes := r.output.MaxFileSizeBytes()
	if fi.Size() <= maxBytes {
		return []string{path}, nil
	}

	r.logger.Warn().
		Str("path", path).
		Int64("size", fi.Size()).
		Int64("max", maxBytes).
		Str("action", string(r.output.OnSizeExceed)).
		Msg("output exceeds size ceiling")

	switch r.output.OnSizeExceed {
	case config.ActionSplit:
		return r.split(ctx, path, fi.Size(), maxBytes, outputDir)
	case config.ActionCompress:
		out, err := r.compress(ctx, path, maxBytes, outputDir)
		if err != nil {
			return nil, err
		}
		return []string{out}, nil
	case config.ActionWarn:
		r.logger.Warn().Str("path", path).Msg("keeping oversized file as configured")
		return []string{path}, nil
	case config.ActionSkip:
		r.logger.Warn().Str("path", path).Msg("dropping oversized file as configured")
		return []string{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown on_size_exceed action %q", ErrRemediation, r.output.OnSizeExceed)
	}
}

// split segments the file without re-encoding. The segment muxer has no
// size option, so the per-segment duration is derived from the container
// bitrate.
func (r *Remediator) split(ctx context.Context, path string, size, maxBytes int64, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, dirPermissions); err != nil {
		return nil, fmt.Errorf("%w: cannot create output dir %s: %v", ErrRemediation, outputDir, err)
	}

	duration, bitrate, err := r.probeFormat(ctx, path)
	if err != nil {
		return nil, err
	}

	targetDuration := SegmentDuration(maxBytes, size, duration, bitrate)

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	name := r.partName(stem, ext)
	prefix, suffix, err := splitPartAffixes(name)
	if err != nil {
		return nil, err
	}
	pattern := filepath.Join(outputDir, name)

	r.logger.Info().
		Str("input", path).
		Float64("segment_seconds", targetDuration).
		Str("pattern", pattern).
		Msg("splitting video")

	splitCtx, cancel := context.WithTimeout(ctx, splitTimeout)
	defer cancel()

	_, err = r.run(splitCtx, r.ffmpegPath,
		"-i", path,
		"-c", "copy",
		"-map", "0",
		"-f", "segment",
		"-segment_time", strconv.FormatFloat(targetDuration, 'f', -1, 64),
		"-reset_timestamps", "1",
		"-y", pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg split failed: %v", ErrRemediation, err)
	}

	parts, err := collectParts(outputDir, prefix, suffix)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot list parts for %s: %v", ErrRemediation, path, err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: split finished but no parts found for %s", ErrRemediation, path)
	}

	r.logger.Info().Str("input", path).Int("parts", len(parts)).Msg("split completed")
	return parts, nil
}

// partName renders the profile's split part template for a file stem and
// extension. ext carries its leading dot; the template supplies its own.
func (r *Remediator) partName(stem, ext string) string {
	tpl := r.output.SplitTemplate
	if tpl == "" {
		tpl = defaultSplitTemplate
	}
	name := strings.ReplaceAll(tpl, "{stem}", stem)
	return strings.ReplaceAll(name, "{ext}", strings.TrimPrefix(ext, "."))
}

// splitPartAffixes cuts the rendered part name around its printf-style
// sequence verb, yielding the literal prefix and suffix every part shares.
func splitPartAffixes(name string) (string, string, error) {
	i := strings.IndexByte(name, '%')
	if i >= 0 {
		if j := strings.IndexByte(name[i:], 'd'); j > 0 {
			return name[:i], name[i+j+1:], nil
		}
	}
	return "", "", fmt.Errorf("%w: split template %q has no sequence number", ErrRemediation, name)
}

// collectParts gathers the segment files by literal prefix/suffix match.
// Video titles may contain glob metacharacters, so a pattern match over the
// stem is not safe here.
func collectParts(outputDir, prefix, suffix string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, err
	}
	var parts []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if len(n) > len(prefix)+len(suffix) && strings.HasPrefix(n, prefix) && strings.HasSuffix(n, suffix) {
			parts = append(parts, filepath.Join(outputDir, n))
		}
	}
	sort.Strings(parts)
	return parts, nil
}

// SegmentDuration computes the per-segment duration in seconds such that
// each segment's predicted size stays under maxBytes. When the container
// does not report a bitrate it is derived from file size and duration.
func SegmentDuration(maxBytes, fileSize int64, duration, bitrate float64) float64 {
	if bitrate <= 0 {
		if duration > 0 {
			bitrate = float64(fileSize) * 8 / duration
		} else {
			bitrate = 1e6
		}
	}
	target := float64(maxBytes) * 8 / bitrate * segmentSafetyMargin
	if target < minSegmentSeconds {
		return minSegmentSeconds
	}
	return target
}

// compress re-encodes the file at a constant bitrate computed to land under
// the ceiling, with the profile's reduction factor as extra headroom.
func (r *Remediator) compress(ctx context.Context, path string, maxBytes int64, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, dirPermissions); err != nil {
		return "", fmt.Errorf("%w: cannot create output dir %s: %v", ErrRemediation, outputDir, err)
	}

	duration, _, err := r.probeFormat(ctx, path)
	if err != nil {
		return "", err
	}
	if duration <= 0 {
		return "", fmt.Errorf("%w: cannot compress %s: unknown duration", ErrRemediation, path)
	}

	videoKbps := CompressionBitrateKbps(maxBytes, duration, r.output.ReductionFactor)

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	outputPath := filepath.Join(outputDir, stem+compressedSuffix+ext)

	r.logger.Info().
		Str("input", path).
		Int("video_kbps", videoKbps).
		Str("output", outputPath).
		Msg("compressing video")

	compressCtx, cancel := context.WithTimeout(ctx, compressTimeout)
	defer cancel()

	_, err = r.run(compressCtx, r.ffmpegPath,
		"-i", path,
		"-b:v", fmt.Sprintf("%dk", videoKbps),
		"-maxrate", fmt.Sprintf("%dk", videoKbps),
		"-bufsize", fmt.Sprintf("%dk", videoKbps*2),
		"-b:a", fmt.Sprintf("%dk", audioReserveKbps),
		"-y", outputPath,
	)
	if err != nil {
		return "", fmt.Errorf("%w: ffmpeg compression failed: %v", ErrRemediation, err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("%w: compression finished but output missing: %s", ErrRemediation, outputPath)
	}
	return outputPath, nil
}

// CompressionBitrateKbps computes the constant video bitrate for compress
// mode: the total budget scaled by the reduction factor, minus the audio
// reserve, floored at the minimum watchable rate.
func CompressionBitrateKbps(targetBytes int64, duration, reductionFactor float64) int {
	totalKbps := int(float64(targetBytes) * 8 / duration / 1000 * reductionFactor)
	videoKbps := totalKbps - audioReserveKbps
	if videoKbps < minVideoKbps {
		return minVideoKbps
	}
	return videoKbps
}

// probeFormat returns (duration seconds, bitrate bps) from the container.
func (r *Remediator) probeFormat(ctx context.Context, path string) (float64, float64, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := r.run(probeCtx, r.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration,bit_rate",
		"-of", "default=noprint_wrappers=1",
		path,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: ffprobe failed for %s: %v", ErrRemediation, path, err)
	}

	var duration, bitrate float64
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		k, v, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		switch k {
		case "duration":
			duration, _ = strconv.ParseFloat(v, 64)
		case "bit_rate":
			bitrate, _ = strconv.ParseFloat(v, 64)
		}
	}
	return duration, bitrate, nil
}
