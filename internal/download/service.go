package download

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/addoodi/yt2audi/internal/config"
	"github.com/addoodi/yt2audi/internal/log"
	"github.com/addoodi/yt2audi/internal/model"
)

// yt-dlp invocation constants
const (
	YtdlpCommand = "yt-dlp"

	// progressMarker and destMarker prefix the machine-readable lines this
	// service asks yt-dlp to print. yt-dlp mixes informational output into
	// stdout, so unmarked lines cannot be trusted.
	progressMarker = "PROGRESS"
	destMarker     = "DEST"

	progressTemplate = "download:" + progressMarker +
		" %(progress.downloaded_bytes)s %(progress.total_bytes)s %(progress.total_bytes_estimate)s\n"

	destTemplate = "after_move:" + destMarker + " %(filepath)s"

	outputTemplate = "%(title)s_%(id)s.%(ext)s"

	resolveTimeout = 60 * time.Second

	// initialBackoff doubles per retry attempt.
	initialBackoff = 2 * time.Second

	tempDirName    = "yt2audi"
	dirPermissions = 0o755
)

// Errors distinguishing the two external failure classes.
var (
	// ErrResolution means metadata extraction failed.
	ErrResolution = errors.New("metadata resolution failed")

	// ErrDownload means the download failed after internal retries.
	ErrDownload = errors.New("download failed")
)

// MetadataCache is the lookaside store consulted before hitting the network.
type MetadataCache interface {
	GetMetadata(url string) (*model.Metadata, bool)
	PutMetadata(url string, meta *model.Metadata) error
}

type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Service fetches videos and metadata through the yt-dlp binary.
type Service struct {
	profile   *config.Profile
	cache     MetadataCache
	ytdlpPath string
	tempDir   string
	run       runner
	logger    zerolog.Logger
}

// NewService creates a downloader for the given profile. cache may be nil.
func NewService(profile *config.Profile, cache MetadataCache) *Service {
	return &Service{
		profile:   profile,
		cache:     cache,
		ytdlpPath: YtdlpCommand,
		tempDir:   filepath.Join(os.TempDir(), tempDirName),
		run:       execRunner,
		logger:    log.WithComponent("download"),
	}
}

// TempDir returns the directory downloads land in before conversion.
func (s *Service) TempDir() string {
	return s.tempDir
}

// Resolve extracts video metadata without downloading. Results are cached
// by URL.
func (s *Service) Resolve(ctx context.Context, url string) (*model.Metadata, error) {
	if s.cache != nil {
		if meta, ok := s.cache.GetMetadata(url); ok {
			return meta, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	out, err := s.run(ctx, s.ytdlpPath,
		"--dump-single-json",
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
		url,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrResolution, url, err)
	}

	var meta model.Metadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, fmt.Errorf("%w: cannot parse info for %s: %v", ErrResolution, url, err)
	}
	if meta.ID == "" {
		return nil, fmt.Errorf("%w: no content id in info for %s", ErrResolution, url)
	}

	if s.cache != nil {
		if err := s.cache.PutMetadata(url, &meta); err != nil {
			s.logger.Warn().Err(err).Str("url", url).Msg("cannot cache metadata")
		}
	}
	return &meta, nil
}

// ResolvePlaylist expands a playlist URL into its entry URLs, honoring the
// profile's playlist window and ordering.
func (s *Service) ResolvePlaylist(ctx context.Context, url string) ([]string, error) {
	out, err := s.run(ctx, s.ytdlpPath,
		"--flat-playlist",
		"--dump-json",
		"--no-warnings",
		url,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: playlist %s: %v", ErrResolution, url, err)
	}

	var urls []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		switch {
		case entry.URL != "":
			urls = append(urls, entry.URL)
		case entry.ID != "":
			urls = append(urls, "https://www.youtube.com/watch?v="+entry.ID)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: playlist %s contains no entries", ErrResolution, url)
	}

	urls = applyPlaylistWindow(urls, s.profile.Download)
	return urls, nil
}

func applyPlaylistWindow(urls []string, d config.Download) []string {
	start := d.PlaylistStart
	if start < 1 {
		start = 1
	}
	if start > len(urls) {
		return nil
	}
	end := d.PlaylistEnd
	if end <= 0 || end > len(urls) {
		end = len(urls)
	}
	window := urls[start-1 : end]
	if d.PlaylistReverse {
		reversed := make([]string, len(window))
		for i, u := range window {
			reversed[len(window)-1-i] = u
		}
		return reversed
	}
	return window
}

// Fetch downloads a single video into the temp directory, streaming typed
// progress through hook. Transient failures retry with exponential backoff
// up to the profile's retry count before ErrDownload surfaces. The returned
// metadata may be nil when resolution failed but the download itself
// succeeded.
func (s *Service) Fetch(ctx context.Context, url string, hook model.DownloadStatusFunc) (string, *model.Metadata, error) {
	if err := os.MkdirAll(s.tempDir, dirPermissions); err != nil {
		return "", nil, fmt.Errorf("%w: cannot create temp dir: %v", ErrDownload, err)
	}

	meta, err := s.Resolve(ctx, url)
	if err != nil {
		// The pre-check may already have failed the same way; the fetch
		// proceeds regardless and yt-dlp resolves internally.
		s.logger.Warn().Str("url", url).Err(err).Msg("resolution failed before fetch")
		meta = nil
	}

	attempts := s.profile.Download.Retries + 1
	backoff := initialBackoff
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			s.logger.Info().Str("url", url).Int("attempt", attempt).Msg("retrying download")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", meta, ctx.Err()
			}
			backoff *= 2
		}

		path, err := s.fetchOnce(ctx, url, hook)
		if err == nil {
			if hook != nil {
				hook(model.DownloadStatus{Phase: model.DownloadDone})
			}
			return path, meta, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", meta, ctx.Err()
		}
		s.logger.Warn().Str("url", url).Int("attempt", attempt).Err(err).Msg("download attempt failed")
	}

	return "", meta, fmt.Errorf("%w: %s: %v", ErrDownload, url, lastErr)
}

// fetchOnce runs a single yt-dlp invocation and parses its stdout for
// progress lines and the final file path.
func (s *Service) fetchOnce(ctx context.Context, url string, hook model.DownloadStatusFunc) (string, error) {
	args := []string{
		"-f", BuildFormatSelector(s.profile),
		"-o", filepath.Join(s.tempDir, outputTemplate),
		"--no-playlist",
		"--restrict-filenames",
		"--force-overwrites",
		"--newline",
		"--no-warnings",
		"--write-thumbnail",
		"--convert-thumbnails", "jpg",
		"--progress-template", progressTemplate,
		"--print", destTemplate,
		"--no-simulate",
	}
	if limit := s.profile.Download.RateLimitMbps; limit > 0 {
		args = append(args, "-r", strconv.Itoa(int(limit*1024*1024/8)))
	}
	args = append(args, url)

	cmd := exec.CommandContext(ctx, s.ytdlpPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("cannot create stdout pipe: %v", err)
	}
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("cannot start yt-dlp: %v", err)
	}

	if hook != nil {
		hook(model.DownloadStatus{Phase: model.DownloadQueued})
	}

	var finalPath string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if status, ok := parseProgressLine(line); ok {
			if hook != nil {
				hook(status)
			}
			continue
		}
		// the destination line arrives once the download and any merge
		// finished; everything else on stdout is noise
		if path, ok := parseDestLine(line); ok {
			finalPath = path
		}
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("yt-dlp exited: %v", err)
	}
	if finalPath == "" {
		return "", fmt.Errorf("yt-dlp finished without reporting a file path")
	}
	if _, err := os.Stat(finalPath); err != nil {
		return "", fmt.Errorf("downloaded file missing: %s", finalPath)
	}
	return finalPath, nil
}

// parseProgressLine decodes one progress-template line into the typed
// status union. yt-dlp prints "NA" for unknown byte counts; the estimate is
// used when the exact total is unavailable.
func parseProgressLine(line string) (model.DownloadStatus, bool) {
	if !strings.HasPrefix(line, progressMarker+" ") {
		return model.DownloadStatus{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(line, progressMarker+" "))
	if len(fields) < 3 {
		return model.DownloadStatus{}, false
	}

	done := parseBytes(fields[0])
	total := parseBytes(fields[1])
	if total <= 0 {
		total = parseBytes(fields[2])
	}
	return model.DownloadStatus{
		Phase:      model.DownloadInProgress,
		BytesDone:  done,
		BytesTotal: total,
	}, true
}

// parseDestLine extracts the final file path from a marker-prefixed
// destination line.
func parseDestLine(line string) (string, bool) {
	if !strings.HasPrefix(line, destMarker+" ") {
		return "", false
	}
	path := strings.TrimSpace(strings.TrimPrefix(line, destMarker+" "))
	return path, path != ""
}

func parseBytes(s string) int64 {
	if s == "NA" || s == "" {
		return 0
	}
	// yt-dlp may render byte counts as floats.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}
