package encoder

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/addoodi/yt2audi/internal/log"
)

// Encoder identifies an ffmpeg video encoder.
type Encoder string

const (
	NVENC    Encoder = "h264_nvenc"
	AMF      Encoder = "h264_amf"
	QSV      Encoder = "h264_qsv"
	Software Encoder = "libx264"
)

// Vendor identifies a GPU vendor.
type Vendor string

const (
	VendorNvidia Vendor = "nvidia"
	VendorAMD    Vendor = "amd"
	VendorIntel  Vendor = "intel"
)

// ErrEncoderUnavailable is returned when not even the software encoder can
// be confirmed (ffmpeg missing or misconfigured).
var ErrEncoderUnavailable = errors.New("no video encoder available")

// Candidate is a probed hardware capability: a vendor plus the device name
// the probe reported.
type Candidate struct {
	Vendor   Vendor
	Name     string
	Hardware bool
}

// vendorEncoders maps detected vendors to their ffmpeg encoder.
var vendorEncoders = map[Vendor]Encoder{
	VendorNvidia: NVENC,
	VendorAMD:    AMF,
	VendorIntel:  QSV,
}

// runner executes an external command and returns its combined output.
// Injected so probes are testable without the real tools installed.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

const probeTimeout = 10 * time.Second

// Selector probes the host and resolves encoders. Zero-value construction is
// not supported; use NewSelector.
type Selector struct {
	ffmpegPath string
	run        runner
}

// NewSelector creates a selector that shells out to the given ffmpeg binary
// ("ffmpeg" if empty).
func NewSelector(ffmpegPath string) *Selector {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Selector{ffmpegPath: ffmpegPath, run: execRunner}
}

// SelectBest walks the priority list and returns the first encoder confirmed
// available on this host, falling back to libx264 when nothing in the list
// is usable. Probes run fresh on every call; selection is an
// initialization-time operation, not per-item.
func (s *Selector) SelectBest(ctx context.Context, priority []Encoder) (Encoder, error) {
	logger := log.WithComponent("encoder")

	candidates := s.DetectGPUs(ctx)
	logger.Info().Int("gpus", len(candidates)).Msg("hardware probe finished")

	available := make(map[Encoder]bool)
	for _, c := range candidates {
		enc, ok := vendorEncoders[c.Vendor]
		if !ok || !c.Hardware {
			continue
		}
		// Hardware presence does not guarantee the ffmpeg build supports
		// the encoder; confirm before trusting it.
		if s.ffmpegHasEncoder(ctx, enc) {
			available[enc] = true
		}
	}
	if s.ffmpegHasEncoder(ctx, Software) {
		available[Software] = true
	}

	for _, enc := range priority {
		if available[enc] {
			logger.Info().Str("encoder", string(enc)).Msg("encoder selected")
			return enc, nil
		}
	}

	if available[Software] {
		logger.Warn().Msg("no preferred encoder available, falling back to libx264")
		return Software, nil
	}

	return "", ErrEncoderUnavailable
}

// DetectGPUs runs the three vendor probes. Each probe is independent: one
// vendor's probe failing never hides another vendor's hardware.
func (s *Selector) DetectGPUs(ctx context.Context) []Candidate {
	var found []Candidate
	if c := s.detectNvidia(ctx); c != nil {
		found = append(found, *c)
	}
	if c := s.detectAMD(ctx); c != nil {
		found = append(found, *c)
	}
	if c := s.detectIntel(ctx); c != nil {
		found = append(found, *c)
	}
	return found
}

// detectNvidia asks nvidia-smi for the device name.
func (s *Selector) detectNvidia(ctx context.Context) *Candidate {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := s.run(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader")
	if err != nil {
		return nil
	}
	name := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	if name == "" {
		return nil
	}
	return &Candidate{Vendor: VendorNvidia, Name: name, Hardware: true}
}

// detectAMD looks for the AMF encoder in the ffmpeg build, the same signal
// an AMD driver install leaves behind.
func (s *Selector) detectAMD(ctx context.Context) *Candidate {
	if s.ffmpegHasEncoder(ctx, AMF) {
		return &Candidate{Vendor: VendorAMD, Name: "AMD GPU (via ffmpeg)", Hardware: true}
	}
	return nil
}

// detectIntel looks for QuickSync support in the ffmpeg build.
func (s *Selector) detectIntel(ctx context.Context) *Candidate {
	if s.ffmpegHasEncoder(ctx, QSV) {
		return &Candidate{Vendor: VendorIntel, Name: "Intel GPU (via ffmpeg)", Hardware: true}
	}
	return nil
}

// ffmpegHasEncoder checks `ffmpeg -encoders` output for the encoder name.
func (s *Selector) ffmpegHasEncoder(ctx context.Context, enc Encoder) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := s.run(ctx, s.ffmpegPath, "-hide_banner", "-encoders")
	if err != nil {
		logger := log.WithComponent("encoder")
		logger.Warn().
			Str("encoder", string(enc)).Err(err).Msg("ffmpeg encoder check failed")
		return false
	}
	return strings.Contains(string(out), string(enc))
}
