package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const probeTimeout = 30 * time.Second

// ProbeInfo is the container/stream information the pipeline needs from a
// media file.
type ProbeInfo struct {
	Duration float64 // seconds
	Width    int
	Height   int
	FPS      float64
	Codec    string
	BitRate  int64 // bits per second, 0 if the container does not report it
	Size     int64 // bytes
}

// ffprobe JSON layout for -show_format -show_streams
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
		Size     string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

// Probe extracts media information via ffprobe.
func (s *Service) Probe(ctx context.Context, path string) (*ProbeInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := s.run(ctx, s.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe failed for %s: %v", ErrTranscode, path, err)
	}

	var raw probeOutput
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("%w: cannot parse ffprobe output for %s: %v", ErrTranscode, path, err)
	}

	info := &ProbeInfo{
		Duration: parseFloat(raw.Format.Duration),
		BitRate:  parseInt(raw.Format.BitRate),
		Size:     parseInt(raw.Format.Size),
	}
	for _, st := range raw.Streams {
		if st.CodecType != "video" {
			continue
		}
		info.Width = st.Width
		info.Height = st.Height
		info.Codec = st.CodecName
		info.FPS = parseFrameRate(st.RFrameRate)
		break
	}
	return info, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return v
}

// parseFrameRate parses ffprobe's rational frame rate ("25/1").
func parseFrameRate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return parseFloat(s)
	}
	num := parseFloat(parts[0])
	den := parseFloat(parts[1])
	if den == 0 {
		return 0
	}
	return num / den
}
