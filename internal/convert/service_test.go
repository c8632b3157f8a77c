package convert

import (
	"strings"
	"testing"

	"github.com/addoodi/yt2audi/internal/config"
	"github.com/addoodi/yt2audi/internal/encoder"
	"github.com/addoodi/yt2audi/internal/model"
)

func fullProfile() *config.Profile {
	return &config.Profile{
		Video: config.Video{
			MaxWidth:            720,
			MaxHeight:           540,
			MaintainAspectRatio: true,
			Codec:               "h264",
			Profile:             "main",
			Level:               "4.0",
			PixelFormat:         "yuv420p",
			MaxFPS:              25,
			QualityCQ:           24,
		},
		Audio: config.Audio{
			Codec:       "aac",
			BitrateKbps: 128,
			SampleRate:  44100,
			Channels:    2,
		},
		Output: config.Output{
			Container:        "mp4",
			Faststart:        true,
			FilenameTemplate: "{title}_{id}.{ext}",
		},
	}
}

func argsString(t *testing.T, info *ProbeInfo, meta *model.Metadata, thumbnail string) string {
	t.Helper()
	s := NewService(fullProfile(), encoder.Software)
	return strings.Join(s.buildArgs("in.webm", "out.mp4", info, meta, thumbnail), " ")
}

func TestBuildArgs_ScalesOversizedInput(t *testing.T) {
	args := argsString(t, &ProbeInfo{Width: 1920, Height: 1080, FPS: 25}, nil, "")

	if !strings.Contains(args, "force_original_aspect_ratio=decrease") {
		t.Errorf("scale filter missing from %q", args)
	}
	if !strings.Contains(args, "min(720,iw)") || !strings.Contains(args, "min(540,ih)") {
		t.Errorf("scale bounds missing from %q", args)
	}
	// the graph must bind to the first video stream only, or an attached
	// thumbnail gets scaled with it
	if !strings.Contains(args, "-filter:v:0 ") {
		t.Errorf("filter not stream-scoped in %q", args)
	}
}

func TestBuildArgs_NoScaleWhenWithinLimits(t *testing.T) {
	args := argsString(t, &ProbeInfo{Width: 640, Height: 480, FPS: 24}, nil, "")

	if strings.Contains(args, "-filter") {
		t.Errorf("unexpected filter in %q", args)
	}
}

func TestBuildArgs_CapsFrameRate(t *testing.T) {
	args := argsString(t, &ProbeInfo{Width: 640, Height: 480, FPS: 60}, nil, "")

	if !strings.Contains(args, "fps=fps=25") {
		t.Errorf("fps filter missing from %q", args)
	}
}

func TestBuildArgs_ThumbnailAttachedAsCoverArt(t *testing.T) {
	args := argsString(t, &ProbeInfo{Width: 640, Height: 480, FPS: 24}, nil, "thumb.jpg")

	for _, want := range []string{"-i thumb.jpg", "-map 1:v:0", "-disposition:v:1 attached_pic"} {
		if !strings.Contains(args, want) {
			t.Errorf("%q missing from %q", want, args)
		}
	}
}

func TestBuildArgs_MetadataTags(t *testing.T) {
	meta := &model.Metadata{
		ID:         "abc123",
		Title:      "Song",
		Uploader:   "Channel",
		UploadDate: "20240102",
	}
	args := argsString(t, &ProbeInfo{Width: 640, Height: 480, FPS: 24}, meta, "")

	for _, want := range []string{
		"-metadata title=Song",
		"-metadata artist=Channel",
		"-metadata album=YouTube",
		"-metadata date=2024-01-02",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("%q missing from %q", want, args)
		}
	}
}

func TestBuildArgs_DeviceConstraints(t *testing.T) {
	args := argsString(t, &ProbeInfo{Width: 640, Height: 480, FPS: 24}, nil, "")

	for _, want := range []string{
		"-c:v:0 libx264",
		"-profile:v:0 main",
		"-level:v:0 4.0",
		"-pix_fmt:v:0 yuv420p",
		"-c:a:0 aac",
		"-b:a:0 128k",
		"-movflags +faststart",
		"-sn -dn -map_chapters -1",
		"-progress pipe:2",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("%q missing from %q", want, args)
		}
	}
}

func TestMonitorProgress(t *testing.T) {
	s := NewService(fullProfile(), encoder.Software)
	stream := strings.Join([]string{
		"frame=100",
		"out_time_us=30000000",
		"speed=4x",
		"out_time_us=60000000",
		"out_time_us=garbage",
		"out_time_us=120000000",
	}, "\n")

	var got []float64
	s.monitorProgress(strings.NewReader(stream), 120, func(f float64) {
		got = append(got, f)
	})

	expected := []float64{0.25, 0.5, 1}
	if len(got) != len(expected) {
		t.Fatalf("got %d progress events, expected %d: %v", len(got), len(expected), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("progress[%d] = %v, expected %v", i, got[i], expected[i])
		}
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"25/1", 25},
		{"30000/1001", 30000.0 / 1001},
		{"24", 24},
		{"0/0", 0},
		{"", 0},
	}
	for _, test := range tests {
		if got := parseFrameRate(test.input); got != test.expected {
			t.Errorf("parseFrameRate(%q) = %v, expected %v", test.input, got, test.expected)
		}
	}
}
