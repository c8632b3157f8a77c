package config

import (
	"os"
	"path/filepath"
	"testing"
)

func defaultProfile(t *testing.T) *Profile {
	t.Helper()
	p, err := LoadProfile(DefaultProfileName)
	if err != nil {
		t.Fatalf("LoadProfile(default) failed: %v", err)
	}
	return p
}

func TestLoadProfile_Defaults(t *testing.T) {
	p := defaultProfile(t)

	if p.Video.MaxWidth != 720 || p.Video.MaxHeight != 540 {
		t.Errorf("default resolution = %dx%d, expected 720x540", p.Video.MaxWidth, p.Video.MaxHeight)
	}
	if p.Video.Codec != "h264" || p.Video.Profile != "main" {
		t.Errorf("default codec = %s/%s", p.Video.Codec, p.Video.Profile)
	}
	if p.Audio.BitrateKbps != 128 {
		t.Errorf("default audio bitrate = %d", p.Audio.BitrateKbps)
	}
	if p.Output.MaxFileSizeGB != 3.9 {
		t.Errorf("default size ceiling = %v", p.Output.MaxFileSizeGB)
	}
	if p.Output.OnSizeExceed != ActionSplit {
		t.Errorf("default size action = %s", p.Output.OnSizeExceed)
	}
	if len(p.Video.EncoderPriority) != 4 || p.Video.EncoderPriority[3] != "libx264" {
		t.Errorf("default encoder priority = %v", p.Video.EncoderPriority)
	}
	if p.Transfer.AutoCopy {
		t.Error("auto_copy should default off")
	}
}

func TestLoadProfile_UnknownName(t *testing.T) {
	if _, err := LoadProfile("no_such_device"); err == nil {
		t.Error("unknown profile name accepted")
	}
}

func TestLoadProfileFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	content := `
[video]
max_height = 480
quality_cq = 30

[output]
on_size_exceed = "compress"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfileFile(path)
	if err != nil {
		t.Fatalf("LoadProfileFile failed: %v", err)
	}
	if p.Video.MaxHeight != 480 {
		t.Errorf("max_height = %d, expected override 480", p.Video.MaxHeight)
	}
	if p.Video.QualityCQ != 30 {
		t.Errorf("quality_cq = %d, expected override 30", p.Video.QualityCQ)
	}
	if p.Output.OnSizeExceed != ActionCompress {
		t.Errorf("on_size_exceed = %s, expected compress", p.Output.OnSizeExceed)
	}
	// unset keys keep their defaults
	if p.Video.MaxWidth != 720 {
		t.Errorf("max_width = %d, expected default 720", p.Video.MaxWidth)
	}
}

func TestProfile_Validate(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"quality out of range", func(p *Profile) { p.Video.QualityCQ = 52 }},
		{"zero resolution", func(p *Profile) { p.Video.MaxWidth = 0 }},
		{"zero fps", func(p *Profile) { p.Video.MaxFPS = 0 }},
		{"audio bitrate too low", func(p *Profile) { p.Audio.BitrateKbps = 8 }},
		{"audio bitrate too high", func(p *Profile) { p.Audio.BitrateKbps = 512 }},
		{"zero size ceiling", func(p *Profile) { p.Output.MaxFileSizeGB = 0 }},
		{"unknown size action", func(p *Profile) { p.Output.OnSizeExceed = "explode" }},
		{"bad reduction factor", func(p *Profile) { p.Output.ReductionFactor = 1.5 }},
		{"empty filename template", func(p *Profile) { p.Output.FilenameTemplate = "" }},
		{"empty encoder priority", func(p *Profile) { p.Video.EncoderPriority = nil }},
		{"negative retries", func(p *Profile) { p.Download.Retries = -1 }},
	}

	for _, test := range mutations {
		p := defaultProfile(t)
		test.mutate(p)
		if err := p.Validate(); err == nil {
			t.Errorf("%s: Validate accepted invalid profile", test.name)
		}
	}

	if err := defaultProfile(t).Validate(); err != nil {
		t.Errorf("default profile invalid: %v", err)
	}
}

func TestOutput_MaxFileSizeBytes(t *testing.T) {
	o := Output{MaxFileSizeGB: 3.9}
	expected := int64(o.MaxFileSizeGB * float64(1<<30))
	if got := o.MaxFileSizeBytes(); got != expected {
		t.Errorf("MaxFileSizeBytes = %d, expected %d", got, expected)
	}
}

func TestSizeAction_Valid(t *testing.T) {
	for _, a := range []SizeAction{ActionSplit, ActionCompress, ActionWarn, ActionSkip} {
		if !a.Valid() {
			t.Errorf("%s should be valid", a)
		}
	}
	if SizeAction("truncate").Valid() {
		t.Error("unknown action reported valid")
	}
}
