package config

import (
	"fmt"
)

// SizeAction is the remediation applied when an output exceeds the ceiling.
type SizeAction string

const (
	ActionSplit    SizeAction = "split"
	ActionCompress SizeAction = "compress"
	ActionWarn     SizeAction = "warn"
	ActionSkip     SizeAction = "skip"
)

// Valid reports whether the action is one of the known remediation policies.
func (a SizeAction) Valid() bool {
	switch a {
	case ActionSplit, ActionCompress, ActionWarn, ActionSkip:
		return true
	}
	return false
}

// Meta describes the profile itself.
type Meta struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Version     string `mapstructure:"version"`
}

// Video holds the video encoding constraints of the target device.
type Video struct {
	MaxWidth            int      `mapstructure:"max_width"`
	MaxHeight           int      `mapstructure:"max_height"`
	MaintainAspectRatio bool     `mapstructure:"maintain_aspect_ratio"`
	Codec               string   `mapstructure:"codec"`
	Profile             string   `mapstructure:"profile"`
	Level               string   `mapstructure:"level"`
	PixelFormat         string   `mapstructure:"pixel_format"`
	MaxBitrateMbps      float64  `mapstructure:"max_bitrate_mbps"` // 0 = auto
	MaxFPS              int      `mapstructure:"max_fps"`
	QualityCQ           int      `mapstructure:"quality_cq"` // 0-51, lower is better
	EncoderPriority     []string `mapstructure:"encoder_priority"`
	ExtraArgs           []string `mapstructure:"extra_video_args"`
}

// Audio holds the audio encoding settings.
type Audio struct {
	Codec       string   `mapstructure:"codec"`
	BitrateKbps int      `mapstructure:"bitrate_kbps"`
	SampleRate  int      `mapstructure:"sample_rate"`
	Channels    int      `mapstructure:"channels"`
	ExtraArgs   []string `mapstructure:"extra_audio_args"`
}

// Output holds container and size-ceiling settings.
type Output struct {
	Container        string     `mapstructure:"container"`
	Faststart        bool       `mapstructure:"faststart"`
	OutputDir        string     `mapstructure:"output_dir"`
	FilenameTemplate string     `mapstructure:"filename_template"`
	MaxFileSizeGB    float64    `mapstructure:"max_file_size_gb"`
	OnSizeExceed     SizeAction `mapstructure:"on_size_exceed"`
	SplitTemplate    string     `mapstructure:"split_part_template"`
	ReductionFactor  float64    `mapstructure:"target_bitrate_reduction"`
}

// MaxFileSizeBytes returns the size ceiling in bytes.
func (o Output) MaxFileSizeBytes() int64 {
	return int64(o.MaxFileSizeGB * float64(1<<30))
}

// Transfer holds removable-volume copy settings.
type Transfer struct {
	AutoCopy            bool   `mapstructure:"auto_copy"`
	MountPath           string `mapstructure:"mount_path"`
	Subdir              string `mapstructure:"subdir"`
	DeleteAfterTransfer bool   `mapstructure:"delete_after_transfer"`
}

// Download holds downloader tuning.
type Download struct {
	FormatPreference string  `mapstructure:"format_preference"` // "auto" derives from the profile
	RateLimitMbps    float64 `mapstructure:"rate_limit_mbps"`   // 0 = unlimited
	Retries          int     `mapstructure:"retries"`
	PlaylistStart    int     `mapstructure:"playlist_start"`
	PlaylistEnd      int     `mapstructure:"playlist_end"` // 0 = all
	PlaylistReverse  bool    `mapstructure:"playlist_reverse"`
}

// Logging holds log output settings.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// Profile is a complete, immutable processing profile. It is read-only after
// loading; per-call overrides are explicit parameters, never mutations.
type Profile struct {
	Profile  Meta     `mapstructure:"profile"`
	Video    Video    `mapstructure:"video"`
	Audio    Audio    `mapstructure:"audio"`
	Output   Output   `mapstructure:"output"`
	Transfer Transfer `mapstructure:"transfer"`
	Download Download `mapstructure:"download"`
	Logging  Logging  `mapstructure:"logging"`
}

// Validate checks the profile for values the pipeline cannot work with.
func (p *Profile) Validate() error {
	if p.Video.QualityCQ < 0 || p.Video.QualityCQ > 51 {
		return &Error{fmt.Sprintf("quality_cq %d out of range 0-51", p.Video.QualityCQ)}
	}
	if p.Video.MaxWidth < 1 || p.Video.MaxHeight < 1 {
		return &Error{fmt.Sprintf("invalid max resolution %dx%d", p.Video.MaxWidth, p.Video.MaxHeight)}
	}
	if p.Video.MaxFPS < 1 {
		return &Error{fmt.Sprintf("invalid max_fps %d", p.Video.MaxFPS)}
	}
	if p.Audio.BitrateKbps < 32 || p.Audio.BitrateKbps > 320 {
		return &Error{fmt.Sprintf("audio bitrate_kbps %d out of range 32-320", p.Audio.BitrateKbps)}
	}
	if p.Output.MaxFileSizeGB <= 0 {
		return &Error{fmt.Sprintf("max_file_size_gb must be positive, got %v", p.Output.MaxFileSizeGB)}
	}
	if !p.Output.OnSizeExceed.Valid() {
		return &Error{fmt.Sprintf("unknown on_size_exceed action %q", p.Output.OnSizeExceed)}
	}
	if p.Output.ReductionFactor <= 0 || p.Output.ReductionFactor > 1 {
		return &Error{fmt.Sprintf("target_bitrate_reduction %v out of range (0,1]", p.Output.ReductionFactor)}
	}
	if p.Output.FilenameTemplate == "" {
		return &Error{"filename_template must not be empty"}
	}
	if len(p.Video.EncoderPriority) == 0 {
		return &Error{"encoder_priority must not be empty"}
	}
	if p.Download.Retries < 0 {
		return &Error{fmt.Sprintf("retries must not be negative, got %d", p.Download.Retries)}
	}
	return nil
}

// Error is a configuration validation or loading error.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "config: " + e.Reason
}
