package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Profile file extension and directory names
const (
	profileExt      = ".toml"
	appDirName      = "yt2audi"
	profilesDirName = "profiles"
	envPrefix       = "YT2AUDI"
)

// DefaultProfileName is used when the caller does not name a profile.
const DefaultProfileName = "audi_q5_mmi"

// ConfigDir returns the user configuration directory
// (~/.config/yt2audi or the platform equivalent).
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", &Error{fmt.Sprintf("cannot resolve user config dir: %v", err)}
	}
	return filepath.Join(base, appDirName), nil
}

// UserProfilesDir returns the directory user-defined profiles live in.
func UserProfilesDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, profilesDirName), nil
}

// BundledProfilesDir is the profiles directory shipped next to the binary.
// Overridable for tests and packaging layouts.
var BundledProfilesDir = func() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join("configs", profilesDirName)
	}
	return filepath.Join(filepath.Dir(exe), "configs", profilesDirName)
}

// ListProfiles returns the names of all available profiles, user profiles
// and bundled profiles merged, sorted.
func ListProfiles() []string {
	seen := map[string]struct{}{DefaultProfileName: {}}

	dirs := []string{BundledProfilesDir()}
	if userDir, err := UserProfilesDir(); err == nil {
		dirs = append(dirs, userDir)
	}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), profileExt) {
				continue
			}
			seen[strings.TrimSuffix(e.Name(), profileExt)] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadProfile loads a profile by name. User profiles shadow bundled ones;
// the built-in default is used when no file exists for the default name.
// Environment variables prefixed YT2AUDI_ override individual keys.
func LoadProfile(name string) (*Profile, error) {
	if name == "" {
		name = DefaultProfileName
	}

	path, found := findProfileFile(name)
	if !found && name != DefaultProfileName {
		return nil, &Error{fmt.Sprintf("profile %q not found, available: %s",
			name, strings.Join(ListProfiles(), ", "))}
	}

	v := viper.New()
	setDefaults(v)
	if found {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, &Error{fmt.Sprintf("cannot read profile %s: %v", path, err)}
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var p Profile
	if err := v.Unmarshal(&p); err != nil {
		return nil, &Error{fmt.Sprintf("cannot parse profile %q: %v", name, err)}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProfileFile loads and validates a profile from an explicit path.
func LoadProfileFile(path string) (*Profile, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, &Error{fmt.Sprintf("cannot read profile %s: %v", path, err)}
	}

	var p Profile
	if err := v.Unmarshal(&p); err != nil {
		return nil, &Error{fmt.Sprintf("cannot parse profile %s: %v", path, err)}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func findProfileFile(name string) (string, bool) {
	if userDir, err := UserProfilesDir(); err == nil {
		path := filepath.Join(userDir, name+profileExt)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	path := filepath.Join(BundledProfilesDir(), name+profileExt)
	if _, err := os.Stat(path); err == nil {
		return path, true
	}
	return "", false
}

// setDefaults installs the built-in head unit profile: 720x540 h264 main at
// 25fps with aac 128k in mp4, split at the FAT32-safe 3.9 GB ceiling.
func setDefaults(v *viper.Viper) {
	v.SetDefault("profile.name", "Audi Q5 MMI (Default)")
	v.SetDefault("profile.description", "Default profile for Audi Q5 MMI/MIB2/3 head units")
	v.SetDefault("profile.version", "1.0.0")

	v.SetDefault("video.max_width", 720)
	v.SetDefault("video.max_height", 540)
	v.SetDefault("video.maintain_aspect_ratio", true)
	v.SetDefault("video.codec", "h264")
	v.SetDefault("video.profile", "main")
	v.SetDefault("video.level", "4.0")
	v.SetDefault("video.pixel_format", "yuv420p")
	v.SetDefault("video.max_bitrate_mbps", 0)
	v.SetDefault("video.max_fps", 25)
	v.SetDefault("video.quality_cq", 24)
	v.SetDefault("video.encoder_priority", []string{
		"h264_nvenc", "h264_amf", "h264_qsv", "libx264",
	})

	v.SetDefault("audio.codec", "aac")
	v.SetDefault("audio.bitrate_kbps", 128)
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.channels", 2)

	v.SetDefault("output.container", "mp4")
	v.SetDefault("output.faststart", true)
	v.SetDefault("output.output_dir", "./output")
	v.SetDefault("output.filename_template", "{title}_{id}.{ext}")
	v.SetDefault("output.max_file_size_gb", 3.9)
	v.SetDefault("output.on_size_exceed", string(ActionSplit))
	v.SetDefault("output.split_part_template", "{stem}_part%03d.{ext}")
	v.SetDefault("output.target_bitrate_reduction", 0.8)

	v.SetDefault("transfer.auto_copy", false)
	v.SetDefault("transfer.subdir", "Videos")
	v.SetDefault("transfer.delete_after_transfer", false)

	v.SetDefault("download.format_preference", "auto")
	v.SetDefault("download.retries", 3)
	v.SetDefault("download.playlist_start", 1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return os.ExpandEnv(path)
}
