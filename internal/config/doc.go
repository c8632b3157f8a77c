package config

// Package config loads and validates processing profiles. A profile is a TOML
// document describing the target device's constraints: video and audio
// encoding limits, output container and size ceiling, transfer behavior and
// download tuning. Profiles resolve from the user config directory first,
// then from the bundled profiles directory.
