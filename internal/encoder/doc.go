package encoder

// Package encoder resolves a usable video encoder from an ordered preference
// list. Hardware probes are best-effort and independently fallible; every
// candidate is confirmed against the ffmpeg build before it is considered
// available, and libx264 is always checked as the software fallback.
