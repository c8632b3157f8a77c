package sizelimit

// Package sizelimit enforces the target filesystem's file size ceiling
// (FAT32 tops out just under 4 GB). Oversized outputs are split losslessly
// with the ffmpeg segment muxer, re-encoded down to a target bitrate,
// accepted with a warning, or dropped, according to the profile policy.
