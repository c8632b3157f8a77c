package convert

// Package convert drives ffmpeg to transcode downloaded videos into the
// profile's target format: resolution and fps capped, hardware encoder when
// available, container metadata and thumbnail embedded. Output paths are
// predicted deterministically from metadata so the pipeline can skip work
// for files that already exist.
