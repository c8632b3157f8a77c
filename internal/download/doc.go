package download

// Package download wraps the yt-dlp binary: metadata extraction
// (--dump-single-json), single-video fetches with typed byte-level progress,
// and flat playlist expansion. Transient failures are retried internally
// with exponential backoff before a terminal DownloadError surfaces.
