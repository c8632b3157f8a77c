package pipeline

// Package pipeline orchestrates the download, convert, finalize and transfer
// stages for one or many URLs. Download and conversion concurrency are
// bounded by two independent semaphores, so one item can transcode while the
// next downloads. Collaborators sit behind small interfaces and are injected,
// keeping the orchestration testable without network, ffmpeg or a USB stick.
