package pipeline

import (
	"context"

	"github.com/addoodi/yt2audi/internal/model"
)

// Downloader resolves metadata and fetches source files.
type Downloader interface {
	Resolve(ctx context.Context, url string) (*model.Metadata, error)
	ResolvePlaylist(ctx context.Context, url string) ([]string, error)
	Fetch(ctx context.Context, url string, hook model.DownloadStatusFunc) (string, *model.Metadata, error)
	TempDir() string
}

// Converter transcodes downloaded files to the device target.
type Converter interface {
	PredictOutputPath(meta *model.Metadata, outputDir string) string
	Encode(ctx context.Context, inputPath, outputDir string, meta *model.Metadata,
		thumbnailPath string, progress model.EncodeProgressFunc) (string, error)
}

// Remediator enforces the output size ceiling on finalized files.
type Remediator interface {
	Remediate(ctx context.Context, path, outputDir string) ([]string, error)
}

// HistoryStore records completed content IDs for the idempotence pre-check.
type HistoryStore interface {
	IsComplete(videoID string) bool
	MarkComplete(videoID string) error
}

// TransferManager copies finalized files onto a removable volume.
type TransferManager interface {
	FindTarget(preferred string) (string, bool)
	CopyAll(files []string, target, subdir string, deleteOriginal bool) ([]string, error)
}
