package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/addoodi/yt2audi/internal/config"
	"github.com/addoodi/yt2audi/internal/log"
	"github.com/addoodi/yt2audi/internal/model"
)

// Composite progress scale: downloads map to the first half, conversion to
// the second, finalization parks at 95 until the item completes.
const (
	downloadScale   = 50.0
	finalizePercent = 95.0
	completePercent = 100.0
)

// Stage labels surfaced through the progress callback.
const (
	labelHistoryHit     = "Already in history"
	labelDiskHit        = "Already exists"
	labelComplete       = "Complete"
	labelDownloadFailed = "Download Failed"
	labelConvertFailed  = "Conversion Failed"
)

// ErrPipeline wraps stage failures surfaced to callers.
var ErrPipeline = errors.New("pipeline failed")

// Options are per-call overrides. The profile itself is never mutated.
type Options struct {
	// OutputDir overrides the profile's output directory when non-empty.
	OutputDir string

	// Transfer overrides the profile's auto_copy setting when non-nil.
	Transfer *bool
}

// Result describes one finished item.
type Result struct {
	Item        *model.Item
	Files       []string
	Transferred []string

	// TransferErr is set when the optional transfer stage failed after the
	// item itself succeeded. Copies made before the failure stay in place.
	TransferErr error
}

// Pipeline runs items through download, conversion, finalization and
// transfer. The two semaphores bound downloads and conversions
// independently, so item N+1 can download while item N transcodes.
type Pipeline struct {
	profile    *config.Profile
	downloader Downloader
	converter  Converter
	remediator Remediator
	store      HistoryStore
	transfer   TransferManager

	downloadSlots *semaphore.Weighted
	convertSlots  *semaphore.Weighted
	logger        zerolog.Logger
}

// New creates a pipeline. Concurrency limits below 1 are clamped to 1.
func New(
	profile *config.Profile,
	dl Downloader,
	conv Converter,
	rem Remediator,
	store HistoryStore,
	tr TransferManager,
	maxDownloads, maxConversions int64,
) *Pipeline {
	if maxDownloads < 1 {
		maxDownloads = 1
	}
	if maxConversions < 1 {
		maxConversions = 1
	}
	return &Pipeline{
		profile:       profile,
		downloader:    dl,
		converter:     conv,
		remediator:    rem,
		store:         store,
		transfer:      tr,
		downloadSlots: semaphore.NewWeighted(maxDownloads),
		convertSlots:  semaphore.NewWeighted(maxConversions),
		logger:        log.WithComponent("pipeline"),
	}
}

// ProcessOne runs a single URL through every stage. Progress may be nil.
// The pre-check runs before any semaphore is taken, so already-processed
// items never occupy a download or conversion slot.
func (p *Pipeline) ProcessOne(ctx context.Context, url string, opts Options, progress model.ProgressFunc) (*Result, error) {
	item := model.NewItem(url)
	res := &Result{Item: item}
	outputDir := p.outputDir(opts)

	logger := p.logger.With().Str("item", item.ID).Str("url", url).Logger()
	logger.Info().Msg("processing started")

	// Pre-check: resolve metadata and short-circuit on history or disk hits.
	// A resolution failure is not fatal here; the fetch resolves internally.
	if meta, err := p.downloader.Resolve(ctx, url); err == nil {
		if err := item.SetMetadata(meta); err != nil {
			return res, p.fail(item, progress, labelDownloadFailed, err)
		}
		item.PredictedPath = p.converter.PredictOutputPath(meta, outputDir)

		if p.store.IsComplete(meta.ID) {
			logger.Info().Str("id", meta.ID).Msg("skipping, already in history")
			res.Files = []string{item.PredictedPath}
			return res, p.shortCircuit(item, progress, labelHistoryHit)
		}
		if _, err := os.Stat(item.PredictedPath); err == nil {
			logger.Info().Str("path", item.PredictedPath).Msg("skipping, output already on disk")
			if err := p.store.MarkComplete(meta.ID); err != nil {
				logger.Warn().Err(err).Msg("cannot record history entry")
			}
			res.Files = []string{item.PredictedPath}
			return res, p.shortCircuit(item, progress, labelDiskHit)
		}
	} else {
		logger.Warn().Err(err).Msg("pre-check resolution failed, continuing")
	}

	// Download stage, bounded by the download semaphore.
	if err := item.Advance(model.StageDownloading); err != nil {
		return res, p.fail(item, progress, labelDownloadFailed, err)
	}
	sourcePath, err := p.download(ctx, item, progress)
	if err != nil {
		return res, p.fail(item, progress, labelDownloadFailed, err)
	}

	// Conversion stage, bounded by the conversion semaphore. The source and
	// its thumbnail are removed only after a successful encode.
	if err := item.Advance(model.StageConverting); err != nil {
		return res, p.fail(item, progress, labelConvertFailed, err)
	}
	outputPath, err := p.convert(ctx, item, sourcePath, outputDir, progress)
	if err != nil {
		return res, p.fail(item, progress, labelConvertFailed, err)
	}

	// Finalization: enforce the size ceiling. Runs off both semaphores.
	if err := item.Advance(model.StageFinalizing); err != nil {
		return res, p.fail(item, progress, labelConvertFailed, err)
	}
	p.report(progress, url, finalizePercent, model.StageFinalizing.String())

	files, err := p.remediator.Remediate(ctx, outputPath, outputDir)
	if err != nil {
		return res, p.fail(item, progress, labelConvertFailed, err)
	}
	res.Files = files

	// Optional transfer. Failure here is reported but does not fail the
	// item: the converted files exist locally either way.
	if p.transferEnabled(opts) && len(files) > 0 {
		if err := item.Advance(model.StageTransferring); err != nil {
			return res, p.fail(item, progress, labelConvertFailed, err)
		}
		p.report(progress, url, finalizePercent, model.StageTransferring.String())
		res.Transferred, res.TransferErr = p.copyOut(files)
		if res.TransferErr != nil {
			logger.Error().Err(res.TransferErr).Msg("transfer failed, local files kept")
		}
	}

	if err := item.Advance(model.StageComplete); err != nil {
		return res, p.fail(item, progress, labelConvertFailed, err)
	}
	if id := item.ContentID(); id != "" {
		if err := p.store.MarkComplete(id); err != nil {
			logger.Warn().Err(err).Msg("cannot record history entry")
		}
	}
	item.Percent = completePercent
	p.report(progress, url, completePercent, labelComplete)
	logger.Info().Int("files", len(res.Files)).Msg("processing complete")
	return res, nil
}

// RunBatch fans URLs out to concurrent ProcessOne runs. A failing URL is
// logged and omitted from the result map; it never aborts its siblings.
func (p *Pipeline) RunBatch(ctx context.Context, urls []string, opts Options, progress model.ProgressFunc) map[string]*Result {
	results := make(map[string]*Result, len(urls))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, url := range urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			res, err := p.ProcessOne(ctx, url, opts, progress)
			if err != nil {
				p.logger.Error().Str("url", url).Err(err).Msg("item failed")
				return
			}
			mu.Lock()
			results[url] = res
			mu.Unlock()
		}(url)
	}
	wg.Wait()
	return results
}

// RunPlaylist expands a playlist URL and processes its entries as a batch.
func (p *Pipeline) RunPlaylist(ctx context.Context, url string, opts Options, progress model.ProgressFunc) (map[string]*Result, error) {
	urls, err := p.downloader.ResolvePlaylist(ctx, url)
	if err != nil {
		return nil, err
	}
	p.logger.Info().Str("playlist", url).Int("entries", len(urls)).Msg("playlist expanded")
	return p.RunBatch(ctx, urls, opts, progress), nil
}

func (p *Pipeline) download(ctx context.Context, item *model.Item, progress model.ProgressFunc) (string, error) {
	if err := p.downloadSlots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.downloadSlots.Release(1)

	hook := func(st model.DownloadStatus) {
		if f := st.Fraction(); f >= 0 {
			item.Percent = f * downloadScale
			p.report(progress, item.URL, item.Percent, model.StageDownloading.String())
		}
	}

	path, meta, err := p.downloader.Fetch(ctx, item.URL, hook)
	if err != nil {
		return "", err
	}
	if meta != nil {
		if err := item.SetMetadata(meta); err != nil {
			return "", err
		}
	}
	return path, nil
}

func (p *Pipeline) convert(ctx context.Context, item *model.Item, sourcePath, outputDir string, progress model.ProgressFunc) (string, error) {
	if err := p.convertSlots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.convertSlots.Release(1)

	hook := func(f float64) {
		item.Percent = downloadScale + f*(completePercent-downloadScale)
		p.report(progress, item.URL, item.Percent, model.StageConverting.String())
	}

	thumbnail := thumbnailFor(sourcePath)
	outputPath, err := p.converter.Encode(ctx, sourcePath, outputDir, item.Meta, thumbnail, hook)
	if err != nil {
		return "", err
	}

	// Cleanup on success only, so a failed conversion can be retried
	// without re-downloading.
	if err := os.Remove(sourcePath); err != nil {
		p.logger.Warn().Str("path", sourcePath).Err(err).Msg("cannot remove source file")
	}
	if thumbnail != "" {
		if err := os.Remove(thumbnail); err != nil {
			p.logger.Warn().Str("path", thumbnail).Err(err).Msg("cannot remove thumbnail")
		}
	}
	return outputPath, nil
}

// copyOut copies finalized files to the first usable removable volume.
func (p *Pipeline) copyOut(files []string) ([]string, error) {
	target, ok := p.transfer.FindTarget(config.ExpandPath(p.profile.Transfer.MountPath))
	if !ok {
		return nil, fmt.Errorf("%w: no transfer volume mounted", ErrPipeline)
	}
	return p.transfer.CopyAll(files, target, p.profile.Transfer.Subdir, p.profile.Transfer.DeleteAfterTransfer)
}

func (p *Pipeline) outputDir(opts Options) string {
	if opts.OutputDir != "" {
		return config.ExpandPath(opts.OutputDir)
	}
	return config.ExpandPath(p.profile.Output.OutputDir)
}

func (p *Pipeline) transferEnabled(opts Options) bool {
	if opts.Transfer != nil {
		return *opts.Transfer
	}
	return p.profile.Transfer.AutoCopy
}

// shortCircuit completes an item directly from the pre-check.
func (p *Pipeline) shortCircuit(item *model.Item, progress model.ProgressFunc, label string) error {
	if err := item.Advance(model.StageComplete); err != nil {
		return err
	}
	item.Percent = completePercent
	p.report(progress, item.URL, completePercent, label)
	return nil
}

// fail marks the item failed and reports the error through the progress
// callback with the stage-tagged label UIs render inline.
func (p *Pipeline) fail(item *model.Item, progress model.ProgressFunc, label string, err error) error {
	item.LastError = err.Error()
	if aerr := item.Advance(model.StageFailed); aerr != nil {
		p.logger.Error().Err(aerr).Str("item", item.ID).Msg("illegal failure transition")
	}
	p.report(progress, item.URL, 0, label+": "+err.Error())
	return fmt.Errorf("%w: %s: %v", ErrPipeline, item.URL, err)
}

func (p *Pipeline) report(progress model.ProgressFunc, url string, percent float64, stage string) {
	if progress != nil {
		progress(url, percent, stage)
	}
}

// thumbnailFor returns the sibling thumbnail yt-dlp wrote for a download, or
// "" when none exists.
func thumbnailFor(sourcePath string) string {
	stem := strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath))
	candidate := stem + ".jpg"
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}
