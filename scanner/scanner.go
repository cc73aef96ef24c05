// Package scanner registers every item photograph in a folder.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"clothdna/imageprocessor"
	"clothdna/logging"
	"clothdna/signalhandler"
	"clothdna/types"
)

// Registrar registers one item under a run id.
type Registrar interface {
	RegisterRun(src imageprocessor.Source, itemID, runID string) (types.ProcessingResult, error)
}

// ScanFolder registers the images under options.FolderPath using a bounded
// worker pool. A failing file is recorded in the summary and never stops the
// scan. When two files derive the same item id, the first in lexical order
// is registered and the other fails with ErrDuplicateItemID. Cancelling ctx
// stops new files from starting; files already being processed run to
// completion.
func ScanFolder(ctx context.Context, reg Registrar, existing ExistenceChecker, options ScanOptions) (*Summary, error) {
	registry := imageprocessor.DefaultRegistry()

	files, stats, err := collectFiles(options.FolderPath, options.Prefix, registry)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", options.FolderPath, err)
	}

	runID := uuid.NewString()
	workers := options.MaxWorkers
	if workers <= 0 {
		workers = signalhandler.GetOptimalProcs()
	}
	logging.LogInfo("scan started", "run_id", runID, "folder", options.FolderPath,
		"files", stats.totalFiles, "workers", workers, "force", options.Force)

	var wg sync.WaitGroup
	resultsChan := make(chan ProcessItemResult, 100)
	semaphore := make(chan struct{}, workers)

	tracker := NewProgressTracker(stats, resultsChan, options.Progress)
	startTime := time.Now()

	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(f candidate) {
			defer wg.Done()
			defer func() { <-semaphore }()
			resultsChan <- processFile(reg, existing, registry, f, runID, options)
		}(f)
	}

	wg.Wait()
	close(resultsChan)
	tracker.Wait()

	summary := tracker.summary(stats)
	summary.RunID = runID
	summary.Elapsed = time.Since(startTime)
	logging.LogInfo("scan finished", "run_id", runID, "registered", summary.Registered,
		"skipped", summary.Skipped, "errors", summary.Errors, "elapsed", summary.Elapsed)

	return &summary, ctx.Err()
}

func processFile(reg Registrar, existing ExistenceChecker, registry *imageprocessor.ImageLoaderRegistry, f candidate, runID string, options ScanOptions) ProcessItemResult {
	itemID := f.itemID
	if f.duplicateOf != "" {
		return ProcessItemResult{
			Path:   f.path,
			ItemID: itemID,
			IsRaw:  f.raw,
			Size:   f.size,
			Error:  fmt.Errorf("%w %s: already derived from %s", ErrDuplicateItemID, itemID, f.duplicateOf),
		}
	}
	if skip := checkAndSkipExisting(existing, f.path, itemID, options); skip != nil {
		skip.IsRaw = f.raw
		return *skip
	}

	result := ProcessItemResult{
		Path:   f.path,
		ItemID: itemID,
		IsRaw:  f.raw,
		Size:   f.size,
	}
	res, err := reg.RegisterRun(imageprocessor.FromFileWith(registry, f.path), itemID, runID)
	if err != nil {
		result.Error = err
		return result
	}
	result.Hash = res.Hash
	result.Success = true
	return result
}
