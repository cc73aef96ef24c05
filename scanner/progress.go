package scanner

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"clothdna/logging"
)

// NewProgressTracker consumes results from resultsChan until it is closed.
// When out is non-nil a progress line is redrawn every half second.
func NewProgressTracker(stats FileStats, resultsChan <-chan ProcessItemResult, out io.Writer) *ProgressTracker {
	tracker := &ProgressTracker{
		ticker:     time.NewTicker(500 * time.Millisecond),
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
		totalFiles: stats.totalFiles,
		out:        out,
	}

	go tracker.displayProgress()
	go tracker.processResults(resultsChan)

	return tracker
}

func (p *ProgressTracker) displayProgress() {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			if p.out == nil {
				continue
			}
			p.mu.Lock()
			if p.errors > 0 {
				fmt.Fprintf(p.out, "\rProgress: %d/%d (Errors: %d, Skipped: %d)",
					p.processed, p.totalFiles, p.errors, p.skipped)
			} else {
				fmt.Fprintf(p.out, "\rProgress: %d/%d (Skipped: %d)",
					p.processed, p.totalFiles, p.skipped)
			}
			p.mu.Unlock()
		}
	}
}

func (p *ProgressTracker) processResults(resultsChan <-chan ProcessItemResult) {
	defer close(p.finished)
	for result := range resultsChan {
		p.mu.Lock()
		p.processed++
		switch {
		case result.Skipped:
			p.skipped++
		case result.Success:
			p.registered++
			p.bytes += result.Size
		default:
			p.errors++
			p.failed = append(p.failed, result)
			logging.DebugLog("scan item failed", "item_id", result.ItemID, "path", result.Path, "error", result.Error)
		}
		p.mu.Unlock()
	}
}

// Wait blocks until the results channel has been drained, then stops the
// display loop.
func (p *ProgressTracker) Wait() {
	<-p.finished
	p.ticker.Stop()
	close(p.done)
}

func (p *ProgressTracker) summary(stats FileStats) Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Summary{
		TotalFiles: stats.totalFiles,
		RawFiles:   stats.rawFiles,
		Registered: p.registered,
		Skipped:    p.skipped,
		Errors:     p.errors,
		Bytes:      p.bytes,
		Failed:     append([]ProcessItemResult(nil), p.failed...),
	}
}

// PrintStartupInfo displays information about the scan before starting
func PrintStartupInfo(w io.Writer, stats FileStats, options ScanOptions, runID string) {
	fmt.Fprintf(w, "Starting item registration (run %s)...\n", runID)
	fmt.Fprintf(w, "Image files to process: %s (%s RAW), %s on disk\n",
		humanize.Comma(int64(stats.totalFiles)), humanize.Comma(int64(stats.rawFiles)),
		humanize.Bytes(uint64(stats.totalBytes)))
	fmt.Fprintf(w, "Force mode: %v\n", options.Force)
	if options.Prefix != "" {
		fmt.Fprintf(w, "Item id prefix: %s\n", options.Prefix)
	}
}

// PrintCompletionStats displays statistics after scan completion
func PrintCompletionStats(w io.Writer, s Summary) {
	fmt.Fprintln(w, "\nRegistration complete.")
	fmt.Fprintf(w, "Registered %s items (%s) in %v, skipped %s.\n",
		humanize.Comma(int64(s.Registered)), humanize.Bytes(uint64(s.Bytes)),
		s.Elapsed.Round(time.Millisecond), humanize.Comma(int64(s.Skipped)))
	if s.Errors > 0 {
		fmt.Fprintf(w, "Encountered %d errors:\n", s.Errors)
		for _, f := range s.Failed {
			fmt.Fprintf(w, "  %s: %v\n", f.Path, f.Error)
		}
	}
}
