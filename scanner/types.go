package scanner

import (
	"io"
	"sync"
	"time"
)

// ScanOptions defines the options for scanning
type ScanOptions struct {
	FolderPath string
	Prefix     string    // prepended to ids derived from file names
	Force      bool      // re-register items already in the repository
	MaxWorkers int       // 0 selects signalhandler.GetOptimalProcs
	Progress   io.Writer // periodic progress line; nil disables
}

// ProcessItemResult holds the result of registering one file
type ProcessItemResult struct {
	Path    string
	ItemID  string
	Hash    string
	Success bool
	Skipped bool
	Error   error
	IsRaw   bool
	Size    int64
}

// FileStats tracks information about files to be processed
type FileStats struct {
	totalFiles int
	rawFiles   int
	totalBytes int64
}

// Summary is the outcome of one scan run.
type Summary struct {
	RunID      string
	TotalFiles int
	Registered int
	Skipped    int
	Errors     int
	RawFiles   int
	Bytes      int64
	Elapsed    time.Duration
	Failed     []ProcessItemResult
}

// ProgressTracker tracks progress of the scan operation
type ProgressTracker struct {
	processed  int
	registered int
	skipped    int
	errors     int
	bytes      int64
	failed     []ProcessItemResult
	ticker     *time.Ticker
	done       chan struct{}
	finished   chan struct{}
	mu         sync.Mutex
	totalFiles int
	out        io.Writer
}
