package signalhandler

import (
	"context"
	"os/signal"
	"runtime"
	"syscall"

	"clothdna/logging"
)

// SetupHandler returns a context cancelled on SIGINT or SIGTERM. Work in
// native code is never interrupted mid-call; callers check the context
// between items. A second signal after stop restores default handling.
func SetupHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			logging.LogWarning("interrupt received, finishing items in flight")
		}
		stop()
	}()
	return ctx, stop
}

// GetOptimalProcs returns the optimal number of worker goroutines for the system
func GetOptimalProcs() int {
	numCPU := runtime.NumCPU()

	// Each worker holds several OpenCV matrices and OpenCV threads internally.
	maxProcs := (numCPU * 3) / 4
	if maxProcs < 1 {
		maxProcs = 1
	}
	return maxProcs
}
