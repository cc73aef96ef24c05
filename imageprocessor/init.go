package imageprocessor

import (
	"sync"

	"gocv.io/x/gocv"

	"clothdna/logging"
)

var (
	initOnce        sync.Once
	defaultRegistry *ImageLoaderRegistry
)

// Init prepares the shared loader registry and records the native library
// versions in use. It is safe to call any number of times; orchestrators call
// it once before the first item.
func Init() {
	initOnce.Do(func() {
		defaultRegistry = NewImageLoaderRegistry()
		logging.LogInfo("image pipeline initialised",
			"opencv", gocv.OpenCVVersion(),
			"gocv", gocv.Version(),
			"exiftool", hasExiftool(),
			"target_size", TargetSize,
		)
	})
}

// DefaultRegistry returns the shared loader registry, initialising it if needed.
func DefaultRegistry() *ImageLoaderRegistry {
	Init()
	return defaultRegistry
}
