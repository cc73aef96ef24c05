package imageprocessor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// ImageLoaderRegistry maps file extensions to loaders.
type ImageLoaderRegistry struct {
	loaders       map[string]ImageLoader
	defaultLoader ImageLoader
	mutex         sync.RWMutex
}

// NewImageLoaderRegistry creates a registry with the standard and RAW loaders.
func NewImageLoaderRegistry() *ImageLoaderRegistry {
	r := &ImageLoaderRegistry{
		loaders: make(map[string]ImageLoader),
	}

	standard := &StandardImageLoader{}
	raw := NewRawPreviewLoader()
	for ext := range formatExtensions {
		if IsRawFormat("x" + ext) {
			r.RegisterLoader(ext, raw)
		} else {
			r.RegisterLoader(ext, standard)
		}
	}
	r.defaultLoader = standard
	return r
}

// RegisterLoader registers a loader for a file extension.
func (r *ImageLoaderRegistry) RegisterLoader(ext string, loader ImageLoader) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.loaders[strings.ToLower(ext)] = loader
}

// GetLoader returns the loader for path, falling back to the default loader.
func (r *ImageLoaderRegistry) GetLoader(path string) ImageLoader {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if loader, ok := r.loaders[strings.ToLower(filepath.Ext(path))]; ok {
		return loader
	}
	return r.defaultLoader
}

// CanLoadFile checks if a loader is registered for the file's extension.
func (r *ImageLoaderRegistry) CanLoadFile(path string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, ok := r.loaders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// LoadImage loads path with its registered loader.
func (r *ImageLoaderRegistry) LoadImage(path string) (gocv.Mat, error) {
	loader := r.GetLoader(path)
	if loader == nil || !loader.CanLoad(path) {
		return gocv.Mat{}, fmt.Errorf("%w: no suitable loader for %s", ErrDecode, path)
	}
	return loader.LoadImage(path)
}

type fileSource struct {
	path     string
	registry *ImageLoaderRegistry
}

// FromFile returns a Source reading path through the default registry.
func FromFile(path string) Source {
	return fileSource{path: path}
}

// FromFileWith returns a Source reading path through the given registry.
func FromFileWith(registry *ImageLoaderRegistry, path string) Source {
	return fileSource{path: path, registry: registry}
}

func (s fileSource) Name() string { return s.path }

func (s fileSource) Open() (gocv.Mat, error) {
	registry := s.registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	return registry.LoadImage(s.path)
}
