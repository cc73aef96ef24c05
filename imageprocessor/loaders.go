package imageprocessor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/barasher/go-exiftool"
	"gocv.io/x/gocv"

	"clothdna/logging"
)

// ImageLoader loads one image file into a BGR Mat.
type ImageLoader interface {
	// CanLoad checks if the loader can handle the given file
	CanLoad(path string) bool

	// LoadImage loads and returns the image
	LoadImage(path string) (gocv.Mat, error)
}

// StandardImageLoader reads the file and decodes it with OpenCV or the Go
// image decoders.
type StandardImageLoader struct{}

// CanLoad accepts any existing non-RAW file.
func (l *StandardImageLoader) CanLoad(path string) bool {
	return !IsRawFormat(path) && fileExists(path)
}

// LoadImage loads a standard image format
func (l *StandardImageLoader) LoadImage(path string) (gocv.Mat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return decodeBytes(path, data)
}

// defaultPreviewTags lists embedded preview tags in order of preference.
var defaultPreviewTags = []string{
	"JpgFromRaw",
	"LargestImagePreview",
	"PreviewImage",
	"OtherImage",
	"ThumbnailImage",
}

// RawPreviewLoader reads camera RAW files through their embedded JPEG preview.
// The metadata is probed with go-exiftool to find which preview tags exist and
// the binary preview is pulled with the exiftool command.
type RawPreviewLoader struct {
	PreviewTags []string
	extract     func(path, tag string) ([]byte, error)
}

// NewRawPreviewLoader creates a RAW loader using the exiftool binary.
func NewRawPreviewLoader() *RawPreviewLoader {
	return &RawPreviewLoader{
		PreviewTags: defaultPreviewTags,
		extract:     extractPreviewWithExiftool,
	}
}

// CanLoad checks if this loader can handle the given file
func (l *RawPreviewLoader) CanLoad(path string) bool {
	return IsRawFormat(path) && fileExists(path)
}

// LoadImage decodes the first embedded preview that OpenCV or Go can read.
func (l *RawPreviewLoader) LoadImage(path string) (gocv.Mat, error) {
	tags := l.availableTags(path)
	var lastErr error
	for _, tag := range tags {
		data, err := l.extract(path, tag)
		if err != nil || len(data) == 0 {
			lastErr = err
			logging.DebugLog("preview extraction failed", "path", path, "tag", tag, "error", err)
			continue
		}
		mat, err := decodeBytes(path+"#"+tag, data)
		if err != nil {
			lastErr = err
			continue
		}
		logging.DebugLog("loaded RAW preview", "path", path, "tag", tag)
		return mat, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no preview tags present")
	}
	return gocv.Mat{}, fmt.Errorf("%w: %s: %v", ErrDecode, path, lastErr)
}

// availableTags narrows PreviewTags to those present in the file metadata.
// When metadata cannot be read every tag is tried.
func (l *RawPreviewLoader) availableTags(path string) []string {
	et, err := exiftool.NewExiftool()
	if err != nil {
		logging.LogWarning("exiftool unavailable", "error", err)
		return l.PreviewTags
	}
	defer et.Close()

	infos := et.ExtractMetadata(path)
	if len(infos) == 0 || infos[0].Err != nil {
		return l.PreviewTags
	}

	var tags []string
	for _, tag := range l.PreviewTags {
		if _, ok := infos[0].Fields[tag]; ok {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return l.PreviewTags
	}
	return tags
}

func extractPreviewWithExiftool(path, tag string) ([]byte, error) {
	if !hasExiftool() {
		return nil, fmt.Errorf("exiftool not found in PATH")
	}
	cmd := exec.Command("exiftool", "-b", "-"+tag, path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("exiftool -%s: %v: %s", tag, err, stderr.String())
	}
	return out, nil
}

func hasExiftool() bool {
	_, err := exec.LookPath("exiftool")
	return err == nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
