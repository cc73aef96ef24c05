// Package imageprocessor normalizes item photographs into fixed-size RGB
// pixel buffers.
//
// Every input is decoded, resized to TargetSize x TargetSize with bilinear
// interpolation and converted to RGB channel order. There is no cropping and
// no aspect ratio preservation: non-square photographs are stretched.
package imageprocessor

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrDecode is returned when input cannot be parsed as an image.
var ErrDecode = errors.New("image decode failed")

// ErrEmptyImage is returned when a decoded image has zero pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Source is a reference to one photograph. Open returns a BGR Mat owned by
// the caller; on error the returned Mat must not be used.
type Source interface {
	Name() string
	Open() (gocv.Mat, error)
}
