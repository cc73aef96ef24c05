package imageprocessor

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"clothdna/types"
)

// TargetSize is the edge length of every preprocessed buffer.
const TargetSize = 224

// Preprocessor turns a Source into a TargetSize x TargetSize RGB buffer.
type Preprocessor struct {
	size int
}

// NewPreprocessor returns a preprocessor producing TargetSize buffers.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{size: TargetSize}
}

// Preprocess decodes src and normalizes it. Errors wrap ErrDecode or
// ErrEmptyImage.
func (p *Preprocessor) Preprocess(src Source) (types.PixelBuffer, error) {
	mat, err := src.Open()
	if err != nil {
		return types.PixelBuffer{}, err
	}
	defer mat.Close()

	return p.PreprocessMat(src.Name(), mat)
}

// PreprocessMat normalizes an already decoded BGR, BGRA or gray Mat.
func (p *Preprocessor) PreprocessMat(name string, mat gocv.Mat) (types.PixelBuffer, error) {
	if mat.Empty() {
		return types.PixelBuffer{}, fmt.Errorf("%w: %s", ErrDecode, name)
	}
	if mat.Rows() == 0 || mat.Cols() == 0 {
		return types.PixelBuffer{}, fmt.Errorf("%w: %s", ErrEmptyImage, name)
	}

	bgr := gocv.NewMat()
	defer bgr.Close()
	switch mat.Channels() {
	case 1:
		gocv.CvtColor(mat, &bgr, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(mat, &bgr, gocv.ColorBGRAToBGR)
	case 3:
		mat.CopyTo(&bgr)
	default:
		return types.PixelBuffer{}, fmt.Errorf("%w: %s: unsupported channel count %d", ErrDecode, name, mat.Channels())
	}

	// Both axes are forced to the target size; aspect ratio is not kept.
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(bgr, &resized, image.Point{X: p.size, Y: p.size}, 0, 0, gocv.InterpolationLinear)

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(resized, &rgb, gocv.ColorBGRToRGB)

	buf, err := types.NewPixelBuffer(rgb.Cols(), rgb.Rows(), rgb.ToBytes())
	if err != nil {
		return types.PixelBuffer{}, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	return buf, nil
}
