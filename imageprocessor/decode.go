package imageprocessor

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"gocv.io/x/gocv"

	"clothdna/logging"
)

// decodeBytes decodes an encoded image into a BGR Mat. OpenCV is tried first;
// formats it cannot parse fall back to the Go image decoders.
func decodeBytes(name string, data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.Mat{}, fmt.Errorf("%w: %s: no data", ErrDecode, name)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err == nil {
		if !mat.Empty() {
			return mat, nil
		}
		mat.Close()
	}

	img, format, goErr := image.Decode(bytes.NewReader(data))
	if goErr != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %s: %v", ErrDecode, name, goErr)
	}
	logging.DebugLog("decoded with Go fallback", "source", name, "format", format)
	return matFromImage(name, img)
}

// matFromImage converts a Go image into a BGR Mat.
func matFromImage(name string, img image.Image) (gocv.Mat, error) {
	if img == nil {
		return gocv.Mat{}, fmt.Errorf("%w: %s: nil image", ErrDecode, name)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return gocv.Mat{}, fmt.Errorf("%w: %s", ErrEmptyImage, name)
	}

	width, height := bounds.Dx(), bounds.Dy()
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	view, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	defer view.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(view, &bgr, gocv.ColorRGBAToBGR)
	return bgr, nil
}

type bytesSource struct {
	name string
	data []byte
}

// FromBytes returns a Source over encoded image bytes.
func FromBytes(name string, data []byte) Source {
	return bytesSource{name: name, data: data}
}

func (s bytesSource) Name() string { return s.name }

func (s bytesSource) Open() (gocv.Mat, error) {
	return decodeBytes(s.name, s.data)
}

type imageSource struct {
	name string
	img  image.Image
}

// FromImage returns a Source over an already decoded image.
func FromImage(name string, img image.Image) Source {
	return imageSource{name: name, img: img}
}

func (s imageSource) Name() string { return s.name }

func (s imageSource) Open() (gocv.Mat, error) {
	return matFromImage(s.name, s.img)
}
