package imageprocessor

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: uint8((x + y) % 256), A: 255})
		}
	}
	return img
}

func TestPreprocessNormalizesNonSquare(t *testing.T) {
	data := encodePNG(t, gradientImage(100, 50))
	p := NewPreprocessor()

	first, err := p.Preprocess(FromBytes("wide.png", data))
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	second, err := p.Preprocess(FromBytes("wide.png", data))
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}

	for _, buf := range []struct {
		w, h int
	}{{first.Width(), first.Height()}, {second.Width(), second.Height()}} {
		if buf.w != TargetSize || buf.h != TargetSize {
			t.Fatalf("buffer is %dx%d, want %dx%d", buf.w, buf.h, TargetSize, TargetSize)
		}
	}
	if !bytes.Equal(first.Pix(), second.Pix()) {
		t.Error("two preprocessings of the same bytes differ")
	}
	if got := first.Dimensions(); got != [3]int{TargetSize, TargetSize, 3} {
		t.Errorf("Dimensions = %v", got)
	}
}

func TestPreprocessKeepsRGBOrder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 60, A: 255})
		}
	}
	buf, err := NewPreprocessor().Preprocess(FromBytes("solid.png", encodePNG(t, img)))
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	r, g, b := buf.At(100, 100)
	if r != 200 || g != 10 || b != 60 {
		t.Errorf("At = (%d,%d,%d), want (200,10,60)", r, g, b)
	}
}

func TestPreprocessFromImageMatchesBytes(t *testing.T) {
	img := gradientImage(64, 64)
	p := NewPreprocessor()
	fromImg, err := p.Preprocess(FromImage("mem", img))
	if err != nil {
		t.Fatalf("FromImage: %v", err)
	}
	fromBytes, err := p.Preprocess(FromBytes("png", encodePNG(t, img)))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if !bytes.Equal(fromImg.Pix(), fromBytes.Pix()) {
		t.Error("decoded and in-memory sources produced different buffers")
	}
}

func TestPreprocessErrors(t *testing.T) {
	p := NewPreprocessor()
	cases := []struct {
		name string
		src  Source
		want error
	}{
		{"garbage", FromBytes("garbage", []byte("definitely not an image")), ErrDecode},
		{"empty bytes", FromBytes("empty", nil), ErrDecode},
		{"zero pixels", FromImage("zero", image.NewRGBA(image.Rect(0, 0, 0, 0))), ErrEmptyImage},
		{"missing file", FromFile(filepath.Join(t.TempDir(), "missing.png")), ErrDecode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Preprocess(tc.src)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestPreprocessFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "item.png")
	if err := os.WriteFile(path, encodePNG(t, gradientImage(30, 80)), 0o644); err != nil {
		t.Fatal(err)
	}
	buf, err := NewPreprocessor().Preprocess(FromFile(path))
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if buf.Width() != TargetSize || buf.Height() != TargetSize {
		t.Errorf("buffer is %dx%d", buf.Width(), buf.Height())
	}
}
