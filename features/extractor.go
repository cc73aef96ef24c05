// Package features computes the traditional descriptors of a normalized
// item photograph.
//
// Extraction is a pure function of the pixel buffer. Every OpenCV call runs
// with explicit parameters and the reductions that feed the record (means,
// standard deviations, histogram reads) are accumulated in Go in a fixed
// order, so the same buffer always produces a bit-identical record.
package features

import (
	"errors"
	"fmt"
	"math"

	"gocv.io/x/gocv"

	"clothdna/types"
)

// ErrEmptyBuffer is returned when Extract is given a buffer without pixels.
var ErrEmptyBuffer = errors.New("pixel buffer is empty")

// ORBParams pins every ORB detector setting.
type ORBParams struct {
	Features      int
	Scale         float32
	Levels        int
	EdgeThreshold int
	FirstLevel    int
	WTAK          int
	PatchSize     int
	FastThreshold int
}

// DefaultORBParams are the OpenCV defaults, spelled out.
var DefaultORBParams = ORBParams{
	Features:      500,
	Scale:         1.2,
	Levels:        8,
	EdgeThreshold: 31,
	FirstLevel:    0,
	WTAK:          2,
	PatchSize:     31,
	FastThreshold: 20,
}

// Canny thresholds.
const (
	CannyLow  = 50
	CannyHigh = 150
)

// Extractor turns pixel buffers into FeatureRecords. The zero value is not
// usable; call NewExtractor.
type Extractor struct {
	orb       ORBParams
	cannyLow  float32
	cannyHigh float32
}

// NewExtractor returns an extractor with the fixed default parameters.
func NewExtractor() *Extractor {
	return &Extractor{
		orb:       DefaultORBParams,
		cannyLow:  CannyLow,
		cannyHigh: CannyHigh,
	}
}

// Extract computes the FeatureRecord for buf. It is safe for concurrent use.
func (e *Extractor) Extract(buf types.PixelBuffer) (types.FeatureRecord, error) {
	if buf.Empty() {
		return types.FeatureRecord{}, ErrEmptyBuffer
	}

	pix := buf.Pix()
	rgb, err := matFromPixels(buf.Height(), buf.Width(), pix)
	if err != nil {
		return types.FeatureRecord{}, err
	}
	defer rgb.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(rgb, &gray, gocv.ColorRGBToGray)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(rgb, &hsv, gocv.ColorRGBToHSV)

	var rec types.FeatureRecord
	rec.ColorMeans = channelMeans(pix)
	rec.ColorMeansHSV = channelMeans(hsv.ToBytes())

	rec.ColorHistogram, err = histogram(rgb)
	if err != nil {
		return types.FeatureRecord{}, err
	}

	rec.KeypointCount = e.keypointCount(gray)

	total := float64(buf.Width() * buf.Height())
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, e.cannyLow, e.cannyHigh)
	rec.EdgeDensity = float64(gocv.CountNonZero(edges)) / total

	rec.GradientMean, rec.GradientStd, err = gradientStats(gray)
	if err != nil {
		return types.FeatureRecord{}, err
	}

	rec.BrightnessMean, rec.BrightnessStd = byteStats(gray.ToBytes())
	rec.Contrast = Contrast(rec.BrightnessMean, rec.BrightnessStd)

	return rec, nil
}

// Contrast is std/mean, defined as 0 when the mean is 0.
func Contrast(mean, std float64) float64 {
	if mean == 0 {
		return 0
	}
	return std / mean
}

func (e *Extractor) keypointCount(gray gocv.Mat) int {
	p := e.orb
	orb := gocv.NewORBWithParams(p.Features, p.Scale, p.Levels, p.EdgeThreshold,
		p.FirstLevel, p.WTAK, gocv.ORBScoreTypeHarris, p.PatchSize, p.FastThreshold)
	defer orb.Close()
	return len(orb.Detect(gray))
}

// matFromPixels builds an owned 8UC3 Mat from interleaved samples.
func matFromPixels(rows, cols int, pix []byte) (gocv.Mat, error) {
	view, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC3, pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("features: wrap pixels: %w", err)
	}
	defer view.Close()
	return view.Clone(), nil
}

// channelMeans averages three interleaved 8-bit channels with exact integer sums.
func channelMeans(samples []byte) [3]float64 {
	var sums [3]uint64
	for i := 0; i+2 < len(samples); i += 3 {
		sums[0] += uint64(samples[i])
		sums[1] += uint64(samples[i+1])
		sums[2] += uint64(samples[i+2])
	}
	n := float64(len(samples) / 3)
	var out [3]float64
	if n == 0 {
		return out
	}
	for c := range sums {
		out[c] = float64(sums[c]) / n
	}
	return out
}

// histogram returns HistogramBins counts per channel, channel-major.
func histogram(rgb gocv.Mat) ([]float64, error) {
	planes := gocv.Split(rgb)
	defer func() {
		for _, p := range planes {
			p.Close()
		}
	}()
	if len(planes) != types.Channels {
		return nil, fmt.Errorf("features: split produced %d planes", len(planes))
	}

	mask := gocv.NewMat()
	defer mask.Close()

	out := make([]float64, 0, types.Channels*types.HistogramBins)
	for _, plane := range planes {
		hist := gocv.NewMat()
		gocv.CalcHist([]gocv.Mat{plane}, []int{0}, mask, &hist,
			[]int{types.HistogramBins}, []float64{0, 256}, false)
		if hist.Rows() != types.HistogramBins {
			hist.Close()
			return nil, fmt.Errorf("features: histogram has %d bins", hist.Rows())
		}
		for i := 0; i < types.HistogramBins; i++ {
			out = append(out, float64(hist.GetFloatAt(i, 0)))
		}
		hist.Close()
	}
	return out, nil
}

// gradientStats returns the mean and population std of the 3x3 Sobel
// gradient magnitude.
func gradientStats(gray gocv.Mat) (float64, float64, error) {
	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	gocv.Sobel(gray, &gx, gocv.MatTypeCV64F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gy, gocv.MatTypeCV64F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	mag := gocv.NewMat()
	defer mag.Close()
	gocv.Magnitude(gx, gy, &mag)

	values, err := mag.DataPtrFloat64()
	if err != nil {
		return 0, 0, fmt.Errorf("features: read gradient magnitude: %w", err)
	}
	if len(values) == 0 {
		return 0, 0, nil
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values))), nil
}

// byteStats returns the mean and population std of 8-bit samples using
// integer accumulation.
func byteStats(samples []byte) (float64, float64) {
	n := uint64(len(samples))
	if n == 0 {
		return 0, 0
	}
	var sum, sumSq uint64
	for _, s := range samples {
		v := uint64(s)
		sum += v
		sumSq += v * v
	}
	mean := float64(sum) / float64(n)
	variance := float64(n*sumSq-sum*sum) / float64(n*n)
	return mean, math.Sqrt(variance)
}
