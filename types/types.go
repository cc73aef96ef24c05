package types

import (
	"errors"
	"fmt"
)

// Channels is the number of samples per pixel in a PixelBuffer (R, G, B).
const Channels = 3

// HistogramBins is the number of histogram bins per color channel.
const HistogramBins = 32

// PixelBuffer is an immutable width x height RGB image, 8 bits per sample,
// stored row-major with interleaved channels.
type PixelBuffer struct {
	width  int
	height int
	pix    []byte
}

// NewPixelBuffer copies pix into a new buffer. len(pix) must equal
// width*height*Channels and both dimensions must be positive.
func NewPixelBuffer(width, height int, pix []byte) (PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return PixelBuffer{}, fmt.Errorf("pixel buffer: invalid dimensions %dx%d", width, height)
	}
	if len(pix) != width*height*Channels {
		return PixelBuffer{}, fmt.Errorf("pixel buffer: have %d bytes, want %d", len(pix), width*height*Channels)
	}
	cp := make([]byte, len(pix))
	copy(cp, pix)
	return PixelBuffer{width: width, height: height, pix: cp}, nil
}

// Width returns the number of columns.
func (b PixelBuffer) Width() int { return b.width }

// Height returns the number of rows.
func (b PixelBuffer) Height() int { return b.height }

// Empty reports whether the buffer holds no pixels.
func (b PixelBuffer) Empty() bool { return len(b.pix) == 0 }

// Pix returns a copy of the interleaved RGB samples.
func (b PixelBuffer) Pix() []byte {
	cp := make([]byte, len(b.pix))
	copy(cp, b.pix)
	return cp
}

// At returns the RGB sample at column x, row y.
func (b PixelBuffer) At(x, y int) (r, g, bl uint8) {
	i := (y*b.width + x) * Channels
	return b.pix[i], b.pix[i+1], b.pix[i+2]
}

// Dimensions returns [height, width, channels].
func (b PixelBuffer) Dimensions() [3]int {
	return [3]int{b.height, b.width, Channels}
}

// WithPixel returns a copy of the buffer with one sample replaced.
func (b PixelBuffer) WithPixel(x, y, channel int, value uint8) PixelBuffer {
	cp := b.Pix()
	cp[(y*b.width+x)*Channels+channel] = value
	return PixelBuffer{width: b.width, height: b.height, pix: cp}
}

// FeatureRecord holds the traditional descriptors extracted from one
// PixelBuffer. Field order matches the canonical serialization order.
type FeatureRecord struct {
	ColorMeans     [3]float64 `json:"colorMeans" cbor:"1,keyasint"`
	ColorMeansHSV  [3]float64 `json:"colorMeansHSV" cbor:"2,keyasint"`
	ColorHistogram []float64  `json:"colorHistogram" cbor:"3,keyasint"`
	KeypointCount  int        `json:"keypointCount" cbor:"4,keyasint"`
	EdgeDensity    float64    `json:"edgeDensity" cbor:"5,keyasint"`
	GradientMean   float64    `json:"gradientMean" cbor:"6,keyasint"`
	GradientStd    float64    `json:"gradientStd" cbor:"7,keyasint"`
	BrightnessMean float64    `json:"brightnessMean" cbor:"8,keyasint"`
	BrightnessStd  float64    `json:"brightnessStd" cbor:"9,keyasint"`
	Contrast       float64    `json:"contrast" cbor:"10,keyasint"`
}

// TraditionalFeatureCount is the number of named descriptors in a FeatureRecord.
const TraditionalFeatureCount = 10

// Empty reports whether the record is missing its histogram, which every
// extraction produces.
func (r FeatureRecord) Empty() bool {
	return len(r.ColorHistogram) == 0
}

// Values flattens every numeric descriptor in canonical order.
func (r FeatureRecord) Values() []float64 {
	out := make([]float64, 0, 6+len(r.ColorHistogram)+7)
	out = append(out, r.ColorMeans[:]...)
	out = append(out, r.ColorMeansHSV[:]...)
	out = append(out, r.ColorHistogram...)
	out = append(out,
		float64(r.KeypointCount),
		r.EdgeDensity,
		r.GradientMean,
		r.GradientStd,
		r.BrightnessMean,
		r.BrightnessStd,
		r.Contrast,
	)
	return out
}

// ChannelHistogram returns the bins of one channel (0=R, 1=G, 2=B).
func (r FeatureRecord) ChannelHistogram(channel int) []float64 {
	start := channel * HistogramBins
	if channel < 0 || start+HistogramBins > len(r.ColorHistogram) {
		return nil
	}
	return r.ColorHistogram[start : start+HistogramBins]
}

// DigitalDNA is the fingerprint of one item, built once per extraction and
// never mutated afterwards.
type DigitalDNA struct {
	ItemID          string        `json:"itemId" cbor:"1,keyasint"`
	TimestampUTC    string        `json:"timestampUtc" cbor:"2,keyasint"`
	SchemaVersion   string        `json:"schemaVersion" cbor:"3,keyasint"`
	ImageDimensions [3]int        `json:"imageDimensions" cbor:"4,keyasint"`
	Features        FeatureRecord `json:"features" cbor:"5,keyasint"`
}

// FeatureSummary is an aggregate view of a DNA that cannot be used to
// reconstruct the feature vector or the image.
type FeatureSummary struct {
	TraditionalFeatureCount int     `json:"traditionalFeatureCount"`
	FeatureValueCount       int     `json:"featureValueCount"`
	FeatureValueMean        float64 `json:"featureValueMean"`
	KeypointCount           int     `json:"keypointCount"`
	ImageSize               [3]int  `json:"imageSize"`
	SimulatedFeatureCount   int     `json:"simulatedFeatureCount"`
	SimulatedFeatureMean    float64 `json:"simulatedFeatureMean"`
}

// AuthenticityRecord is the publishable summary of a registered item.
type AuthenticityRecord struct {
	ItemID         string         `json:"itemId"`
	HashHex        string         `json:"hashHex"`
	TimestampUTC   string         `json:"timestampUtc"`
	HashPolicy     string         `json:"hashPolicy"`
	HashAlgorithm  string         `json:"hashAlgorithm"`
	FeatureSummary FeatureSummary `json:"featureSummary"`
}

// VerificationResult is the outcome of comparing a candidate DNA against an
// expected hash. A mismatch is a normal result, not an error.
type VerificationResult struct {
	IsAuthentic  bool   `json:"isAuthentic"`
	ComputedHash string `json:"computedHash"`
	ExpectedHash string `json:"expectedHash"`
}

// ProcessingResult bundles everything produced when an item is registered.
type ProcessingResult struct {
	DNA    DigitalDNA         `json:"dna"`
	Hash   string             `json:"hash"`
	Record AuthenticityRecord `json:"record"`
}

// StoredItem is what repositories keep per identifier.
type StoredItem struct {
	DNA        DigitalDNA
	Record     AuthenticityRecord
	SourcePath string
	RunID      string
}

// ErrInvalidItem is returned by repositories for items without an identifier.
var ErrInvalidItem = errors.New("item has no identifier")
