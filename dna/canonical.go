package dna

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"clothdna/types"
)

var (
	// ErrNonFinite is returned when a record holds NaN or an infinity.
	ErrNonFinite = errors.New("non-finite value in record")

	// ErrMalformed is returned by Parse for bytes that are not a complete
	// canonical record.
	ErrMalformed = errors.New("malformed canonical record")
)

// Canonical renders d as compact JSON with a fixed field order and fixed
// Precision decimals. Equal records always produce equal bytes.
func Canonical(d types.DigitalDNA) ([]byte, error) {
	return encode(d, false)
}

// ContentCanonical is Canonical with timestampUtc blanked, so two extractions
// of the same pixels under the same item id produce the same bytes.
func ContentCanonical(d types.DigitalDNA) ([]byte, error) {
	return encode(d, true)
}

type writer struct {
	buf bytes.Buffer
	err error
}

func (w *writer) raw(s string) {
	w.buf.WriteString(s)
}

func (w *writer) key(name string) {
	w.str(name)
	w.buf.WriteByte(':')
}

func (w *writer) str(s string) {
	b, err := json.Marshal(s)
	if err != nil && w.err == nil {
		w.err = err
	}
	w.buf.Write(b)
}

func (w *writer) float(field string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		if w.err == nil {
			w.err = fmt.Errorf("%w: %s", ErrNonFinite, field)
		}
		w.buf.WriteString("0")
		return
	}
	s := strconv.FormatFloat(v, 'f', Precision, 64)
	if s == "-0.000000" {
		s = "0.000000"
	}
	w.buf.WriteString(s)
}

func (w *writer) floats(field string, vs []float64) {
	w.buf.WriteByte('[')
	for i, v := range vs {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		w.float(field, v)
	}
	w.buf.WriteByte(']')
}

func (w *writer) ints(vs []int) {
	w.buf.WriteByte('[')
	for i, v := range vs {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		w.buf.WriteString(strconv.Itoa(v))
	}
	w.buf.WriteByte(']')
}

func encode(d types.DigitalDNA, content bool) ([]byte, error) {
	ts := d.TimestampUTC
	if content {
		ts = ""
	}
	f := d.Features

	w := &writer{}
	w.raw("{")
	w.key("itemId")
	w.str(d.ItemID)
	w.raw(",")
	w.key("timestampUtc")
	w.str(ts)
	w.raw(",")
	w.key("schemaVersion")
	w.str(d.SchemaVersion)
	w.raw(",")
	w.key("imageDimensions")
	w.ints(d.ImageDimensions[:])
	w.raw(",")
	w.key("features")
	w.raw("{")
	w.key("colorMeans")
	w.floats("colorMeans", f.ColorMeans[:])
	w.raw(",")
	w.key("colorMeansHSV")
	w.floats("colorMeansHSV", f.ColorMeansHSV[:])
	w.raw(",")
	w.key("colorHistogram")
	w.floats("colorHistogram", f.ColorHistogram)
	w.raw(",")
	w.key("keypointCount")
	w.raw(strconv.Itoa(f.KeypointCount))
	w.raw(",")
	w.key("edgeDensity")
	w.float("edgeDensity", f.EdgeDensity)
	w.raw(",")
	w.key("gradientMean")
	w.float("gradientMean", f.GradientMean)
	w.raw(",")
	w.key("gradientStd")
	w.float("gradientStd", f.GradientStd)
	w.raw(",")
	w.key("brightnessMean")
	w.float("brightnessMean", f.BrightnessMean)
	w.raw(",")
	w.key("brightnessStd")
	w.float("brightnessStd", f.BrightnessStd)
	w.raw(",")
	w.key("contrast")
	w.float("contrast", f.Contrast)
	w.raw("}}")

	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

// canonicalFeatures mirrors FeatureRecord with presence tracking.
type canonicalFeatures struct {
	ColorMeans     *[3]float64 `json:"colorMeans"`
	ColorMeansHSV  *[3]float64 `json:"colorMeansHSV"`
	ColorHistogram []float64   `json:"colorHistogram"`
	KeypointCount  *int        `json:"keypointCount"`
	EdgeDensity    *float64    `json:"edgeDensity"`
	GradientMean   *float64    `json:"gradientMean"`
	GradientStd    *float64    `json:"gradientStd"`
	BrightnessMean *float64    `json:"brightnessMean"`
	BrightnessStd  *float64    `json:"brightnessStd"`
	Contrast       *float64    `json:"contrast"`
}

type canonicalDNA struct {
	ItemID          *string            `json:"itemId"`
	TimestampUTC    *string            `json:"timestampUtc"`
	SchemaVersion   *string            `json:"schemaVersion"`
	ImageDimensions *[3]int            `json:"imageDimensions"`
	Features        *canonicalFeatures `json:"features"`
}

// Parse decodes canonical bytes back into a DigitalDNA. Every field must be
// present, unknown fields and trailing bytes are rejected, and the feature
// record must have the shape Build produces.
func Parse(data []byte) (types.DigitalDNA, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var c canonicalDNA
	if err := dec.Decode(&c); err != nil {
		return types.DigitalDNA{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return types.DigitalDNA{}, fmt.Errorf("%w: trailing data", ErrMalformed)
	}
	if c.ItemID == nil || c.TimestampUTC == nil || c.SchemaVersion == nil ||
		c.ImageDimensions == nil || c.Features == nil {
		return types.DigitalDNA{}, fmt.Errorf("%w: missing top-level field", ErrMalformed)
	}
	f := c.Features
	if f.ColorMeans == nil || f.ColorMeansHSV == nil || f.ColorHistogram == nil ||
		f.KeypointCount == nil || f.EdgeDensity == nil || f.GradientMean == nil ||
		f.GradientStd == nil || f.BrightnessMean == nil || f.BrightnessStd == nil ||
		f.Contrast == nil {
		return types.DigitalDNA{}, fmt.Errorf("%w: missing feature field", ErrMalformed)
	}
	if err := checkShape(*c.ImageDimensions, f); err != nil {
		return types.DigitalDNA{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return types.DigitalDNA{
		ItemID:          *c.ItemID,
		TimestampUTC:    *c.TimestampUTC,
		SchemaVersion:   *c.SchemaVersion,
		ImageDimensions: *c.ImageDimensions,
		Features: types.FeatureRecord{
			ColorMeans:     *f.ColorMeans,
			ColorMeansHSV:  *f.ColorMeansHSV,
			ColorHistogram: f.ColorHistogram,
			KeypointCount:  *f.KeypointCount,
			EdgeDensity:    *f.EdgeDensity,
			GradientMean:   *f.GradientMean,
			GradientStd:    *f.GradientStd,
			BrightnessMean: *f.BrightnessMean,
			BrightnessStd:  *f.BrightnessStd,
			Contrast:       *f.Contrast,
		},
	}, nil
}

func checkShape(dims [3]int, f *canonicalFeatures) error {
	for _, n := range dims {
		if n <= 0 {
			return fmt.Errorf("image dimensions %v", dims)
		}
	}
	if want := types.Channels * types.HistogramBins; len(f.ColorHistogram) != want {
		return fmt.Errorf("colorHistogram has %d bins, want %d", len(f.ColorHistogram), want)
	}
	if *f.KeypointCount < 0 {
		return fmt.Errorf("keypointCount %d", *f.KeypointCount)
	}
	if *f.EdgeDensity < 0 || *f.EdgeDensity > 1 {
		return fmt.Errorf("edgeDensity %v outside [0, 1]", *f.EdgeDensity)
	}
	return nil
}

// Indent renders canonical bytes as an indented document for storage.
func Indent(canonical []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, canonical, "", "  "); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}
