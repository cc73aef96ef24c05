// Package dna assembles DigitalDNA records and renders them as canonical
// bytes for hashing.
package dna

import (
	"errors"
	"fmt"
	"math"
	"time"

	"clothdna/types"
)

const (
	// SchemaVersion is stamped on every record built by this package.
	SchemaVersion = "1.0"

	// TimestampLayout is the UTC timestamp format of DigitalDNA.TimestampUTC.
	TimestampLayout = "2006-01-02T15:04:05.000000Z"

	// ItemIDPrefix prefixes generated item identifiers.
	ItemIDPrefix = "item"

	itemIDLayout = "20060102_150405"

	// Precision is the number of decimals kept for every float field.
	Precision = 6
)

// ErrEmptyFeatures is returned by Build when the FeatureRecord is empty.
var ErrEmptyFeatures = errors.New("feature record is empty")

var scale = math.Pow10(Precision)

// GenerateItemID derives an identifier from now with one-second resolution.
// Two records built within the same second collide.
func GenerateItemID(now time.Time) string {
	return ItemIDPrefix + "_" + now.UTC().Format(itemIDLayout)
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp reads a timestamp written by FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrMalformed, s)
	}
	return t, nil
}

// Build assembles a DigitalDNA. When itemID is empty one is generated from
// now. Float fields are rounded to Precision decimals so that the canonical
// form parses back to an identical record.
func Build(dims [3]int, record types.FeatureRecord, itemID string, now time.Time) (types.DigitalDNA, error) {
	if record.Empty() {
		return types.DigitalDNA{}, ErrEmptyFeatures
	}
	if itemID == "" {
		itemID = GenerateItemID(now)
	}
	return types.DigitalDNA{
		ItemID:          itemID,
		TimestampUTC:    FormatTimestamp(now),
		SchemaVersion:   SchemaVersion,
		ImageDimensions: dims,
		Features:        quantizeRecord(record),
	}, nil
}

func quantize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	q := math.Round(v*scale) / scale
	if q == 0 {
		return 0
	}
	return q
}

func quantizeRecord(r types.FeatureRecord) types.FeatureRecord {
	out := r
	for i := range out.ColorMeans {
		out.ColorMeans[i] = quantize(r.ColorMeans[i])
		out.ColorMeansHSV[i] = quantize(r.ColorMeansHSV[i])
	}
	out.ColorHistogram = make([]float64, len(r.ColorHistogram))
	for i, v := range r.ColorHistogram {
		out.ColorHistogram[i] = quantize(v)
	}
	out.EdgeDensity = quantize(r.EdgeDensity)
	out.GradientMean = quantize(r.GradientMean)
	out.GradientStd = quantize(r.GradientStd)
	out.BrightnessMean = quantize(r.BrightnessMean)
	out.BrightnessStd = quantize(r.BrightnessStd)
	out.Contrast = quantize(r.Contrast)
	return out
}
