package dna

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"clothdna/types"
)

var exponent = regexp.MustCompile(`[0-9][eE][-+]?[0-9]`)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)

func sampleRecord() types.FeatureRecord {
	hist := make([]float64, types.Channels*types.HistogramBins)
	for i := range hist {
		hist[i] = float64((i * 37) % 2000)
	}
	return types.FeatureRecord{
		ColorMeans:     [3]float64{120.123456789, 98.5, 77.0000004},
		ColorMeansHSV:  [3]float64{45.25, 130.987654321, 121.1},
		ColorHistogram: hist,
		KeypointCount:  312,
		EdgeDensity:    0.0834263392857,
		GradientMean:   88.777777777,
		GradientStd:    -0.0000001,
		BrightnessMean: 101.33,
		BrightnessStd:  40.1,
		Contrast:       40.1 / 101.33,
	}
}

func sampleDNA(t *testing.T) types.DigitalDNA {
	t.Helper()
	d, err := Build([3]int{224, 224, 3}, sampleRecord(), "shirt-001", fixedNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return d
}

func TestBuild(t *testing.T) {
	d := sampleDNA(t)
	if d.ItemID != "shirt-001" {
		t.Errorf("ItemID = %q", d.ItemID)
	}
	if d.TimestampUTC != "2025-03-14T09:26:53.589793Z" {
		t.Errorf("TimestampUTC = %q", d.TimestampUTC)
	}
	if d.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %q", d.SchemaVersion)
	}
	if d.Features.ColorMeans[0] != 120.123457 {
		t.Errorf("ColorMeans[0] = %v, want rounded to 6 decimals", d.Features.ColorMeans[0])
	}
	if d.Features.GradientStd != 0 || math.Signbit(d.Features.GradientStd) {
		t.Errorf("GradientStd = %v, want +0", d.Features.GradientStd)
	}
}

func TestBuildGeneratesItemID(t *testing.T) {
	local := fixedNow.In(time.FixedZone("X", 5*3600))
	d, err := Build([3]int{224, 224, 3}, sampleRecord(), "", local)
	if err != nil {
		t.Fatal(err)
	}
	if d.ItemID != "item_20250314_092653" {
		t.Errorf("ItemID = %q", d.ItemID)
	}
	// Same second, same id: a known limitation of time-derived ids.
	again, _ := Build([3]int{224, 224, 3}, sampleRecord(), "", fixedNow.Add(100*time.Millisecond))
	if again.ItemID != d.ItemID {
		t.Errorf("ids within one second differ: %q vs %q", again.ItemID, d.ItemID)
	}
}

func TestBuildRejectsEmptyRecord(t *testing.T) {
	_, err := Build([3]int{224, 224, 3}, types.FeatureRecord{}, "x", fixedNow)
	if !errors.Is(err, ErrEmptyFeatures) {
		t.Errorf("err = %v, want ErrEmptyFeatures", err)
	}
}

func TestCanonicalFieldOrder(t *testing.T) {
	b, err := Canonical(sampleDNA(t))
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	s := string(b)
	order := []string{
		`{"itemId":"shirt-001"`, `"timestampUtc":`, `"schemaVersion":"1.0"`,
		`"imageDimensions":[224,224,3]`, `"features":{`, `"colorMeans":[120.123457,98.500000,77.000000]`,
		`"colorMeansHSV":`, `"colorHistogram":[0.000000,37.000000`, `"keypointCount":312`,
		`"edgeDensity":0.083426`, `"gradientMean":`, `"gradientStd":0.000000`,
		`"brightnessMean":101.330000`, `"brightnessStd":`, `"contrast":`,
	}
	pos := 0
	for _, part := range order {
		i := strings.Index(s[pos:], part)
		if i < 0 {
			t.Fatalf("%q missing or out of order in %s", part, s)
		}
		pos += i + len(part)
	}
	if strings.ContainsAny(s, " \n\t") || exponent.MatchString(s) {
		t.Errorf("canonical form has whitespace or exponent: %s", s)
	}
	if !strings.HasSuffix(s, "}}") {
		t.Errorf("unexpected tail: %s", s[len(s)-10:])
	}
}

func TestCanonicalDeterministic(t *testing.T) {
	a, err := Canonical(sampleDNA(t))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Canonical(sampleDNA(t))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("equal records serialized differently")
	}
}

func TestContentCanonicalIgnoresTimestampOnly(t *testing.T) {
	a := sampleDNA(t)
	later, err := Build([3]int{224, 224, 3}, sampleRecord(), "shirt-001", fixedNow.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	ca, _ := ContentCanonical(a)
	cl, _ := ContentCanonical(later)
	if !bytes.Equal(ca, cl) {
		t.Error("content form depends on the timestamp")
	}
	fa, _ := Canonical(a)
	fl, _ := Canonical(later)
	if bytes.Equal(fa, fl) {
		t.Error("full form ignores the timestamp")
	}
	if !bytes.HasPrefix(ca, []byte(`{"itemId":"shirt-001","timestampUtc":"",`)) {
		t.Errorf("content form prefix: %s", ca[:48])
	}

	other, err := Build([3]int{224, 224, 3}, sampleRecord(), "other", fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	co, _ := ContentCanonical(other)
	if bytes.Equal(ca, co) {
		t.Error("content form ignores the item id")
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp(FormatTimestamp(fixedNow))
	if err != nil {
		t.Fatalf("ParseTimestamp: %v", err)
	}
	if !ts.Equal(fixedNow) {
		t.Errorf("ParseTimestamp = %v, want %v", ts, fixedNow)
	}
	if _, err := ParseTimestamp("yesterday"); !errors.Is(err, ErrMalformed) {
		t.Errorf("ParseTimestamp(yesterday) err = %v", err)
	}
}

func TestCanonicalRejectsNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		d := sampleDNA(t)
		d.Features.Contrast = v
		if _, err := Canonical(d); !errors.Is(err, ErrNonFinite) {
			t.Errorf("Canonical with %v: err = %v", v, err)
		}
	}
	d := sampleDNA(t)
	d.Features.ColorHistogram = append([]float64(nil), d.Features.ColorHistogram...)
	d.Features.ColorHistogram[5] = math.NaN()
	if _, err := ContentCanonical(d); !errors.Is(err, ErrNonFinite) {
		t.Errorf("histogram NaN: err = %v", err)
	}
}

func TestCanonicalEscapesStrings(t *testing.T) {
	d := sampleDNA(t)
	d.ItemID = `a"b\c`
	b, err := Canonical(d)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if back.ItemID != d.ItemID {
		t.Errorf("ItemID = %q", back.ItemID)
	}
}

func TestParseRoundTrip(t *testing.T) {
	d := sampleDNA(t)
	b, err := Canonical(d)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(d, back) {
		t.Errorf("round trip mismatch:\n%+v\n%+v", d, back)
	}
	again, _ := Canonical(back)
	if !bytes.Equal(b, again) {
		t.Error("re-serialized bytes differ")
	}
}

func TestParseMalformed(t *testing.T) {
	full, _ := Canonical(sampleDNA(t))
	histogram := regexp.MustCompile(`"colorHistogram":\[[^\]]*\]`)
	edges := regexp.MustCompile(`"edgeDensity":[0-9.]+`)
	cases := map[string][]byte{
		"garbage":            []byte("nope"),
		"missing field":      bytes.Replace(full, []byte(`"keypointCount":312,`), nil, 1),
		"unknown field":      bytes.Replace(full, []byte(`{"itemId"`), []byte(`{"extra":1,"itemId"`), 1),
		"trailing value":     append(append([]byte{}, full...), []byte(`{}`)...),
		"trailing brace":     append(append([]byte{}, full...), '}'),
		"short histogram":    histogram.ReplaceAll(full, []byte(`"colorHistogram":[1.000000]`)),
		"negative keypoints": bytes.Replace(full, []byte(`"keypointCount":312`), []byte(`"keypointCount":-5`), 1),
		"edge density":       edges.ReplaceAll(full, []byte(`"edgeDensity":7.000000`)),
		"zero dimension":     bytes.Replace(full, []byte(`[224,224,3]`), []byte(`[0,224,3]`), 1),
	}
	for name, data := range cases {
		if _, err := Parse(data); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: err = %v, want ErrMalformed", name, err)
		}
	}
}

func TestParseAcceptsTrailingWhitespace(t *testing.T) {
	full, _ := Canonical(sampleDNA(t))
	if _, err := Parse(append(append([]byte{}, full...), " \n"...)); err != nil {
		t.Errorf("Parse with trailing whitespace: %v", err)
	}
}

func TestIndent(t *testing.T) {
	b, _ := Canonical(sampleDNA(t))
	pretty, err := Indent(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(pretty, []byte("\n  \"itemId\": \"shirt-001\"")) {
		t.Errorf("unexpected layout:\n%s", pretty)
	}
	back, err := Parse(pretty)
	if err != nil {
		t.Fatalf("Parse indented: %v", err)
	}
	if back.ItemID != "shirt-001" {
		t.Errorf("ItemID = %q", back.ItemID)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	d := sampleDNA(t)
	blob, err := EncodeArchive(d)
	if err != nil {
		t.Fatalf("EncodeArchive: %v", err)
	}
	again, _ := EncodeArchive(d)
	if !bytes.Equal(blob, again) {
		t.Error("archive encoding is not deterministic")
	}
	back, err := DecodeArchive(blob)
	if err != nil {
		t.Fatalf("DecodeArchive: %v", err)
	}
	if !reflect.DeepEqual(d, back) {
		t.Errorf("archive round trip mismatch:\n%+v\n%+v", d, back)
	}
	if _, err := DecodeArchive([]byte{0xff, 0x00}); !errors.Is(err, ErrMalformed) {
		t.Errorf("DecodeArchive(garbage) err = %v", err)
	}
}
