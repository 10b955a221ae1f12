package surf

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/surflamp/surf-lamp-processor/internal/catalog"
	"github.com/surflamp/surf-lamp-processor/internal/models"
)

func decodeJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("test payload does not decode: %v", err)
	}
	return v
}

func key(k string) catalog.PathSegment { return catalog.PathSegment{Key: k} }

func index(i int) catalog.PathSegment { return catalog.PathSegment{Index: i, IsIndex: true} }

func TestStandardizeNestedObject(t *testing.T) {
	payload := decodeJSON(t, `{"wind": {"speed": 5.5, "deg": 247.6}, "main": {"temp": 293.0}}`)
	ep := catalog.Endpoint{
		Shape: catalog.ShapeNested,
		Fields: map[string][]catalog.PathSegment{
			catalog.FieldWindSpeed:     {key("wind"), key("speed")},
			catalog.FieldWindDirection: {key("wind"), key("deg")},
		},
	}

	rec, _ := Standardize(payload, ep, time.Now())

	if rec.WindSpeedMPS == nil || *rec.WindSpeedMPS != 5.5 {
		t.Errorf("wind speed = %v, want 5.5", rec.WindSpeedMPS)
	}
	if rec.WindDirectionDeg == nil || *rec.WindDirectionDeg != 248 {
		t.Errorf("wind direction = %v, want 248", rec.WindDirectionDeg)
	}
	if rec.WaveHeightM != nil || rec.WavePeriodS != nil {
		t.Error("unmapped fields must stay absent")
	}
}

func TestStandardizeStationParameterList(t *testing.T) {
	payload := decodeJSON(t, `{
		"datetime": "2025-09-13 05:00",
		"parameters": [
			{"name": "Significant wave height", "units": "m", "values": [0.41]},
			{"name": "Peak wave period", "units": "s", "values": ["8.2"]}
		]
	}`)
	ep := catalog.Endpoint{
		Shape: catalog.ShapeNested,
		Fields: map[string][]catalog.PathSegment{
			catalog.FieldWaveHeight: {key("parameters"), index(0), key("values"), index(0)},
			catalog.FieldWavePeriod: {key("parameters"), index(1), key("values"), index(0)},
		},
	}

	rec, _ := Standardize(payload, ep, time.Now())

	if rec.WaveHeightM == nil || *rec.WaveHeightM != 0.41 {
		t.Errorf("wave height = %v, want 0.41", rec.WaveHeightM)
	}
	// Numeric strings are accepted; station feeds emit them.
	if rec.WavePeriodS == nil || *rec.WavePeriodS != 8.2 {
		t.Errorf("wave period = %v, want 8.2", rec.WavePeriodS)
	}
}

func TestStandardizeHourlySelectsCurrentHour(t *testing.T) {
	now := time.Date(2025, 9, 13, 5, 42, 0, 0, time.UTC)
	payload := decodeJSON(t, `{
		"hourly": {
			"time": ["2025-09-13T03:00", "2025-09-13T04:00", "2025-09-13T05:00", "2025-09-13T06:00"],
			"wave_height": [0.8, 0.9, 1.1, 1.3],
			"wave_period": [6.0, 6.5, 7.0, 7.5]
		}
	}`)
	ep := catalog.Endpoint{
		Shape:    catalog.ShapeHourly,
		TimePath: []catalog.PathSegment{key("hourly"), key("time")},
		Fields: map[string][]catalog.PathSegment{
			catalog.FieldWaveHeight: {key("hourly"), key("wave_height")},
			catalog.FieldWavePeriod: {key("hourly"), key("wave_period")},
		},
	}

	rec, meta := Standardize(payload, ep, now)

	if meta.HourIndex != 2 {
		t.Errorf("hour index = %d, want 2", meta.HourIndex)
	}
	if meta.LowConfidence {
		t.Error("exact hour match must not be low confidence")
	}
	if rec.WaveHeightM == nil || *rec.WaveHeightM != 1.1 {
		t.Errorf("wave height = %v, want 1.1", rec.WaveHeightM)
	}
	if rec.WavePeriodS == nil || *rec.WavePeriodS != 7.0 {
		t.Errorf("wave period = %v, want 7.0", rec.WavePeriodS)
	}
}

func TestStandardizeHourlyFallsBackToFirstEntry(t *testing.T) {
	now := time.Date(2025, 9, 14, 9, 0, 0, 0, time.UTC)
	payload := decodeJSON(t, `{
		"hourly": {
			"time": ["2025-09-13T03:00", "2025-09-13T04:00"],
			"wave_height": [0.8, 0.9]
		}
	}`)
	ep := catalog.Endpoint{
		Shape:    catalog.ShapeHourly,
		TimePath: []catalog.PathSegment{key("hourly"), key("time")},
		Fields: map[string][]catalog.PathSegment{
			catalog.FieldWaveHeight: {key("hourly"), key("wave_height")},
		},
	}

	rec, meta := Standardize(payload, ep, now)

	if meta.HourIndex != 0 {
		t.Errorf("hour index = %d, want fallback 0", meta.HourIndex)
	}
	if !meta.LowConfidence {
		t.Error("fallback must set the low-confidence flag")
	}
	if rec.WaveHeightM == nil || *rec.WaveHeightM != 0.8 {
		t.Errorf("wave height = %v, want first entry 0.8", rec.WaveHeightM)
	}
}

// A raw 150 cm wave height standardizes to 1.50 m and survives a
// single-source merge unchanged.
func TestStandardizeConversionRoundTrip(t *testing.T) {
	payload := decodeJSON(t, `{"height_cm": 150}`)
	ep := catalog.Endpoint{
		Shape: catalog.ShapeFlat,
		Fields: map[string][]catalog.PathSegment{
			catalog.FieldWaveHeight: {key("height_cm")},
		},
		Conversions: map[string]string{
			catalog.FieldWaveHeight: "cm_to_m",
		},
	}

	rec, _ := Standardize(payload, ep, time.Now())
	if rec.WaveHeightM == nil || *rec.WaveHeightM != 1.5 {
		t.Fatalf("wave height = %v, want 1.5", rec.WaveHeightM)
	}

	merged, ok := Merge([]models.SurfRecord{rec})
	if !ok {
		t.Fatal("single-source merge reported empty")
	}
	if merged.WaveHeightM == nil || *merged.WaveHeightM != 1.5 {
		t.Errorf("merged wave height = %v, want 1.5", merged.WaveHeightM)
	}
}

func TestStandardizeAbsentAndNullFields(t *testing.T) {
	payload := decodeJSON(t, `{"wind": {"speed": null}, "note": "calm"}`)
	ep := catalog.Endpoint{
		Shape: catalog.ShapeNested,
		Fields: map[string][]catalog.PathSegment{
			catalog.FieldWindSpeed:     {key("wind"), key("speed")},
			catalog.FieldWindDirection: {key("wind"), key("deg")},
			catalog.FieldWaveHeight:    {key("waves"), key("height")},
		},
	}

	rec, _ := Standardize(payload, ep, time.Now())
	if !rec.Empty() {
		t.Errorf("null and missing paths must produce an empty record, got %+v", rec)
	}
}

func TestStandardizeWrapsWindDirection(t *testing.T) {
	payload := decodeJSON(t, `{"deg": 365.0}`)
	ep := catalog.Endpoint{
		Shape: catalog.ShapeFlat,
		Fields: map[string][]catalog.PathSegment{
			catalog.FieldWindDirection: {key("deg")},
		},
	}

	rec, _ := Standardize(payload, ep, time.Now())
	if rec.WindDirectionDeg == nil || *rec.WindDirectionDeg != 5 {
		t.Errorf("wind direction = %v, want wrapped 5", rec.WindDirectionDeg)
	}
}
