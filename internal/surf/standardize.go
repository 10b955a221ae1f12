package surf

import (
	"math"
	"strconv"
	"time"

	"github.com/surflamp/surf-lamp-processor/internal/catalog"
	"github.com/surflamp/surf-lamp-processor/internal/models"
)

// Meta carries standardization context that is not part of the canonical
// record itself.
type Meta struct {
	// HourIndex is the time-series index used for hourly endpoints.
	HourIndex int
	// LowConfidence is set when no timestamp matched the current hour and
	// index 0 was used as a fallback.
	LowConfidence bool
}

// Standardize converts one provider's decoded JSON payload into a partial
// canonical record using the endpoint's field mapping. Fields whose paths are
// missing, null, or non-numeric stay absent; nothing is ever defaulted to
// zero. Declared unit conversions are applied here and nowhere else.
func Standardize(payload any, ep catalog.Endpoint, now time.Time) (models.SurfRecord, Meta) {
	var rec models.SurfRecord
	var meta Meta

	if ep.Shape == catalog.ShapeHourly {
		stamps := timestampsAt(payload, ep.TimePath)
		meta.HourIndex, meta.LowConfidence = resolveHour(stamps, now)
	}

	for field, path := range ep.Fields {
		raw, ok := valueAt(payload, path)
		if ok && ep.Shape == catalog.ShapeHourly {
			raw, ok = elementAt(raw, meta.HourIndex)
		}
		if !ok {
			continue
		}
		num, ok := asFloat(raw)
		if !ok {
			continue
		}
		if name, declared := ep.Conversions[field]; declared {
			converted, known := catalog.Convert(name, num)
			if !known {
				continue
			}
			num = converted
		}
		setField(&rec, field, num)
	}

	return rec, meta
}

func resolveHour(stamps []string, now time.Time) (idx int, lowConfidence bool) {
	i, exact := HourIndex(stamps, now)
	return i, !exact
}

func setField(rec *models.SurfRecord, field string, v float64) {
	switch field {
	case catalog.FieldWaveHeight:
		rec.WaveHeightM = models.Float64(v)
	case catalog.FieldWavePeriod:
		rec.WavePeriodS = models.Float64(v)
	case catalog.FieldWindSpeed:
		rec.WindSpeedMPS = models.Float64(v)
	case catalog.FieldWindDirection:
		deg := int(math.Round(v)) % 360
		if deg < 0 {
			deg += 360
		}
		rec.WindDirectionDeg = models.Int(deg)
	}
}

// valueAt walks a decoded JSON tree by object keys and array indexes.
func valueAt(v any, path []catalog.PathSegment) (any, bool) {
	cur := v
	for _, seg := range path {
		if seg.IsIndex {
			arr, ok := cur.([]any)
			if !ok || seg.Index < 0 || seg.Index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.Index]
			continue
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg.Key]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

func elementAt(v any, idx int) (any, bool) {
	arr, ok := v.([]any)
	if !ok || idx < 0 || idx >= len(arr) || arr[idx] == nil {
		return nil, false
	}
	return arr[idx], true
}

// asFloat accepts JSON numbers plus numeric strings, which some station
// feeds emit.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// timestampsAt extracts the hourly time array. Non-string entries become
// empty strings so positions stay aligned with the value arrays.
func timestampsAt(payload any, path []catalog.PathSegment) []string {
	raw, ok := valueAt(payload, path)
	if !ok {
		return nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	stamps := make([]string, len(arr))
	for i, e := range arr {
		if s, ok := e.(string); ok {
			stamps[i] = s
		}
	}
	return stamps
}
