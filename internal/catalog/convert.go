package catalog

// Named unit conversions endpoints may declare per field. Conversions run in
// the standardizer, at the provider boundary only; everything downstream
// assumes canonical units.
var conversions = map[string]func(float64) float64{
	"cm_to_m":      func(v float64) float64 { return v / 100 },
	"kmh_to_mps":   func(v float64) float64 { return v / 3.6 },
	"knots_to_mps": func(v float64) float64 { return v * 0.514444 },
	"mph_to_mps":   func(v float64) float64 { return v * 0.44704 },
	"kelvin_to_c":  func(v float64) float64 { return v - 273.15 },
}

// Convert applies the named conversion. ok is false for unknown names, which
// validation rules out for loaded catalogs.
func Convert(name string, v float64) (float64, bool) {
	fn, ok := conversions[name]
	if !ok {
		return v, false
	}
	return fn(v), true
}

// KnownConversion reports whether name is a registered conversion.
func KnownConversion(name string) bool {
	_, ok := conversions[name]
	return ok
}
