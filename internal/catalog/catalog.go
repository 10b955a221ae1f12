package catalog

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Canonical field names endpoints may map into.
const (
	FieldWaveHeight    = "wave_height_m"
	FieldWavePeriod    = "wave_period_s"
	FieldWindSpeed     = "wind_speed_mps"
	FieldWindDirection = "wind_direction_deg"
)

// Shape describes how a provider lays out the values we need.
type Shape string

const (
	// ShapeFlat: fields sit at the top level of the JSON object.
	ShapeFlat Shape = "flat"
	// ShapeNested: fields are reached by walking keys and array indexes.
	ShapeNested Shape = "nested"
	// ShapeHourly: fields are parallel time-series arrays; the entry for the
	// current hour is selected at standardization time.
	ShapeHourly Shape = "hourly"
)

// TimeoutClass selects the request ceiling for an endpoint. Slow providers
// get the longer one.
type TimeoutClass string

const (
	TimeoutDefault TimeoutClass = "default"
	TimeoutSlow    TimeoutClass = "slow"
)

// PathSegment is one step of a field path: an object key or an array index.
type PathSegment struct {
	Key     string
	Index   int
	IsIndex bool
}

func (s *PathSegment) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("path segment must be a scalar key or index")
	}
	if node.Tag == "!!int" {
		s.IsIndex = true
		return node.Decode(&s.Index)
	}
	s.Key = node.Value
	return nil
}

func (s PathSegment) String() string {
	if s.IsIndex {
		return fmt.Sprintf("%d", s.Index)
	}
	return s.Key
}

// PathString renders a field path in dotted form for error messages.
func PathString(path []PathSegment) string {
	parts := make([]string, len(path))
	for i, s := range path {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Endpoint is one provider source for a location. The URL must carry every
// query parameter the provider needs, including unit pins; nothing is
// appended at fetch time.
type Endpoint struct {
	URL           string                   `yaml:"url"`
	Priority      int                      `yaml:"priority"`
	Shape         Shape                    `yaml:"shape"`
	TimeoutClass  TimeoutClass             `yaml:"timeout_class"`
	Fields        map[string][]PathSegment `yaml:"fields"`
	Conversions   map[string]string        `yaml:"conversions"`
	RequiredQuery []string                 `yaml:"required_query"`
	TimePath      []PathSegment            `yaml:"time_path"`
	APIKeyEnv     string                   `yaml:"api_key_env"`
}

// Catalog maps location names to their priority-ordered endpoints. It is
// loaded once at startup and read-only afterwards.
type Catalog struct {
	Locations map[string][]Endpoint `yaml:"locations"`
}

// Load reads and validates the catalog file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse unmarshals, validates, defaults, and priority-sorts a catalog.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if err := cat.validate(); err != nil {
		return nil, err
	}
	for loc := range cat.Locations {
		eps := cat.Locations[loc]
		sort.SliceStable(eps, func(i, j int) bool { return eps[i].Priority < eps[j].Priority })
		cat.Locations[loc] = eps
	}
	return &cat, nil
}

// Endpoints returns the priority-ordered sources for a location.
func (c *Catalog) Endpoints(location string) ([]Endpoint, bool) {
	eps, ok := c.Locations[location]
	return eps, ok && len(eps) > 0
}

// Len reports the number of configured locations.
func (c *Catalog) Len() int {
	return len(c.Locations)
}

func (c *Catalog) validate() error {
	if len(c.Locations) == 0 {
		return fmt.Errorf("catalog declares no locations")
	}
	for loc, eps := range c.Locations {
		if len(eps) == 0 {
			return fmt.Errorf("location %q has no endpoints", loc)
		}
		for i := range eps {
			ep := &eps[i]
			if err := validateEndpoint(ep); err != nil {
				return fmt.Errorf("location %q endpoint %d: %w", loc, i+1, err)
			}
		}
	}
	return nil
}

func validateEndpoint(ep *Endpoint) error {
	u, err := url.Parse(ep.URL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", ep.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must be http(s)", ep.URL)
	}
	if ep.Priority < 1 {
		return fmt.Errorf("priority must be >= 1, got %d", ep.Priority)
	}

	switch ep.Shape {
	case ShapeFlat, ShapeNested, ShapeHourly:
	default:
		return fmt.Errorf("unknown shape %q", ep.Shape)
	}

	switch ep.TimeoutClass {
	case "":
		ep.TimeoutClass = TimeoutDefault
	case TimeoutDefault, TimeoutSlow:
	default:
		return fmt.Errorf("unknown timeout class %q", ep.TimeoutClass)
	}

	if len(ep.Fields) == 0 {
		return fmt.Errorf("endpoint maps no fields")
	}
	for field, path := range ep.Fields {
		switch field {
		case FieldWaveHeight, FieldWavePeriod, FieldWindSpeed, FieldWindDirection:
		default:
			return fmt.Errorf("unknown canonical field %q (path %s)", field, PathString(path))
		}
		if len(path) == 0 {
			return fmt.Errorf("field %q has an empty path", field)
		}
	}

	for field, name := range ep.Conversions {
		if _, ok := ep.Fields[field]; !ok {
			return fmt.Errorf("conversion declared for unmapped field %q", field)
		}
		if !KnownConversion(name) {
			return fmt.Errorf("unknown conversion %q for field %q", name, field)
		}
	}

	// Every declared pin must really be in the URL, so a bad catalog fails at
	// load rather than producing per-fetch configuration errors all cycle.
	query := u.Query()
	for _, pair := range ep.RequiredQuery {
		key, want, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("required_query entry %q is not key=value", pair)
		}
		if query.Get(key) != want {
			return fmt.Errorf("URL is missing required query %s=%s", key, want)
		}
	}

	// Wind speed is the field with a unit-ambiguity history: any endpoint
	// mapping it must pin the unit system explicitly in its URL.
	if _, mapsWind := ep.Fields[FieldWindSpeed]; mapsWind && !hasUnitPin(ep.RequiredQuery) {
		return fmt.Errorf("endpoint maps %s but declares no unit pin in required_query", FieldWindSpeed)
	}

	if ep.Shape == ShapeHourly && len(ep.TimePath) == 0 {
		ep.TimePath = []PathSegment{{Key: "hourly"}, {Key: "time"}}
	}

	return nil
}

func hasUnitPin(requiredQuery []string) bool {
	for _, pair := range requiredQuery {
		key, _, ok := strings.Cut(pair, "=")
		if ok && strings.Contains(strings.ToLower(key), "unit") {
			return true
		}
	}
	return false
}
