package models

import (
	"time"
)

// SurfRecord is the canonical per-location reading in fixed units: meters,
// seconds, meters per second, compass degrees. A nil field means the value
// was not determined this cycle, which is not the same as a measured zero.
type SurfRecord struct {
	WaveHeightM      *float64 `json:"wave_height_m,omitempty"`
	WavePeriodS      *float64 `json:"wave_period_s,omitempty"`
	WindSpeedMPS     *float64 `json:"wind_speed_mps,omitempty"`
	WindDirectionDeg *int     `json:"wind_direction_deg,omitempty"`
}

// Empty reports whether no field was determined.
func (r SurfRecord) Empty() bool {
	return r.WaveHeightM == nil && r.WavePeriodS == nil &&
		r.WindSpeedMPS == nil && r.WindDirectionDeg == nil
}

// Complete reports whether every field was determined.
func (r SurfRecord) Complete() bool {
	return r.WaveHeightM != nil && r.WavePeriodS != nil &&
		r.WindSpeedMPS != nil && r.WindDirectionDeg != nil
}

// Float64 and Int build optional-field pointers in place.
func Float64(v float64) *float64 { return &v }

func Int(v int) *int { return &v }

// Device is one lamp registered to a user at a location, together with the
// output preferences the legacy push payload needs.
type Device struct {
	LampID             int64
	ArduinoID          int64
	ArduinoIP          *string
	Location           string
	Format             string // "meters" or "feet"
	WaveThresholdM     float64
	WindThresholdKnots float64
}

type Outcome string

const (
	OutcomePersisted    Outcome = "persisted"
	OutcomeSkippedEmpty Outcome = "skipped_empty"
	OutcomeFailed       Outcome = "failed"
)

// SourceFailure records one source-level failure for the cycle report.
type SourceFailure struct {
	Endpoint string `json:"endpoint"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// LocationResult is the outcome of processing a single location within a
// cycle.
type LocationResult struct {
	Location       string          `json:"location"`
	Outcome        Outcome         `json:"outcome"`
	Record         SurfRecord      `json:"record"`
	Sources        []string        `json:"sources,omitempty"`
	SourceFailures []SourceFailure `json:"source_failures,omitempty"`
	DevicesUpdated int             `json:"devices_updated"`
	LowConfidence  bool            `json:"low_confidence,omitempty"`
}

// CycleResult summarizes one full pass over every active location. It exists
// for logging and the ops status endpoint only and is never persisted.
type CycleResult struct {
	CycleID   string           `json:"cycle_id"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration_ns"`
	Locations []LocationResult `json:"locations"`
}

// Counts tallies the per-location outcomes.
func (r CycleResult) Counts() (persisted, skippedEmpty, failed int) {
	for _, loc := range r.Locations {
		switch loc.Outcome {
		case OutcomePersisted:
			persisted++
		case OutcomeSkippedEmpty:
			skippedEmpty++
		case OutcomeFailed:
			failed++
		}
	}
	return persisted, skippedEmpty, failed
}
