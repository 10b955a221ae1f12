package pushgate

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/surflamp/surf-lamp-processor/internal/models"
)

func testDevice(format string) models.Device {
	ip := "192.168.1.50"
	return models.Device{
		LampID:             7,
		ArduinoID:          4004,
		ArduinoIP:          &ip,
		Location:           "Tel Aviv, Israel",
		Format:             format,
		WaveThresholdM:     1.2,
		WindThresholdKnots: 22,
	}
}

func fullRecord() models.SurfRecord {
	return models.SurfRecord{
		WaveHeightM:      models.Float64(1.234),
		WavePeriodS:      models.Float64(8.5),
		WindSpeedMPS:     models.Float64(5.6),
		WindDirectionDeg: models.Int(270),
	}
}

func TestFormatMetric(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	p := Format(fullRecord(), testDevice("meters"), now)

	if p.WaveHeightCM == nil || *p.WaveHeightCM != 123 {
		t.Fatalf("WaveHeightCM = %v, want 123", p.WaveHeightCM)
	}
	if p.WindSpeedMPS == nil || *p.WindSpeedMPS != 6 {
		t.Fatalf("WindSpeedMPS = %v, want 6", p.WindSpeedMPS)
	}
	if p.WavePeriodS == nil || *p.WavePeriodS != 8.5 {
		t.Fatalf("WavePeriodS = %v, want 8.5", p.WavePeriodS)
	}
	if p.WindDirectionDeg == nil || *p.WindDirectionDeg != 270 {
		t.Fatalf("WindDirectionDeg = %v, want 270", p.WindDirectionDeg)
	}
	if p.WaveThresholdCM != 120 {
		t.Errorf("WaveThresholdCM = %d, want 120", p.WaveThresholdCM)
	}
	if p.WindSpeedThresholdKnots != 22 {
		t.Errorf("WindSpeedThresholdKnots = %d, want 22", p.WindSpeedThresholdKnots)
	}
	if p.WaveHeightFT != nil || p.WindSpeedMPH != nil {
		t.Errorf("metric payload should not carry imperial fields: %+v", p)
	}
}

func TestFormatFeet(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	p := Format(fullRecord(), testDevice("feet"), now)

	if p.WaveHeightCM == nil || *p.WaveHeightCM != 123 {
		t.Fatalf("WaveHeightCM = %v, want 123", p.WaveHeightCM)
	}
	// Imperial values derive from the already rounded integer fields.
	if p.WaveHeightFT == nil || *p.WaveHeightFT != 4.04 {
		t.Errorf("WaveHeightFT = %v, want 4.04", p.WaveHeightFT)
	}
	if p.WindSpeedMPH == nil || *p.WindSpeedMPH != 13.42 {
		t.Errorf("WindSpeedMPH = %v, want 13.42", p.WindSpeedMPH)
	}
}

func TestFormatLocalTime(t *testing.T) {
	// Mid January, so Israel is on standard time (UTC+2).
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	p := Format(fullRecord(), testDevice("meters"), now)

	if p.Timezone != "Asia/Jerusalem" {
		t.Fatalf("Timezone = %q, want Asia/Jerusalem", p.Timezone)
	}
	if !strings.HasPrefix(p.LocalTime, "2025-01-15 14:00:00") {
		t.Errorf("LocalTime = %q, want 14:00:00 local", p.LocalTime)
	}
}

func TestFormatUnknownLocationOmitsTime(t *testing.T) {
	dev := testDevice("meters")
	dev.Location = "Atlantis"
	p := Format(fullRecord(), dev, time.Now())

	if p.LocalTime != "" || p.Timezone != "" {
		t.Errorf("unknown location should omit time fields, got %q %q", p.LocalTime, p.Timezone)
	}
}

func TestFormatOmitsAbsentFields(t *testing.T) {
	rec := models.SurfRecord{WaveHeightM: models.Float64(0.8)}
	p := Format(rec, testDevice("feet"), time.Now())

	body, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	s := string(body)

	for _, key := range []string{"wind_speed_mps", "wind_speed_mph", "wave_period_s", "wind_direction_deg"} {
		if strings.Contains(s, key) {
			t.Errorf("payload should omit %s, got %s", key, s)
		}
	}
	if !strings.Contains(s, "\"wave_height_cm\":80") {
		t.Errorf("payload missing wave_height_cm: %s", s)
	}
	if !strings.Contains(s, "\"wave_threshold_cm\":120") {
		t.Errorf("payload missing wave_threshold_cm: %s", s)
	}
}
