package pushgate

import (
	"math"
	"time"

	"github.com/surflamp/surf-lamp-processor/internal/models"
)

// locationTimezones maps catalog locations to IANA zones so devices can show
// wall-clock time without doing their own timezone math.
var locationTimezones = map[string]string{
	"Hadera, Israel":   "Asia/Jerusalem",
	"Tel Aviv, Israel": "Asia/Jerusalem",
	"Ashdod, Israel":   "Asia/Jerusalem",
	"Haifa, Israel":    "Asia/Jerusalem",
	"Netanya, Israel":  "Asia/Jerusalem",
	"Nahariya, Israel": "Asia/Jerusalem",
	"Ashkelon, Israel": "Asia/Jerusalem",
	"San Diego, USA":   "America/Los_Angeles",
	"Barcelona, Spain": "Europe/Madrid",
}

// Payload is the JSON body a lamp expects on its update endpoint. Wave height
// travels as whole centimeters and wind speed as whole meters per second; the
// imperial fields are added alongside them when the owner prefers feet.
type Payload struct {
	WaveHeightCM            *int     `json:"wave_height_cm,omitempty"`
	WaveHeightFT            *float64 `json:"wave_height_ft,omitempty"`
	WavePeriodS             *float64 `json:"wave_period_s,omitempty"`
	WindSpeedMPS            *int     `json:"wind_speed_mps,omitempty"`
	WindSpeedMPH            *float64 `json:"wind_speed_mph,omitempty"`
	WindDirectionDeg        *int     `json:"wind_direction_deg,omitempty"`
	LocalTime               string   `json:"local_time,omitempty"`
	Timezone                string   `json:"timezone,omitempty"`
	WaveThresholdCM         int      `json:"wave_threshold_cm"`
	WindSpeedThresholdKnots int      `json:"wind_speed_threshold_knots"`
}

// Format builds the device payload for one lamp. Absent record fields stay
// absent in the payload; the device keeps whatever it last displayed.
func Format(rec models.SurfRecord, dev models.Device, now time.Time) Payload {
	p := Payload{
		WavePeriodS:             rec.WavePeriodS,
		WindDirectionDeg:        rec.WindDirectionDeg,
		WaveThresholdCM:         int(math.Round(dev.WaveThresholdM * 100)),
		WindSpeedThresholdKnots: int(math.Round(dev.WindThresholdKnots)),
	}

	if tz, ok := locationTimezones[dev.Location]; ok {
		if loc, err := time.LoadLocation(tz); err == nil {
			p.LocalTime = now.In(loc).Format("2006-01-02 15:04:05 MST")
			p.Timezone = tz
		}
	}

	if rec.WaveHeightM != nil {
		cm := int(math.Round(*rec.WaveHeightM * 100))
		p.WaveHeightCM = &cm
	}
	if rec.WindSpeedMPS != nil {
		mps := int(math.Round(*rec.WindSpeedMPS))
		p.WindSpeedMPS = &mps
	}

	if dev.Format == "feet" {
		if p.WaveHeightCM != nil {
			ft := round2(float64(*p.WaveHeightCM) / 30.48)
			p.WaveHeightFT = &ft
		}
		if p.WindSpeedMPS != nil {
			mph := round2(float64(*p.WindSpeedMPS) * 2.237)
			p.WindSpeedMPH = &mph
		}
	}

	return p
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
