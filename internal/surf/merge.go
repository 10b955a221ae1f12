package surf

import (
	"github.com/surflamp/surf-lamp-processor/internal/models"
)

// Merge combines partial records in the caller-supplied priority order. For
// each canonical field the first present value wins; later records never
// change a field that is already set, no matter how fresh they are. ok is
// false when no record contributed any field, and callers must not persist
// that empty result.
func Merge(ordered []models.SurfRecord) (merged models.SurfRecord, ok bool) {
	for _, r := range ordered {
		if merged.WaveHeightM == nil && r.WaveHeightM != nil {
			merged.WaveHeightM = r.WaveHeightM
		}
		if merged.WavePeriodS == nil && r.WavePeriodS != nil {
			merged.WavePeriodS = r.WavePeriodS
		}
		if merged.WindSpeedMPS == nil && r.WindSpeedMPS != nil {
			merged.WindSpeedMPS = r.WindSpeedMPS
		}
		if merged.WindDirectionDeg == nil && r.WindDirectionDeg != nil {
			merged.WindDirectionDeg = r.WindDirectionDeg
		}
		if merged.Complete() {
			break
		}
	}
	return merged, !merged.Empty()
}
