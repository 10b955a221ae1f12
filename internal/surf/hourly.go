package surf

import (
	"strings"
	"time"
)

// HourIndex finds the entry in stamps matching now's UTC hour, comparing on
// the YYYY-MM-DDTHH:MM prefix hourly providers emit. exact is false when
// nothing matched (or stamps is empty) and the caller got index 0 as a
// low-confidence fallback. The function is total: any input yields an index
// that is in range for a non-empty array.
func HourIndex(stamps []string, now time.Time) (idx int, exact bool) {
	want := now.UTC().Truncate(time.Hour).Format("2006-01-02T15:04")
	for i, s := range stamps {
		if strings.HasPrefix(s, want) {
			return i, true
		}
	}
	return 0, false
}
