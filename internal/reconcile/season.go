package reconcile

import (
	"time"

	"github.com/desertthunder/collectarr/internal/models"
)

// InSeason reports whether the reference date falls inside the seasonal
// window. A nil window means the collection is always in season. Windows
// that wrap the year boundary (e.g. Dec 15 through Jan 5) are handled by
// comparing month*100+day values: for a wrapping window the date is in
// season when it is on or after the start or on or before the end.
func InSeason(w *models.SeasonalWindow, now time.Time) bool {
	if w == nil {
		return true
	}

	current := int(now.Month())*100 + now.Day()
	start := w.StartMonth*100 + w.StartDay
	end := w.EndMonth*100 + w.EndDay

	if start <= end {
		return start <= current && current <= end
	}
	return current >= start || current <= end
}
