package syncer

import "time"

// monthWindow returns the report months (YYYY-MM) to request: every
// month strictly after the latest aggregated month, up to and including
// the last complete month. When no aggregate exists yet, the trailing
// `trailing` complete months are requested instead.
func monthWindow(latest string, now time.Time, trailing int) []string {
	end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)

	var start time.Time
	if t, err := time.Parse("2006-01", latest); err == nil {
		start = t.AddDate(0, 1, 0)
	} else {
		start = end.AddDate(0, -(trailing - 1), 0)
	}

	var months []string
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		months = append(months, m.Format("2006-01"))
	}
	return months
}
