package gamify

import "time"

// Streak counts consecutive calendar days with recorded activity.
type Streak struct {
	Current      int       `json:"current_streak"`
	Longest      int       `json:"longest_streak"`
	LastActivity time.Time `json:"last_activity_date"` // UTC
}

// Advance applies one activity event at `now` and returns the new streak.
//
// The day difference is taken against the most recent activity date, not
// against the day the streak last incremented: LastActivity is overwritten
// on every call. Same calendar day leaves the count untouched, exactly one
// day continues the streak, any larger gap resets it to 1.
func Advance(s Streak, now time.Time) Streak {
	now = now.UTC()

	switch {
	case s.LastActivity.IsZero():
		s.Current = 1
	default:
		switch daysBetween(s.LastActivity, now) {
		case 0:
			// same day; keep the count
			if s.Current == 0 {
				s.Current = 1
			}
		case 1:
			s.Current++
		default:
			s.Current = 1
		}
	}

	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	s.LastActivity = now
	return s
}

// daysBetween returns the whole-day difference between two instants,
// by calendar day in UTC (24-47h apart across a midnight is 1 day).
func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.UTC().Date()
	ty, tm, td := to.UTC().Date()
	f := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
