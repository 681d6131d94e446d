package attendance

import "time"

// Schedule is the status derivation policy: an observation at or
// before the day's start plus the grace period is Present, anything
// after is Late. The policy is applied once, when an entry is created;
// historical entries keep the status they were written with even if
// the grace setting later changes.
type Schedule struct {
	StartHour   int
	StartMinute int
	Grace       time.Duration
}

// Cutoff returns the Present/Late boundary for the calendar day of ts,
// in ts's location.
func (s Schedule) Cutoff(ts time.Time) time.Time {
	start := time.Date(ts.Year(), ts.Month(), ts.Day(), s.StartHour, s.StartMinute, 0, 0, ts.Location())
	return start.Add(s.Grace)
}

// Classify derives the status for an observation at ts.
func (s Schedule) Classify(ts time.Time) Status {
	if ts.After(s.Cutoff(ts)) {
		return StatusLate
	}
	return StatusPresent
}
