// Package stats derives attendance statistics from the raw people and
// entry collections. Every function is pure: inputs are never mutated,
// persistence is never touched, and the reference time is always an
// explicit parameter. All operations are total — malformed input
// degrades to the documented fallback values instead of an error.
package stats

import (
	"sort"
	"time"

	"presence/internal/attendance"
	"presence/internal/roster"
)

// Summary is the per-bucket aggregate. Rate is (present+late)/total
// people as a fraction in [0,1], defined as 0 when there are no people.
type Summary struct {
	Start       time.Time `json:"start"`
	Present     int       `json:"present"`
	Late        int       `json:"late"`
	Absent      int       `json:"absent"`
	TotalPeople int       `json:"total_people"`
	Rate        float64   `json:"rate"`
}

// Bucket selects the grouping window for RangeSummary.
type Bucket string

const (
	BucketDay   Bucket = "day"
	BucketWeek  Bucket = "week" // weeks start on Sunday
	BucketMonth Bucket = "month"
)

// Valid reports whether the bucket is one of the known values.
func (b Bucket) Valid() bool {
	return b == BucketDay || b == BucketWeek || b == BucketMonth
}

// Trend is the coarse classification of two adjacent 7-day windows.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// PersonStats aggregates one person's observed entries.
// AttendancePercentage is (present+late)/totalObserved as a percentage
// in [0,100]; zero entries means 0, not 100.
type PersonStats struct {
	PersonID             string     `json:"person_id"`
	TotalObserved        int        `json:"total_observed"`
	Present              int        `json:"present"`
	Late                 int        `json:"late"`
	Absent               int        `json:"absent"`
	AttendancePercentage float64    `json:"attendance_percentage"`
	LastAttended         *time.Time `json:"last_attended,omitempty"`
	ConsecutiveAbsences  int        `json:"consecutive_absences"`
	Trend                Trend      `json:"trend"`
}

// Window scopes DepartmentBreakdown. ExpectedOccasions is how many
// qualifying entries one person would produce over the window if they
// attended every occasion.
type Window struct {
	Start             time.Time
	End               time.Time
	ExpectedOccasions int
}

// DepartmentRate ranks one organizational unit. Rate is qualifying
// entries over (headcount × expected occasions) as a percentage; it is
// a relative ranking signal, not a hard accuracy measure.
type DepartmentRate struct {
	Department string  `json:"department"`
	People     int     `json:"people"`
	Entries    int     `json:"entries"`
	Rate       float64 `json:"rate"`
}

// trendThreshold is the ±10-percentage-point band inside which a trend
// counts as stable. Kept as the product shipped it; on sparse data the
// empty-window-is-0% rule makes the label noisy.
const trendThreshold = 0.10

// DailySummary computes present/late/absent counts and the attendance
// rate for one calendar day (in day's location). A person with no
// entry that day is Absent; a person with several entries is folded to
// the last-recorded one — latest timestamp, with stored order breaking
// ties.
func DailySummary(people []roster.Person, entries []attendance.Entry, day time.Time) Summary {
	start := dayStart(day)
	return summarize(people, entries, start, start.AddDate(0, 0, 1))
}

// RangeSummary computes one Summary per bucket between start and end,
// in chronological order regardless of the input entry order. Each
// bucket is scoped to entries whose timestamp falls inside it and is
// computed by the DailySummary rule.
func RangeSummary(people []roster.Person, entries []attendance.Entry, start, end time.Time, bucket Bucket) []Summary {
	if !bucket.Valid() || end.Before(start) {
		return nil
	}
	var out []Summary
	for b := bucketStart(start, bucket); b.Before(end); b = bucketNext(b, bucket) {
		out = append(out, summarize(people, entries, b, bucketNext(b, bucket)))
	}
	return out
}

// PersonStatistics aggregates one person's entries: totals per status,
// attendance percentage, most recent non-absent timestamp, the
// trailing run of Absent entries, and the 7-day-vs-prior-7-day trend
// relative to now.
func PersonStatistics(p roster.Person, entries []attendance.Entry, now time.Time) PersonStats {
	mine := make([]attendance.Entry, 0, len(entries))
	for _, e := range entries {
		if e.PersonID == p.ID {
			mine = append(mine, e)
		}
	}

	st := PersonStats{PersonID: p.ID, TotalObserved: len(mine), Trend: classifyTrend(mine, now)}
	for _, e := range mine {
		switch e.Status {
		case attendance.StatusPresent:
			st.Present++
		case attendance.StatusLate:
			st.Late++
		default:
			st.Absent++
		}
		if e.Status != attendance.StatusAbsent {
			if st.LastAttended == nil || e.OccurredAt.After(*st.LastAttended) {
				ts := e.OccurredAt
				st.LastAttended = &ts
			}
		}
	}
	if st.TotalObserved > 0 {
		st.AttendancePercentage = 100 * float64(st.Present+st.Late) / float64(st.TotalObserved)
	}
	st.ConsecutiveAbsences = trailingAbsences(mine)
	return st
}

// DepartmentBreakdown ranks each distinct department in people by its
// qualifying (non-absent) entries over headcount × expected occasions,
// highest rate first.
func DepartmentBreakdown(people []roster.Person, entries []attendance.Entry, w Window) []DepartmentRate {
	deptOf := make(map[string]string, len(people))
	headcount := make(map[string]int)
	for _, p := range people {
		deptOf[p.ID] = p.Department
		headcount[p.Department]++
	}

	counts := make(map[string]int)
	for _, e := range entries {
		if e.Status == attendance.StatusAbsent {
			continue
		}
		if e.OccurredAt.Before(w.Start) || !e.OccurredAt.Before(w.End) {
			continue
		}
		dept, ok := deptOf[e.PersonID]
		if !ok {
			continue // dangling reference, person was deleted
		}
		counts[dept]++
	}

	out := make([]DepartmentRate, 0, len(headcount))
	for dept, n := range headcount {
		r := DepartmentRate{Department: dept, People: n, Entries: counts[dept]}
		if denom := n * w.ExpectedOccasions; denom > 0 {
			r.Rate = 100 * float64(r.Entries) / float64(denom)
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rate != out[j].Rate {
			return out[i].Rate > out[j].Rate
		}
		return out[i].Department < out[j].Department
	})
	return out
}

// summarize applies the daily rule to one window [start, end): fold
// each person's entries to the last-recorded one, then count.
func summarize(people []roster.Person, entries []attendance.Entry, start, end time.Time) Summary {
	known := make(map[string]bool, len(people))
	for _, p := range people {
		known[p.ID] = true
	}

	last := make(map[string]attendance.Entry)
	for _, e := range entries {
		if e.OccurredAt.Before(start) || !e.OccurredAt.Before(end) {
			continue
		}
		if !known[e.PersonID] {
			continue
		}
		// Later timestamp wins; on equal timestamps the later-stored
		// entry wins.
		if prev, ok := last[e.PersonID]; !ok || !e.OccurredAt.Before(prev.OccurredAt) {
			last[e.PersonID] = e
		}
	}

	s := Summary{Start: start, TotalPeople: len(people)}
	for _, e := range last {
		switch e.Status {
		case attendance.StatusPresent:
			s.Present++
		case attendance.StatusLate:
			s.Late++
		}
	}
	s.Absent = s.TotalPeople - s.Present - s.Late
	if s.TotalPeople > 0 {
		s.Rate = float64(s.Present+s.Late) / float64(s.TotalPeople)
	}
	return s
}

// trailingAbsences counts the run of Absent entries at the head of the
// person's history sorted most-recent-first. Timestamp ties resolve to
// the later-stored entry being more recent.
func trailingAbsences(entries []attendance.Entry) int {
	if len(entries) == 0 {
		return 0
	}
	ordered := make([]attendance.Entry, len(entries))
	for i, e := range entries {
		ordered[len(entries)-1-i] = e
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OccurredAt.After(ordered[j].OccurredAt)
	})
	run := 0
	for _, e := range ordered {
		if e.Status != attendance.StatusAbsent {
			break
		}
		run++
	}
	return run
}

// classifyTrend compares the non-absent rate of (now-7d, now] against
// (now-14d, now-7d]. A window with no entries contributes a rate of 0.
func classifyTrend(entries []attendance.Entry, now time.Time) Trend {
	recentStart := now.AddDate(0, 0, -7)
	priorStart := now.AddDate(0, 0, -14)

	recent := windowRate(entries, recentStart, now)
	prior := windowRate(entries, priorStart, recentStart)

	switch diff := recent - prior; {
	case diff > trendThreshold:
		return TrendImproving
	case diff < -trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// windowRate is the fraction of non-absent entries in (start, end],
// 0 when the window holds no entries.
func windowRate(entries []attendance.Entry, start, end time.Time) float64 {
	total, attended := 0, 0
	for _, e := range entries {
		if !e.OccurredAt.After(start) || e.OccurredAt.After(end) {
			continue
		}
		total++
		if e.Status != attendance.StatusAbsent {
			attended++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(attended) / float64(total)
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func bucketStart(t time.Time, b Bucket) time.Time {
	switch b {
	case BucketWeek:
		d := dayStart(t)
		return d.AddDate(0, 0, -int(d.Weekday()))
	case BucketMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return dayStart(t)
	}
}

func bucketNext(start time.Time, b Bucket) time.Time {
	switch b {
	case BucketWeek:
		return start.AddDate(0, 0, 7)
	case BucketMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}
