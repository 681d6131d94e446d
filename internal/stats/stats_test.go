package stats

import (
	"math"
	"testing"
	"time"

	"presence/internal/attendance"
	"presence/internal/roster"
)

var day = time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC) // a Monday

func person(id, dept string) roster.Person {
	return roster.Person{ID: id, Role: roster.RoleStudent, Name: id, Department: dept}
}

func entry(personID string, at time.Time, status attendance.Status) attendance.Entry {
	return attendance.Entry{ID: personID + at.String(), PersonID: personID, OccurredAt: at, Status: status, Confidence: 0.9}
}

func TestDailySummary(t *testing.T) {
	people := []roster.Person{person("a", "cs"), person("b", "cs"), person("c", "math")}

	tests := []struct {
		name    string
		people  []roster.Person
		entries []attendance.Entry
		want    Summary
	}{
		{
			name:   "no entries means everyone absent",
			people: people,
			want:   Summary{Start: day, Absent: 3, TotalPeople: 3, Rate: 0},
		},
		{
			name:    "mixed statuses",
			people:  people,
			entries: []attendance.Entry{
				entry("a", day.Add(9*time.Hour+2*time.Minute), attendance.StatusPresent),
				entry("b", day.Add(9*time.Hour+20*time.Minute), attendance.StatusLate),
			},
			want: Summary{Start: day, Present: 1, Late: 1, Absent: 1, TotalPeople: 3, Rate: 2.0 / 3.0},
		},
		{
			name:   "last recorded entry wins for duplicates",
			people: people,
			entries: []attendance.Entry{
				entry("a", day.Add(9*time.Hour), attendance.StatusPresent),
				entry("a", day.Add(14*time.Hour), attendance.StatusAbsent),
				entry("b", day.Add(10*time.Hour), attendance.StatusLate),
				entry("b", day.Add(9*time.Hour), attendance.StatusPresent),
			},
			want: Summary{Start: day, Present: 0, Late: 1, Absent: 2, TotalPeople: 3, Rate: 1.0 / 3.0},
		},
		{
			name:   "timestamp tie broken by stored order",
			people: people,
			entries: []attendance.Entry{
				entry("a", day.Add(9*time.Hour), attendance.StatusLate),
				entry("a", day.Add(9*time.Hour), attendance.StatusPresent),
			},
			want: Summary{Start: day, Present: 1, Late: 0, Absent: 2, TotalPeople: 3, Rate: 1.0 / 3.0},
		},
		{
			name:   "entries outside the day are ignored",
			people: people,
			entries: []attendance.Entry{
				entry("a", day.Add(-time.Hour), attendance.StatusPresent),
				entry("b", day.AddDate(0, 0, 1), attendance.StatusPresent),
			},
			want: Summary{Start: day, Absent: 3, TotalPeople: 3, Rate: 0},
		},
		{
			name:   "dangling person references are ignored",
			people: people,
			entries: []attendance.Entry{
				entry("ghost", day.Add(9*time.Hour), attendance.StatusPresent),
			},
			want: Summary{Start: day, Absent: 3, TotalPeople: 3, Rate: 0},
		},
		{
			name: "zero people yields rate 0 not NaN",
			entries: []attendance.Entry{
				entry("a", day.Add(9*time.Hour), attendance.StatusPresent),
			},
			want: Summary{Start: day, Rate: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DailySummary(tt.people, tt.entries, day.Add(13*time.Hour))
			if got != tt.want {
				t.Errorf("DailySummary() = %+v, want %+v", got, tt.want)
			}
			if math.IsNaN(got.Rate) {
				t.Error("rate must never be NaN")
			}
		})
	}
}

func TestRangeSummaryDayBuckets(t *testing.T) {
	people := []roster.Person{person("a", "cs")}
	entries := []attendance.Entry{
		entry("a", day.AddDate(0, 0, 2).Add(9*time.Hour), attendance.StatusLate),
		entry("a", day.Add(9*time.Hour), attendance.StatusPresent),
	}

	got := RangeSummary(people, entries, day, day.AddDate(0, 0, 3), BucketDay)
	if len(got) != 3 {
		t.Fatalf("bucket count = %d, want 3", len(got))
	}
	if got[0].Present != 1 || got[1].Absent != 1 || got[2].Late != 1 {
		t.Errorf("per-day statuses wrong: %+v", got)
	}
}

func TestRangeSummaryWeekBucketsChronological(t *testing.T) {
	people := []roster.Person{person("a", "cs")}
	// Entries deliberately out of chronological order.
	entries := []attendance.Entry{
		entry("a", day.AddDate(0, 0, 14), attendance.StatusPresent),
		entry("a", day, attendance.StatusPresent),
		entry("a", day.AddDate(0, 0, 7), attendance.StatusLate),
	}

	got := RangeSummary(people, entries, day, day.AddDate(0, 0, 15), BucketWeek)
	if len(got) != 3 {
		t.Fatalf("bucket count = %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Start.Before(got[i-1].Start) {
			t.Fatalf("buckets out of order: %v before %v", got[i].Start, got[i-1].Start)
		}
	}
	// day is a Monday, so each bucket starts the Sunday before.
	wantStart := day.AddDate(0, 0, -1)
	if !got[0].Start.Equal(wantStart) {
		t.Errorf("week start = %v, want Sunday %v", got[0].Start, wantStart)
	}
	if got[0].Present != 1 || got[1].Late != 1 || got[2].Present != 1 {
		t.Errorf("per-week statuses wrong: %+v", got)
	}
}

func TestRangeSummaryMonthBuckets(t *testing.T) {
	people := []roster.Person{person("a", "cs")}
	entries := []attendance.Entry{
		entry("a", time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC), attendance.StatusPresent),
		entry("a", time.Date(2026, 4, 20, 9, 0, 0, 0, time.UTC), attendance.StatusLate),
	}

	got := RangeSummary(people, entries, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), BucketMonth)
	if len(got) != 2 {
		t.Fatalf("bucket count = %d, want 2", len(got))
	}
	if !got[0].Start.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("month bucket start = %v", got[0].Start)
	}
	if got[0].Present != 1 || got[1].Late != 1 {
		t.Errorf("per-month statuses wrong: %+v", got)
	}
}

func TestRangeSummaryDegenerateInput(t *testing.T) {
	if got := RangeSummary(nil, nil, day, day.AddDate(0, 0, -1), BucketDay); got != nil {
		t.Errorf("inverted range should yield nil, got %v", got)
	}
	if got := RangeSummary(nil, nil, day, day.AddDate(0, 0, 1), Bucket("fortnight")); got != nil {
		t.Errorf("unknown bucket should yield nil, got %v", got)
	}
}

func TestPersonStatistics(t *testing.T) {
	p := person("a", "cs")
	now := day.Add(12 * time.Hour)

	t.Run("zero entries", func(t *testing.T) {
		st := PersonStatistics(p, nil, now)
		if st.AttendancePercentage != 0 {
			t.Errorf("percentage = %v, want 0", st.AttendancePercentage)
		}
		if st.LastAttended != nil {
			t.Errorf("lastAttended = %v, want nil", st.LastAttended)
		}
		if st.ConsecutiveAbsences != 0 {
			t.Errorf("consecutiveAbsences = %d, want 0", st.ConsecutiveAbsences)
		}
		if st.Trend != TrendStable {
			t.Errorf("trend = %s, want stable", st.Trend)
		}
	})

	t.Run("counts occasions not days", func(t *testing.T) {
		entries := []attendance.Entry{
			entry("a", day.Add(9*time.Hour), attendance.StatusPresent),
			entry("a", day.Add(14*time.Hour), attendance.StatusLate),
			entry("a", day.AddDate(0, 0, -1), attendance.StatusAbsent),
			entry("b", day.Add(9*time.Hour), attendance.StatusPresent), // someone else
		}
		st := PersonStatistics(p, entries, now)
		if st.TotalObserved != 3 {
			t.Fatalf("totalObserved = %d, want 3", st.TotalObserved)
		}
		if st.Present != 1 || st.Late != 1 || st.Absent != 1 {
			t.Errorf("counts = %d/%d/%d", st.Present, st.Late, st.Absent)
		}
		want := 100 * 2.0 / 3.0
		if math.Abs(st.AttendancePercentage-want) > 1e-9 {
			t.Errorf("percentage = %v, want %v", st.AttendancePercentage, want)
		}
		if st.LastAttended == nil || !st.LastAttended.Equal(day.Add(14*time.Hour)) {
			t.Errorf("lastAttended = %v", st.LastAttended)
		}
	})

	t.Run("trailing absences most-recent-first", func(t *testing.T) {
		entries := []attendance.Entry{
			entry("a", day.AddDate(0, 0, -2), attendance.StatusPresent),
			entry("a", day.AddDate(0, 0, -1), attendance.StatusAbsent),
			entry("a", day, attendance.StatusAbsent),
		}
		st := PersonStatistics(p, entries, now)
		if st.ConsecutiveAbsences != 2 {
			t.Errorf("consecutiveAbsences = %d, want 2", st.ConsecutiveAbsences)
		}
	})

	t.Run("recent non-absent entry resets the run", func(t *testing.T) {
		entries := []attendance.Entry{
			entry("a", day.AddDate(0, 0, -1), attendance.StatusAbsent),
			entry("a", day, attendance.StatusPresent),
		}
		st := PersonStatistics(p, entries, now)
		if st.ConsecutiveAbsences != 0 {
			t.Errorf("consecutiveAbsences = %d, want 0", st.ConsecutiveAbsences)
		}
	})

	t.Run("percentage stays within bounds", func(t *testing.T) {
		entries := []attendance.Entry{
			entry("a", day, attendance.StatusPresent),
			entry("a", day.Add(time.Hour), attendance.StatusPresent),
		}
		st := PersonStatistics(p, entries, now)
		if st.AttendancePercentage < 0 || st.AttendancePercentage > 100 {
			t.Errorf("percentage out of range: %v", st.AttendancePercentage)
		}
	})
}

func TestTrendClassification(t *testing.T) {
	p := person("a", "cs")
	now := day.Add(12 * time.Hour)
	recent := now.AddDate(0, 0, -3) // inside (now-7d, now]
	prior := now.AddDate(0, 0, -10) // inside (now-14d, now-7d]

	tests := []struct {
		name    string
		entries []attendance.Entry
		want    Trend
	}{
		{
			name: "recent rate more than 10 points above prior",
			entries: []attendance.Entry{
				entry("a", prior, attendance.StatusAbsent),
				entry("a", prior.Add(time.Hour), attendance.StatusPresent),
				entry("a", recent, attendance.StatusPresent),
			},
			want: TrendImproving,
		},
		{
			name: "recent rate more than 10 points below prior",
			entries: []attendance.Entry{
				entry("a", prior, attendance.StatusPresent),
				entry("a", recent, attendance.StatusAbsent),
			},
			want: TrendDeclining,
		},
		{
			name: "equal rates are stable",
			entries: []attendance.Entry{
				entry("a", prior, attendance.StatusPresent),
				entry("a", recent, attendance.StatusPresent),
			},
			want: TrendStable,
		},
		{
			name: "exactly 10 points apart is stable",
			entries: []attendance.Entry{
				// prior: 2 of 4 non-absent = 50%
				entry("a", prior, attendance.StatusPresent),
				entry("a", prior.Add(time.Hour), attendance.StatusLate),
				entry("a", prior.Add(2*time.Hour), attendance.StatusAbsent),
				entry("a", prior.Add(3*time.Hour), attendance.StatusAbsent),
				// recent: 3 of 5 non-absent = 60%
				entry("a", recent, attendance.StatusPresent),
				entry("a", recent.Add(time.Hour), attendance.StatusPresent),
				entry("a", recent.Add(2*time.Hour), attendance.StatusLate),
				entry("a", recent.Add(3*time.Hour), attendance.StatusAbsent),
				entry("a", recent.Add(4*time.Hour), attendance.StatusAbsent),
			},
			want: TrendStable,
		},
		{
			name: "empty prior window counts as 0 percent",
			entries: []attendance.Entry{
				entry("a", recent, attendance.StatusPresent),
			},
			want: TrendImproving,
		},
		{
			name: "empty recent window counts as 0 percent",
			entries: []attendance.Entry{
				entry("a", prior, attendance.StatusPresent),
			},
			want: TrendDeclining,
		},
		{
			name: "entries older than 14 days are outside both windows",
			entries: []attendance.Entry{
				entry("a", now.AddDate(0, 0, -20), attendance.StatusPresent),
			},
			want: TrendStable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := PersonStatistics(p, tt.entries, now)
			if st.Trend != tt.want {
				t.Errorf("trend = %s, want %s", st.Trend, tt.want)
			}
		})
	}
}

func TestDepartmentBreakdown(t *testing.T) {
	people := []roster.Person{
		person("a", "cs"), person("b", "cs"),
		person("c", "math"),
	}
	w := Window{Start: day, End: day.AddDate(0, 0, 5), ExpectedOccasions: 5}
	entries := []attendance.Entry{
		entry("a", day.Add(9*time.Hour), attendance.StatusPresent),
		entry("b", day.Add(9*time.Hour), attendance.StatusLate),
		entry("c", day.Add(9*time.Hour), attendance.StatusPresent),
		entry("c", day.AddDate(0, 0, 1), attendance.StatusPresent),
		entry("c", day.AddDate(0, 0, 2), attendance.StatusAbsent),       // not qualifying
		entry("c", day.AddDate(0, 0, 6), attendance.StatusPresent),      // outside window
		entry("ghost", day.Add(9*time.Hour), attendance.StatusPresent), // dangling
	}

	got := DepartmentBreakdown(people, entries, w)
	if len(got) != 2 {
		t.Fatalf("departments = %d, want 2", len(got))
	}
	// math: 2 entries / (1 person * 5 occasions) = 40%; cs: 2/(2*5) = 20%.
	if got[0].Department != "math" || math.Abs(got[0].Rate-40) > 1e-9 {
		t.Errorf("top department = %+v, want math at 40%%", got[0])
	}
	if got[1].Department != "cs" || math.Abs(got[1].Rate-20) > 1e-9 {
		t.Errorf("second department = %+v, want cs at 20%%", got[1])
	}

	t.Run("zero expected occasions yields zero rates", func(t *testing.T) {
		got := DepartmentBreakdown(people, entries, Window{Start: day, End: day.AddDate(0, 0, 5)})
		for _, d := range got {
			if d.Rate != 0 {
				t.Errorf("rate = %v, want 0 for %s", d.Rate, d.Department)
			}
		}
	})
}

func TestAggregationDoesNotMutateInputs(t *testing.T) {
	people := []roster.Person{person("a", "cs")}
	entries := []attendance.Entry{
		entry("a", day.Add(10*time.Hour), attendance.StatusAbsent),
		entry("a", day.Add(9*time.Hour), attendance.StatusPresent),
	}
	snapshot := make([]attendance.Entry, len(entries))
	copy(snapshot, entries)

	DailySummary(people, entries, day)
	PersonStatistics(people[0], entries, day.Add(12*time.Hour))
	RangeSummary(people, entries, day, day.AddDate(0, 0, 2), BucketDay)
	DepartmentBreakdown(people, entries, Window{Start: day, End: day.AddDate(0, 0, 1), ExpectedOccasions: 1})

	for i := range entries {
		if entries[i] != snapshot[i] {
			t.Fatalf("entry %d mutated: %+v", i, entries[i])
		}
	}
}
