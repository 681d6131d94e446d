package attendance

import (
	"context"
	"time"
)

// Status classifies one observation. Absence of an entry for a day is
// the Absent state; explicit Absent entries exist only when a human
// override materializes one.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusLate || s == StatusAbsent
}

// ManualConfidence is the sentinel confidence recorded when an entry
// was produced by manual override rather than automated detection.
const ManualConfidence = 1.0

// Entry is one recorded observation of a person's presence on one
// occasion. The status is fixed at creation by the schedule policy and
// is never recomputed from the timestamp afterwards; only the
// confidence may be reconciled by the recognition worker.
type Entry struct {
	ID         string    `json:"id"`
	PersonID   string    `json:"person_id"`
	StationID  string    `json:"station_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Status     Status    `json:"status"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListFilter narrows entry listings. Zero values mean "no filter".
type ListFilter struct {
	PersonID  string
	StationID string
	Limit     int
	Offset    int
}

// Store persists attendance entries.
type Store interface {
	Insert(ctx context.Context, e Entry) (Entry, error)
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, f ListFilter) ([]Entry, error)
	// ListRange returns entries with occurred_at in [start, end),
	// oldest first, with insertion order breaking timestamp ties.
	ListRange(ctx context.Context, start, end time.Time) ([]Entry, error)
	// ListPerson returns the person's full history, oldest first.
	ListPerson(ctx context.Context, personID string) ([]Entry, error)
	// Recent returns the person's newest entry within the window
	// ending at now, or nil when there is none.
	Recent(ctx context.Context, personID string, window time.Duration) (*Entry, error)
	UpdateConfidence(ctx context.Context, id string, confidence float64) error
}
