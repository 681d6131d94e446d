package attendance

import (
	"context"
	"errors"
	"time"
)

// Service coordinates attendance marking: status derivation at
// creation time, duplicate-scan suppression, and manual overrides.
type Service struct {
	store       Store
	schedule    Schedule
	dedupWindow time.Duration
}

// NewService creates a service backed by a store.
func NewService(store Store, schedule Schedule, dedupWindow time.Duration) *Service {
	if dedupWindow <= 0 {
		dedupWindow = 5 * time.Minute
	}
	return &Service{store: store, schedule: schedule, dedupWindow: dedupWindow}
}

// Mark records an automated observation. The status is derived from
// the schedule policy once, here, and is never recomputed later. A
// repeat scan inside the dedup window returns the existing entry
// instead of inserting a second one.
func (s *Service) Mark(ctx context.Context, personID, stationID string, at time.Time, confidence float64) (Entry, error) {
	if personID == "" {
		return Entry{}, errors.New("person id required")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	if recent, err := s.store.Recent(ctx, personID, s.dedupWindow); err != nil {
		return Entry{}, err
	} else if recent != nil {
		return *recent, nil
	}

	return s.store.Insert(ctx, Entry{
		PersonID:   personID,
		StationID:  stationID,
		OccurredAt: at,
		Status:     s.schedule.Classify(at),
		Confidence: confidence,
	})
}

// Override materializes a human correction as an explicit entry with
// the manual confidence sentinel. This is the only path that writes an
// explicit Absent entry.
func (s *Service) Override(ctx context.Context, personID string, at time.Time, status Status) (Entry, error) {
	if personID == "" {
		return Entry{}, errors.New("person id required")
	}
	if !status.Valid() {
		return Entry{}, errors.New("unknown status")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.store.Insert(ctx, Entry{
		PersonID:   personID,
		OccurredAt: at,
		Status:     status,
		Confidence: ManualConfidence,
	})
}
