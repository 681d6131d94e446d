package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory Store used in tests and by the dev profile.
// Insertion order is retained so timestamp ties resolve the same way
// the Postgres repository resolves them (created_at secondary order).
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// SetNow overrides the clock, for tests exercising the dedup window.
func (m *Memory) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Insert(_ context.Context, e Entry) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = m.now().UTC()
	}
	e.CreatedAt = m.now().UTC()
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *Memory) Get(_ context.Context, id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			e := m.entries[i]
			return &e, nil
		}
	}
	return nil, nil
}

func (m *Memory) List(_ context.Context, f ListFilter) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	var res []Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if f.PersonID != "" && e.PersonID != f.PersonID {
			continue
		}
		if f.StationID != "" && e.StationID != f.StationID {
			continue
		}
		res = append(res, e)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].OccurredAt.After(res[j].OccurredAt) })
	if f.Offset >= len(res) {
		return nil, nil
	}
	res = res[f.Offset:]
	if len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

func (m *Memory) ListRange(_ context.Context, start, end time.Time) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Entry
	for _, e := range m.entries {
		if e.OccurredAt.Before(start) || !e.OccurredAt.Before(end) {
			continue
		}
		res = append(res, e)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].OccurredAt.Before(res[j].OccurredAt) })
	return res, nil
}

func (m *Memory) ListPerson(_ context.Context, personID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Entry
	for _, e := range m.entries {
		if e.PersonID == personID {
			res = append(res, e)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].OccurredAt.Before(res[j].OccurredAt) })
	return res, nil
}

func (m *Memory) Recent(_ context.Context, personID string, window time.Duration) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := m.now().UTC().Add(-window)
	var best *Entry
	for i := range m.entries {
		e := m.entries[i]
		if e.PersonID != personID || e.OccurredAt.Before(cutoff) {
			continue
		}
		if best == nil || !e.OccurredAt.Before(best.OccurredAt) {
			cp := e
			best = &cp
		}
	}
	return best, nil
}

func (m *Memory) UpdateConfidence(_ context.Context, id string, confidence float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].Confidence = confidence
			return nil
		}
	}
	return nil
}
