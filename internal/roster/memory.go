package roster

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory Store used in tests and by the dev profile.
type Memory struct {
	mu         sync.RWMutex
	people     map[string]Person
	signatures map[string][]float32
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		people:     make(map[string]Person),
		signatures: make(map[string][]float32),
	}
}

func (m *Memory) Create(_ context.Context, p Person) (Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.people[p.ID] = p
	return p, nil
}

func (m *Memory) Get(_ context.Context, id string) (*Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.people[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) List(_ context.Context) ([]Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	people := make([]Person, 0, len(m.people))
	for _, p := range m.people {
		people = append(people, p)
	}
	sort.Slice(people, func(i, j int) bool {
		if people[i].Name != people[j].Name {
			return people[i].Name < people[j].Name
		}
		return people[i].ID < people[j].ID
	})
	return people, nil
}

func (m *Memory) Update(_ context.Context, p Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.people[p.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Role = p.Role
	cur.Name = p.Name
	cur.Email = p.Email
	cur.Department = p.Department
	cur.Cohort = p.Cohort
	m.people[p.ID] = cur
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.people[id]; !ok {
		return ErrNotFound
	}
	delete(m.people, id)
	return nil
}

func (m *Memory) SetFaceEnrolled(_ context.Context, id string, enrolled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.people[id]
	if !ok {
		return ErrNotFound
	}
	p.FaceEnrolled = enrolled
	if enrolled {
		now := time.Now().UTC()
		p.EnrolledAt = &now
	} else {
		p.EnrolledAt = nil
	}
	m.people[id] = p
	return nil
}

func (m *Memory) SaveSignature(_ context.Context, personID string, sig []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]float32, len(sig))
	copy(cp, sig)
	m.signatures[personID] = cp
	return nil
}

func (m *Memory) Signatures(_ context.Context) (map[string][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]float32, len(m.signatures))
	for id, sig := range m.signatures {
		cp := make([]float32, len(sig))
		copy(cp, sig)
		out[id] = cp
	}
	return out, nil
}
