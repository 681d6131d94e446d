package roster

import (
	"context"
	"errors"
	"time"
)

// Role distinguishes the two kinds of registered people.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleFaculty
}

// Person is a registered student or faculty member. The ID is assigned
// at creation and never changes; records are updated in place or
// removed, never duplicated.
type Person struct {
	ID           string     `json:"id"`
	Role         Role       `json:"role"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Department   string     `json:"department"`
	Cohort       string     `json:"cohort"`
	FaceEnrolled bool       `json:"face_enrolled"`
	EnrolledAt   *time.Time `json:"enrolled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

var ErrNotFound = errors.New("person not found")

// Store persists people and their face signatures.
type Store interface {
	Create(ctx context.Context, p Person) (Person, error)
	Get(ctx context.Context, id string) (*Person, error)
	List(ctx context.Context) ([]Person, error)
	Update(ctx context.Context, p Person) error
	Delete(ctx context.Context, id string) error
	SetFaceEnrolled(ctx context.Context, id string, enrolled bool) error

	SaveSignature(ctx context.Context, personID string, sig []float32) error
	Signatures(ctx context.Context) (map[string][]float32, error)
}
