package roster

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository persists people in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new person, assigning an id and creation time when missing.
func (r *Repository) Create(ctx context.Context, p Person) (Person, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO people (id, role, name, email, department, cohort, face_enrolled, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, p.ID, string(p.Role), p.Name, p.Email, p.Department, p.Cohort, p.FaceEnrolled, p.CreatedAt)
	if err != nil {
		return Person{}, err
	}
	return p, nil
}

// Get returns a single person by id, or nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*Person, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, role, name, email, department, cohort, face_enrolled, enrolled_at, created_at
		FROM people WHERE id = $1
	`, id)
	var p Person
	if err := row.Scan(&p.ID, &p.Role, &p.Name, &p.Email, &p.Department, &p.Cohort, &p.FaceEnrolled, &p.EnrolledAt, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// List returns all people ordered by name.
func (r *Repository) List(ctx context.Context) ([]Person, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, role, name, email, department, cohort, face_enrolled, enrolled_at, created_at
		FROM people
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var people []Person
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.Role, &p.Name, &p.Email, &p.Department, &p.Cohort, &p.FaceEnrolled, &p.EnrolledAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

// Update overwrites the mutable profile fields in place.
func (r *Repository) Update(ctx context.Context, p Person) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE people
		SET role = $2, name = $3, email = $4, department = $5, cohort = $6
		WHERE id = $1
	`, p.ID, string(p.Role), p.Name, p.Email, p.Department, p.Cohort)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a person. Attendance entries referencing the person
// are left in place; the schema carries no foreign key on purpose.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM people WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetFaceEnrolled flips the enrollment flag and stamps enrolled_at.
func (r *Repository) SetFaceEnrolled(ctx context.Context, id string, enrolled bool) error {
	var enrolledAt interface{}
	if enrolled {
		enrolledAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE people
		SET face_enrolled = $2, enrolled_at = $3
		WHERE id = $1
	`, id, enrolled, enrolledAt)
	return err
}

// SaveSignature upserts the gallery descriptor for a person. Signatures
// are stored as a JSON float array; re-enrollment overwrites.
func (r *Repository) SaveSignature(ctx context.Context, personID string, sig []float32) error {
	blob, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO face_signatures (person_id, descriptor, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (person_id) DO UPDATE SET
			descriptor = EXCLUDED.descriptor,
			updated_at = NOW()
	`, personID, blob)
	return err
}

// Signatures loads the whole gallery keyed by person id.
func (r *Repository) Signatures(ctx context.Context) (map[string][]float32, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT person_id, descriptor FROM face_signatures`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	gallery := make(map[string][]float32)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		var sig []float32
		if err := json.Unmarshal(blob, &sig); err != nil {
			return nil, err
		}
		gallery[id] = sig
	}
	return gallery, rows.Err()
}
