package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists attendance entries in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const entryColumns = `id, person_id, station_id, occurred_at, status, confidence, created_at`

func scanEntry(row interface{ Scan(...any) error }) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.PersonID, &e.StationID, &e.OccurredAt, &e.Status, &e.Confidence, &e.CreatedAt)
	return e, err
}

// Insert writes a new entry, assigning id and timestamps when missing.
func (r *Repository) Insert(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_entries (id, person_id, station_id, occurred_at, status, confidence)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, e.ID, e.PersonID, e.StationID, e.OccurredAt, string(e.Status), e.Confidence)
	if err := row.Scan(&e.CreatedAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Get returns a single entry by id, or nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM attendance_entries WHERE id = $1
	`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// List returns entries newest first with basic filters.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Entry, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	query := `SELECT ` + entryColumns + ` FROM attendance_entries`
	args := []any{}
	clauses := []string{}
	if f.PersonID != "" {
		args = append(args, f.PersonID)
		clauses = append(clauses, fmt.Sprintf("person_id = $%d", len(args)))
	}
	if f.StationID != "" {
		args = append(args, f.StationID)
		clauses = append(clauses, fmt.Sprintf("station_id = $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ListRange returns entries in [start, end), oldest first. created_at
// is the secondary sort so entries written later win timestamp ties
// downstream.
func (r *Repository) ListRange(ctx context.Context, start, end time.Time) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM attendance_entries
		WHERE occurred_at >= $1 AND occurred_at < $2
		ORDER BY occurred_at ASC, created_at ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ListPerson returns the person's full history, oldest first.
func (r *Repository) ListPerson(ctx context.Context, personID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM attendance_entries
		WHERE person_id = $1
		ORDER BY occurred_at ASC, created_at ASC
	`, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// Recent returns the person's newest entry within the window, or nil.
func (r *Repository) Recent(ctx context.Context, personID string, window time.Duration) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM attendance_entries
		WHERE person_id = $1 AND occurred_at >= NOW() - ($2 * interval '1 second')
		ORDER BY occurred_at DESC
		LIMIT 1
	`, personID, window.Seconds())
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// UpdateConfidence reconciles the recognition confidence after the
// worker has matched the probe. The status is never touched.
func (r *Repository) UpdateConfidence(ctx context.Context, id string, confidence float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendance_entries SET confidence = $2 WHERE id = $1
	`, id, confidence)
	return err
}

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
