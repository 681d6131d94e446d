// Package station tracks the registered check-in stations (kiosks,
// gates) that mark attendance, and their refresh tokens.
package station

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"
)

// Store persists stations and refresh tokens.
type Store interface {
	Register(ctx context.Context, stationID string) error
	SaveRefreshToken(ctx context.Context, stationID, token string, expiresAt time.Time) error
	RevokeRefreshToken(ctx context.Context, token string) error
}

// Repository persists stations in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Register ensures a station record exists.
func (r *Repository) Register(ctx context.Context, stationID string) error {
	if stationID == "" {
		return errors.New("station id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stations (station_id)
		VALUES ($1)
		ON CONFLICT (station_id) DO NOTHING
	`, stationID)
	return err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, stationID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, station_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, stationID, expiresAt)
	return err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

// Memory is an in-memory Store for tests.
type Memory struct {
	mu       sync.Mutex
	stations map[string]bool
	tokens   map[string]string
	revoked  map[string]bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		stations: make(map[string]bool),
		tokens:   make(map[string]string),
		revoked:  make(map[string]bool),
	}
}

func (m *Memory) Register(_ context.Context, stationID string) error {
	if stationID == "" {
		return errors.New("station id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stations[stationID] = true
	return nil
}

func (m *Memory) SaveRefreshToken(_ context.Context, stationID, token string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = stationID
	return nil
}

func (m *Memory) RevokeRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[token] = true
	return nil
}
