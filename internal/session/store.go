// Package session stores ephemeral admin sessions.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zawrotmc/streamflow/internal/domain"
)

// ErrNotFound is returned by Get when the session does not exist.
var ErrNotFound = errors.New("session not found")

// Store persists admin sessions.
type Store interface {
	// Create registers a new authenticated session.
	Create(ctx context.Context) (*domain.AdminSession, error)
	// Get returns ErrNotFound when id is unknown.
	Get(ctx context.Context, id string) (*domain.AdminSession, error)
	// Delete never fails for unknown ids.
	Delete(ctx context.Context, id string) error
	Close() error
}

func newSession() *domain.AdminSession {
	return &domain.AdminSession{
		ID:              uuid.New().String(),
		IsAuthenticated: true,
		CreatedAt:       time.Now(),
	}
}
