// Package store persists sessions and their message logs.
//
// A Backend (remote HTTP API or local database) provides durable storage;
// the Registry is the volatile fallback used while the backend is
// unreachable. Client ties the two together so callers never see a
// connectivity error, only a best-effort result.
package store

import (
	"context"
	"errors"

	"ecochat/internal/models"
)

// ErrNotFound reports a session id unknown to the queried store.
var ErrNotFound = errors.New("session not found")

// ErrUnsupported reports an operation the backing store cannot perform.
var ErrUnsupported = errors.New("operation not supported by this store")

// Store is the uniform session/message CRUD surface.
type Store interface {
	CreateSession(ctx context.Context, title string) (*models.Session, error)
	GetAllSessions(ctx context.Context) ([]*models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSessionTitle(ctx context.Context, id, title string) error
	DeleteSession(ctx context.Context, id string) error
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessages(ctx context.Context, id string) ([]*models.Message, error)
}

// Backend is a durable store whose reachability can change at any time.
type Backend interface {
	Store

	// Available performs a bounded-time probe. Verdicts are never
	// cached; callers re-probe per significant operation so a backend
	// that recovers or fails mid-session is noticed.
	Available(ctx context.Context) bool
}
