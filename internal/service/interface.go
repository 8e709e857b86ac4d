package service

import (
	"context"

	"github.com/zawrotmc/streamflow/internal/domain"
	"github.com/zawrotmc/streamflow/internal/ingest"
)

// StreamService drives the singleton stream and admin access to it.
type StreamService interface {
	// Ingest lifecycle.
	OnPrePublish(ctx context.Context, ev ingest.Event) ingest.Decision
	OnPostPublish(ctx context.Context, ev ingest.Event) error
	OnUnpublish(ctx context.Context, ev ingest.Event) error

	// Admin commands.
	Stop(ctx context.Context, ip string) error
	RegenerateKey(ctx context.Context, ip string) (string, error)

	// Viewers.
	RecordView(ctx context.Context) (domain.Stream, error)
	Playback(ctx context.Context, key, file string) (domain.Stream, error)
	GetStatus(ctx context.Context) domain.StatusView

	// Admin access.
	GetAdminView(ctx context.Context, sessionID string) (*domain.AdminView, error)
	Login(ctx context.Context, password string) (*domain.AdminSession, error)
	Logout(ctx context.Context, sessionID string) error
	CheckAuth(ctx context.Context, sessionID string) bool

	Snapshot() domain.Status
}

// Broadcaster fans stream changes out to subscribers.
type Broadcaster interface {
	Publish(status domain.Status, kind domain.EventKind)
	PublishLog(entry domain.ConnectionLog)
	// DropSession disconnects admin subscribers of an ended session.
	DropSession(sessionID string)
}
