package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/gitjobs/notifier/internal/domain"
)

// NotificationRepository defines all persistence operations for the
// notification queue. The pgx implementation is in pg_notification_repo.go.
// Tests use a hand-written mock (mock_notification_repo.go).
//
// Begin/DequeueOne/MarkProcessed/Commit/Rollback operate on a lease: an
// opaque id naming one open transaction. DequeueOne locks the returned row
// for the lifetime of the lease and skips rows locked by other leases.
type NotificationRepository interface {
	Enqueue(ctx context.Context, n *domain.NewNotification) ([]*domain.Notification, error)

	Begin(ctx context.Context) (uuid.UUID, error)
	DequeueOne(ctx context.Context, lease uuid.UUID) (*domain.Notification, error)
	MarkProcessed(ctx context.Context, lease uuid.UUID, id uuid.UUID, errMsg *string) error
	Commit(ctx context.Context, lease uuid.UUID) error
	Rollback(ctx context.Context, lease uuid.UUID) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Notification, int, error)
	CountPending(ctx context.Context) (int, error)
}
