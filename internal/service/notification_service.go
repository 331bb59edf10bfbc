package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gitjobs/notifier/internal/domain"
	"github.com/gitjobs/notifier/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// LeaseCounter reports how many queue leases are currently open.
// db.LeaseRegistry satisfies it.
type LeaseCounter interface {
	Len() int
}

// NotificationService is the entry point other parts of the site use to
// queue emails. Validation lives here; HTTP handlers depend on this service,
// never on the repository directly.
type NotificationService struct {
	repo       repository.NotificationRepository
	leases     LeaseCounter
	logger     *zap.Logger
	onEnqueued func(kind domain.Kind, count int)
}

// NewNotificationService wires the service. onEnqueued is optional (nil = no-op).
func NewNotificationService(
	repo repository.NotificationRepository,
	leases LeaseCounter,
	logger *zap.Logger,
	onEnqueued func(domain.Kind, int),
) *NotificationService {
	if onEnqueued == nil {
		onEnqueued = func(domain.Kind, int) {}
	}
	return &NotificationService{repo: repo, leases: leases, logger: logger, onEnqueued: onEnqueued}
}

// Enqueue validates the request and stores one pending record per recipient.
// An empty recipient list stores nothing and is not an error.
func (s *NotificationService) Enqueue(ctx context.Context, req domain.NewNotification) ([]*domain.Notification, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(req.Recipients) == 0 {
		return []*domain.Notification{}, nil
	}

	created, err := s.repo.Enqueue(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", req.Kind, err)
	}

	s.onEnqueued(req.Kind, len(created))
	s.logger.Info("notifications enqueued",
		zap.String("kind", string(req.Kind)),
		zap.Int("count", len(created)),
	)
	return created, nil
}

func (s *NotificationService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns one page of notifications, newest first, plus the total match count.
func (s *NotificationService) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Notification, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	return s.repo.List(ctx, filter)
}

// Stats reports the pending backlog and the number of open leases.
func (s *NotificationService) Stats(ctx context.Context) (*domain.Stats, error) {
	pending, err := s.repo.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}
	stats := &domain.Stats{Pending: pending}
	if s.leases != nil {
		stats.OpenLeases = s.leases.Len()
	}
	return stats, nil
}
