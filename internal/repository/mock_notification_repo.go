package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gitjobs/notifier/internal/domain"
)

// MockNotificationRepository is a hand-written, in-memory implementation of
// NotificationRepository used in unit tests. No mock-generation library needed.
//
// It reproduces the queue's locking rules: a dequeued row stays locked by its
// lease until commit or rollback, other leases skip it, and writes made under
// a lease only become visible on commit.
type MockNotificationRepository struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*domain.Notification
	order         []uuid.UUID
	emails        map[uuid.UUID]string
	leases        map[uuid.UUID]*mockLease
	lockedBy      map[uuid.UUID]uuid.UUID

	// Optional error overrides, set in tests to simulate failure paths.
	EnqueueErr error
	BeginErr   error
	DequeueErr error
	MarkErr    error
	CommitErr  error

	markCalls int
}

type mockLease struct {
	locked []uuid.UUID
	writes map[uuid.UUID]*string
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{
		notifications: make(map[uuid.UUID]*domain.Notification),
		emails:        make(map[uuid.UUID]string),
		leases:        make(map[uuid.UUID]*mockLease),
		lockedBy:      make(map[uuid.UUID]uuid.UUID),
	}
}

// AddUser registers a recipient so notifications may reference it.
func (m *MockNotificationRepository) AddUser(userID uuid.UUID, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails[userID] = email
}

func (m *MockNotificationRepository) Enqueue(_ context.Context, n *domain.NewNotification) ([]*domain.Notification, error) {
	if m.EnqueueErr != nil {
		return nil, m.EnqueueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, userID := range n.Recipients {
		if _, ok := m.emails[userID]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRecipient, userID)
		}
	}

	now := time.Now().UTC()
	created := make([]*domain.Notification, 0, len(n.Recipients))
	for _, userID := range n.Recipients {
		stored := &domain.Notification{
			ID:           uuid.Must(uuid.NewV7()),
			Kind:         n.Kind,
			UserID:       userID,
			TemplateData: n.TemplateData,
			CreatedAt:    now,
		}
		m.notifications[stored.ID] = stored
		m.order = append(m.order, stored.ID)

		clone := *stored
		created = append(created, &clone)
	}
	return created, nil
}

func (m *MockNotificationRepository) Begin(_ context.Context) (uuid.UUID, error) {
	if m.BeginErr != nil {
		return uuid.Nil, m.BeginErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.leases[id] = &mockLease{writes: make(map[uuid.UUID]*string)}
	return id, nil
}

func (m *MockNotificationRepository) DequeueOne(_ context.Context, lease uuid.UUID) (*domain.Notification, error) {
	if m.DequeueErr != nil {
		return nil, m.DequeueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leases[lease]
	if !ok {
		return nil, domain.ErrLeaseNotFound
	}

	for _, id := range m.order {
		n := m.notifications[id]
		if n.Processed {
			continue
		}
		if _, locked := m.lockedBy[id]; locked {
			continue
		}
		m.lockedBy[id] = lease
		l.locked = append(l.locked, id)

		clone := *n
		clone.Email = m.emails[n.UserID]
		return &clone, nil
	}
	return nil, nil
}

func (m *MockNotificationRepository) MarkProcessed(_ context.Context, lease uuid.UUID, id uuid.UUID, errMsg *string) error {
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leases[lease]
	if !ok {
		return domain.ErrLeaseNotFound
	}
	if _, ok := m.notifications[id]; !ok {
		return domain.ErrNotFound
	}

	var stored *string
	if errMsg != nil {
		msg := *errMsg
		stored = &msg
	}
	l.writes[id] = stored
	m.markCalls++
	return nil
}

func (m *MockNotificationRepository) Commit(_ context.Context, lease uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leases[lease]
	if !ok {
		return domain.ErrLeaseNotFound
	}
	if m.CommitErr != nil {
		m.release(lease, l)
		return m.CommitErr
	}

	now := time.Now().UTC()
	for id, errMsg := range l.writes {
		n := m.notifications[id]
		n.Processed = true
		n.Error = errMsg
		processedAt := now
		n.ProcessedAt = &processedAt
	}
	m.release(lease, l)
	return nil
}

func (m *MockNotificationRepository) Rollback(_ context.Context, lease uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leases[lease]
	if !ok {
		return domain.ErrLeaseNotFound
	}
	m.release(lease, l)
	return nil
}

func (m *MockNotificationRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *n
	clone.Email = m.emails[n.UserID]
	return &clone, nil
}

func (m *MockNotificationRepository) List(_ context.Context, f domain.ListFilter) ([]*domain.Notification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*domain.Notification
	for _, id := range m.order {
		n := m.notifications[id]
		if f.Kind != nil && n.Kind != *f.Kind {
			continue
		}
		if f.Processed != nil && n.Processed != *f.Processed {
			continue
		}
		if f.Failed != nil && (n.Error != nil) != *f.Failed {
			continue
		}
		clone := *n
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ID.String() > matched[j].ID.String()
	})

	total := len(matched)
	if f.Limit > 0 {
		start := (f.Page - 1) * f.Limit
		if start > total {
			start = total
		}
		end := start + f.Limit
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (m *MockNotificationRepository) CountPending(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending := 0
	for _, n := range m.notifications {
		if !n.Processed {
			pending++
		}
	}
	return pending, nil
}

// OpenLeases reports leases that were begun but neither committed nor
// rolled back.
func (m *MockNotificationRepository) OpenLeases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leases)
}

// MarkCalls reports how many MarkProcessed calls succeeded.
func (m *MockNotificationRepository) MarkCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markCalls
}

func (m *MockNotificationRepository) release(lease uuid.UUID, l *mockLease) {
	for _, id := range l.locked {
		delete(m.lockedBy, id)
	}
	delete(m.leases, lease)
}
