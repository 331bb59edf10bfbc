package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gitjobs/notifier/internal/domain"
)

// rollbackTimeout bounds the ROLLBACK issued for a reaped lease.
const rollbackTimeout = 5 * time.Second

// TxBeginner starts a transaction on a dedicated connection.
// *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type lease struct {
	openedAt time.Time

	// ctx is cancelled when the lease is closed or reaped, aborting any
	// statement still running on the connection.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // serialises use of tx
	tx     pgx.Tx
	closed bool
}

// LeaseRegistry owns every open transaction handed out to workers. A lease
// pins one pooled connection from Open until Close, or until Sweep reaps it
// for exceeding the maximum age.
//
// The id → lease map is only touched under mu, and removal from the map is
// the single point that decides who finalizes a lease: whoever deletes the
// entry (Close or Sweep) is the only one allowed to commit or roll back.
type LeaseRegistry struct {
	beginner TxBeginner
	maxAge   time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	leases map[uuid.UUID]*lease
}

func NewLeaseRegistry(beginner TxBeginner, maxAge time.Duration, logger *zap.Logger) *LeaseRegistry {
	return &LeaseRegistry{
		beginner: beginner,
		maxAge:   maxAge,
		logger:   logger,
		now:      time.Now,
		leases:   make(map[uuid.UUID]*lease),
	}
}

// Open begins a transaction and returns the opaque lease id.
func (r *LeaseRegistry) Open(ctx context.Context) (uuid.UUID, error) {
	tx, err := r.beginner.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin transaction: %w", err)
	}

	lctx, cancel := context.WithCancel(context.Background())
	id := uuid.New()

	r.mu.Lock()
	r.leases[id] = &lease{openedAt: r.now(), ctx: lctx, cancel: cancel, tx: tx}
	r.mu.Unlock()

	return id, nil
}

// Use runs fn with the lease's transaction. The context passed to fn is
// cancelled if the lease is reaped while fn is running.
func (r *LeaseRegistry) Use(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, tx pgx.Tx) error) error {
	r.mu.Lock()
	l, ok := r.leases[id]
	r.mu.Unlock()
	if !ok {
		return domain.ErrLeaseNotFound
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return domain.ErrLeaseNotFound
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(l.ctx, cancel)
	defer stop()

	return fn(ctx, l.tx)
}

// Close commits or rolls back the lease and releases its connection.
// It returns domain.ErrLeaseNotFound when the lease was already closed or
// reaped.
func (r *LeaseRegistry) Close(ctx context.Context, id uuid.UUID, commit bool) error {
	r.mu.Lock()
	l, ok := r.leases[id]
	delete(r.leases, id)
	r.mu.Unlock()
	if !ok {
		return domain.ErrLeaseNotFound
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.cancel()
	l.closed = true

	if commit {
		if err := l.tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	}
	if err := l.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// Sweep rolls back every lease that has been open for at least the maximum
// age and returns how many were reaped.
func (r *LeaseRegistry) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.maxAge)
	return r.reap(ctx, func(l *lease) bool { return !l.openedAt.After(cutoff) })
}

// CloseAll rolls back every remaining lease. Called once the workers have
// stopped, before the connection pool is closed.
func (r *LeaseRegistry) CloseAll(ctx context.Context) int {
	return r.reap(ctx, func(*lease) bool { return true })
}

// Len returns the number of open leases.
func (r *LeaseRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leases)
}

func (r *LeaseRegistry) reap(ctx context.Context, match func(*lease) bool) int {
	expired := make(map[uuid.UUID]*lease)

	r.mu.Lock()
	for id, l := range r.leases {
		if match(l) {
			expired[id] = l
			delete(r.leases, id)
		}
	}
	r.mu.Unlock()

	for id, l := range expired {
		l.cancel()

		l.mu.Lock()
		l.closed = true
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		if err := l.tx.Rollback(rbCtx); err != nil {
			r.logger.Warn("rollback of reaped lease failed", zap.String("lease_id", id.String()), zap.Error(err))
		}
		cancel()
		l.mu.Unlock()

		r.logger.Warn("lease reaped",
			zap.String("lease_id", id.String()),
			zap.Duration("age", r.now().Sub(l.openedAt)),
		)
	}

	return len(expired)
}
