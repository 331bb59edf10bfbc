package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gitjobs/notifier/internal/domain"
	"github.com/gitjobs/notifier/internal/mailer"
	"github.com/gitjobs/notifier/internal/ratelimiter"
	"github.com/gitjobs/notifier/internal/render"
	"github.com/gitjobs/notifier/internal/repository"
)

// Worker is a single goroutine that repeatedly leases the oldest pending
// notification, renders it, delivers it over SMTP and records the outcome
// in the same transaction that holds the row lock.
type Worker struct {
	id           int
	repo         repository.NotificationRepository
	renderer     *render.Renderer
	sender       mailer.Sender
	limiter      *ratelimiter.Limiter
	pauseOnNone  time.Duration
	pauseOnError time.Duration
	logger       *zap.Logger

	// Hooks for metrics, injected by the pool so the worker stays metrics-agnostic.
	onDelivered func(kind domain.Kind, latency time.Duration)
	onFailed    func(kind domain.Kind)
}

// NewWorker constructs a worker. onDelivered and onFailed are optional (nil = no-op).
func NewWorker(
	id int,
	repo repository.NotificationRepository,
	renderer *render.Renderer,
	sender mailer.Sender,
	limiter *ratelimiter.Limiter,
	pauseOnNone, pauseOnError time.Duration,
	logger *zap.Logger,
	onDelivered func(domain.Kind, time.Duration),
	onFailed func(domain.Kind),
) *Worker {
	if onDelivered == nil {
		onDelivered = func(domain.Kind, time.Duration) {}
	}
	if onFailed == nil {
		onFailed = func(domain.Kind) {}
	}
	return &Worker{
		id: id, repo: repo, renderer: renderer, sender: sender, limiter: limiter,
		pauseOnNone: pauseOnNone, pauseOnError: pauseOnError, logger: logger,
		onDelivered: onDelivered, onFailed: onFailed,
	}
}

// Run blocks until ctx is cancelled. Cancellation is observed while waiting
// for a send token and while pausing; a lease already in progress always runs
// to commit or rollback.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	defer w.logger.Info("worker stopping", zap.Int("id", w.id))

	for {
		// Take the send token before opening a lease so throttling never
		// holds a row lock or a pooled connection.
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}

		processed, err := w.ProcessOne(context.WithoutCancel(ctx))
		if processed && err == nil {
			continue
		}

		pause := w.pauseOnNone
		if err != nil {
			w.logger.Error("notification cycle failed", zap.Error(err))
			pause = w.pauseOnError
		}
		if !sleep(ctx, pause) {
			return
		}
	}
}

// ProcessOne runs a single lease cycle. It reports whether a record was
// processed. Render and send failures are recorded on the row and committed;
// only queue-level failures are returned.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	lease, err := w.repo.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin lease: %w", err)
	}

	n, err := w.repo.DequeueOne(ctx, lease)
	if err != nil {
		w.rollback(ctx, lease)
		return false, fmt.Errorf("dequeue: %w", err)
	}
	if n == nil {
		if err := w.repo.Rollback(ctx, lease); err != nil {
			return false, fmt.Errorf("release empty lease: %w", err)
		}
		return false, nil
	}

	log := w.logger.With(
		zap.String("notification_id", n.ID.String()),
		zap.String("kind", string(n.Kind)),
	)

	start := time.Now()
	errMsg := w.deliver(ctx, n)
	elapsed := time.Since(start)

	if err := w.repo.MarkProcessed(ctx, lease, n.ID, errMsg); err != nil {
		w.rollback(ctx, lease)
		return false, fmt.Errorf("mark %s processed: %w", n.ID, err)
	}
	if err := w.repo.Commit(ctx, lease); err != nil {
		return false, fmt.Errorf("commit %s: %w", n.ID, err)
	}

	if errMsg != nil {
		w.onFailed(n.Kind)
		log.Warn("notification processed with error", zap.String("error", *errMsg))
		return true, nil
	}
	w.onDelivered(n.Kind, elapsed)
	log.Info("notification delivered", zap.Duration("latency", elapsed))
	return true, nil
}

// deliver renders and sends n. It returns the failure text to record, or nil
// when the relay accepted the email.
func (w *Worker) deliver(ctx context.Context, n *domain.Notification) *string {
	msg, err := w.renderer.Render(n)
	if err != nil {
		return errorText(err)
	}

	if err := w.sender.Send(ctx, n.Email, msg.Subject, msg.Body); err != nil {
		return errorText(err)
	}
	return nil
}

func (w *Worker) rollback(ctx context.Context, lease uuid.UUID) {
	if err := w.repo.Rollback(ctx, lease); err != nil {
		w.logger.Warn("rollback failed", zap.String("lease", lease.String()), zap.Error(err))
	}
}

func errorText(err error) *string {
	s := err.Error()
	return &s
}

// sleep pauses for d and reports false if ctx was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
