package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gitjobs/notifier/internal/config"
	"github.com/gitjobs/notifier/internal/domain"
	"github.com/gitjobs/notifier/internal/mailer"
	"github.com/gitjobs/notifier/internal/ratelimiter"
	"github.com/gitjobs/notifier/internal/render"
	"github.com/gitjobs/notifier/internal/repository"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnDelivered func(kind domain.Kind, latency time.Duration)
	OnFailed    func(kind domain.Kind)
}

// Pool manages the lifecycle of all workers.
// Workers never coordinate with each other; row locks taken by DequeueOne
// keep them from picking the same notification.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates cfg.Workers identical workers.
func NewPool(
	cfg *config.Config,
	repo repository.NotificationRepository,
	renderer *render.Renderer,
	sender mailer.Sender,
	limiter *ratelimiter.Limiter,
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	total := cfg.Workers
	if total < 1 {
		total = 1
	}
	workers := make([]*Worker, total)

	for i := range workers {
		workers[i] = NewWorker(
			i, repo, renderer, sender, limiter,
			cfg.PauseOnNone, cfg.PauseOnError,
			logger.With(zap.Int("worker_id", i)),
			hooks.OnDelivered,
			hooks.OnFailed,
		)
	}

	return &Pool{workers: workers}
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// In-flight leases are committed or rolled back before their worker returns.
func (p *Pool) Wait() {
	p.wg.Wait()
}
