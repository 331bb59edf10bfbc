package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper rolls back leases held longer than their maximum age and returns
// how many it reaped. db.LeaseRegistry satisfies it.
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// Reaper periodically sweeps stale leases so a stuck worker cannot keep a
// notification locked forever.
type Reaper struct {
	leases   Sweeper
	interval time.Duration
	logger   *zap.Logger
	onReaped func(count int)
}

func NewReaper(leases Sweeper, interval time.Duration, logger *zap.Logger, onReaped func(int)) *Reaper {
	if onReaped == nil {
		onReaped = func(int) {}
	}
	return &Reaper{leases: leases, interval: interval, logger: logger, onReaped: onReaped}
}

// Run ticks every interval and sweeps the lease registry.
// Stops cleanly when ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("lease reaper started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("lease reaper stopping")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	reaped := r.leases.Sweep(ctx)
	if reaped == 0 {
		return
	}
	r.onReaped(reaped)
	r.logger.Warn("reaped stale leases", zap.Int("count", reaped))
}
