package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gitjobs/notifier/internal/domain"
)

func TestWorkerHooks(t *testing.T) {
	m := New(prometheus.NewRegistry(), nil)
	onDelivered, onFailed := m.WorkerHooks()

	onDelivered(domain.KindEmailVerification, 120*time.Millisecond)
	onDelivered(domain.KindEmailVerification, 80*time.Millisecond)
	onFailed(domain.KindTeamInvitation)

	if got := testutil.ToFloat64(m.NotificationsSent.WithLabelValues("email-verification")); got != 2 {
		t.Errorf("delivered = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.NotificationsFailed.WithLabelValues("team-invitation")); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.DeliveryLatency); got != 1 {
		t.Errorf("latency series = %d, want 1", got)
	}
}

func TestEnqueueAndReapHooks(t *testing.T) {
	m := New(prometheus.NewRegistry(), nil)

	m.EnqueueHook()(domain.KindTeamInvitation, 3)
	m.ReapHook()(2)

	if got := testutil.ToFloat64(m.NotificationsEnqueued.WithLabelValues("team-invitation")); got != 3 {
		t.Errorf("enqueued = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.LeasesReaped); got != 2 {
		t.Errorf("reaped = %v, want 2", got)
	}
}

func TestOpenLeasesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	open := 4
	New(reg, func() float64 { return float64(open) })

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "notification_leases_open" {
			continue
		}
		if got := f.GetMetric()[0].GetGauge().GetValue(); got != 4 {
			t.Errorf("open leases = %v, want 4", got)
		}
		return
	}
	t.Fatal("notification_leases_open not registered")
}
