package metrics

import (
	"math"
	"sync/atomic"
	"time"

	"check-orchestrator/core/models"
)

// ProxyReporter supplies the per-proxy health summary folded into snapshots
type ProxyReporter interface {
	Snapshot() []models.ProxyStatus
}

// Aggregator keeps additive counters over terminal results. Record is called
// from every worker completion, so all counters are atomics; no lock ever
// serializes unrelated job completions.
type Aggregator struct {
	start time.Time

	total     atomic.Int64
	verified  atomic.Int64
	rejected  atomic.Int64
	errors    atomic.Int64
	timeouts  atomic.Int64
	cancelled atomic.Int64

	durationSum   atomic.Int64 // nanoseconds
	durationCount atomic.Int64

	proxies ProxyReporter // may be nil
}

// New creates an aggregator. proxies may be nil when the service runs
// without a proxy pool.
func New(proxies ProxyReporter) *Aggregator {
	return &Aggregator{start: time.Now(), proxies: proxies}
}

// Record folds one terminal result into the counters
func (a *Aggregator) Record(res models.CheckResult) {
	a.total.Add(1)
	switch res.Outcome {
	case models.OutcomeVerified:
		a.verified.Add(1)
	case models.OutcomeRejected:
		a.rejected.Add(1)
	case models.OutcomeTimedOut:
		a.timeouts.Add(1)
	case models.OutcomeCancelled:
		a.cancelled.Add(1)
	default:
		a.errors.Add(1)
	}
	a.durationSum.Add(int64(res.Duration))
	a.durationCount.Add(1)
}

// Snapshot returns the current aggregate view
func (a *Aggregator) Snapshot() models.MetricsSnapshot {
	snap := models.MetricsSnapshot{
		TotalChecks:   a.total.Load(),
		Verified:      a.verified.Load(),
		Rejected:      a.rejected.Load(),
		Errors:        a.errors.Load(),
		Timeouts:      a.timeouts.Load(),
		Cancelled:     a.cancelled.Load(),
		UptimeSeconds: int64(time.Since(a.start).Seconds()),
	}
	if snap.TotalChecks > 0 {
		snap.SuccessRate = math.Round(float64(snap.Verified)/float64(snap.TotalChecks)*10000) / 100
	}
	if count := a.durationCount.Load(); count > 0 {
		snap.AverageDuration = time.Duration(a.durationSum.Load() / count)
	}
	if a.proxies != nil {
		snap.Proxies = a.proxies.Snapshot()
	}
	return snap
}
