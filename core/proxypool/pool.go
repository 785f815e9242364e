package proxypool

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"check-orchestrator/core/models"
)

// ErrNoProxyAvailable is returned by Lease when no healthy, unleased entry
// exists. Callers with optional proxy use proceed without one; callers that
// require a proxy leave the job queued and try again later.
var ErrNoProxyAvailable = errors.New("no proxy available")

// Pool tracks proxy health and hands out exclusive leases. Entries are loaded
// once at startup and never removed; a failing entry cools down instead.
type Pool struct {
	mu      sync.Mutex
	entries []*models.ProxyEntry
	next    int // round-robin cursor

	failureThreshold int
	cooldownBase     time.Duration
	cooldownMax      time.Duration

	log zerolog.Logger
	now func() time.Time
}

// New creates a pool over the given entries
func New(entries []*models.ProxyEntry, failureThreshold int, cooldownBase, cooldownMax time.Duration, log zerolog.Logger) *Pool {
	return &Pool{
		entries:          entries,
		failureThreshold: failureThreshold,
		cooldownBase:     cooldownBase,
		cooldownMax:      cooldownMax,
		log:              log.With().Str("component", "proxypool").Logger(),
		now:              time.Now,
	}
}

// Size returns the number of entries in the pool
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Lease picks the next healthy, unleased entry round-robin and marks it
// leased. Entries whose cooldown has expired are healed during the scan.
func (p *Pool) Lease() (*models.ProxyEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.entries)
	if n == 0 {
		return nil, ErrNoProxyAvailable
	}

	now := p.now()
	for i := 0; i < n; i++ {
		e := p.entries[(p.next+i)%n]
		if e.State == models.ProxyCooling && !now.Before(e.CooldownUntil) {
			e.State = models.ProxyHealthy
			e.Failures = 0
		}
		if e.State != models.ProxyHealthy || e.Leased {
			continue
		}
		e.Leased = true
		p.next = (p.next + i + 1) % n
		return e, nil
	}
	return nil, ErrNoProxyAvailable
}

// Release returns a leased entry to the pool. ok reports whether the attempt
// that used the proxy got through to the target; a false release counts
// against the entry's health.
func (p *Pool) Release(e *models.ProxyEntry, ok bool) {
	if e == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e.Leased = false
	if ok {
		e.Failures = 0
		e.CooldownStreak = 0
		return
	}

	e.Failures++
	if e.Failures < p.failureThreshold {
		return
	}

	cooldown := p.cooldownBase << e.CooldownStreak
	if cooldown > p.cooldownMax || cooldown <= 0 {
		cooldown = p.cooldownMax
	}
	e.State = models.ProxyCooling
	e.CooldownUntil = p.now().Add(cooldown)
	e.CooldownStreak++
	e.Failures = 0
	p.log.Warn().
		Str("proxy", e.Server).
		Dur("cooldown", cooldown).
		Msg("proxy moved to cooling after consecutive failures")
}

// Snapshot returns the per-entry health summary
func (p *Pool) Snapshot() []models.ProxyStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.ProxyStatus, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, models.ProxyStatus{
			Server:   e.Server,
			State:    e.State,
			Failures: e.Failures,
			Leased:   e.Leased,
		})
	}
	return out
}
