package models

import "time"

// ProxyState represents the health state of a proxy entry
type ProxyState string

const (
	ProxyHealthy  ProxyState = "healthy"
	ProxyCooling  ProxyState = "cooling"
	ProxyDisabled ProxyState = "disabled"
)

// ProxyEntry is a reusable egress path. Entries are loaded once at startup
// and live for the whole process; all mutable fields are owned by the pool
// and only touched inside its critical section.
type ProxyEntry struct {
	Server   string // scheme://host:port
	Username string
	Password string

	State          ProxyState
	Failures       int // consecutive failures since last success
	CooldownUntil  time.Time
	CooldownStreak int // consecutive cooldowns, drives the backoff doubling
	Leased         bool
}

// ProxyStatus is the read-only health summary exposed through metrics
type ProxyStatus struct {
	Server   string     `json:"server"`
	State    ProxyState `json:"state"`
	Failures int        `json:"failures"`
	Leased   bool       `json:"leased"`
}
