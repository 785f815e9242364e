package models

import "time"

// Outcome is the canonical classification every raw driver result reduces to
type Outcome string

const (
	OutcomeVerified  Outcome = "verified"
	OutcomeRejected  Outcome = "rejected"
	OutcomeError     Outcome = "error"
	OutcomeTimedOut  Outcome = "timeout"
	OutcomeCancelled Outcome = "cancelled"
)

// CheckResult is the immutable terminal outcome of a job
type CheckResult struct {
	JobID      string        `json:"job_id"`
	BatchID    string        `json:"batch_id,omitempty"`
	Site       string        `json:"website"`
	MaskedCard string        `json:"card"`
	Outcome    Outcome       `json:"result"`
	Message    string        `json:"message,omitempty"`
	Attempts   int           `json:"attempts"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"timestamp"`
}

// MetricsSnapshot is the aggregate view served by the metrics endpoint
type MetricsSnapshot struct {
	TotalChecks     int64         `json:"total_checks"`
	Verified        int64         `json:"verified"`
	Rejected        int64         `json:"rejected"`
	Errors          int64         `json:"errors"`
	Timeouts        int64         `json:"timeouts"`
	Cancelled       int64         `json:"cancelled"`
	SuccessRate     float64       `json:"success_rate"`
	AverageDuration time.Duration `json:"average_duration"`
	UptimeSeconds   int64         `json:"uptime_seconds"`
	Proxies         []ProxyStatus `json:"proxies,omitempty"`
}
