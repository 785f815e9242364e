package models

import (
	"strings"
	"time"
)

// CheckJob represents one credential verification request and its execution state
type CheckJob struct {
	ID         string
	Site       string
	Card       Card
	UseProxy   bool
	NoWait     bool
	BatchID    string // empty for single submissions
	Status     JobStatus
	Attempts   int
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Category returns the rate-limit category the job is billed against
func (j *CheckJob) Category() Category {
	if j.BatchID != "" {
		return CategoryBulk
	}
	return CategorySingle
}

// Card is the credential payload under verification. It is sensitive:
// only the masked form may ever reach logs or the result archive.
type Card struct {
	Number   string
	ExpMonth string
	ExpYear  string
	CVV      string
}

// Masked returns the card number with all but the last four digits hidden
func (c Card) Masked() string {
	if len(c.Number) < 4 {
		return c.Number
	}
	return strings.Repeat("*", len(c.Number)-4) + c.Number[len(c.Number)-4:]
}

// JobStatus represents the current status of a job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusAssigned  JobStatus = "assigned"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusTimedOut  JobStatus = "timed_out"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is a final one
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusTimedOut, JobStatusCancelled:
		return true
	}
	return false
}

// Category is the rate-limit category of a submission
type Category string

const (
	CategorySingle Category = "single"
	CategoryBulk   Category = "bulk"
)
