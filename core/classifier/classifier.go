package classifier

import (
	"time"

	"check-orchestrator/core/driver"
	"check-orchestrator/core/models"
)

// Decision is the classifier's verdict on one finished attempt: either
// retry (the job re-enters the queue) or a terminal result.
type Decision struct {
	Retry  bool
	Result models.CheckResult
}

// Classifier maps raw driver outcomes plus retry policy onto the canonical
// result taxonomy. It owns all retry policy; the driver never retries.
type Classifier struct {
	maxRetries int
}

// New creates a classifier with the given retry cap. A job is retried only
// while its attempt count is below the cap, so no terminal job ever records
// more than maxRetries attempts.
func New(maxRetries int) *Classifier {
	return &Classifier{maxRetries: maxRetries}
}

// Classify turns one attempt's raw outcome into a decision. timedOut is set
// by the scheduler when the driver did not return before the attempt
// deadline; the raw outcome is ignored in that case.
func (c *Classifier) Classify(job *models.CheckJob, out driver.RawOutcome, timedOut bool) Decision {
	if timedOut {
		if job.Attempts < c.maxRetries {
			return Decision{Retry: true}
		}
		return Decision{Result: c.result(job, models.OutcomeTimedOut, "attempt deadline exceeded")}
	}

	switch out.Kind {
	case driver.Success:
		return Decision{Result: c.result(job, models.OutcomeVerified, out.Reason)}
	case driver.Rejected:
		return Decision{Result: c.result(job, models.OutcomeRejected, out.Reason)}
	case driver.FatalError:
		return Decision{Result: c.result(job, models.OutcomeError, out.Reason)}
	default: // TransientError
		if job.Attempts < c.maxRetries {
			return Decision{Retry: true}
		}
		return Decision{Result: c.result(job, models.OutcomeError, out.Reason)}
	}
}

// Cancelled builds the terminal result for a cancelled job
func (c *Classifier) Cancelled(job *models.CheckJob) models.CheckResult {
	return c.result(job, models.OutcomeCancelled, "cancelled by caller")
}

func (c *Classifier) result(job *models.CheckJob, outcome models.Outcome, msg string) models.CheckResult {
	now := time.Now()
	return models.CheckResult{
		JobID:      job.ID,
		BatchID:    job.BatchID,
		Site:       job.Site,
		MaskedCard: job.Card.Masked(),
		Outcome:    outcome,
		Message:    msg,
		Attempts:   job.Attempts,
		Duration:   now.Sub(job.CreatedAt),
		FinishedAt: now,
	}
}
