package classifier

import (
	"testing"
	"time"

	"check-orchestrator/core/driver"
	"check-orchestrator/core/models"
)

func testJob(attempts int) *models.CheckJob {
	return &models.CheckJob{
		ID:        "job-1",
		Site:      "loft",
		Card:      models.Card{Number: "4242424242424242", ExpMonth: "12", ExpYear: "2030"},
		Attempts:  attempts,
		CreatedAt: time.Now().Add(-time.Second),
	}
}

func TestClassifyMapping(t *testing.T) {
	c := New(3)

	tests := []struct {
		name     string
		attempts int
		outcome  driver.RawOutcome
		timedOut bool
		retry    bool
		want     models.Outcome
	}{
		{name: "success is verified", attempts: 1, outcome: driver.RawOutcome{Kind: driver.Success}, want: models.OutcomeVerified},
		{name: "rejected is terminal, never retried", attempts: 1, outcome: driver.RawOutcome{Kind: driver.Rejected, Reason: "card declined"}, want: models.OutcomeRejected},
		{name: "fatal error is terminal immediately", attempts: 1, outcome: driver.RawOutcome{Kind: driver.FatalError, Reason: "checkout flow changed"}, want: models.OutcomeError},
		{name: "transient below cap retries", attempts: 1, outcome: driver.RawOutcome{Kind: driver.TransientError}, retry: true},
		{name: "transient at cap is terminal error", attempts: 3, outcome: driver.RawOutcome{Kind: driver.TransientError, Reason: "proxy error"}, want: models.OutcomeError},
		{name: "timeout below cap retries", attempts: 2, timedOut: true, retry: true},
		{name: "timeout at cap is terminal timeout", attempts: 3, timedOut: true, want: models.OutcomeTimedOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := testJob(tt.attempts)
			d := c.Classify(job, tt.outcome, tt.timedOut)
			if d.Retry != tt.retry {
				t.Fatalf("retry = %v, want %v", d.Retry, tt.retry)
			}
			if tt.retry {
				return
			}
			if d.Result.Outcome != tt.want {
				t.Fatalf("outcome = %s, want %s", d.Result.Outcome, tt.want)
			}
			if d.Result.Attempts != tt.attempts {
				t.Fatalf("attempts = %d, want %d", d.Result.Attempts, tt.attempts)
			}
		})
	}
}

func TestResultNeverCarriesRawCard(t *testing.T) {
	c := New(1)
	job := testJob(1)

	d := c.Classify(job, driver.RawOutcome{Kind: driver.Success}, false)
	if d.Result.MaskedCard != "************4242" {
		t.Fatalf("masked card = %q", d.Result.MaskedCard)
	}
}

func TestCancelled(t *testing.T) {
	c := New(3)
	job := testJob(2)

	res := c.Cancelled(job)
	if res.Outcome != models.OutcomeCancelled {
		t.Fatalf("outcome = %s, want cancelled", res.Outcome)
	}
	if res.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", res.Attempts)
	}
}

func TestDurationMeasuredFromSubmission(t *testing.T) {
	c := New(1)
	job := testJob(1)

	d := c.Classify(job, driver.RawOutcome{Kind: driver.Success}, false)
	if d.Result.Duration < time.Second {
		t.Fatalf("duration = %v, want at least the queued second", d.Result.Duration)
	}
}
