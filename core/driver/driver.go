package driver

import (
	"context"

	"check-orchestrator/core/models"
)

// OutcomeKind discriminates the closed set of raw driver outcomes
type OutcomeKind int

const (
	// Success means the checkout flow accepted the credential
	Success OutcomeKind = iota
	// Rejected means the flow completed and declined the credential.
	// This is a final answer, not a failure.
	Rejected
	// TransientError covers conditions worth another attempt: navigation
	// failures, proxy errors, flaky page loads.
	TransientError
	// FatalError means the site flow no longer matches expectations;
	// retrying cannot help.
	FatalError
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Rejected:
		return "rejected"
	case TransientError:
		return "transient_error"
	case FatalError:
		return "fatal_error"
	}
	return "unknown"
}

// RawOutcome is the result of one verification attempt as reported by the
// Session Driver, before classification.
type RawOutcome struct {
	Kind   OutcomeKind
	Reason string
}

// AttemptRequest carries everything one attempt needs
type AttemptRequest struct {
	JobID    string
	SiteID   string
	SiteURL  string
	Card     models.Card
	Proxy    *models.ProxyEntry // nil when the attempt runs without a proxy
	Identity Identity
}

// Driver performs one automated verification attempt against a target site.
// Implementations may block until ctx's deadline; they must not retry
// internally — retry policy is owned by the classifier.
type Driver interface {
	Attempt(ctx context.Context, req AttemptRequest) RawOutcome
}
