package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"check-orchestrator/core/models"
)

// HTTP drives attempts through an external browser-automation sidecar.
// The sidecar owns all DOM and CAPTCHA mechanics; this adapter only ships
// the attempt parameters over and maps the reply onto a RawOutcome.
type HTTP struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewHTTP creates an adapter for the sidecar at baseURL. The client carries
// no timeout of its own; the per-attempt context deadline governs.
func NewHTTP(baseURL string, log zerolog.Logger) *HTTP {
	return &HTTP{
		baseURL: baseURL,
		client:  &http.Client{},
		log:     log.With().Str("component", "driver").Logger(),
	}
}

type attemptPayload struct {
	JobID    string        `json:"job_id"`
	Site     string        `json:"website"`
	SiteURL  string        `json:"url"`
	Card     cardPayload   `json:"card"`
	Proxy    *proxyPayload `json:"proxy,omitempty"`
	Identity Identity      `json:"identity"`
}

type cardPayload struct {
	Number   string `json:"number"`
	ExpMonth string `json:"exp_month"`
	ExpYear  string `json:"exp_year"`
	CVV      string `json:"cvv,omitempty"`
}

type proxyPayload struct {
	Server   string `json:"server"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

type attemptReply struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Attempt posts one attempt to the sidecar and blocks until it replies or
// ctx expires. Transport failures map to TransientError: the scheduler and
// classifier decide what happens next.
func (h *HTTP) Attempt(ctx context.Context, req AttemptRequest) RawOutcome {
	payload := attemptPayload{
		JobID:   req.JobID,
		Site:    req.SiteID,
		SiteURL: req.SiteURL,
		Card: cardPayload{
			Number:   req.Card.Number,
			ExpMonth: req.Card.ExpMonth,
			ExpYear:  req.Card.ExpYear,
			CVV:      req.Card.CVV,
		},
		Identity: req.Identity,
	}
	if req.Proxy != nil {
		payload.Proxy = &proxyPayload{
			Server:   req.Proxy.Server,
			Username: req.Proxy.Username,
			Password: req.Proxy.Password,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return RawOutcome{Kind: FatalError, Reason: "encode attempt: " + err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/attempt", bytes.NewReader(body))
	if err != nil {
		return RawOutcome{Kind: FatalError, Reason: "build request: " + err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	h.log.Debug().
		Str("job_id", req.JobID).
		Str("website", req.SiteID).
		Str("card", models.Card{Number: req.Card.Number}.Masked()).
		Msg("driver attempt")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return RawOutcome{Kind: TransientError, Reason: "sidecar: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RawOutcome{Kind: TransientError, Reason: fmt.Sprintf("sidecar status %d", resp.StatusCode)}
	}

	var reply attemptReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return RawOutcome{Kind: TransientError, Reason: "decode reply: " + err.Error()}
	}

	switch reply.Status {
	case "success":
		return RawOutcome{Kind: Success, Reason: reply.Reason}
	case "rejected", "declined":
		return RawOutcome{Kind: Rejected, Reason: reply.Reason}
	case "fatal_error":
		return RawOutcome{Kind: FatalError, Reason: reply.Reason}
	default:
		return RawOutcome{Kind: TransientError, Reason: reply.Reason}
	}
}
