package dispatcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"check-orchestrator/core/models"
)

// Dispatcher forwards terminal results to the main application, best effort.
// Delivery failures are logged and swallowed: they never block the scheduler
// and never feed back into job status. A circuit breaker stops the service
// from hammering a consumer that is down.
type Dispatcher struct {
	url     string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// New creates a dispatcher targeting url. An empty url disables dispatching.
func New(url, apiKey string, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "result-dispatch",
			Timeout: 30 * time.Second,
		}),
		log: log.With().Str("component", "dispatcher").Logger(),
	}
}

// Enabled reports whether an outbound consumer is configured
func (d *Dispatcher) Enabled() bool {
	return d.url != ""
}

// Dispatch forwards one result. Safe to call from worker goroutines.
func (d *Dispatcher) Dispatch(res models.CheckResult) {
	if !d.Enabled() {
		return
	}

	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.post(res)
	})
	if err != nil {
		d.log.Warn().
			Err(err).
			Str("job_id", res.JobID).
			Msg("result dispatch failed")
	}
}

func (d *Dispatcher) post(res models.CheckResult) error {
	body, err := json.Marshal(res)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, d.url+"/api/check-results", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("X-API-Key", d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("main app returned status %d", resp.StatusCode)
	}
	return nil
}
