package dispatcher

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"check-orchestrator/core/models"
)

func testResult() models.CheckResult {
	return models.CheckResult{
		JobID:      "job-1",
		Site:       "loft",
		MaskedCard: "************4242",
		Outcome:    models.OutcomeVerified,
		Attempts:   1,
		FinishedAt: time.Now(),
	}
}

func TestDispatchPostsResult(t *testing.T) {
	received := make(chan models.CheckResult, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/check-results" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "main-app-key" {
			t.Errorf("missing api key header")
		}
		var res models.CheckResult
		if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
			t.Errorf("decode: %v", err)
		}
		received <- res
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(srv.URL, "main-app-key", zerolog.Nop())
	d.Dispatch(testResult())

	select {
	case res := <-received:
		if res.JobID != "job-1" || res.Outcome != models.OutcomeVerified {
			t.Fatalf("forwarded result = %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("main app never received the result")
	}
}

func TestDispatchFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := New(srv.URL, "", zerolog.Nop())
	// Must not panic or block; the failure is logged and dropped.
	d.Dispatch(testResult())
}

func TestBreakerStopsHammeringDeadConsumer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New(srv.URL, "", zerolog.Nop())
	for i := 0; i < 20; i++ {
		d.Dispatch(testResult())
	}

	// gobreaker opens after 5 consecutive failures by default, so the dead
	// consumer sees far fewer requests than dispatch calls.
	if n := hits.Load(); n >= 20 {
		t.Fatalf("consumer hit %d times, breaker never opened", n)
	}
}

func TestDisabledDispatcher(t *testing.T) {
	d := New("", "", zerolog.Nop())
	if d.Enabled() {
		t.Fatal("dispatcher with no URL should be disabled")
	}
	d.Dispatch(testResult())
}
