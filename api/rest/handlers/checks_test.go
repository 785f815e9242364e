package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"check-orchestrator/api/rest/routes"
	"check-orchestrator/config"
	"check-orchestrator/core/classifier"
	"check-orchestrator/core/driver"
	"check-orchestrator/core/metrics"
	"check-orchestrator/core/models"
	"check-orchestrator/core/ratelimit"
	"check-orchestrator/core/scheduler"
)

const testAPIKey = "test-key-123"

type driverFunc func(ctx context.Context, req driver.AttemptRequest) driver.RawOutcome

func (f driverFunc) Attempt(ctx context.Context, req driver.AttemptRequest) driver.RawOutcome {
	return f(ctx, req)
}

func newTestServer(t *testing.T, drv driver.Driver) *httptest.Server {
	t.Helper()

	cfg := config.Config{
		APIKey:             testAPIKey,
		Concurrency:        5,
		MaxRetries:         3,
		CheckTimeout:       500 * time.Millisecond,
		DispatchInterval:   5 * time.Millisecond,
		BulkMaxSize:        50,
		SingleRateCapacity: 100,
		SingleRatePerMin:   100,
		BulkRateCapacity:   10,
		BulkRatePerMin:     10,
	}
	limiter := ratelimit.New(map[models.Category]ratelimit.Budget{
		models.CategorySingle: {Capacity: cfg.SingleRateCapacity, PerMinute: cfg.SingleRatePerMin},
		models.CategoryBulk:   {Capacity: cfg.BulkRateCapacity, PerMinute: cfg.BulkRatePerMin},
	})
	agg := metrics.New(nil)
	sites := []config.Site{{ID: "loft", URL: "https://www.loft.com"}}
	sched := scheduler.New(cfg, sites, drv, limiter, nil, classifier.New(cfg.MaxRetries),
		driver.NewIdentityGenerator(nil), agg, nil, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Start(ctx)

	r := mux.NewRouter()
	routes.SetupRoutes(r, cfg, sched, agg)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		sched.Stop()
	})
	return srv
}

func alwaysVerified() driver.Driver {
	return driverFunc(func(ctx context.Context, req driver.AttemptRequest) driver.RawOutcome {
		return driver.RawOutcome{Kind: driver.Success}
	})
}

func doJSON(t *testing.T, method, url, apiKey string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func validSubmitBody() map[string]interface{} {
	return map[string]interface{}{
		"website":     "loft",
		"card_number": "4242424242424242",
		"exp_month":   "12",
		"exp_year":    "2030",
		"use_proxy":   false,
	}
}

func TestSubmitRequiresAPIKey(t *testing.T) {
	srv := newTestServer(t, alwaysVerified())

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/checks", "", validSubmitBody())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/checks", "wrong-key", validSubmitBody())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestHealthIsUnauthenticated(t *testing.T) {
	srv := newTestServer(t, alwaysVerified())

	resp, err := http.Get(srv.URL + "/v1/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status   string   `json:"status"`
		Websites []string `json:"supported_websites"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "healthy" {
		t.Fatalf("status = %q, want healthy", body.Status)
	}
	if len(body.Websites) != 1 || body.Websites[0] != "loft" {
		t.Fatalf("websites = %v, want [loft]", body.Websites)
	}
}

func TestSubmitAndPollResult(t *testing.T) {
	srv := newTestServer(t, alwaysVerified())

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/checks", testAPIKey, validSubmitBody())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var submitted struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if submitted.JobID == "" || submitted.Status != "queued" {
		t.Fatalf("unexpected submit response: %+v", submitted)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("job never reached a terminal result")
		}
		get := doJSON(t, http.MethodGet, srv.URL+"/v1/checks/"+submitted.JobID, testAPIKey, nil)
		var view struct {
			Status string              `json:"status"`
			Result *models.CheckResult `json:"result"`
		}
		if err := json.NewDecoder(get.Body).Decode(&view); err != nil {
			t.Fatalf("decode job view: %v", err)
		}
		get.Body.Close()
		if view.Result != nil {
			if view.Result.Outcome != models.OutcomeVerified {
				t.Fatalf("outcome = %s, want verified", view.Result.Outcome)
			}
			if view.Result.MaskedCard != "************4242" {
				t.Fatalf("card not masked: %q", view.Result.MaskedCard)
			}
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSubmitValidationErrors(t *testing.T) {
	srv := newTestServer(t, alwaysVerified())

	missing := validSubmitBody()
	delete(missing, "card_number")
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/checks", testAPIKey, missing)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing card: status = %d, want 400", resp.StatusCode)
	}

	unsupported := validSubmitBody()
	unsupported["website"] = "amazon"
	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/checks", testAPIKey, unsupported)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unsupported site: status = %d, want 400", resp.StatusCode)
	}

	nonNumeric := validSubmitBody()
	nonNumeric["card_number"] = "not-a-card"
	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/checks", testAPIKey, nonNumeric)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("non-numeric card: status = %d, want 400", resp.StatusCode)
	}
}

func TestBulkSubmitAndBatchView(t *testing.T) {
	srv := newTestServer(t, alwaysVerified())

	body := map[string]interface{}{
		"website": "loft",
		"cards": []map[string]string{
			{"card_number": "4242424242424242", "exp_month": "12", "exp_year": "2030"},
			{"card_number": "5555555555554444", "exp_month": "06", "exp_year": "2031"},
		},
		"use_proxy": false,
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/checks/bulk", testAPIKey, body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var submitted struct {
		BatchID string   `json:"batch_id"`
		JobIDs  []string `json:"job_ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode bulk response: %v", err)
	}
	if len(submitted.JobIDs) != 2 {
		t.Fatalf("job ids = %d, want 2", len(submitted.JobIDs))
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("batch never completed")
		}
		get := doJSON(t, http.MethodGet, srv.URL+"/v1/batches/"+submitted.BatchID, testAPIKey, nil)
		var view struct {
			Total    int `json:"total"`
			Pending  int `json:"pending"`
			Verified int `json:"verified"`
		}
		if err := json.NewDecoder(get.Body).Decode(&view); err != nil {
			t.Fatalf("decode batch view: %v", err)
		}
		get.Body.Close()
		if view.Pending == 0 {
			if view.Total != 2 || view.Verified != 2 {
				t.Fatalf("batch view = %+v, want 2 verified of 2", view)
			}
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, alwaysVerified())

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/metrics", testAPIKey, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var snap models.MetricsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if snap.TotalChecks != 0 {
		t.Fatalf("fresh service total = %d, want 0", snap.TotalChecks)
	}
}

func TestUnknownJobIs404(t *testing.T) {
	srv := newTestServer(t, alwaysVerified())

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/checks/nope", testAPIKey, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
