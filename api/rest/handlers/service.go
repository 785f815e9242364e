package handlers

import (
	"net/http"
	"sort"

	"check-orchestrator/config"
	"check-orchestrator/core/metrics"
	"check-orchestrator/core/scheduler"
)

// ServiceHandler serves health, metrics and config endpoints
type ServiceHandler struct {
	cfg       config.Config
	scheduler *scheduler.Scheduler
	metrics   *metrics.Aggregator
}

// NewServiceHandler creates a new service handler
func NewServiceHandler(cfg config.Config, sched *scheduler.Scheduler, agg *metrics.Aggregator) *ServiceHandler {
	return &ServiceHandler{cfg: cfg, scheduler: sched, metrics: agg}
}

// Health handles GET /v1/health
func (h *ServiceHandler) Health(w http.ResponseWriter, r *http.Request) {
	sites := h.scheduler.Sites()
	sort.Strings(sites)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "healthy",
		"service":            "check-orchestrator",
		"supported_websites": sites,
	})
}

// Metrics handles GET /v1/metrics
func (h *ServiceHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	snap := h.metrics.Snapshot()
	writeJSON(w, http.StatusOK, snap)
}

// Config handles GET /v1/config, echoing non-sensitive settings only
func (h *ServiceHandler) Config(w http.ResponseWriter, r *http.Request) {
	sites := h.scheduler.Sites()
	sort.Strings(sites)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"concurrency":        h.cfg.Concurrency,
		"max_retries":        h.cfg.MaxRetries,
		"check_timeout_ms":   h.cfg.CheckTimeout.Milliseconds(),
		"bulk_max_size":      h.cfg.BulkMaxSize,
		"use_proxy":          h.cfg.UseProxy,
		"proxy_required":     h.cfg.ProxyRequired,
		"supported_websites": sites,
		"queue_depth":        h.scheduler.QueueDepth(),
	})
}
