package routes

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"check-orchestrator/api/rest/handlers"
	"check-orchestrator/config"
	"check-orchestrator/core/metrics"
	"check-orchestrator/core/scheduler"
)

// SetupRoutes configures all API routes. The API key and IP allowlist are
// enforced here, before any request reaches the core; the health endpoint
// is deliberately unauthenticated for liveness probes.
func SetupRoutes(r *mux.Router, cfg config.Config, sched *scheduler.Scheduler, agg *metrics.Aggregator) {
	checkHandler := handlers.NewCheckHandler(sched)
	serviceHandler := handlers.NewServiceHandler(cfg, sched, agg)

	r.Use(allowlistMiddleware(cfg.AllowedIPs))

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/health", serviceHandler.Health).Methods("GET")

	authed := api.PathPrefix("/").Subrouter()
	authed.Use(apiKeyMiddleware(cfg.APIKey))
	authed.HandleFunc("/checks", checkHandler.SubmitCheck).Methods("POST")
	authed.HandleFunc("/checks/bulk", checkHandler.SubmitBulk).Methods("POST")
	authed.HandleFunc("/checks/{id}", checkHandler.GetCheck).Methods("GET")
	authed.HandleFunc("/checks/{id}/cancel", checkHandler.CancelCheck).Methods("POST")
	authed.HandleFunc("/batches/{id}", checkHandler.GetBatch).Methods("GET")
	authed.HandleFunc("/metrics", serviceHandler.Metrics).Methods("GET")
	authed.HandleFunc("/config", serviceHandler.Config).Methods("GET")
}

// apiKeyMiddleware requires a matching X-API-Key header on every request
func apiKeyMiddleware(apiKey string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				writeAuthError(w, http.StatusUnauthorized, "API key required")
				return
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				writeAuthError(w, http.StatusForbidden, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allowlistMiddleware rejects requests from addresses outside the allowlist.
// An empty allowlist admits everyone.
func allowlistMiddleware(allowed []string) mux.MiddlewareFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, ip := range allowed {
		allowedSet[ip] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowedSet) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if _, ok := allowedSet[host]; !ok {
				writeAuthError(w, http.StatusForbidden, "your IP is not whitelisted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
