package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/igorhaf/orbit-ai-optimizer/app"
)

// HealthCheck returns a simple health check handler
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// ReadinessCheck performs a more thorough readiness check
func ReadinessCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		response := map[string]interface{}{
			"status": "ready",
			"checks": map[string]string{},
		}
		checks := response["checks"].(map[string]string)

		// Check the cache backing store. The in-process store has no
		// failure mode; Redis gets pinged.
		if deps.Redis == nil {
			checks["cache_store"] = "in_process"
		} else if err := deps.Redis.Ping(ctx).Err(); err != nil {
			// The cache degrades to the in-process fallback on its own,
			// so an unreachable Redis does not make the service not ready.
			checks["cache_store"] = "degraded"
			deps.Logger.Warn("redis readiness check failed", zap.Error(err))
		} else {
			checks["cache_store"] = "healthy"
		}

		if deps.Catalog == nil || deps.Catalog.Len() == 0 {
			response["status"] = "not_ready"
			checks["model_catalog"] = "empty"
		} else {
			checks["model_catalog"] = "loaded"
		}

		if deps.Cache.SemanticActive() {
			checks["semantic_cache"] = "active"
		} else {
			checks["semantic_cache"] = "disabled"
		}

		w.Header().Set("Content-Type", "application/json")
		if response["status"] == "ready" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(response)
	}
}

// StatusHandler returns application status information
func StatusHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"version":     "0.1.0",
			"environment": deps.Config.Environment,
			"models":      deps.Catalog.Len(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}
