package handlers

import (
	"database/sql"
	"net/http"

	"github.com/nlieb/chatmux/app"
	"github.com/nlieb/chatmux/services/cache"
	"github.com/nlieb/chatmux/services/registry"
	"github.com/nlieb/chatmux/utils"
)

// HealthCheck returns the liveness probe handler
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return healthFromDeps(deps).HandleHealth
}

// ReadinessCheck returns the readiness probe handler
func ReadinessCheck(deps *app.Dependencies) http.HandlerFunc {
	return healthFromDeps(deps).HandleReadiness
}

func healthFromDeps(deps *app.Dependencies) *HealthHandler {
	var db *sql.DB
	if deps.DB != nil {
		db = deps.DB.DB
	}
	return NewHealthHandler(db, deps.Health, deps.Logger)
}

// StatusResponse describes the runtime state of the service
type StatusResponse struct {
	Version     string                    `json:"version"`
	Environment string                    `json:"environment"`
	Providers   []registry.ProviderStatus `json:"providers"`
	Cache       cache.Stats               `json:"cache"`
	Recording   bool                      `json:"recording"`
}

// StatusHandler returns application status information: provider health,
// cache statistics, and whether requests are being recorded
func StatusHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteOK(w, StatusResponse{
			Version:     "0.1.0",
			Environment: deps.Config.Environment,
			Providers:   deps.Health.StatusSnapshot(),
			Cache:       deps.Cache.Stats(),
			Recording:   deps.Config.RecordingEnabled(),
		})
	}
}
