package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nlieb/chatmux/services/registry"
	"github.com/nlieb/chatmux/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     *sql.DB
	health *registry.Registry
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. The database handle may be
// nil when request recording is disabled.
func NewHealthHandler(db *sql.DB, health *registry.Registry, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		health: health,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz
// Basic liveness check - always returns 200 if the service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// Readiness check - validates that configured dependencies are available.
// Provider health is reported but never flips readiness: an unhealthy
// provider recovers through probing, so the next request may still succeed.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.db == nil {
		// Recording is optional; a missing database is not a failure.
		checks["database"] = "disabled"
	} else if err := h.checkDatabase(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	checks["providers"] = h.providerSummary()

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return err
	}

	return nil
}

// providerSummary reports how many registered providers are currently healthy
func (h *HealthHandler) providerSummary() string {
	if h.health == nil {
		return "none_configured"
	}

	snapshot := h.health.StatusSnapshot()
	if len(snapshot) == 0 {
		return "none_configured"
	}

	healthy := 0
	for _, s := range snapshot {
		if s.Healthy {
			healthy++
		}
	}

	return fmt.Sprintf("%d/%d healthy", healthy, len(snapshot))
}
