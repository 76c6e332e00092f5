package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/chgenberg/frejfund-site/internal/generation"
	"github.com/chgenberg/frejfund-site/internal/store"
	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo store.Repository
	gen  *generation.Coordinator
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, gen *generation.Coordinator) *HealthHandler {
	return &HealthHandler{repo: repo, gen: gen}
}

// Health returns the health status of the API and its dependencies.
// Missing generation backends are reported but do not degrade the status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.gen != nil {
		checks["text"] = availability(h.gen.TextAvailable())
		checks["images"] = availability(h.gen.ImagesAvailable())
		checks["places"] = availability(h.gen.PlacesAvailable())
	}

	JSON(w, statusCode, status)
}

func availability(ok bool) string {
	if ok {
		return "ok"
	}
	return "disabled"
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
