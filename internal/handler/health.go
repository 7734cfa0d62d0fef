package handler

import (
	"net/http"
	"time"

	"pricedesk-api/internal/service"
	"pricedesk-api/pkg/response"
)

// HealthHandler handles health and readiness checks.
type HealthHandler struct {
	auth    *service.AuthManager
	catalog *service.CatalogService
	started time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(auth *service.AuthManager, catalog *service.CatalogService) *HealthHandler {
	return &HealthHandler{
		auth:    auth,
		catalog: catalog,
		started: time.Now(),
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	meta := h.catalog.Meta()
	response.OK(w, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"authenticated":  h.auth.IsAuthenticated(),
		"products":       meta.TotalProducts,
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "ready"})
}
