package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pricedesk-api/internal/service"
	"pricedesk-api/pkg/apierror"
	"pricedesk-api/pkg/response"
)

// FloorHandler handles price-floor requests.
type FloorHandler struct {
	catalog *service.CatalogService
}

// NewFloorHandler creates a new floor handler.
func NewFloorHandler(catalog *service.CatalogService) *FloorHandler {
	return &FloorHandler{catalog: catalog}
}

// List handles GET /floors
func (h *FloorHandler) List(w http.ResponseWriter, r *http.Request) {
	table, err := h.catalog.Floors(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("failed to load price floors"))
		return
	}
	response.OK(w, table)
}

// Get handles GET /floors/{id}
func (h *FloorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := h.catalog.Floor(r.Context(), id)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to load price floors"))
		return
	}
	if entry == nil {
		response.Error(w, apierror.NotFound("no floor configured for this offer"))
		return
	}
	response.OK(w, entry)
}

// SetFloorRequest represents the request body for a floor update.
type SetFloorRequest struct {
	MinimumPriceLimit *float64 `json:"minimumPriceLimit"`
	Name              string   `json:"name"`
}

// Set handles PUT /floors/{id}
func (h *FloorHandler) Set(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetFloorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.MinimumPriceLimit == nil {
		response.Error(w, apierror.ValidationError("minimumPriceLimit is required"))
		return
	}
	if *req.MinimumPriceLimit < 0 {
		response.Error(w, apierror.ValidationError("minimumPriceLimit must be >= 0"))
		return
	}

	if err := h.catalog.SetFloor(r.Context(), id, req.Name, *req.MinimumPriceLimit); err != nil {
		response.Error(w, apierror.InternalError("failed to save price floor"))
		return
	}

	entry, err := h.catalog.Floor(r.Context(), id)
	if err != nil || entry == nil {
		response.OK(w, map[string]string{"status": "saved"})
		return
	}
	response.OK(w, entry)
}
