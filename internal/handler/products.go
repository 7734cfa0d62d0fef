package handler

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pricedesk-api/internal/model"
	"pricedesk-api/internal/service"
	"pricedesk-api/internal/upstream"
	"pricedesk-api/pkg/apierror"
	"pricedesk-api/pkg/response"
)

// ProductHandler handles catalog and bulk price update requests.
type ProductHandler struct {
	catalog *service.CatalogService
	pricing *service.PriceService
}

// NewProductHandler creates a new product handler.
func NewProductHandler(catalog *service.CatalogService, pricing *service.PriceService) *ProductHandler {
	return &ProductHandler{catalog: catalog, pricing: pricing}
}

// Load handles POST /products/load
func (h *ProductHandler) Load(w http.ResponseWriter, r *http.Request) {
	count, err := h.catalog.LoadAll(r.Context())
	if err != nil {
		response.Error(w, apierror.ServiceUnavailable("failed to load products from upstream"))
		return
	}

	response.OK(w, map[string]int{"loaded": count})
}

// List handles GET /products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]interface{}{
		"products": h.catalog.Offers(),
		"meta":     h.catalog.Meta(),
	})
}

// Update handles PUT /products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var update model.OfferUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if update.IsEmpty() {
		response.Error(w, apierror.ValidationError("at least one field must be provided"))
		return
	}

	offer, err := h.catalog.UpdateOffer(r.Context(), id, update)
	if err != nil {
		if upstream.StatusCode(err) == http.StatusNotFound {
			response.Error(w, apierror.NotFound("offer not found"))
			return
		}
		response.Error(w, apierror.ServiceUnavailable("upstream update failed"))
		return
	}

	response.OK(w, offer)
}

// BulkUpdateRequest represents the request body for a bulk price update.
type BulkUpdateRequest struct {
	Adjustment float64  `json:"adjustment"`
	ProductIDs []string `json:"productIds"`
}

// BulkUpdate handles POST /products/bulk-update
func (h *ProductHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req BulkUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.Adjustment == 0 || math.IsNaN(req.Adjustment) || math.IsInf(req.Adjustment, 0) {
		response.Error(w, apierror.ValidationError("adjustment must be a non-zero number"))
		return
	}

	result, err := h.pricing.BulkUpdate(r.Context(), req.Adjustment, req.ProductIDs, "manual")
	if err != nil {
		response.Error(w, apierror.InternalError("bulk update failed"))
		return
	}

	response.OK(w, result)
}
