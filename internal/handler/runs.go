package handler

import (
	"net/http"
	"strconv"

	"pricedesk-api/internal/repository"
	"pricedesk-api/pkg/apierror"
	"pricedesk-api/pkg/response"
)

// RunHandler serves the bulk-update run history.
type RunHandler struct {
	runs repository.RunLogRepository // nil when the audit log is disabled
}

// NewRunHandler creates a new run handler.
func NewRunHandler(runs repository.RunLogRepository) *RunHandler {
	return &RunHandler{runs: runs}
}

// List handles GET /runs
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		response.Error(w, apierror.ServiceUnavailable("run history is not configured"))
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	runs, total, err := h.runs.List(r.Context(), limit, (page-1)*limit)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to load run history"))
		return
	}

	response.JSONWithMeta(w, http.StatusOK, runs, page, limit, total)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
