package handler

import (
	"encoding/json"
	"math"
	"net/http"

	"pricedesk-api/internal/model"
	"pricedesk-api/internal/service"
	"pricedesk-api/pkg/apierror"
	"pricedesk-api/pkg/response"
)

// ScheduleID is the well-known id of the single recurring price schedule.
const ScheduleID = "price-update-schedule"

// SchedulerHandler handles schedule management requests.
type SchedulerHandler struct {
	scheduler *service.SchedulerService
}

// NewSchedulerHandler creates a new scheduler handler.
func NewSchedulerHandler(scheduler *service.SchedulerService) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler}
}

// StartRequest represents the request body for starting a schedule.
type StartRequest struct {
	Interval       int                  `json:"interval"`
	Adjustment     float64              `json:"adjustment"`
	Action         model.ScheduleAction `json:"action"`
	RunImmediately bool                 `json:"runImmediately"`
}

// Start handles POST /scheduler/start
func (h *SchedulerHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.Interval < 1 {
		response.Error(w, apierror.ValidationError("interval must be at least 1 minute"))
		return
	}
	if req.Adjustment <= 0 || math.IsNaN(req.Adjustment) || math.IsInf(req.Adjustment, 0) {
		response.Error(w, apierror.ValidationError("adjustment must be a positive number"))
		return
	}
	if !req.Action.Valid() {
		response.Error(w, apierror.ValidationError("action must be increase or decrease"))
		return
	}

	sched := h.scheduler.Create(&model.Schedule{
		ID:              ScheduleID,
		IntervalMinutes: req.Interval,
		Adjustment:      req.Adjustment,
		Action:          req.Action,
	}, req.RunImmediately)

	response.OK(w, sched)
}

// Stop handles POST /scheduler/stop
func (h *SchedulerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if !h.scheduler.Stop(ScheduleID) {
		response.Error(w, apierror.NotFound("no schedule configured"))
		return
	}
	response.OK(w, map[string]string{"status": "stopped"})
}

// Status handles GET /scheduler/status
func (h *SchedulerHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.scheduler.Status(ScheduleID))
}
