package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/claims"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/model"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/reputation"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/service"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/store"
)

type Handlers struct {
	svc *service.Service
}

func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleCreateRestaurant handles POST /v1/restaurants
func (h *Handlers) HandleCreateRestaurant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CreateRestaurantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	rst, err := h.svc.CreateRestaurant(ctx, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, rst)
}

// HandleCreateNetwork handles POST /v1/networks
func (h *Handlers) HandleCreateNetwork(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CreateNetworkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	net, err := h.svc.CreateNetwork(ctx, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, net)
}

// HandleHireWorker handles POST /v1/workers
func (h *Handlers) HandleHireWorker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.HireWorkerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	worker, err := h.svc.HireWorker(ctx, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, worker)
}

// HandleGetWorker handles GET /v1/workers/{worker_id}
func (h *Handlers) HandleGetWorker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workerID := resourceID(r.URL.Path)
	if workerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "worker_id is required")
		return
	}

	worker, err := h.svc.GetWorker(ctx, workerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, worker)
}

// HandleVisibleShifts handles GET /v1/workers/{worker_id}/visible-shifts
func (h *Handlers) HandleVisibleShifts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workerID := resourceID(r.URL.Path)
	if workerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "worker_id is required")
		return
	}

	feed, err := h.svc.GetVisibleShifts(ctx, workerID, time.Now().UTC())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if feed == nil {
		feed = []model.ShiftWithVisibility{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"shifts": feed,
		"count":  len(feed),
	})
}

// HandleWorkerReputation handles GET /v1/workers/{worker_id}/reputation
func (h *Handlers) HandleWorkerReputation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workerID := resourceID(r.URL.Path)
	if workerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "worker_id is required")
		return
	}

	worker, err := h.svc.GetWorker(ctx, workerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	rep, err := h.svc.GetNetworkReputation(ctx, worker.IdentityID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// HandleReputationBreakdown handles GET /v1/workers/{worker_id}/reputation/breakdown
func (h *Handlers) HandleReputationBreakdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workerID := resourceID(r.URL.Path)
	if workerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "worker_id is required")
		return
	}

	worker, err := h.svc.GetWorker(ctx, workerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	breakdown, err := h.svc.GetReputationBreakdown(ctx, worker.IdentityID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if breakdown == nil {
		breakdown = []model.RestaurantReputation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity_id": worker.IdentityID,
		"restaurants": breakdown,
	})
}

// HandleVerifyWorker handles POST /v1/workers/{worker_id}/verify
func (h *Handlers) HandleVerifyWorker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workerID := resourceID(r.URL.Path)
	if workerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "worker_id is required")
		return
	}

	worker, err := h.svc.VerifyWorker(ctx, workerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, worker)
}

// HandleTerminateWorker handles POST /v1/workers/{worker_id}/terminate
func (h *Handlers) HandleTerminateWorker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workerID := resourceID(r.URL.Path)
	if workerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "worker_id is required")
		return
	}

	worker, err := h.svc.TerminateWorker(ctx, workerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, worker)
}

// HandleRequestTimeOff handles POST /v1/workers/{worker_id}/time-off
func (h *Handlers) HandleRequestTimeOff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workerID := resourceID(r.URL.Path)
	if workerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "worker_id is required")
		return
	}

	var req model.RequestTimeOffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	timeOff, err := h.svc.RequestTimeOff(ctx, workerID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, timeOff)
}

// HandleApproveTimeOff handles POST /v1/time-off/{time_off_id}/approve
func (h *Handlers) HandleApproveTimeOff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	timeOffID := resourceID(r.URL.Path)
	if timeOffID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "time_off_id is required")
		return
	}

	timeOff, err := h.svc.ApproveTimeOff(ctx, timeOffID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, timeOff)
}

// HandleDenyTimeOff handles POST /v1/time-off/{time_off_id}/deny
func (h *Handlers) HandleDenyTimeOff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	timeOffID := resourceID(r.URL.Path)
	if timeOffID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "time_off_id is required")
		return
	}

	timeOff, err := h.svc.DenyTimeOff(ctx, timeOffID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, timeOff)
}

// HandlePublishShift handles POST /v1/shifts
func (h *Handlers) HandlePublishShift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.PublishShiftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	shift, err := h.svc.PublishShift(ctx, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, shift)
}

// HandleGetShift handles GET /v1/shifts/{shift_id}
func (h *Handlers) HandleGetShift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shiftID := resourceID(r.URL.Path)
	if shiftID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "shift_id is required")
		return
	}

	shift, err := h.svc.GetShift(ctx, shiftID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, shift)
}

// HandleListClaims handles GET /v1/shifts/{shift_id}/claims
func (h *Handlers) HandleListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shiftID := resourceID(r.URL.Path)
	if shiftID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "shift_id is required")
		return
	}

	list, err := h.svc.ListClaims(ctx, shiftID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if list == nil {
		list = []model.Claim{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claims": list,
		"count":  len(list),
	})
}

// HandleSubmitClaim handles POST /v1/shifts/{shift_id}/claims
func (h *Handlers) HandleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shiftID := resourceID(r.URL.Path)
	if shiftID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "shift_id is required")
		return
	}

	var req struct {
		WorkerID string `json:"worker_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.WorkerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "worker_id is required")
		return
	}

	result, err := h.svc.SubmitClaim(ctx, shiftID, req.WorkerID, time.Now().UTC())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Gate rejections are an answer, not a transport failure.
	writeJSON(w, http.StatusOK, result)
}

// HandleResolveClaims handles POST /v1/shifts/{shift_id}/claims/resolve
func (h *Handlers) HandleResolveClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shiftID := resourceID(r.URL.Path)
	if shiftID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "shift_id is required")
		return
	}

	resolution, err := h.svc.ResolveClaims(ctx, shiftID, time.Now().UTC())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resolution)
}

// HandleCancelShift handles POST /v1/shifts/{shift_id}/cancel
func (h *Handlers) HandleCancelShift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shiftID := resourceID(r.URL.Path)
	if shiftID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "shift_id is required")
		return
	}

	shift, err := h.svc.CancelShift(ctx, shiftID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, shift)
}

// HandleAssignShift handles POST /v1/shifts/{shift_id}/assign
func (h *Handlers) HandleAssignShift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shiftID := resourceID(r.URL.Path)
	if shiftID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "shift_id is required")
		return
	}

	var req struct {
		WorkerID string `json:"worker_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.WorkerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "worker_id is required")
		return
	}

	res, err := h.svc.AssignShift(ctx, shiftID, req.WorkerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if !res.Assigned {
		writeJSON(w, http.StatusOK, map[string]any{
			"assigned":  false,
			"rejection": res.Rejection,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assigned": true,
		"shift":    res.Shift,
	})
}

// HandleStartShift handles POST /v1/shifts/{shift_id}/start
func (h *Handlers) HandleStartShift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shiftID := resourceID(r.URL.Path)
	if shiftID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "shift_id is required")
		return
	}

	shift, err := h.svc.StartShift(ctx, shiftID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, shift)
}

// HandleCompleteShift handles POST /v1/shifts/{shift_id}/complete
func (h *Handlers) HandleCompleteShift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shiftID := resourceID(r.URL.Path)
	if shiftID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "shift_id is required")
		return
	}

	var req struct {
		Late   bool `json:"late"`
		Rating int  `json:"rating"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	shift, err := h.svc.CompleteShift(ctx, shiftID, req.Late, req.Rating)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, shift)
}

// HandleNoShow handles POST /v1/shifts/{shift_id}/no-show
func (h *Handlers) HandleNoShow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shiftID := resourceID(r.URL.Path)
	if shiftID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "shift_id is required")
		return
	}

	shift, err := h.svc.RecordNoShow(ctx, shiftID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, shift)
}

// HandleResolveDueShifts handles POST /internal/shifts/resolve-due
func (h *Handlers) HandleResolveDueShifts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.svc.ResolveDueShifts(ctx, time.Now().UTC())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// writeRetryableConflict marks the conflict as transient so clients know a
// plain retry can succeed.
func writeRetryableConflict(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusConflict, map[string]any{
		"error": map[string]any{
			"code":      code,
			"message":   message,
			"retryable": true,
		},
	})
}

// writeServiceError maps service and store errors onto the HTTP surface.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrRestaurantNotFound),
		errors.Is(err, store.ErrNetworkNotFound),
		errors.Is(err, store.ErrProfileNotFound),
		errors.Is(err, store.ErrShiftNotFound),
		errors.Is(err, store.ErrClaimNotFound),
		errors.Is(err, store.ErrTimeOffNotFound),
		errors.Is(err, reputation.ErrIdentityNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, claims.ErrResolutionContended),
		errors.Is(err, store.ErrVersionConflict):
		writeRetryableConflict(w, "resolution_contended", err.Error())
	case errors.Is(err, claims.ErrShiftNotOpen),
		errors.Is(err, claims.ErrInvalidShiftState),
		errors.Is(err, service.ErrInvalidState):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		slog.ErrorContext(r.Context(), "request_failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
	}
}

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return err
	}
	defer r.Body.Close()

	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

func resourceID(path string) string {
	// Extract the ID from paths like:
	// /v1/workers/{worker_id}
	// /v1/shifts/{shift_id}/claims
	// /v1/time-off/{time_off_id}/approve
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
