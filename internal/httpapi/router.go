package httpapi

import (
	"net/http"
	"strings"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/service"
)

func NewRouter(svc *service.Service) http.Handler {
	h := NewHandlers(svc)
	mux := http.NewServeMux()

	// Collection endpoints
	mux.HandleFunc("POST /v1/restaurants", h.HandleCreateRestaurant)
	mux.HandleFunc("POST /v1/networks", h.HandleCreateNetwork)
	mux.HandleFunc("POST /v1/workers", h.HandleHireWorker)
	mux.HandleFunc("POST /v1/shifts", h.HandlePublishShift)

	// Resource endpoints, dispatched by path suffix:
	//   /v1/workers/{worker_id}   bare get, /visible-shifts, /reputation,
	//                             /reputation/breakdown, /verify, /terminate, /time-off
	//   /v1/time-off/{time_off_id}/approve or /deny
	//   /v1/shifts/{shift_id}     bare get, /claims, /claims/resolve, /cancel,
	//                             /assign, /start, /complete, /no-show
	mux.HandleFunc("GET /v1/workers/", dispatchWorkersGET(h))
	mux.HandleFunc("POST /v1/workers/", dispatchWorkersPOST(h))
	mux.HandleFunc("POST /v1/time-off/", dispatchTimeOffPOST(h))
	mux.HandleFunc("GET /v1/shifts/", dispatchShiftsGET(h))
	mux.HandleFunc("POST /v1/shifts/", dispatchShiftsPOST(h))

	// Internal endpoints (called by the sweep scheduler, not by clients)
	mux.HandleFunc("POST /internal/shifts/resolve-due", h.HandleResolveDueShifts)

	// Health check
	mux.HandleFunc("GET /health", handleHealth)

	return RequestID(Recovery(Logging(mux)))
}

func dispatchWorkersGET(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/visible-shifts"):
			h.HandleVisibleShifts(w, r)
		case strings.HasSuffix(path, "/reputation/breakdown"):
			h.HandleReputationBreakdown(w, r)
		case strings.HasSuffix(path, "/reputation"):
			h.HandleWorkerReputation(w, r)
		case isBareResource(path):
			h.HandleGetWorker(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

func dispatchWorkersPOST(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/verify"):
			h.HandleVerifyWorker(w, r)
		case strings.HasSuffix(path, "/terminate"):
			h.HandleTerminateWorker(w, r)
		case strings.HasSuffix(path, "/time-off"):
			h.HandleRequestTimeOff(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

func dispatchTimeOffPOST(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/approve"):
			h.HandleApproveTimeOff(w, r)
		case strings.HasSuffix(path, "/deny"):
			h.HandleDenyTimeOff(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

func dispatchShiftsGET(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/claims"):
			h.HandleListClaims(w, r)
		case isBareResource(path):
			h.HandleGetShift(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

func dispatchShiftsPOST(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		// /claims/resolve must be matched ahead of /claims.
		case strings.HasSuffix(path, "/claims/resolve"):
			h.HandleResolveClaims(w, r)
		case strings.HasSuffix(path, "/claims"):
			h.HandleSubmitClaim(w, r)
		case strings.HasSuffix(path, "/cancel"):
			h.HandleCancelShift(w, r)
		case strings.HasSuffix(path, "/assign"):
			h.HandleAssignShift(w, r)
		case strings.HasSuffix(path, "/start"):
			h.HandleStartShift(w, r)
		case strings.HasSuffix(path, "/complete"):
			h.HandleCompleteShift(w, r)
		case strings.HasSuffix(path, "/no-show"):
			h.HandleNoShow(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

// isBareResource reports whether the path is /v1/<collection>/<id> with no
// trailing action segment.
func isBareResource(path string) bool {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	return len(parts) == 3 && parts[2] != ""
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"scheduler-core"}`))
}
