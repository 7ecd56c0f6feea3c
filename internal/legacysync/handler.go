package legacysync

import (
	"net/http"
	"strconv"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/httpx"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// RunNow triggers a sync and waits for its report.
func (h *Handler) RunNow(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.Run(r.Context(), TriggerManual)
	if err != nil && rep == nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	if err != nil {
		httpx.RespondJSON(w, http.StatusBadGateway, map[string]interface{}{
			"success": false,
			"message": "Booking sync failed",
			"run":     rep,
		})
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Booking sync completed", "run", rep))
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.RespondServiceError(w, r, apperr.Invalid("limit", "must be a number"))
			return
		}
		limit = n
	}

	runs, err := h.service.Runs(r.Context(), limit)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Sync runs retrieved successfully", "runs", runs))
}

func (h *Handler) LatestRun(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.LatestRun(r.Context())
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Latest sync run retrieved successfully", "run", rep))
}
