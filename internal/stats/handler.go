package stats

import (
	"net/http"

	"github.com/orthoflow/practice-service/internal/httpx"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// Dashboard serves the cached figures; ?refresh=true recomputes them.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		h.service.Invalidate(r.Context())
	}

	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Dashboard statistics retrieved successfully", "stats", d))
}
