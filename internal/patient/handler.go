package patient

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/httpx"
	"github.com/orthoflow/practice-service/internal/pagination"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	p, err := h.service.CreatePatient(r.Context(), req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, httpx.Success("Patient created successfully", "patient", p))
}

func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Search: r.URL.Query().Get("search")}
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.RespondServiceError(w, r, apperr.Invalid("active", "must be true or false"))
			return
		}
		filter.Active = &active
	}

	result, err := h.service.ListPatients(r.Context(), filter, pagination.ParseParams(r))
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.List("patients", result.Items, result.Meta))
}

func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	p, err := h.service.GetPatient(r.Context(), id)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Patient retrieved successfully", "patient", p))
}

func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req UpdatePatientRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	p, err := h.service.UpdatePatient(r.Context(), id, req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Patient updated successfully", "patient", p))
}

func (h *Handler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	if err := h.service.DeletePatient(r.Context(), id); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Patient deleted successfully", "", nil))
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	summary, err := h.service.GetSummary(r.Context(), id)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Patient summary retrieved successfully", "summary", summary))
}

// Lookup finds a patient by exact email or phone, as the front desk does
// when a caller is not sure whether they are already registered.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))

	var (
		p   *Patient
		err error
	)
	switch {
	case email != "":
		p, err = h.service.FindByEmail(r.Context(), email)
	case phone != "":
		p, err = h.service.FindByPhone(r.Context(), phone)
	default:
		err = apperr.Invalid("", "email or phone query parameter is required")
	}
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Patient found", "patient", p))
}
