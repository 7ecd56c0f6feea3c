package appointment

import (
	"net/http"
	"strconv"

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

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	a, err := h.service.CreateAppointment(r.Context(), req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, httpx.Success("Appointment created successfully", "appointment", a))
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	result, err := h.service.ListAppointments(r.Context(), filter, pagination.ParseParams(r))
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.List("appointments", result.Items, result.Meta))
}

func parseFilter(r *http.Request) (ListFilter, error) {
	var (
		f   ListFilter
		err error
	)
	if f.From, err = httpx.QueryTime(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = httpx.QueryTime(r, "to"); err != nil {
		return f, err
	}
	if f.PatientID, err = httpx.QueryUUID(r, "patient_id"); err != nil {
		return f, err
	}
	if f.StaffID, err = httpx.QueryUUID(r, "staff_id"); err != nil {
		return f, err
	}
	f.Status = r.URL.Query().Get("status")
	return f, nil
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	a, err := h.service.GetAppointment(r.Context(), id)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Appointment retrieved successfully", "appointment", a))
}

func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req UpdateAppointmentRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	a, err := h.service.UpdateAppointment(r.Context(), id, req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Appointment updated successfully", "appointment", a))
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req StatusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	a, err := h.service.UpdateStatus(r.Context(), id, req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Appointment status updated successfully", "appointment", a))
}

func (h *Handler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	if err := h.service.DeleteAppointment(r.Context(), id); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Appointment deleted successfully", "", nil))
}

func (h *Handler) Upcoming(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathUUID(r, "patientId")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			httpx.RespondServiceError(w, r, apperr.Invalid("limit", "must be a number"))
			return
		}
	}

	items, err := h.service.Upcoming(r.Context(), patientID, limit)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Upcoming appointments retrieved successfully", "appointments", items))
}
