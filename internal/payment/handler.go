package payment

import (
	"net/http"

	"github.com/orthoflow/practice-service/internal/httpx"
	"github.com/orthoflow/practice-service/internal/pagination"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	p, err := h.service.RecordPayment(r.Context(), req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, httpx.Success("Payment recorded successfully", "payment", p))
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	var (
		filter ListFilter
		err    error
	)
	if filter.PatientID, err = httpx.QueryUUID(r, "patient_id"); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	if filter.From, err = httpx.QueryTime(r, "from"); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	if filter.To, err = httpx.QueryTime(r, "to"); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	q := r.URL.Query()
	filter.Status = q.Get("status")
	filter.Method = q.Get("method")

	result, err := h.service.ListPayments(r.Context(), filter, pagination.ParseParams(r))
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.List("payments", result.Items, result.Meta))
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	p, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Payment retrieved successfully", "payment", p))
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

	p, err := h.service.UpdateStatus(r.Context(), id, req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Payment status updated successfully", "payment", p))
}

// Refund accepts an empty body.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req RefundRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.RespondServiceError(w, r, err)
			return
		}
	}

	p, err := h.service.Refund(r.Context(), id, req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Payment refunded successfully", "payment", p))
}

func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	if err := h.service.DeletePayment(r.Context(), id); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Payment deleted successfully", "", nil))
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	from, err := httpx.QueryTime(r, "from")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	to, err := httpx.QueryTime(r, "to")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	stats, err := h.service.Stats(r.Context(), from, to)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Payment statistics retrieved successfully", "stats", stats))
}

func (h *Handler) PatientBalance(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathUUID(r, "patientId")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	b, err := h.service.PatientBalance(r.Context(), patientID)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Patient balance retrieved successfully", "balance", b))
}
