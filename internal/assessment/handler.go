package assessment

import (
	"net/http"

	"github.com/orthoflow/practice-service/internal/auth"
	"github.com/orthoflow/practice-service/internal/httpx"
	"github.com/orthoflow/practice-service/internal/pagination"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateAssessment(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathUUID(r, "patientId")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req CreateAssessmentRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	req.PatientID = patientID
	if principal, ok := auth.FromContext(r.Context()); ok {
		req.AssessedBy = principal.UserID
	}

	created, err := h.service.CreateAssessment(r.Context(), req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"success":    true,
		"message":    "Assessment recorded successfully",
		"assessment": created.Assessment,
		"result":     created.Result,
	})
}

func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	found, err := h.service.GetAssessment(r.Context(), id)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Assessment retrieved successfully",
		"assessment": found.Assessment,
		"result":     found.Result,
	})
}

func (h *Handler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathUUID(r, "patientId")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	result, err := h.service.ListForPatient(r.Context(), patientID, pagination.ParseParams(r))
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.List("assessments", result.Items, result.Meta))
}

// Preview scores measurements without storing them.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var m Measurements
	if err := httpx.DecodeJSON(w, r, &m); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	res, err := h.service.Preview(m)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Assessment scored successfully", "result", res))
}
