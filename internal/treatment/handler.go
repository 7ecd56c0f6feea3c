package treatment

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

func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathUUID(r, "patientId")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req CreatePlanRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	req.PatientID = patientID

	plan, err := h.service.CreatePlan(r.Context(), req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, httpx.Success("Treatment plan created successfully", "treatment_plan", plan))
}

func (h *Handler) ListPlansForPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathUUID(r, "patientId")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	plans, err := h.service.ListPlansForPatient(r.Context(), patientID)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"treatment_plans": plans,
	})
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	plan, err := h.service.GetPlan(r.Context(), id)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Treatment plan retrieved successfully", "treatment_plan", plan))
}

func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req UpdatePlanRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	plan, err := h.service.UpdatePlan(r.Context(), id, req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Treatment plan updated successfully", "treatment_plan", plan))
}

func (h *Handler) UpdatePlanStatus(w http.ResponseWriter, r *http.Request) {
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

	plan, err := h.service.UpdatePlanStatus(r.Context(), id, req.Status)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Treatment plan status updated successfully", "treatment_plan", plan))
}

func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	if err := h.service.DeletePlan(r.Context(), id); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Treatment plan deleted successfully", "", nil))
}

func (h *Handler) AddPhase(w http.ResponseWriter, r *http.Request) {
	planID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req CreatePhaseRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	ph, err := h.service.AddPhase(r.Context(), planID, req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, httpx.Success("Treatment phase added successfully", "phase", ph))
}

func (h *Handler) UpdatePhase(w http.ResponseWriter, r *http.Request) {
	planID, phaseID, err := phasePath(r)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req UpdatePhaseRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	ph, err := h.service.UpdatePhase(r.Context(), planID, phaseID, req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Treatment phase updated successfully", "phase", ph))
}

func (h *Handler) UpdatePhaseStatus(w http.ResponseWriter, r *http.Request) {
	planID, phaseID, err := phasePath(r)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req StatusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	ph, err := h.service.UpdatePhaseStatus(r.Context(), planID, phaseID, req.Status)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Treatment phase status updated successfully", "phase", ph))
}

func (h *Handler) ReorderPhases(w http.ResponseWriter, r *http.Request) {
	planID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req ReorderRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	phases, err := h.service.ReorderPhases(r.Context(), planID, req.PhaseIDs)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Treatment phases reordered successfully", "phases", phases))
}

func (h *Handler) DeletePhase(w http.ResponseWriter, r *http.Request) {
	planID, phaseID, err := phasePath(r)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	if err := h.service.DeletePhase(r.Context(), planID, phaseID); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Treatment phase deleted successfully", "", nil))
}

func phasePath(r *http.Request) (string, string, error) {
	planID, err := httpx.PathUUID(r, "id")
	if err != nil {
		return "", "", err
	}
	phaseID, err := httpx.PathUUID(r, "phaseId")
	if err != nil {
		return "", "", err
	}
	return planID, phaseID, nil
}
