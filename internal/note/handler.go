package note

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

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathUUID(r, "patientId")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req CreateNoteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	req.PatientID = patientID
	if principal, ok := auth.FromContext(r.Context()); ok {
		req.AuthorID = principal.UserID
	}

	n, err := h.service.CreateNote(r.Context(), req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, httpx.Success("Clinical note created successfully", "note", n))
}

func (h *Handler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathUUID(r, "patientId")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	result, err := h.service.ListForPatient(r.Context(), patientID, r.URL.Query().Get("type"), pagination.ParseParams(r))
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.List("notes", result.Items, result.Meta))
}

func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	n, err := h.service.GetNote(r.Context(), id)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Clinical note retrieved successfully", "note", n))
}

func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req UpdateNoteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	n, err := h.service.UpdateNote(r.Context(), id, req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Clinical note updated successfully", "note", n))
}

func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	if err := h.service.DeleteNote(r.Context(), id); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Clinical note deleted successfully", "", nil))
}
