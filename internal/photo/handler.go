package photo

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/httpx"
	"github.com/orthoflow/practice-service/internal/media"
)

const multipartMemory = 8 << 20

type Handler struct {
	service  ServiceInterface
	maxBytes int64
}

func NewHandler(service ServiceInterface, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Handler{service: service, maxBytes: maxBytes}
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Photo categories retrieved successfully", "categories", categories))
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	c, err := h.service.CreateCategory(r.Context(), req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, httpx.Success("Photo category created successfully", "category", c))
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req UpdateCategoryRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	c, err := h.service.UpdateCategory(r.Context(), id, req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Photo category updated successfully", "category", c))
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Photo category deleted successfully", "", nil))
}

// Upload accepts multipart/form-data with a "file" part and form fields
// category, treatment_plan_id, taken_at, notes and tags (comma separated).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathUUID(r, "patientId")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	req, err := h.parseUpload(w, r)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	req.PatientID = patientID

	p, err := h.service.Upload(r.Context(), req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, httpx.Success("Photo uploaded successfully", "photo", p))
}

func (h *Handler) parseUpload(w http.ResponseWriter, r *http.Request) (UploadRequest, error) {
	var req UploadRequest

	// Leave headroom for the form fields around the file part.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, apperr.Invalid("file", "exceeds the %d MB limit", h.maxBytes>>20)
		}
		return req, apperr.Invalid("", "invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return req, ErrEmptyUpload
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		return req, fmt.Errorf("failed to read upload: %w", err)
	}
	req.Data = data
	req.Filename = header.Filename
	req.ContentType = header.Header.Get("Content-Type")

	req.CategoryID = r.FormValue("category")
	if req.CategoryID == "" {
		req.CategoryID = r.FormValue("category_id")
	}
	if v := strings.TrimSpace(r.FormValue("treatment_plan_id")); v != "" {
		req.TreatmentPlanID = &v
	}
	if v := strings.TrimSpace(r.FormValue("taken_at")); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return req, apperr.Invalid("taken_at", "must be RFC3339 or YYYY-MM-DD")
		}
		req.TakenAt = &t
	}
	if v := r.FormValue("notes"); v != "" {
		req.Notes = &v
	}
	if v := r.FormValue("tags"); v != "" {
		req.Tags = strings.Split(v, ",")
	}
	return req, nil
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func (h *Handler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathUUID(r, "patientId")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	filter := ListFilter{CategoryID: strings.TrimSpace(r.URL.Query().Get("category"))}
	if filter.TreatmentPlanID, err = httpx.QueryUUID(r, "treatment_plan_id"); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	photos, err := h.service.ListForPatient(r.Context(), patientID, filter)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Photos retrieved successfully", "photos", photos))
}

func (h *Handler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	p, err := h.service.GetPhoto(r.Context(), id)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Photo retrieved successfully", "photo", p))
}

func (h *Handler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req UpdateMetadataRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	p, err := h.service.UpdateMetadata(r.Context(), id, req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Photo updated successfully", "photo", p))
}

func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	if err := h.service.DeletePhoto(r.Context(), id); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Photo deleted successfully", "", nil))
}

func (h *Handler) Transform(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	q := r.URL.Query()
	t := media.Transform{
		Crop:    q.Get("crop"),
		Quality: q.Get("quality"),
		Format:  q.Get("format"),
	}
	if t.Width, err = queryInt(q.Get("width"), "width"); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	if t.Height, err = queryInt(q.Get("height"), "height"); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	url, err := h.service.Transform(r.Context(), id, t)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Photo URL generated successfully", "url", url))
}

func queryInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid(field, "must be a number")
	}
	return n, nil
}

func (h *Handler) SearchRemote(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathUUID(r, "patientId")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	q := r.URL.Query()
	req := SearchRequest{Category: q.Get("category"), Tag: q.Get("tag"), Cursor: q.Get("cursor")}
	if req.MaxResults, err = queryInt(q.Get("max_results"), "max_results"); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	result, err := h.service.SearchRemote(r.Context(), patientID, req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Remote photos retrieved successfully", "result", result))
}

func (h *Handler) CreatePair(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathUUID(r, "patientId")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	var req CreatePairRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	pair, err := h.service.CreatePair(r.Context(), patientID, req)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, httpx.Success("Photos paired successfully", "pair", pair))
}

func (h *Handler) ListPairs(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathUUID(r, "patientId")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	pairs, err := h.service.ListPairs(r.Context(), patientID)
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Photo pairs retrieved successfully", "pairs", pairs))
}

func (h *Handler) Unpair(w http.ResponseWriter, r *http.Request) {
	pairID, err := httpx.PathUUID(r, "pairId")
	if err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}

	if err := h.service.Unpair(r.Context(), pairID); err != nil {
		httpx.RespondServiceError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, httpx.Success("Photo pair removed successfully", "", nil))
}
