package patient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/orthoflow/practice-service/internal/pagination"
	"github.com/orthoflow/practice-service/internal/testutil"
)

const patientUUID = "3f2a1c9e-8b7d-4e6f-a5b4-c3d2e1f0a9b8"

// mockService implements ServiceInterface for testing
type mockService struct {
	createPatientFunc func(ctx context.Context, req CreatePatientRequest) (*Patient, error)
	getPatientFunc    func(ctx context.Context, id string) (*Detail, error)
	listPatientsFunc  func(ctx context.Context, filter ListFilter, params pagination.Params) (*pagination.Result[Patient], error)
	updatePatientFunc func(ctx context.Context, id string, req UpdatePatientRequest) (*Patient, error)
	deletePatientFunc func(ctx context.Context, id string) error
	findByEmailFunc   func(ctx context.Context, email string) (*Patient, error)
	findByPhoneFunc   func(ctx context.Context, phone string) (*Patient, error)
	getSummaryFunc    func(ctx context.Context, id string) (*Summary, error)
}

func (m *mockService) CreatePatient(ctx context.Context, req CreatePatientRequest) (*Patient, error) {
	if m.createPatientFunc != nil {
		return m.createPatientFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) GetPatient(ctx context.Context, id string) (*Detail, error) {
	if m.getPatientFunc != nil {
		return m.getPatientFunc(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) ListPatients(ctx context.Context, filter ListFilter, params pagination.Params) (*pagination.Result[Patient], error) {
	if m.listPatientsFunc != nil {
		return m.listPatientsFunc(ctx, filter, params)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) UpdatePatient(ctx context.Context, id string, req UpdatePatientRequest) (*Patient, error) {
	if m.updatePatientFunc != nil {
		return m.updatePatientFunc(ctx, id, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) DeletePatient(ctx context.Context, id string) error {
	if m.deletePatientFunc != nil {
		return m.deletePatientFunc(ctx, id)
	}
	return errors.New("not implemented")
}

func (m *mockService) FindByEmail(ctx context.Context, email string) (*Patient, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) FindByPhone(ctx context.Context, phone string) (*Patient, error) {
	if m.findByPhoneFunc != nil {
		return m.findByPhoneFunc(ctx, phone)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) GetSummary(ctx context.Context, id string) (*Summary, error) {
	if m.getSummaryFunc != nil {
		return m.getSummaryFunc(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func TestCreatePatientHandler_Success(t *testing.T) {
	h := NewHandler(&mockService{
		createPatientFunc: func(ctx context.Context, req CreatePatientRequest) (*Patient, error) {
			return &Patient{ID: patientUUID, FirstName: req.FirstName, LastName: req.LastName}, nil
		},
	})

	req := testutil.NewRequest(t, http.MethodPost, "/patients", map[string]string{
		"first_name": "Lena",
		"last_name":  "Kowalski",
	}, nil)
	rec := httptest.NewRecorder()
	h.CreatePatient(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := testutil.DecodeBody(t, rec)
	if body["success"] != true {
		t.Errorf("Expected success true, got %v", body["success"])
	}
	p := body["patient"].(map[string]interface{})
	if p["id"] != patientUUID {
		t.Errorf("Expected id %s, got %v", patientUUID, p["id"])
	}
}

func TestCreatePatientHandler_InvalidJSON(t *testing.T) {
	h := NewHandler(&mockService{})

	rec := httptest.NewRecorder()
	h.CreatePatient(rec, testutil.NewRequest(t, http.MethodPost, "/patients", "{not json", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
}

func TestCreatePatientHandler_UnknownField(t *testing.T) {
	h := NewHandler(&mockService{})

	rec := httptest.NewRecorder()
	h.CreatePatient(rec, testutil.NewRequest(t, http.MethodPost, "/patients", `{"first_name":"A","last_name":"B","legacy_source":"LEGACY"}`, nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400 for unknown field, got %d", rec.Code)
	}
}

func TestCreatePatientHandler_Conflict(t *testing.T) {
	h := NewHandler(&mockService{
		createPatientFunc: func(ctx context.Context, req CreatePatientRequest) (*Patient, error) {
			return nil, ErrDuplicateEmail
		},
	})

	rec := httptest.NewRecorder()
	h.CreatePatient(rec, testutil.NewRequest(t, http.MethodPost, "/patients", map[string]string{"first_name": "A", "last_name": "B", "email": "a@b.co"}, nil))

	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected status 409, got %d", rec.Code)
	}
	if body := testutil.DecodeBody(t, rec); body["error"] != "conflict" {
		t.Errorf("Expected error 'conflict', got %v", body["error"])
	}
}

func TestListPatientsHandler(t *testing.T) {
	var gotFilter ListFilter
	var gotParams pagination.Params
	h := NewHandler(&mockService{
		listPatientsFunc: func(ctx context.Context, filter ListFilter, params pagination.Params) (*pagination.Result[Patient], error) {
			gotFilter, gotParams = filter, params
			return &pagination.Result[Patient]{
				Items: []Patient{{ID: "p-1"}},
				Meta:  params.CalculateMeta(1),
			}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.ListPatients(rec, testutil.NewRequest(t, http.MethodGet, "/patients?search=kow&active=true&page=2&limit=5&sort=-created_at", nil, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if gotFilter.Search != "kow" || gotFilter.Active == nil || !*gotFilter.Active {
		t.Errorf("Unexpected filter: %+v", gotFilter)
	}
	if gotParams.Page != 2 || gotParams.Limit != 5 || gotParams.Sort != "-created_at" {
		t.Errorf("Unexpected params: %+v", gotParams)
	}
	body := testutil.DecodeBody(t, rec)
	if _, ok := body["pagination"]; !ok {
		t.Error("Expected pagination in response")
	}
	if items := body["patients"].([]interface{}); len(items) != 1 {
		t.Errorf("Expected 1 patient, got %d", len(items))
	}
}

func TestListPatientsHandler_BadActiveFlag(t *testing.T) {
	h := NewHandler(&mockService{})

	rec := httptest.NewRecorder()
	h.ListPatients(rec, testutil.NewRequest(t, http.MethodGet, "/patients?active=maybe", nil, nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
}

func TestGetPatientHandler_InvalidID(t *testing.T) {
	h := NewHandler(&mockService{})

	rec := httptest.NewRecorder()
	h.GetPatient(rec, testutil.NewRequest(t, http.MethodGet, "/patients/abc", nil, map[string]string{"id": "abc"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
}

func TestGetPatientHandler_NotFound(t *testing.T) {
	h := NewHandler(&mockService{
		getPatientFunc: func(ctx context.Context, id string) (*Detail, error) {
			return nil, ErrPatientNotFound
		},
	})

	rec := httptest.NewRecorder()
	h.GetPatient(rec, testutil.NewRequest(t, http.MethodGet, "/patients/"+patientUUID, nil, map[string]string{"id": patientUUID}))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}
}

func TestUpdatePatientHandler_NoFields(t *testing.T) {
	h := NewHandler(&mockService{
		updatePatientFunc: func(ctx context.Context, id string, req UpdatePatientRequest) (*Patient, error) {
			return nil, ErrNoFieldsToUpdate
		},
	})

	rec := httptest.NewRecorder()
	h.UpdatePatient(rec, testutil.NewRequest(t, http.MethodPut, "/patients/"+patientUUID, "{}", map[string]string{"id": patientUUID}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
}

func TestDeletePatientHandler(t *testing.T) {
	var deleted string
	h := NewHandler(&mockService{
		deletePatientFunc: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	})

	rec := httptest.NewRecorder()
	h.DeletePatient(rec, testutil.NewRequest(t, http.MethodDelete, "/patients/"+patientUUID, nil, map[string]string{"id": patientUUID}))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if deleted != patientUUID {
		t.Errorf("Expected delete of %s, got %s", patientUUID, deleted)
	}
}

func TestLookupHandler(t *testing.T) {
	h := NewHandler(&mockService{
		findByPhoneFunc: func(ctx context.Context, phone string) (*Patient, error) {
			if phone != "0151 2345678" {
				t.Errorf("Unexpected phone %q", phone)
			}
			return &Patient{ID: "p-1"}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Lookup(rec, testutil.NewRequest(t, http.MethodGet, "/patients/lookup?phone=0151+2345678", nil, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Lookup(rec, testutil.NewRequest(t, http.MethodGet, "/patients/lookup", nil, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400 without query, got %d", rec.Code)
	}
}

func TestHandler_InternalErrorIsMasked(t *testing.T) {
	h := NewHandler(&mockService{
		getSummaryFunc: func(ctx context.Context, id string) (*Summary, error) {
			return nil, errors.New("pq: connection refused")
		},
	})

	rec := httptest.NewRecorder()
	h.GetSummary(rec, testutil.NewRequest(t, http.MethodGet, "/patients/"+patientUUID+"/summary", nil, map[string]string{"id": patientUUID}))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rec.Code)
	}
	if body := testutil.DecodeBody(t, rec); body["message"] != "An unexpected error occurred" {
		t.Errorf("Expected masked message, got %v", body["message"])
	}
}
