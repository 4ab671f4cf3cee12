package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/nikhilpatel/fieldflow/internal/api/middleware"
	"github.com/nikhilpatel/fieldflow/internal/lifecycle"
	"github.com/nikhilpatel/fieldflow/internal/store"
	"github.com/nikhilpatel/fieldflow/pkg/models"
)

// --- mock Engine ---

type mockEngine struct {
	updateFn func(p lifecycle.UpdateParams) (*lifecycle.Result, error)
	assignFn func(p lifecycle.AssignParams) (*lifecycle.Result, error)
}

func (m *mockEngine) UpdateStatus(_ context.Context, p lifecycle.UpdateParams) (*lifecycle.Result, error) {
	return m.updateFn(p)
}

func (m *mockEngine) AssignEngineer(_ context.Context, p lifecycle.AssignParams) (*lifecycle.Result, error) {
	return m.assignFn(p)
}

// --- helpers ---

func agencyActor() lifecycle.Actor {
	id := uuid.New()
	return lifecycle.Actor{ID: id, AgencyID: id}
}

func statusRouter(engine Engine) http.Handler {
	r := chi.NewRouter()
	r.Patch("/jobs/{jobID}/status", NewUpdateStatusHandler(engine))
	r.Post("/jobs/{jobID}/assign", NewAssignEngineerHandler(engine))
	return r
}

func authedReq(t *testing.T, method, path string, body any, actor lifecycle.Actor) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r.WithContext(mw.SetActor(r.Context(), actor))
}

func parseErr(t *testing.T, rec *httptest.ResponseRecorder) (int, string) {
	t.Helper()
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, env.Error.Code
}

func sampleResult(from, to models.Status) *lifecycle.Result {
	now := time.Now().UTC()
	return &lifecycle.Result{
		Job: &models.Job{
			ID:        uuid.New(),
			JobNumber: "JOB-TEST42",
			Status:    to,
			CreatedAt: now,
			UpdatedAt: now,
		},
		History: []*models.StatusHistoryEntry{},
		Meta: lifecycle.Meta{
			PreviousStatus:  from,
			NewStatus:       to,
			TransitionValid: true,
			HistoryRecorded: lifecycle.EffectOK,
			BroadcastSent:   true,
			TrackingSignal:  lifecycle.EffectSkipped,
		},
	}
}

// --- update status tests ---

func TestUpdateStatusHandler_Success(t *testing.T) {
	jobID := uuid.New()
	var captured lifecycle.UpdateParams
	engine := &mockEngine{updateFn: func(p lifecycle.UpdateParams) (*lifecycle.Result, error) {
		captured = p
		return sampleResult(models.StatusAccepted, models.StatusTravelling), nil
	}}

	rec := httptest.NewRecorder()
	body := map[string]any{
		"status":   "travelling",
		"location": map[string]float64{"lat": 51.5072, "lng": -0.1276},
		"notes":    "on my way",
	}
	statusRouter(engine).ServeHTTP(rec, authedReq(t, http.MethodPatch, "/jobs/"+jobID.String()+"/status", body, agencyActor()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.JobID != jobID {
		t.Errorf("jobID not passed through: %s", captured.JobID)
	}
	if captured.Target != models.StatusTravelling {
		t.Errorf("target = %q, want travelling", captured.Target)
	}
	if captured.Location == nil || captured.Location.Lat != 51.5072 || captured.Location.Lng != -0.1276 {
		t.Errorf("location not passed through: %+v", captured.Location)
	}
	if captured.Notes != "on my way" {
		t.Errorf("notes = %q", captured.Notes)
	}

	var env struct {
		Data struct {
			Meta struct {
				PreviousStatus string `json:"previous_status"`
				NewStatus      string `json:"new_status"`
			} `json:"metadata"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Meta.PreviousStatus != "accepted" || env.Data.Meta.NewStatus != "travelling" {
		t.Errorf("metadata = %+v", env.Data.Meta)
	}
}

func TestUpdateStatusHandler_MissingActor(t *testing.T) {
	engine := &mockEngine{}
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPatch, "/jobs/"+uuid.NewString()+"/status", bytes.NewReader([]byte(`{"status":"accepted"}`)))
	statusRouter(engine).ServeHTTP(rec, r)

	code, errCode := parseErr(t, rec)
	if code != http.StatusUnauthorized || errCode != "INVALID_TOKEN" {
		t.Errorf("got %d %s", code, errCode)
	}
}

func TestUpdateStatusHandler_BadJobID(t *testing.T) {
	engine := &mockEngine{}
	rec := httptest.NewRecorder()
	statusRouter(engine).ServeHTTP(rec, authedReq(t, http.MethodPatch, "/jobs/not-a-uuid/status",
		map[string]any{"status": "accepted"}, agencyActor()))

	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Errorf("got %d %s", code, errCode)
	}
}

func TestUpdateStatusHandler_MissingStatus(t *testing.T) {
	engine := &mockEngine{}
	rec := httptest.NewRecorder()
	statusRouter(engine).ServeHTTP(rec, authedReq(t, http.MethodPatch, "/jobs/"+uuid.NewString()+"/status",
		map[string]any{"notes": "no status here"}, agencyActor()))

	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Errorf("got %d %s", code, errCode)
	}
}

func TestUpdateStatusHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"unknown status", lifecycle.ErrUnknownStatus, http.StatusBadRequest, "INVALID_REQUEST"},
		{"invalid location", lifecycle.ErrInvalidLocation, http.StatusBadRequest, "INVALID_REQUEST"},
		{"forbidden", lifecycle.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"not found", store.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"invalid transition", &lifecycle.InvalidTransitionError{
			From:    models.StatusPending,
			To:      models.StatusOnsite,
			Allowed: lifecycle.AllowedNext(models.StatusPending),
		}, http.StatusUnprocessableEntity, "INVALID_TRANSITION"},
		{"conflict", store.ErrStatusConflict, http.StatusConflict, "CONFLICT"},
		{"internal", errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &mockEngine{updateFn: func(lifecycle.UpdateParams) (*lifecycle.Result, error) {
				return nil, tc.err
			}}
			rec := httptest.NewRecorder()
			statusRouter(engine).ServeHTTP(rec, authedReq(t, http.MethodPatch, "/jobs/"+uuid.NewString()+"/status",
				map[string]any{"status": "onsite"}, agencyActor()))

			code, errCode := parseErr(t, rec)
			if code != tc.wantCode || errCode != tc.wantErr {
				t.Errorf("got %d %s, want %d %s", code, errCode, tc.wantCode, tc.wantErr)
			}
		})
	}
}

func TestUpdateStatusHandler_InvalidTransitionListsAllowed(t *testing.T) {
	engine := &mockEngine{updateFn: func(lifecycle.UpdateParams) (*lifecycle.Result, error) {
		return nil, &lifecycle.InvalidTransitionError{
			From:    models.StatusPending,
			To:      models.StatusCompleted,
			Allowed: []models.Status{models.StatusAssigned, models.StatusCancelled},
		}
	}}
	rec := httptest.NewRecorder()
	statusRouter(engine).ServeHTTP(rec, authedReq(t, http.MethodPatch, "/jobs/"+uuid.NewString()+"/status",
		map[string]any{"status": "completed"}, agencyActor()))

	var env struct {
		Error struct {
			Details struct {
				Allowed []string `json:"allowed"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Error.Details.Allowed) != 2 || env.Error.Details.Allowed[0] != "assigned" {
		t.Errorf("allowed = %v", env.Error.Details.Allowed)
	}
}

// --- assign tests ---

func TestAssignEngineerHandler_Success(t *testing.T) {
	jobID := uuid.New()
	engineerID := uuid.New()
	var captured lifecycle.AssignParams
	engine := &mockEngine{assignFn: func(p lifecycle.AssignParams) (*lifecycle.Result, error) {
		captured = p
		return sampleResult(models.StatusPending, models.StatusAssigned), nil
	}}

	rec := httptest.NewRecorder()
	body := map[string]any{"engineer_id": engineerID.String(), "notes": "nearest available"}
	statusRouter(engine).ServeHTTP(rec, authedReq(t, http.MethodPost, "/jobs/"+jobID.String()+"/assign", body, agencyActor()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.JobID != jobID || captured.EngineerID != engineerID {
		t.Errorf("params not passed through: %+v", captured)
	}
}

func TestAssignEngineerHandler_BadEngineerID(t *testing.T) {
	engine := &mockEngine{}
	rec := httptest.NewRecorder()
	statusRouter(engine).ServeHTTP(rec, authedReq(t, http.MethodPost, "/jobs/"+uuid.NewString()+"/assign",
		map[string]any{"engineer_id": "nope"}, agencyActor()))

	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Errorf("got %d %s", code, errCode)
	}
}

func TestAssignEngineerHandler_Forbidden(t *testing.T) {
	engine := &mockEngine{assignFn: func(lifecycle.AssignParams) (*lifecycle.Result, error) {
		return nil, lifecycle.ErrForbidden
	}}
	rec := httptest.NewRecorder()
	statusRouter(engine).ServeHTTP(rec, authedReq(t, http.MethodPost, "/jobs/"+uuid.NewString()+"/assign",
		map[string]any{"engineer_id": uuid.NewString()}, agencyActor()))

	code, errCode := parseErr(t, rec)
	if code != http.StatusForbidden || errCode != "FORBIDDEN" {
		t.Errorf("got %d %s", code, errCode)
	}
}
