package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/nikhilpatel/fieldflow/internal/api/middleware"
	"github.com/nikhilpatel/fieldflow/internal/api/response"
	"github.com/nikhilpatel/fieldflow/internal/lifecycle"
	"github.com/nikhilpatel/fieldflow/internal/store"
	"github.com/nikhilpatel/fieldflow/pkg/models"
)

// Engine defines the lifecycle operations the handlers depend on.
type Engine interface {
	UpdateStatus(ctx context.Context, p lifecycle.UpdateParams) (*lifecycle.Result, error)
	AssignEngineer(ctx context.Context, p lifecycle.AssignParams) (*lifecycle.Result, error)
}

type locationBody struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewUpdateStatusHandler returns an http.HandlerFunc for
// PATCH /api/v1/jobs/{jobID}/status.
func NewUpdateStatusHandler(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mw.GetActor(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing actor", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		var req struct {
			Status   string        `json:"status"`
			Location *locationBody `json:"location"`
			Notes    string        `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.Status == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "status is required", nil)
			return
		}

		params := lifecycle.UpdateParams{
			JobID:  jobID,
			Target: models.Status(req.Status),
			Notes:  req.Notes,
			Actor:  actor,
		}
		if req.Location != nil {
			params.Location = &models.Location{Lng: req.Location.Lng, Lat: req.Location.Lat}
		}

		result, err := engine.UpdateStatus(r.Context(), params)
		if err != nil {
			writeLifecycleError(w, err)
			return
		}

		response.JSON(w, result)
	}
}

// NewAssignEngineerHandler returns an http.HandlerFunc for
// POST /api/v1/jobs/{jobID}/assign.
func NewAssignEngineerHandler(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mw.GetActor(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing actor", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		var req struct {
			EngineerID string `json:"engineer_id"`
			Notes      string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		engineerID, err := uuid.Parse(req.EngineerID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "engineer_id must be a valid UUID", nil)
			return
		}

		result, err := engine.AssignEngineer(r.Context(), lifecycle.AssignParams{
			JobID:      jobID,
			EngineerID: engineerID,
			Notes:      req.Notes,
			Actor:      actor,
		})
		if err != nil {
			writeLifecycleError(w, err)
			return
		}

		response.JSON(w, result)
	}
}

// writeLifecycleError maps engine errors to stable error codes. Input
// and transition failures identify themselves; anything unrecognized is
// a datastore or internal failure.
func writeLifecycleError(w http.ResponseWriter, err error) {
	var invalid *lifecycle.InvalidTransitionError
	switch {
	case errors.Is(err, lifecycle.ErrUnknownStatus),
		errors.Is(err, lifecycle.ErrInvalidLocation):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, lifecycle.ErrForbidden):
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "You do not have access to this job", nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
	case errors.As(err, &invalid):
		response.Error(w, http.StatusUnprocessableEntity, "INVALID_TRANSITION", invalid.Error(),
			map[string]any{"allowed": invalid.Allowed})
	case errors.Is(err, store.ErrStatusConflict):
		response.Error(w, http.StatusConflict, "CONFLICT",
			"Job status changed concurrently; re-read and retry", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
