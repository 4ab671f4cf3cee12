package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/nikhilpatel/fieldflow/internal/api/middleware"
	"github.com/nikhilpatel/fieldflow/internal/api/response"
	"github.com/nikhilpatel/fieldflow/internal/store"
	"github.com/nikhilpatel/fieldflow/pkg/models"
)

// NewCreateEngineerHandler returns an http.HandlerFunc for
// POST /api/v1/admin/engineers. Engineers always belong to the calling
// agency; engineer-scoped keys may not create them.
func NewCreateEngineerHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mw.GetActor(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing actor", nil)
			return
		}
		if actor.EngineerID != nil {
			response.Error(w, http.StatusForbidden, "FORBIDDEN", "Engineer keys cannot create engineers", nil)
			return
		}

		var req struct {
			Name  string `json:"name"`
			Phone string `json:"phone"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}

		now := time.Now().UTC()
		eng := &models.Engineer{
			ID:        uuid.New(),
			AgencyID:  actor.AgencyID,
			Name:      req.Name,
			Phone:     req.Phone,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.CreateEngineer(r.Context(), eng); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to create engineer", nil)
			return
		}

		response.Created(w, eng)
	}
}

// NewGetEngineerHandler returns an http.HandlerFunc for
// GET /api/v1/admin/engineers/{engineerID}.
func NewGetEngineerHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mw.GetActor(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing actor", nil)
			return
		}

		engineerID, err := uuid.Parse(chi.URLParam(r, "engineerID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "engineerID must be a valid UUID", nil)
			return
		}

		eng, err := s.GetEngineer(r.Context(), engineerID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Engineer not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load engineer", nil)
			return
		}
		if eng.AgencyID != actor.AgencyID {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Engineer not found", nil)
			return
		}

		response.JSON(w, eng)
	}
}
