package handler

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/nikhilpatel/fieldflow/internal/api/middleware"
	"github.com/nikhilpatel/fieldflow/internal/api/response"
	"github.com/nikhilpatel/fieldflow/internal/store"
	"github.com/nikhilpatel/fieldflow/pkg/models"
)

// NewCreateJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
// Jobs are created in pending status; only agency keys may create.
func NewCreateJobHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mw.GetActor(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing actor", nil)
			return
		}
		if actor.EngineerID != nil {
			response.Error(w, http.StatusForbidden, "FORBIDDEN", "Engineer keys cannot create jobs", nil)
			return
		}

		var req struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Urgency     string `json:"urgency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.Title == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "title is required", nil)
			return
		}

		urgency := models.Urgency(req.Urgency)
		if req.Urgency == "" {
			urgency = models.UrgencyNormal
		}
		if !urgency.IsValid() {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"urgency must be one of emergency, urgent, normal, scheduled", nil)
			return
		}

		now := time.Now().UTC()
		job := &models.Job{
			ID:          uuid.New(),
			JobNumber:   newJobNumber(),
			AgencyID:    actor.AgencyID,
			Title:       req.Title,
			Description: req.Description,
			Status:      models.StatusPending,
			Urgency:     urgency,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := s.CreateJob(r.Context(), job); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to create job", nil)
			return
		}

		response.Created(w, job)
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
// Agency keys see all agency jobs; engineer keys see only their own
// assignments. Results are ordered emergency-first, then newest.
func NewListJobsHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mw.GetActor(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing actor", nil)
			return
		}

		filter := store.JobFilter{
			AgencyID:   actor.AgencyID,
			EngineerID: actor.EngineerID,
			Page:       queryInt(r, "page", 1),
			Limit:      queryInt(r, "limit", 20),
		}
		if filter.Limit > 100 {
			filter.Limit = 100
		}

		if v := r.URL.Query().Get("status"); v != "" {
			status := models.Status(v)
			if !status.IsValid() {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					fmt.Sprintf("unknown status %q", v), nil)
				return
			}
			filter.Status = status
		}
		if v := r.URL.Query().Get("urgency"); v != "" {
			urgency := models.Urgency(v)
			if !urgency.IsValid() {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					fmt.Sprintf("unknown urgency %q", v), nil)
				return
			}
			filter.Urgency = urgency
		}

		jobs, total, err := s.ListJobs(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list jobs", nil)
			return
		}
		if jobs == nil {
			jobs = []*models.Job{}
		}

		response.Collection(w, jobs, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: filter.Page*filter.Limit < total,
		})
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := loadAuthorizedJob(w, r, s)
		if !ok {
			return
		}
		response.JSON(w, job)
	}
}

// NewJobHistoryHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/{jobID}/history.
func NewJobHistoryHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := loadAuthorizedJob(w, r, s)
		if !ok {
			return
		}

		limit := queryInt(r, "limit", 20)
		if limit > 100 {
			limit = 100
		}

		history, err := s.ListHistory(r.Context(), job.ID, limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load status history", nil)
			return
		}
		if history == nil {
			history = []*models.StatusHistoryEntry{}
		}
		response.JSON(w, history)
	}
}

// loadAuthorizedJob resolves {jobID}, loads the job, and enforces the
// same access rule as the engine: agency ownership or engineer
// assignment. Writes the error response itself on failure.
func loadAuthorizedJob(w http.ResponseWriter, r *http.Request, s store.Store) (*models.Job, bool) {
	actor, ok := mw.GetActor(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing actor", nil)
		return nil, false
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
		return nil, false
	}

	job, err := s.GetJob(r.Context(), jobID)
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
		return nil, false
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to load job", nil)
		return nil, false
	}

	if actor.EngineerID != nil {
		if job.EngineerID == nil || *job.EngineerID != *actor.EngineerID {
			response.Error(w, http.StatusForbidden, "FORBIDDEN", "You do not have access to this job", nil)
			return nil, false
		}
	} else if job.AgencyID != actor.AgencyID {
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "You do not have access to this job", nil)
		return nil, false
	}

	return job, true
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// newJobNumber generates a short human-readable job number.
func newJobNumber() string {
	const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	buf := make([]byte, 6)
	rand.Read(buf)
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return "JOB-" + string(buf)
}
