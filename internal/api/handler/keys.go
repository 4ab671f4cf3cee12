package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/nikhilpatel/fieldflow/internal/api/middleware"
	"github.com/nikhilpatel/fieldflow/internal/api/response"
	"github.com/nikhilpatel/fieldflow/internal/store"
	"github.com/nikhilpatel/fieldflow/pkg/models"
)

// NewCreateKeyHandler returns an http.HandlerFunc for POST /api/v1/admin/keys.
// The raw key is returned once; only its bcrypt hash is stored.
func NewCreateKeyHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mw.GetActor(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing actor", nil)
			return
		}

		var req struct {
			Name       string   `json:"name"`
			Scopes     []string `json:"scopes"`
			EngineerID string   `json:"engineer_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}
		if len(req.Scopes) == 0 {
			req.Scopes = []string{"jobs"}
		}

		var engineerID *uuid.UUID
		if req.EngineerID != "" {
			id, err := uuid.Parse(req.EngineerID)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "engineer_id must be a valid UUID", nil)
				return
			}
			eng, err := s.GetEngineer(r.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Engineer not found", nil)
				return
			}
			if err != nil {
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load engineer", nil)
				return
			}
			if eng.AgencyID != actor.AgencyID {
				response.Error(w, http.StatusForbidden, "FORBIDDEN", "Engineer belongs to another agency", nil)
				return
			}
			engineerID = &id
		}

		rawKey, err := generateRawKey()
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate key", nil)
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to hash key", nil)
			return
		}

		now := time.Now().UTC()
		key := &models.APIKey{
			ID:         uuid.New(),
			AgencyID:   actor.AgencyID,
			EngineerID: engineerID,
			Name:       req.Name,
			KeyHash:    string(hash),
			KeyPrefix:  rawKey[:8],
			Scopes:     req.Scopes,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.CreateAPIKey(r.Context(), key); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create key", nil)
			return
		}

		response.Created(w, map[string]any{
			"id":          key.ID,
			"name":        key.Name,
			"key":         rawKey,
			"key_prefix":  key.KeyPrefix,
			"scopes":      key.Scopes,
			"engineer_id": key.EngineerID,
			"created_at":  key.CreatedAt,
		})
	}
}

// NewListKeysHandler returns an http.HandlerFunc for GET /api/v1/admin/keys.
func NewListKeysHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mw.GetActor(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing actor", nil)
			return
		}

		keys, err := s.ListAPIKeys(r.Context(), actor.AgencyID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list keys", nil)
			return
		}
		if keys == nil {
			keys = []*models.APIKey{}
		}
		response.JSON(w, keys)
	}
}

// NewRevokeKeyHandler returns an http.HandlerFunc for DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mw.GetActor(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing actor", nil)
			return
		}

		keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "keyID must be a valid UUID", nil)
			return
		}

		err = s.RevokeAPIKey(r.Context(), keyID, actor.AgencyID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Key not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke key", nil)
			return
		}
		response.NoContent(w)
	}
}

// generateRawKey returns a new API key: "ff_" plus 32 hex chars. The
// first 8 characters form the lookup prefix.
func generateRawKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "ff_" + hex.EncodeToString(buf), nil
}
