package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilpatel/fieldflow/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrStatusConflict is returned when a status-guarded job update matches
// no rows: a concurrent request transitioned the job first.
var ErrStatusConflict = errors.New("job status changed concurrently")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultAgency(ctx context.Context) (*models.Agency, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, agencyID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, agencyID uuid.UUID) error

	CreateEngineer(ctx context.Context, eng *models.Engineer) error
	GetEngineer(ctx context.Context, id uuid.UUID) (*models.Engineer, error)

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) (*models.Job, error)
	AssignEngineer(ctx context.Context, id uuid.UUID, engineerID uuid.UUID, update StatusUpdate) (*models.Job, error)

	AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error
	ListHistory(ctx context.Context, jobID uuid.UUID, limit int) ([]*models.StatusHistoryEntry, error)
}

// JobFilter selects and pages job listings. Results sort by urgency rank
// (emergency first), then newest first.
type JobFilter struct {
	AgencyID   uuid.UUID
	EngineerID *uuid.UUID
	Status     models.Status
	Urgency    models.Urgency
	Page       int
	Limit      int
}

// StatusUpdate describes a status-guarded job write. The write only
// succeeds if the job is still in From; StampField, when non-empty,
// names the audit timestamp column set to StampAt alongside the status.
type StatusUpdate struct {
	From       models.Status
	To         models.Status
	StampField string
	StampAt    time.Time
}
