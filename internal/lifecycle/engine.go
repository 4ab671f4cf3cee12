package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilpatel/fieldflow/internal/cache"
	"github.com/nikhilpatel/fieldflow/internal/store"
	"github.com/nikhilpatel/fieldflow/internal/telemetry"
	"github.com/nikhilpatel/fieldflow/pkg/models"
)

// statusCacheTTL bounds how long a cached job status is served without
// a fresh write refreshing it.
const statusCacheTTL = time.Hour

// ErrUnknownStatus is returned when the requested status is not one of
// the seven defined values. Checked before any datastore access.
var ErrUnknownStatus = errors.New("requested status is not a known status")

// ErrInvalidLocation is returned when supplied coordinates are out of
// range. Checked before any datastore access.
var ErrInvalidLocation = errors.New("location coordinates out of range")

// ErrForbidden is returned when the actor may not act on the job:
// an agency key for a job owned by another agency, or an engineer key
// for a job that engineer is not assigned to.
var ErrForbidden = errors.New("caller may not act on this job")

// Actor identifies the authenticated caller of a lifecycle operation.
// EngineerID is non-nil for engineer-scoped keys; such callers act as
// that engineer rather than as the agency.
type Actor struct {
	ID         uuid.UUID
	AgencyID   uuid.UUID
	EngineerID *uuid.UUID
}

// UpdateParams carries one status-update request into the engine.
type UpdateParams struct {
	JobID    uuid.UUID
	Target   models.Status
	Location *models.Location
	Notes    string
	Actor    Actor
}

// AssignParams carries an engineer-assignment request. Assignment is the
// pending → assigned transition with the engineer reference set in the
// same write.
type AssignParams struct {
	JobID      uuid.UUID
	EngineerID uuid.UUID
	Notes      string
	Actor      Actor
}

// Meta describes what a successful transition did, including the
// outcome of each best-effort side effect.
type Meta struct {
	PreviousStatus    models.Status `json:"previous_status"`
	NewStatus         models.Status `json:"new_status"`
	TransitionValid   bool          `json:"transition_valid"`
	TimestampFieldSet string        `json:"timestamp_field_set,omitempty"`
	LocationRecorded  bool          `json:"location_recorded"`
	HistoryRecorded   EffectStatus  `json:"history_recorded"`
	BroadcastSent     bool          `json:"broadcast_sent"`
	TrackingSignal    EffectStatus  `json:"tracking_signal"`
}

// Result is the success output of a lifecycle operation.
type Result struct {
	Job     *models.Job                  `json:"updated_job"`
	History []*models.StatusHistoryEntry `json:"status_history"`
	Meta    Meta                         `json:"metadata"`
}

// Engine drives job status transitions: it validates the request,
// persists the status-guarded write with the policy timestamp, then
// runs the best-effort history append and notification dispatch.
type Engine struct {
	store        store.Store
	dispatcher   *Dispatcher
	cache        cache.Cache
	historyLimit int
}

// NewEngine creates an Engine. historyLimit caps the recent history
// returned in results.
func NewEngine(s store.Store, d *Dispatcher, c cache.Cache, historyLimit int) *Engine {
	if historyLimit < 1 {
		historyLimit = 20
	}
	return &Engine{store: s, dispatcher: d, cache: c, historyLimit: historyLimit}
}

// UpdateStatus performs one transition. The sequence is fixed: input
// validation, read, authorization, transition validation, guarded
// write, history append, dispatch. Only steps up to and including the
// write can fail the request.
func (e *Engine) UpdateStatus(ctx context.Context, p UpdateParams) (*Result, error) {
	if !p.Target.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, p.Target)
	}
	if p.Location != nil && !p.Location.Valid() {
		return nil, fmt.Errorf("%w: lng=%v lat=%v", ErrInvalidLocation, p.Location.Lng, p.Location.Lat)
	}

	// Terminal statuses are absorbing, so a cached terminal status is
	// conclusive: the job cannot leave it, and no read can say
	// otherwise. Anything else (miss, stale non-terminal, cache error)
	// falls through to the authoritative read.
	if cached, ok, err := e.cache.GetJobStatus(ctx, p.JobID); err == nil && ok && cached.IsTerminal() {
		telemetry.TransitionsRejected.Inc()
		return nil, &InvalidTransitionError{From: cached, To: p.Target}
	}

	job, err := e.store.GetJob(ctx, p.JobID)
	if err != nil {
		return nil, err
	}
	if err := authorize(p.Actor, job); err != nil {
		return nil, err
	}

	if err := ValidateTransition(job.Status, p.Target); err != nil {
		telemetry.TransitionsRejected.Inc()
		return nil, err
	}

	now := time.Now().UTC()
	field := TimestampField(p.Target)
	updated, err := e.store.UpdateJobStatus(ctx, job.ID, store.StatusUpdate{
		From:       job.Status,
		To:         p.Target,
		StampField: field,
		StampAt:    now,
	})
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			telemetry.TransitionConflicts.Inc()
		}
		return nil, err
	}
	telemetry.TransitionsApplied.Inc()
	e.cacheStatus(ctx, updated)

	historyStatus := e.recordHistory(ctx, updated, p.Actor.ID, p.Location, p.Notes, now)
	dispatch := e.dispatcher.Dispatch(ctx, updated, p.Actor.ID, p.Location, now)

	return &Result{
		Job:     updated,
		History: e.recentHistory(ctx, updated.ID),
		Meta: Meta{
			PreviousStatus:    job.Status,
			NewStatus:         updated.Status,
			TransitionValid:   true,
			TimestampFieldSet: field,
			LocationRecorded:  p.Location != nil,
			HistoryRecorded:   historyStatus,
			BroadcastSent:     dispatch.Broadcast.Sent(),
			TrackingSignal:    dispatch.TrackingSignal,
		},
	}, nil
}

// AssignEngineer runs the pending → assigned transition, setting the
// engineer reference in the same guarded write. Only agency keys may
// assign; the engineer must belong to the job's agency.
func (e *Engine) AssignEngineer(ctx context.Context, p AssignParams) (*Result, error) {
	job, err := e.store.GetJob(ctx, p.JobID)
	if err != nil {
		return nil, err
	}
	if p.Actor.EngineerID != nil || job.AgencyID != p.Actor.AgencyID {
		return nil, ErrForbidden
	}

	eng, err := e.store.GetEngineer(ctx, p.EngineerID)
	if err != nil {
		return nil, err
	}
	if eng.AgencyID != job.AgencyID {
		return nil, ErrForbidden
	}

	if err := ValidateTransition(job.Status, models.StatusAssigned); err != nil {
		telemetry.TransitionsRejected.Inc()
		return nil, err
	}

	now := time.Now().UTC()
	updated, err := e.store.AssignEngineer(ctx, job.ID, eng.ID, store.StatusUpdate{
		From:    job.Status,
		To:      models.StatusAssigned,
		StampAt: now,
	})
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			telemetry.TransitionConflicts.Inc()
		}
		return nil, err
	}
	telemetry.TransitionsApplied.Inc()
	e.cacheStatus(ctx, updated)

	historyStatus := e.recordHistory(ctx, updated, p.Actor.ID, nil, p.Notes, now)
	dispatch := e.dispatcher.Dispatch(ctx, updated, p.Actor.ID, nil, now)

	return &Result{
		Job:     updated,
		History: e.recentHistory(ctx, updated.ID),
		Meta: Meta{
			PreviousStatus:    job.Status,
			NewStatus:         updated.Status,
			TransitionValid:   true,
			TimestampFieldSet: TimestampField(models.StatusAssigned),
			LocationRecorded:  false,
			HistoryRecorded:   historyStatus,
			BroadcastSent:     dispatch.Broadcast.Sent(),
			TrackingSignal:    dispatch.TrackingSignal,
		},
	}, nil
}

// cacheStatus records the job's new status after a persisted
// transition. Best-effort: a write failure only costs the next request
// its fast path.
func (e *Engine) cacheStatus(ctx context.Context, job *models.Job) {
	if err := e.cache.SetJobStatus(ctx, job.ID, job.Status, statusCacheTTL); err != nil {
		slog.Warn("status cache write failed", "job_id", job.ID, "status", job.Status, "error", err)
	}
}

// recordHistory appends the audit entry for a persisted transition.
// The job's status change is the primary effect; a failed append is
// logged and skipped, never propagated.
func (e *Engine) recordHistory(ctx context.Context, job *models.Job, actorID uuid.UUID, loc *models.Location, notes string, at time.Time) EffectStatus {
	entry := &models.StatusHistoryEntry{
		ID:        uuid.New(),
		JobID:     job.ID,
		Status:    job.Status,
		ActorID:   actorID,
		CreatedAt: at,
	}
	if loc != nil {
		entry.SetLocation(*loc)
	}
	if notes != "" {
		entry.Notes = &notes
	}

	if err := e.store.AppendHistory(ctx, entry); err != nil {
		slog.Error("history append failed", "job_id", job.ID, "status", job.Status, "error", err)
		telemetry.HistoryFailures.Inc()
		return EffectFailed
	}
	return EffectOK
}

// recentHistory loads the entries returned with a result. The write has
// already been acknowledged at this point, so a read failure here only
// costs the response its history section.
func (e *Engine) recentHistory(ctx context.Context, jobID uuid.UUID) []*models.StatusHistoryEntry {
	history, err := e.store.ListHistory(ctx, jobID, e.historyLimit)
	if err != nil {
		slog.Error("list history failed", "job_id", jobID, "error", err)
		return nil
	}
	return history
}

// authorize checks that the actor may act on the job: agency keys must
// own the job, engineer keys must be its assigned engineer.
func authorize(actor Actor, job *models.Job) error {
	if actor.EngineerID != nil {
		if job.EngineerID == nil || *job.EngineerID != *actor.EngineerID {
			return ErrForbidden
		}
		return nil
	}
	if job.AgencyID != actor.AgencyID {
		return ErrForbidden
	}
	return nil
}
