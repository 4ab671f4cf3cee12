package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilpatel/fieldflow/internal/realtime"
	"github.com/nikhilpatel/fieldflow/internal/telemetry"
	"github.com/nikhilpatel/fieldflow/pkg/models"
)

// Dispatcher fires post-transition notifications. Every dispatch is
// best-effort: failures are logged, counted, and reported in the
// DispatchResult, never returned as errors.
type Dispatcher struct {
	broadcaster realtime.Broadcaster
}

// NewDispatcher creates a Dispatcher publishing through the given broadcaster.
func NewDispatcher(b realtime.Broadcaster) *Dispatcher {
	return &Dispatcher{broadcaster: b}
}

// Dispatch publishes the status-update event on the job's channel and,
// when the transition demands it, a tracking signal on the assigned
// engineer's channel. Called only after the job write has been
// persisted, so subscribers never learn of a status before the
// authoritative record reflects it.
func (d *Dispatcher) Dispatch(ctx context.Context, job *models.Job, actorID uuid.UUID, loc *models.Location, at time.Time) DispatchResult {
	result := DispatchResult{
		Broadcast:      EffectOK,
		TrackingSignal: EffectSkipped,
	}

	event := realtime.StatusUpdateEvent{
		JobID:     job.ID,
		Status:    job.Status,
		ActorID:   actorID,
		Location:  loc,
		Timestamp: at,
	}
	if err := d.broadcaster.Publish(ctx, realtime.JobChannel(job.ID), realtime.EventStatusUpdate, event); err != nil {
		slog.Error("status broadcast failed", "job_id", job.ID, "status", job.Status, "error", err)
		telemetry.BroadcastFailures.Inc()
		result.Broadcast = EffectFailed
	}

	signal, ok := trackingSignalFor(job.Status)
	if !ok || job.EngineerID == nil {
		return result
	}

	payload := realtime.TrackingSignal{JobID: job.ID, Timestamp: at}
	if err := d.broadcaster.Publish(ctx, realtime.EngineerChannel(*job.EngineerID), signal, payload); err != nil {
		slog.Error("tracking signal failed", "job_id", job.ID, "engineer_id", *job.EngineerID,
			"signal", signal, "error", err)
		telemetry.BroadcastFailures.Inc()
		result.TrackingSignal = EffectFailed
		return result
	}
	result.TrackingSignal = EffectOK
	return result
}

// trackingSignalFor maps a target status to the tracking signal it
// triggers on the engineer channel: travelling starts tracking, the
// terminal statuses stop it.
func trackingSignalFor(to models.Status) (string, bool) {
	switch to {
	case models.StatusTravelling:
		return realtime.EventTrackingStart, true
	case models.StatusCompleted, models.StatusCancelled:
		return realtime.EventTrackingStop, true
	}
	return "", false
}
