package realtime

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilpatel/fieldflow/pkg/models"
)

// Event names published on broadcast channels.
const (
	EventStatusUpdate  = "status_update"
	EventTrackingStart = "tracking_start"
	EventTrackingStop  = "tracking_stop"
)

// JobChannel returns the broadcast channel for a job's status events.
func JobChannel(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

// EngineerChannel returns the broadcast channel an engineer's device
// listens on for tracking signals.
func EngineerChannel(engineerID uuid.UUID) string {
	return fmt.Sprintf("engineer:%s", engineerID)
}

// StatusUpdateEvent is published on the job channel after every
// persisted status change.
type StatusUpdateEvent struct {
	JobID     uuid.UUID        `json:"job_id"`
	Status    models.Status    `json:"status"`
	ActorID   uuid.UUID        `json:"actor_id"`
	Location  *models.Location `json:"location,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// TrackingSignal tells an engineer's device to start or stop reporting
// its location for a job. Sent on the engineer channel.
type TrackingSignal struct {
	JobID     uuid.UUID `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
}
