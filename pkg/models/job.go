package models

import (
	"time"

	"github.com/google/uuid"
)

// Job is a unit of field work owned by an agency and optionally assigned
// to an engineer. Status moves only through the lifecycle engine; the
// audit timestamps record when the job entered the matching status.
type Job struct {
	ID          uuid.UUID  `db:"id"           json:"id"`
	JobNumber   string     `db:"job_number"   json:"job_number"`
	AgencyID    uuid.UUID  `db:"agency_id"    json:"agency_id"`
	EngineerID  *uuid.UUID `db:"engineer_id"  json:"engineer_id,omitempty"`
	Title       string     `db:"title"        json:"title"`
	Description string     `db:"description"  json:"description,omitempty"`
	Status      Status     `db:"status"       json:"status"`
	Urgency     Urgency    `db:"urgency"      json:"urgency"`
	AssignedAt  *time.Time `db:"assigned_at"  json:"assigned_at,omitempty"`
	AcceptedAt  *time.Time `db:"accepted_at"  json:"accepted_at,omitempty"`
	StartedAt   *time.Time `db:"started_at"   json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
}
