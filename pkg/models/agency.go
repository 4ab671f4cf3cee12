package models

import (
	"time"

	"github.com/google/uuid"
)

// Agency is a service company. Every job, engineer, and API key belongs
// to an agency.
type Agency struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Engineer is a field technician employed by an agency. Engineers receive
// tracking signals on their own broadcast channel while working a job.
type Engineer struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	AgencyID  uuid.UUID `db:"agency_id"  json:"agency_id"`
	Name      string    `db:"name"       json:"name"`
	Phone     string    `db:"phone"      json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
