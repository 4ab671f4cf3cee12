package models

import (
	"time"

	"github.com/google/uuid"
)

// Location is a geographic point. Stored and serialized in
// longitude-latitude order.
type Location struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Valid reports whether the coordinates are in range.
func (l Location) Valid() bool {
	return l.Lng >= -180 && l.Lng <= 180 && l.Lat >= -90 && l.Lat <= 90
}

// StatusHistoryEntry is an immutable audit record of one accepted
// transition: the status the job moved to, who requested it, and where
// they were at the time. Entries are append-only and never mutated.
type StatusHistoryEntry struct {
	ID        uuid.UUID  `db:"id"         json:"id"`
	JobID     uuid.UUID  `db:"job_id"     json:"job_id"`
	Status    Status     `db:"status"     json:"status"`
	ActorID   uuid.UUID  `db:"actor_id"   json:"actor_id"`
	Longitude *float64   `db:"longitude"  json:"longitude,omitempty"`
	Latitude  *float64   `db:"latitude"   json:"latitude,omitempty"`
	Notes     *string    `db:"notes"      json:"notes,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// SetLocation copies loc into the entry's coordinate columns.
func (e *StatusHistoryEntry) SetLocation(loc Location) {
	lng, lat := loc.Lng, loc.Lat
	e.Longitude = &lng
	e.Latitude = &lat
}
