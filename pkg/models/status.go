package models

// Status is a job lifecycle status. Jobs are created in StatusPending and
// only move between statuses through the lifecycle engine.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusAccepted   Status = "accepted"
	StatusTravelling Status = "travelling"
	StatusOnsite     Status = "onsite"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// AllStatuses lists every defined status, in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusAssigned,
	StatusAccepted,
	StatusTravelling,
	StatusOnsite,
	StatusCompleted,
	StatusCancelled,
}

// IsValid reports whether s is one of the seven defined statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusAccepted, StatusTravelling,
		StatusOnsite, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s has no outbound transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) String() string {
	return string(s)
}

// Urgency orders jobs for dispatch. It never influences transition logic.
type Urgency string

const (
	UrgencyEmergency Urgency = "emergency"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyNormal    Urgency = "normal"
	UrgencyScheduled Urgency = "scheduled"
)

// IsValid reports whether u is one of the defined urgency levels.
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyEmergency, UrgencyUrgent, UrgencyNormal, UrgencyScheduled:
		return true
	}
	return false
}

// Rank returns the sort rank of u; lower sorts first.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyEmergency:
		return 0
	case UrgencyUrgent:
		return 1
	case UrgencyNormal:
		return 2
	case UrgencyScheduled:
		return 3
	}
	return 4
}
