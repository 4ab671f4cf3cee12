package lifecycle

import "github.com/nikhilpatel/fieldflow/pkg/models"

// TimestampField returns the audit timestamp column stamped when a job
// enters the given status, or "" when the status has no dedicated
// column (pending, travelling, cancelled). Pure and total.
func TimestampField(to models.Status) string {
	switch to {
	case models.StatusAssigned:
		return "assigned_at"
	case models.StatusAccepted:
		return "accepted_at"
	case models.StatusOnsite:
		return "started_at"
	case models.StatusCompleted:
		return "completed_at"
	}
	return ""
}
