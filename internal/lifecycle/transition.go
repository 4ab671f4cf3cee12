// Package lifecycle implements the job status lifecycle engine: the
// transition table, the audit timestamp policy, history recording, and
// the post-transition broadcast side effects.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/nikhilpatel/fieldflow/pkg/models"
)

// transitions maps each status to the statuses reachable from it.
// Defined once at init, never mutated. Terminal statuses map to an
// empty set; no status may transition to itself.
var transitions = map[models.Status][]models.Status{
	models.StatusPending:    {models.StatusAssigned, models.StatusCancelled},
	models.StatusAssigned:   {models.StatusAccepted, models.StatusCancelled},
	models.StatusAccepted:   {models.StatusTravelling, models.StatusCancelled},
	models.StatusTravelling: {models.StatusOnsite, models.StatusCancelled},
	models.StatusOnsite:     {models.StatusCompleted, models.StatusCancelled},
	models.StatusCompleted:  {},
	models.StatusCancelled:  {},
}

// AllowedNext returns the statuses reachable from the given status.
// The returned slice must not be modified.
func AllowedNext(from models.Status) []models.Status {
	return transitions[from]
}

// InvalidTransitionError reports a transition request not permitted by
// the transition table.
type InvalidTransitionError struct {
	From    models.Status
	To      models.Status
	Allowed []models.Status
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("cannot transition from terminal status %q", e.From)
	}
	names := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		names[i] = string(s)
	}
	return fmt.Sprintf("cannot transition from %q to %q; allowed: %s",
		e.From, e.To, strings.Join(names, ", "))
}

// ValidateTransition checks the requested transition against the
// transition table. Returns nil when legal, or an
// *InvalidTransitionError naming the allowed next statuses. Requesting
// the status a job is already in is invalid: no self-loops exist.
// Both arguments must be members of the defined status set; membership
// is an input-validation concern checked before this point.
func ValidateTransition(from, to models.Status) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to, Allowed: transitions[from]}
}
