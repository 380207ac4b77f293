package service

import (
	"fmt"

	"github.com/campusops/enrollment-api/internal/models"
	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

// allowedTransitions is the single source of truth for the enrollment
// lifecycle. The key is the current status, the value the set of statuses it
// may move to. Adding a state means touching this table, nothing else.
var allowedTransitions = map[models.EnrollmentStatus][]models.EnrollmentStatus{
	models.EnrollmentStatusPending:    {models.EnrollmentStatusConfirmed, models.EnrollmentStatusWaitlisted, models.EnrollmentStatusCancelled},
	models.EnrollmentStatusConfirmed:  {models.EnrollmentStatusCompleted, models.EnrollmentStatusCancelled, models.EnrollmentStatusWithdrawn},
	models.EnrollmentStatusWaitlisted: {models.EnrollmentStatusConfirmed, models.EnrollmentStatusCancelled},
	models.EnrollmentStatusCompleted:  {},
	models.EnrollmentStatusCancelled:  {models.EnrollmentStatusPending},
	models.EnrollmentStatusWithdrawn:  {models.EnrollmentStatusConfirmed},
}

// CanTransition reports whether the lifecycle permits moving from one status
// to another. Completed is terminal: even re-applying completed is refused,
// so a caller racing to re-submit the same terminal update is rejected
// instead of silently rewriting academic fields.
func CanTransition(from, to models.EnrollmentStatus) bool {
	if from == models.EnrollmentStatusCompleted {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a typed error when the requested transition is
// not in the table. Messages name the two statuses and nothing else.
func ValidateTransition(from, to models.EnrollmentStatus) error {
	if !to.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown enrollment status %q", to))
	}
	if !CanTransition(from, to) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("transition %s to %s is not allowed", from, to))
	}
	return nil
}
