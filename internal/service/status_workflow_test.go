package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/enrollment-api/internal/models"
	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

var allStatuses = []models.EnrollmentStatus{
	models.EnrollmentStatusPending,
	models.EnrollmentStatusConfirmed,
	models.EnrollmentStatusWaitlisted,
	models.EnrollmentStatusCompleted,
	models.EnrollmentStatusCancelled,
	models.EnrollmentStatusWithdrawn,
}

func TestCanTransitionTable(t *testing.T) {
	allowed := map[models.EnrollmentStatus]map[models.EnrollmentStatus]bool{
		models.EnrollmentStatusPending: {
			models.EnrollmentStatusConfirmed:  true,
			models.EnrollmentStatusWaitlisted: true,
			models.EnrollmentStatusCancelled:  true,
		},
		models.EnrollmentStatusConfirmed: {
			models.EnrollmentStatusCompleted: true,
			models.EnrollmentStatusCancelled: true,
			models.EnrollmentStatusWithdrawn: true,
		},
		models.EnrollmentStatusWaitlisted: {
			models.EnrollmentStatusConfirmed: true,
			models.EnrollmentStatusCancelled: true,
		},
		models.EnrollmentStatusCompleted: {},
		models.EnrollmentStatusCancelled: {
			models.EnrollmentStatusPending: true,
		},
		models.EnrollmentStatusWithdrawn: {
			models.EnrollmentStatusConfirmed: true,
		},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[from][to]
			// Same-state requests are no-op successes everywhere except
			// the terminal state.
			if from == to && from != models.EnrollmentStatusCompleted {
				want = true
			}
			assert.Equalf(t, want, CanTransition(from, to), "transition %s -> %s", from, to)
		}
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	for _, to := range allStatuses {
		assert.Falsef(t, CanTransition(models.EnrollmentStatusCompleted, to), "completed -> %s must be rejected", to)
	}
}

func TestValidateTransitionErrors(t *testing.T) {
	err := ValidateTransition(models.EnrollmentStatusCompleted, models.EnrollmentStatusPending)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "INVALID_TRANSITION", appErr.Code)
	assert.Contains(t, appErr.Message, "completed")
	assert.Contains(t, appErr.Message, "pending")

	err = ValidateTransition(models.EnrollmentStatusPending, models.EnrollmentStatus("archived"))
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	require.NoError(t, ValidateTransition(models.EnrollmentStatusPending, models.EnrollmentStatusConfirmed))
	require.NoError(t, ValidateTransition(models.EnrollmentStatusCancelled, models.EnrollmentStatusPending))
	require.NoError(t, ValidateTransition(models.EnrollmentStatusWithdrawn, models.EnrollmentStatusConfirmed))
}
