package service

import (
	"github.com/campusops/enrollment-api/internal/models"
	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

// ValidateAcademic checks the academic preconditions around completion.
// A completed enrollment must carry both attendance and a final grade, and
// any value present must sit in [0,100] regardless of status. Messages never
// echo the number itself since validator failures end up in logs.
func ValidateAcademic(status models.EnrollmentStatus, attendance, finalGrade *float64) error {
	if status == models.EnrollmentStatusCompleted {
		if attendance == nil {
			return appErrors.Clone(appErrors.ErrValidation, "attendance percentage is required for completion")
		}
		if finalGrade == nil {
			return appErrors.Clone(appErrors.ErrValidation, "final grade is required for completion")
		}
	}
	if attendance != nil && (*attendance < 0 || *attendance > 100) {
		return appErrors.Clone(appErrors.ErrValidation, "attendance percentage must be between 0 and 100")
	}
	if finalGrade != nil && (*finalGrade < 0 || *finalGrade > 100) {
		return appErrors.Clone(appErrors.ErrValidation, "final grade must be between 0 and 100")
	}
	return nil
}
