package service

import (
	"math"

	"github.com/campusops/enrollment-api/internal/models"
	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

// Round2 rounds a monetary amount to two decimal places. All comparisons
// between amounts go through this to avoid float artifacts.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func hasTwoDecimals(v float64) bool {
	scaled := v * 100
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}

// ValidateAmounts enforces the monetary invariants on an enrollment's
// financial fields. Error messages state the constraint, never a value.
func ValidateAmounts(totalAmount, amountPaid float64, aidRequested bool, aidAmount *float64) error {
	if totalAmount < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "total amount must not be negative")
	}
	if !hasTwoDecimals(totalAmount) {
		return appErrors.Clone(appErrors.ErrValidation, "total amount must have at most two decimal places")
	}
	if amountPaid < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "amount paid must not be negative")
	}
	if !hasTwoDecimals(amountPaid) {
		return appErrors.Clone(appErrors.ErrValidation, "amount paid must have at most two decimal places")
	}
	if Round2(amountPaid) > Round2(totalAmount) {
		return appErrors.Clone(appErrors.ErrValidation, "amount paid must not exceed total amount")
	}
	if aidRequested && aidAmount != nil {
		if *aidAmount < 0 {
			return appErrors.Clone(appErrors.ErrValidation, "financial aid amount must not be negative")
		}
		if !hasTwoDecimals(*aidAmount) {
			return appErrors.Clone(appErrors.ErrValidation, "financial aid amount must have at most two decimal places")
		}
		if Round2(*aidAmount) > Round2(totalAmount) {
			return appErrors.Clone(appErrors.ErrValidation, "financial aid amount must not exceed total amount")
		}
	}
	return nil
}

// DerivePaymentStatus computes the payment status from the current record.
// Pure function, re-evaluated on every write; callers never set the field.
func DerivePaymentStatus(status models.EnrollmentStatus, totalAmount, amountPaid float64) models.PaymentStatus {
	if status == models.EnrollmentStatusCancelled || status == models.EnrollmentStatusWithdrawn {
		return models.PaymentStatusRefunded
	}
	paid := Round2(amountPaid)
	if paid == 0 {
		return models.PaymentStatusUnpaid
	}
	if paid >= Round2(totalAmount) {
		return models.PaymentStatusPaid
	}
	return models.PaymentStatusPartial
}
