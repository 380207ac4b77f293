package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/enrollment-api/internal/models"
	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

func f(v float64) *float64 { return &v }

func TestValidateAmounts(t *testing.T) {
	tests := []struct {
		name         string
		total        float64
		paid         float64
		aidRequested bool
		aidAmount    *float64
		wantErr      bool
	}{
		{name: "zero amounts", total: 0, paid: 0},
		{name: "paid below total", total: 500, paid: 250},
		{name: "paid equals total", total: 500, paid: 500},
		{name: "negative total", total: -1, paid: 0, wantErr: true},
		{name: "negative paid", total: 100, paid: -0.01, wantErr: true},
		{name: "paid exceeds total", total: 100, paid: 100.01, wantErr: true},
		{name: "three decimals total", total: 10.123, paid: 0, wantErr: true},
		{name: "three decimals paid", total: 100, paid: 10.555, wantErr: true},
		{name: "float artifact tolerated", total: 0.1 + 0.2, paid: 0.3},
		{name: "aid within total", total: 100, aidRequested: true, aidAmount: f(40)},
		{name: "aid exceeds total", total: 100, aidRequested: true, aidAmount: f(100.5), wantErr: true},
		{name: "negative aid", total: 100, aidRequested: true, aidAmount: f(-5), wantErr: true},
		{name: "aid ignored when not requested", total: 100, aidRequested: false, aidAmount: f(999)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmounts(tt.total, tt.paid, tt.aidRequested, tt.aidAmount)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidationMessagesCarryNoAmounts(t *testing.T) {
	err := ValidateAmounts(100, 250.55, false, nil)
	require.Error(t, err)
	msg := appErrors.FromError(err).Message
	assert.NotContains(t, msg, "100")
	assert.NotContains(t, msg, "250")
}

func TestDerivePaymentStatus(t *testing.T) {
	tests := []struct {
		name   string
		status models.EnrollmentStatus
		total  float64
		paid   float64
		want   models.PaymentStatus
	}{
		{"unpaid", models.EnrollmentStatusPending, 500, 0, models.PaymentStatusUnpaid},
		{"partial", models.EnrollmentStatusConfirmed, 500, 100, models.PaymentStatusPartial},
		{"paid", models.EnrollmentStatusConfirmed, 500, 500, models.PaymentStatusPaid},
		{"overpaid counts as paid", models.EnrollmentStatusConfirmed, 500, 600, models.PaymentStatusPaid},
		{"cancelled refunded", models.EnrollmentStatusCancelled, 500, 500, models.PaymentStatusRefunded},
		{"withdrawn refunded", models.EnrollmentStatusWithdrawn, 500, 0, models.PaymentStatusRefunded},
		{"rounding near zero", models.EnrollmentStatusPending, 500, 0.001, models.PaymentStatusUnpaid},
		{"rounding near total", models.EnrollmentStatusPending, 500, 499.999, models.PaymentStatusPaid},
		{"free course is paid once touched", models.EnrollmentStatusConfirmed, 0, 0.5, models.PaymentStatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePaymentStatus(tt.status, tt.total, tt.paid))
		})
	}
}

func TestRound2(t *testing.T) {
	assert.InDelta(t, 0.3, Round2(0.1+0.2), 1e-9)
	assert.InDelta(t, 10.56, Round2(10.556), 1e-9)
	assert.InDelta(t, -2.5, Round2(-2.499999999), 1e-9)
}
