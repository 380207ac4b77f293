package models

import "time"

// EnrollmentStatus represents the lifecycle state of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending    EnrollmentStatus = "pending"
	EnrollmentStatusConfirmed  EnrollmentStatus = "confirmed"
	EnrollmentStatusWaitlisted EnrollmentStatus = "waitlisted"
	EnrollmentStatusCompleted  EnrollmentStatus = "completed"
	EnrollmentStatusCancelled  EnrollmentStatus = "cancelled"
	EnrollmentStatusWithdrawn  EnrollmentStatus = "withdrawn"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusPending, EnrollmentStatusConfirmed, EnrollmentStatusWaitlisted,
		EnrollmentStatusCompleted, EnrollmentStatusCancelled, EnrollmentStatusWithdrawn:
		return true
	}
	return false
}

// PaymentStatus is derived from the enrollment's amounts and lifecycle state.
// It is never accepted directly from a caller.
type PaymentStatus string

// Possible payment statuses.
const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Enrollment captures a student's registration in a course offering together
// with its financial and academic state.
type Enrollment struct {
	ID                    string           `db:"id" json:"id"`
	StudentID             string           `db:"student_id" json:"student_id"`
	OfferingID            string           `db:"offering_id" json:"offering_id"`
	Status                EnrollmentStatus `db:"status" json:"status"`
	TotalAmount           float64          `db:"total_amount" json:"total_amount"`
	AmountPaid            float64          `db:"amount_paid" json:"amount_paid"`
	FinancialAidRequested bool             `db:"financial_aid_requested" json:"financial_aid_requested"`
	FinancialAidAmount    *float64         `db:"financial_aid_amount" json:"financial_aid_amount,omitempty"`
	FinancialAidApproved  bool             `db:"financial_aid_approved" json:"financial_aid_approved"`
	PaymentStatus         PaymentStatus    `db:"payment_status" json:"payment_status"`
	AttendancePercentage  *float64         `db:"attendance_percentage" json:"attendance_percentage,omitempty"`
	FinalGrade            *float64         `db:"final_grade" json:"final_grade,omitempty"`
	CertificateIssued     bool             `db:"certificate_issued" json:"certificate_issued"`
	CertificateURL        *string          `db:"certificate_url" json:"certificate_url,omitempty"`
	CertificateIssuedAt   *time.Time       `db:"certificate_issued_at" json:"certificate_issued_at,omitempty"`
	EnrolledAt            time.Time        `db:"enrolled_at" json:"enrolled_at"`
	ConfirmedAt           *time.Time       `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CompletedAt           *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt           *time.Time       `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedBy             string           `db:"created_by" json:"created_by"`
	Active                bool             `db:"active" json:"active"`
	Version               int              `db:"version" json:"-"`
	CreatedAt             time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID  string
	OfferingID string
	Status     EnrollmentStatus
	Active     *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
