package models

import "time"

// Payment is one row of the append-only payment ledger behind an enrollment.
type Payment struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Amount       float64   `db:"amount" json:"amount"`
	Method       string    `db:"method" json:"method"`
	Reference    string    `db:"reference" json:"reference,omitempty"`
	RecordedBy   string    `db:"recorded_by" json:"recorded_by"`
	RecordedAt   time.Time `db:"recorded_at" json:"recorded_at"`
}
