package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campusops/enrollment-api/internal/models"
)

// ErrVersionMismatch is returned when an optimistic-concurrency update finds
// the record was modified since it was read.
var ErrVersionMismatch = errors.New("enrollment version mismatch")

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation, optionally scoped to a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// Constraint names from scripts/schema.sql.
const (
	ConstraintEnrollmentID     = "enrollments_pkey"
	ConstraintActiveEnrollment = "enrollments_student_offering_active_key"
)

const enrollmentColumns = `id, student_id, offering_id, status, total_amount, amount_paid,
financial_aid_requested, financial_aid_amount, financial_aid_approved, payment_status,
attendance_percentage, final_grade, certificate_issued, certificate_url, certificate_issued_at,
enrolled_at, confirmed_at, completed_at, cancelled_at, created_by, active, version, created_at, updated_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	base := "FROM enrollments"
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.OfferingID != "" {
		conditions = append(conditions, fmt.Sprintf("offering_id = $%d", len(args)+1))
		args = append(args, filter.OfferingID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":    "enrolled_at",
		"status":         "status",
		"payment_status": "payment_status",
		"updated_at":     "updated_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "enrolled_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d",
		enrollmentColumns, base+clause, orderBy, order, size, offset)

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindActiveByStudentAndOffering returns the active enrollment for the pair,
// or sql.ErrNoRows when none exists.
func (r *EnrollmentRepository) FindActiveByStudentAndOffering(ctx context.Context, studentID, offeringID string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE student_id = $1 AND offering_id = $2 AND active LIMIT 1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, offeringID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create persists a new enrollment record. Unique-constraint violations are
// returned unwrapped so callers can distinguish ID collisions from duplicate
// student/offering pairs.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Version == 0 {
		enrollment.Version = 1
	}
	const query = `INSERT INTO enrollments (id, student_id, offering_id, status, total_amount, amount_paid,
        financial_aid_requested, financial_aid_amount, financial_aid_approved, payment_status,
        attendance_percentage, final_grade, certificate_issued, certificate_url, certificate_issued_at,
        enrolled_at, confirmed_at, completed_at, cancelled_at, created_by, active, version, created_at, updated_at)
        VALUES (:id, :student_id, :offering_id, :status, :total_amount, :amount_paid,
        :financial_aid_requested, :financial_aid_amount, :financial_aid_approved, :payment_status,
        :attendance_percentage, :final_grade, :certificate_issued, :certificate_url, :certificate_issued_at,
        :enrolled_at, :confirmed_at, :completed_at, :cancelled_at, :created_by, :active, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return err
	}
	return nil
}

// UpdateStatus persists a status transition with its derived fields under an
// optimistic version check. ErrVersionMismatch signals a concurrent writer.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `UPDATE enrollments SET status = $3, payment_status = $4,
        attendance_percentage = $5, final_grade = $6,
        confirmed_at = $7, completed_at = $8, cancelled_at = $9,
        version = version + 1, updated_at = $10
        WHERE id = $1 AND version = $2`
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		enrollment.ID, enrollment.Version,
		enrollment.Status, enrollment.PaymentStatus,
		enrollment.AttendancePercentage, enrollment.FinalGrade,
		enrollment.ConfirmedAt, enrollment.CompletedAt, enrollment.CancelledAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	if affected == 0 {
		return ErrVersionMismatch
	}
	enrollment.Version++
	enrollment.UpdatedAt = now
	return nil
}

// RecordPayment appends a ledger row and moves the enrollment's paid amount
// in one transaction, guarded by the enrollment's version.
func (r *EnrollmentRepository) RecordPayment(ctx context.Context, enrollment *models.Enrollment, payment *models.Payment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record payment: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback() //nolint:errcheck
		}
	}()

	const update = `UPDATE enrollments SET amount_paid = $3, payment_status = $4,
        version = version + 1, updated_at = $5
        WHERE id = $1 AND version = $2`
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, update,
		enrollment.ID, enrollment.Version,
		enrollment.AmountPaid, enrollment.PaymentStatus, now,
	)
	if err != nil {
		return fmt.Errorf("update enrollment payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update enrollment payment: %w", err)
	}
	if affected == 0 {
		return ErrVersionMismatch
	}

	const insert = `INSERT INTO payments (id, enrollment_id, amount, method, reference, recorded_by, recorded_at)
        VALUES (:id, :enrollment_id, :amount, :method, :reference, :recorded_by, :recorded_at)`
	if _, err := tx.NamedExecContext(ctx, insert, payment); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record payment: %w", err)
	}
	commit = true
	enrollment.Version++
	enrollment.UpdatedAt = now
	return nil
}

// SetCertificate marks the certificate as issued exactly once. A row is only
// matched while certificate_issued is still false, so a second call reports
// sql.ErrNoRows and the first URL stays untouched.
func (r *EnrollmentRepository) SetCertificate(ctx context.Context, id, url string, issuedAt time.Time) (*models.Enrollment, error) {
	query := fmt.Sprintf(`UPDATE enrollments SET certificate_issued = TRUE, certificate_url = $2,
        certificate_issued_at = $3, version = version + 1, updated_at = $4
        WHERE id = $1 AND certificate_issued = FALSE
        RETURNING %s`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id, url, issuedAt, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Deactivate soft-deletes an enrollment. The partial unique index on
// (student_id, offering_id) only covers active rows, so the pair frees up.
func (r *EnrollmentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE enrollments SET active = FALSE, version = version + 1, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate enrollment: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MaxSuffixForDay scans the highest sequence suffix already assigned for a
// day. Fallback path for identifier generation when the sequence table is
// unavailable; the caller still relies on the insert's unique constraint.
func (r *EnrollmentRepository) MaxSuffixForDay(ctx context.Context, prefix, day string) (int, error) {
	pattern := fmt.Sprintf("%s-%s-%%", prefix, day)
	const query = `SELECT COALESCE(MAX(CAST(RIGHT(id, 4) AS INTEGER)), 0) FROM enrollments WHERE id LIKE $1`
	var max int
	if err := r.db.GetContext(ctx, &max, query, pattern); err != nil {
		return 0, fmt.Errorf("scan id suffix: %w", err)
	}
	return max, nil
}
