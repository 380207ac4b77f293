package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusops/enrollment-api/internal/models"
	"github.com/campusops/enrollment-api/internal/repository"
	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindActiveByStudentAndOffering(ctx context.Context, studentID, offeringID string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, enrollment *models.Enrollment) error
	RecordPayment(ctx context.Context, enrollment *models.Enrollment, payment *models.Payment) error
	SetCertificate(ctx context.Context, id, url string, issuedAt time.Time) (*models.Enrollment, error)
	Deactivate(ctx context.Context, id string) error
}

type studentDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type idSource interface {
	NextID(ctx context.Context, at time.Time) (string, error)
}

type capacitySynchronizer interface {
	Sync(ctx context.Context, offeringID string, from, to models.EnrollmentStatus) (int, error)
	Occupancy(ctx context.Context, offeringID string) (*models.Occupancy, error)
}

// CreateEnrollmentRequest describes enrollment creation input.
type CreateEnrollmentRequest struct {
	StudentID             string   `json:"student_id" validate:"required"`
	OfferingID            string   `json:"offering_id" validate:"required"`
	TotalAmount           float64  `json:"total_amount" validate:"gte=0"`
	FinancialAidRequested bool     `json:"financial_aid_requested"`
	FinancialAidAmount    *float64 `json:"financial_aid_amount,omitempty"`
}

// UpdateStatusRequest describes a status transition payload. Attendance and
// final grade ride along for transitions into completed.
type UpdateStatusRequest struct {
	Status               models.EnrollmentStatus `json:"status" validate:"required"`
	AttendancePercentage *float64                `json:"attendance_percentage,omitempty"`
	FinalGrade           *float64                `json:"final_grade,omitempty"`
}

// RecordPaymentRequest describes one payment transaction.
type RecordPaymentRequest struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Method    string  `json:"method" validate:"required"`
	Reference string  `json:"reference"`
}

// IssueCertificateRequest carries the certificate location.
type IssueCertificateRequest struct {
	CertificateURL string `json:"certificate_url" validate:"required,url"`
}

// EnrollmentService orchestrates the enrollment lifecycle: identifier
// assignment, field immutability, financial and academic invariants, the
// status workflow, and capacity synchronization.
type EnrollmentService struct {
	repo             enrollmentStore
	students         studentDirectory
	ids              idSource
	capacity         capacitySynchronizer
	validator        *validator.Validate
	metrics          *MetricsService
	logger           *zap.Logger
	maxIDRetries     int
	maxUpdateRetries int
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentStore, students studentDirectory, ids idSource, capacity capacitySynchronizer, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, maxIDRetries, maxUpdateRetries int) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxIDRetries <= 0 {
		maxIDRetries = 5
	}
	if maxUpdateRetries <= 0 {
		maxUpdateRetries = 3
	}
	return &EnrollmentService{
		repo:             repo,
		students:         students,
		ids:              ids,
		capacity:         capacity,
		validator:        validate,
		metrics:          metrics,
		logger:           logger,
		maxIDRetries:     maxIDRetries,
		maxUpdateRetries: maxUpdateRetries,
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Get returns one enrollment by ID.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Create registers a student in a course offering. The record starts as
// pending, so creation never moves the seat counter.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest, actor string) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if actor == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actor is required")
	}
	if err := ValidateAmounts(req.TotalAmount, 0, req.FinancialAidRequested, req.FinancialAidAmount); err != nil {
		return nil, err
	}

	exists, err := s.students.Exists(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if _, err := s.capacity.Occupancy(ctx, req.OfferingID); err != nil {
		return nil, err
	}

	if existing, err := s.repo.FindActiveByStudentAndOffering(ctx, req.StudentID, req.OfferingID); err == nil {
		return nil, duplicateEnrollmentError(existing.ID)
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}

	now := time.Now().UTC()
	enrollment := &models.Enrollment{
		StudentID:             req.StudentID,
		OfferingID:            req.OfferingID,
		Status:                models.EnrollmentStatusPending,
		TotalAmount:           Round2(req.TotalAmount),
		AmountPaid:            0,
		FinancialAidRequested: req.FinancialAidRequested,
		FinancialAidAmount:    req.FinancialAidAmount,
		PaymentStatus:         DerivePaymentStatus(models.EnrollmentStatusPending, req.TotalAmount, 0),
		EnrolledAt:            now,
		CreatedBy:             actor,
		Active:                true,
		Version:               1,
	}

	for attempt := 0; attempt < s.maxIDRetries; attempt++ {
		id, err := s.ids.NextID(ctx, now)
		if err != nil {
			return nil, err
		}
		enrollment.ID = id

		err = s.repo.Create(ctx, enrollment)
		if err == nil {
			// No-op delta: a pending record never occupies a seat.
			if _, syncErr := s.capacity.Sync(ctx, enrollment.OfferingID, "", enrollment.Status); syncErr != nil {
				s.logger.Warn("capacity sync after create failed", zap.String("enrollment_id", enrollment.ID), zap.Error(syncErr))
			}
			s.logger.Info("enrollment created",
				zap.String("enrollment_id", enrollment.ID),
				zap.String("offering_id", enrollment.OfferingID),
			)
			return enrollment, nil
		}
		if repository.IsUniqueViolation(err, repository.ConstraintActiveEnrollment) {
			if existing, findErr := s.repo.FindActiveByStudentAndOffering(ctx, req.StudentID, req.OfferingID); findErr == nil {
				return nil, duplicateEnrollmentError(existing.ID)
			}
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in offering")
		}
		if repository.IsUniqueViolation(err, repository.ConstraintEnrollmentID) {
			s.metrics.ObserveIDRetry()
			s.logger.Warn("enrollment id collision, retrying", zap.String("enrollment_id", id))
			continue
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return nil, appErrors.Clone(appErrors.ErrSequenceExhausted, "")
}

// UpdateStatus moves an enrollment through the status workflow. Concurrent
// writers are resolved by optimistic retry against the latest state, never
// by blocking locks.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest, actor string) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	var lastErr error
	for attempt := 0; attempt < s.maxUpdateRetries; attempt++ {
		if attempt > 0 {
			s.metrics.ObserveVersionRetry()
		}
		enrollment, err := s.loadActive(ctx, id)
		if err != nil {
			return nil, err
		}

		from := enrollment.Status
		if from == req.Status && from != models.EnrollmentStatusCompleted {
			// Same-state request is a no-op: nothing persisted, no
			// duplicate timestamp writes.
			return enrollment, nil
		}
		if err := ValidateTransition(from, req.Status); err != nil {
			return nil, err
		}

		if req.Status == models.EnrollmentStatusConfirmed {
			occupancy, err := s.capacity.Occupancy(ctx, enrollment.OfferingID)
			if err != nil {
				return nil, err
			}
			if occupancy.Full() {
				return nil, appErrors.Clone(appErrors.ErrConflict, "course offering is at capacity")
			}
		}

		enrollment.Status = req.Status
		enrollment.AttendancePercentage = guardMerge(enrollment.AttendancePercentage, req.AttendancePercentage)
		enrollment.FinalGrade = guardMerge(enrollment.FinalGrade, req.FinalGrade)
		s.stampTransition(enrollment, req.Status)

		// Range checks apply to any present value; the completed-only
		// presence rule lives inside the validator.
		if err := ValidateAcademic(req.Status, enrollment.AttendancePercentage, enrollment.FinalGrade); err != nil {
			return nil, err
		}
		enrollment.PaymentStatus = DerivePaymentStatus(enrollment.Status, enrollment.TotalAmount, enrollment.AmountPaid)

		err = s.repo.UpdateStatus(ctx, enrollment)
		if errors.Is(err, repository.ErrVersionMismatch) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
		}

		s.metrics.ObserveTransition(string(from), string(req.Status))
		if _, err := s.capacity.Sync(ctx, enrollment.OfferingID, from, req.Status); err != nil {
			// The transition is durable; the counter is repaired by the
			// out-of-band reconciliation pass.
			s.logger.Error("capacity sync failed after status update",
				zap.String("enrollment_id", enrollment.ID),
				zap.String("offering_id", enrollment.OfferingID),
				zap.Error(err),
			)
		}
		s.logger.Info("enrollment status updated",
			zap.String("enrollment_id", enrollment.ID),
			zap.String("from", string(from)),
			zap.String("to", string(req.Status)),
			zap.String("actor", actor),
		)
		return enrollment, nil
	}
	return nil, appErrors.Wrap(lastErr, appErrors.ErrVersionConflict.Code, appErrors.ErrVersionConflict.Status, appErrors.ErrVersionConflict.Message)
}

// RecordPayment appends a payment transaction and accumulates the paid
// amount, re-deriving the payment status.
func (s *EnrollmentService) RecordPayment(ctx context.Context, id string, req RecordPaymentRequest, actor string) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !hasTwoDecimals(req.Amount) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment amount must have at most two decimal places")
	}

	var lastErr error
	for attempt := 0; attempt < s.maxUpdateRetries; attempt++ {
		if attempt > 0 {
			s.metrics.ObserveVersionRetry()
		}
		enrollment, err := s.loadActive(ctx, id)
		if err != nil {
			return nil, err
		}

		newPaid := Round2(enrollment.AmountPaid + req.Amount)
		if err := ValidateAmounts(enrollment.TotalAmount, newPaid, enrollment.FinancialAidRequested, enrollment.FinancialAidAmount); err != nil {
			return nil, err
		}

		enrollment.AmountPaid = newPaid
		enrollment.PaymentStatus = DerivePaymentStatus(enrollment.Status, enrollment.TotalAmount, newPaid)
		payment := &models.Payment{
			ID:           uuid.NewString(),
			EnrollmentID: enrollment.ID,
			Amount:       Round2(req.Amount),
			Method:       req.Method,
			Reference:    req.Reference,
			RecordedBy:   actor,
			RecordedAt:   time.Now().UTC(),
		}

		err = s.repo.RecordPayment(ctx, enrollment, payment)
		if errors.Is(err, repository.ErrVersionMismatch) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
		}
		s.logger.Info("payment recorded",
			zap.String("enrollment_id", enrollment.ID),
			zap.String("payment_id", payment.ID),
		)
		return enrollment, nil
	}
	return nil, appErrors.Wrap(lastErr, appErrors.ErrVersionConflict.Code, appErrors.ErrVersionConflict.Status, appErrors.ErrVersionConflict.Message)
}

// IssueCertificate records the certificate exactly once for a completed
// enrollment. The store-level issued flag check makes the second caller lose
// even when both pass the service check concurrently.
func (s *EnrollmentService) IssueCertificate(ctx context.Context, id string, req IssueCertificateRequest, actor string) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid certificate payload")
	}
	enrollment, err := s.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "certificate requires a completed enrollment")
	}
	if _, err := guardIssuedFlag(enrollment.CertificateIssued, true); err != nil {
		return nil, err
	}
	if enrollment.CertificateIssued {
		return nil, appErrors.Clone(appErrors.ErrCertificateIssued, "")
	}

	updated, err := s.repo.SetCertificate(ctx, id, req.CertificateURL, time.Now().UTC())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrCertificateIssued, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue certificate")
	}
	s.logger.Info("certificate issued",
		zap.String("enrollment_id", updated.ID),
		zap.String("actor", actor),
	)
	return updated, nil
}

// Deactivate soft-deletes an enrollment. Administrative action; the record
// stays queryable and the student/offering pair becomes reusable.
func (s *EnrollmentService) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate enrollment")
	}
	return nil
}

func (s *EnrollmentService) loadActive(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !enrollment.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return enrollment, nil
}

// stampTransition sets the lifecycle timestamp the first time its status is
// reached. Existing stamps win via the write-once guard, so a revert-and-
// retake (cancelled -> pending -> confirmed) keeps the original mark.
func (s *EnrollmentService) stampTransition(enrollment *models.Enrollment, to models.EnrollmentStatus) {
	now := time.Now().UTC()
	switch to {
	case models.EnrollmentStatusConfirmed:
		enrollment.ConfirmedAt = guardField(enrollment.ConfirmedAt, &now)
	case models.EnrollmentStatusCompleted:
		enrollment.CompletedAt = guardField(enrollment.CompletedAt, &now)
	case models.EnrollmentStatusCancelled:
		enrollment.CancelledAt = guardField(enrollment.CancelledAt, &now)
	}
}

// guardMerge keeps an already-set academic value unless the caller supplies
// a replacement. Academic fields are correctable, unlike audit timestamps.
func guardMerge(current, requested *float64) *float64 {
	if requested != nil {
		return requested
	}
	return current
}

func duplicateEnrollmentError(existingID string) error {
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("active enrollment already exists: %s", existingID))
}
