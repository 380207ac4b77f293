package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campusops/enrollment-api/internal/models"
)

// OfferingRepository handles persistence of course offerings. The
// occupied_seats counter is only ever moved through ApplyDelta or Recount.
type OfferingRepository struct {
	db *sqlx.DB
}

// NewOfferingRepository constructs the repository.
func NewOfferingRepository(db *sqlx.DB) *OfferingRepository {
	return &OfferingRepository{db: db}
}

// FindByID returns a course offering by its ID.
func (r *OfferingRepository) FindByID(ctx context.Context, id string) (*models.CourseOffering, error) {
	const query = `SELECT id, course_code, title, min_seats, max_seats, occupied_seats, active, created_at, updated_at
        FROM course_offerings WHERE id = $1`
	var offering models.CourseOffering
	if err := r.db.GetContext(ctx, &offering, query, id); err != nil {
		return nil, err
	}
	return &offering, nil
}

// Occupancy returns the seat projection for an offering.
func (r *OfferingRepository) Occupancy(ctx context.Context, id string) (*models.Occupancy, error) {
	const query = `SELECT id, occupied_seats, max_seats, min_seats FROM course_offerings WHERE id = $1`
	var occupancy models.Occupancy
	if err := r.db.GetContext(ctx, &occupancy, query, id); err != nil {
		return nil, err
	}
	return &occupancy, nil
}

// ApplyDelta moves occupied_seats by delta in a single statement, floored at
// zero. Returns the counter after the move. Applying the delta at the store
// rather than read-modify-write in the service keeps concurrent
// confirmations on the same offering from losing updates.
func (r *OfferingRepository) ApplyDelta(ctx context.Context, id string, delta int) (int, error) {
	const query = `UPDATE course_offerings
        SET occupied_seats = GREATEST(occupied_seats + $2, 0), updated_at = NOW()
        WHERE id = $1
        RETURNING occupied_seats`
	var seats int
	if err := r.db.GetContext(ctx, &seats, query, id, delta); err != nil {
		return 0, fmt.Errorf("apply seat delta: %w", err)
	}
	return seats, nil
}

// Recount rebuilds occupied_seats from the confirmed enrollments that
// reference the offering. Repair path, independent of the event-driven delta.
func (r *OfferingRepository) Recount(ctx context.Context, id string) (int, error) {
	const query = `UPDATE course_offerings SET occupied_seats = sub.confirmed, updated_at = NOW()
        FROM (SELECT COUNT(*) AS confirmed FROM enrollments
              WHERE offering_id = $1 AND status = 'confirmed' AND active) sub
        WHERE id = $1
        RETURNING occupied_seats`
	var seats int
	if err := r.db.GetContext(ctx, &seats, query, id); err != nil {
		return 0, fmt.Errorf("recount offering seats: %w", err)
	}
	return seats, nil
}

// ListActiveIDs returns the IDs of all active offerings, used by the
// periodic reconciliation sweep.
func (r *OfferingRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM course_offerings WHERE active ORDER BY id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list active offerings: %w", err)
	}
	return ids, nil
}
