package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campusops/enrollment-api/internal/models"
	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

type offeringStore interface {
	FindByID(ctx context.Context, id string) (*models.CourseOffering, error)
	Occupancy(ctx context.Context, id string) (*models.Occupancy, error)
	ApplyDelta(ctx context.Context, id string, delta int) (int, error)
	Recount(ctx context.Context, id string) (int, error)
	ListActiveIDs(ctx context.Context) ([]string, error)
}

// SeatDelta maps a status transition to the signed change it causes on the
// offering's occupied-seat counter: +1 entering confirmed, -1 leaving it.
// Because the workflow table guarantees each (from, to) edge is taken at most
// once per enrollment, applying the delta per taken edge is naturally
// idempotent under retries of the same transition.
func SeatDelta(from, to models.EnrollmentStatus) int {
	if to == models.EnrollmentStatusConfirmed && from != models.EnrollmentStatusConfirmed {
		return 1
	}
	if from == models.EnrollmentStatusConfirmed && to != models.EnrollmentStatusConfirmed {
		return -1
	}
	return 0
}

// CapacityService keeps a course offering's occupied-seat counter consistent
// with its confirmed enrollments. The event-driven path applies atomic
// deltas; the reconciliation path recounts from scratch and repairs any
// drift left by requests that died between persisting and synchronizing.
type CapacityService struct {
	offerings offeringStore
	cache     *redis.Client
	cacheTTL  time.Duration
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewCapacityService constructs CapacityService. The cache client is
// optional; without it every occupancy read goes to the store.
func NewCapacityService(offerings offeringStore, cache *redis.Client, cacheTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *CapacityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityService{offerings: offerings, cache: cache, cacheTTL: cacheTTL, metrics: metrics, logger: logger}
}

func occupancyKey(offeringID string) string {
	return "occupancy:" + offeringID
}

// Sync applies the seat delta implied by a taken transition. A zero delta is
// a no-op. Returns the offering's counter after the move.
func (s *CapacityService) Sync(ctx context.Context, offeringID string, from, to models.EnrollmentStatus) (int, error) {
	delta := SeatDelta(from, to)
	if delta == 0 {
		return 0, nil
	}
	seats, err := s.offerings.ApplyDelta(ctx, offeringID, delta)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to synchronize offering capacity")
	}
	s.metrics.ObserveSeatDelta(delta)
	s.invalidate(ctx, offeringID)
	s.logger.Debug("seat delta applied",
		zap.String("offering_id", offeringID),
		zap.Int("delta", delta),
		zap.Int("occupied_seats", seats),
	)
	return seats, nil
}

// Occupancy returns the seat projection for an offering, served from the
// cache when fresh. The cache is read-through only; the store stays
// authoritative.
func (s *CapacityService) Occupancy(ctx context.Context, offeringID string) (*models.Occupancy, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, occupancyKey(offeringID)).Result()
		if err == nil {
			var occupancy models.Occupancy
			if jsonErr := json.Unmarshal([]byte(raw), &occupancy); jsonErr == nil {
				s.metrics.RecordOccupancyLookup(true)
				return &occupancy, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("occupancy cache read failed", zap.Error(err))
		}
		s.metrics.RecordOccupancyLookup(false)
	}

	occupancy, err := s.offerings.Occupancy(ctx, offeringID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occupancy")
	}

	if s.cache != nil {
		if raw, err := json.Marshal(occupancy); err == nil {
			if err := s.cache.Set(ctx, occupancyKey(offeringID), raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("occupancy cache write failed", zap.Error(err))
			}
		}
	}
	return occupancy, nil
}

// Reconcile rebuilds one offering's counter from its confirmed enrollments.
func (s *CapacityService) Reconcile(ctx context.Context, offeringID string) (int, error) {
	before, err := s.offerings.Occupancy(ctx, offeringID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "course offering not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	seats, err := s.offerings.Recount(ctx, offeringID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reconcile offering capacity")
	}
	corrected := seats != before.OccupiedSeats
	s.metrics.ObserveReconcile(corrected)
	if corrected {
		s.logger.Warn("seat counter drift corrected",
			zap.String("offering_id", offeringID),
			zap.Int("was", before.OccupiedSeats),
			zap.Int("now", seats),
		)
	}
	s.invalidate(ctx, offeringID)
	return seats, nil
}

// ReconcileAll sweeps every active offering. Used by the periodic repair job.
func (s *CapacityService) ReconcileAll(ctx context.Context) error {
	ids, err := s.offerings.ListActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("list offerings for reconcile: %w", err)
	}
	for _, id := range ids {
		if _, err := s.Reconcile(ctx, id); err != nil {
			return fmt.Errorf("reconcile offering %s: %w", id, err)
		}
	}
	return nil
}

func (s *CapacityService) invalidate(ctx context.Context, offeringID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, occupancyKey(offeringID)).Err(); err != nil {
		s.logger.Warn("occupancy cache invalidation failed",
			zap.String("offering_id", offeringID),
			zap.Error(err),
		)
	}
}
