package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/enrollment-api/internal/models"
	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

type fakeOfferingStore struct {
	offerings map[string]*models.CourseOffering
	recount   map[string]int

	applyCalls   int
	recountCalls int
}

func newFakeOfferingStore() *fakeOfferingStore {
	return &fakeOfferingStore{
		offerings: make(map[string]*models.CourseOffering),
		recount:   make(map[string]int),
	}
}

func (f *fakeOfferingStore) FindByID(ctx context.Context, id string) (*models.CourseOffering, error) {
	offering, ok := f.offerings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *offering
	return &copied, nil
}

func (f *fakeOfferingStore) Occupancy(ctx context.Context, id string) (*models.Occupancy, error) {
	offering, ok := f.offerings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.Occupancy{
		OfferingID:    offering.ID,
		OccupiedSeats: offering.OccupiedSeats,
		MaxSeats:      offering.MaxSeats,
		MinSeats:      offering.MinSeats,
	}, nil
}

func (f *fakeOfferingStore) ApplyDelta(ctx context.Context, id string, delta int) (int, error) {
	f.applyCalls++
	offering, ok := f.offerings[id]
	if !ok {
		return 0, sql.ErrNoRows
	}
	offering.OccupiedSeats += delta
	if offering.OccupiedSeats < 0 {
		offering.OccupiedSeats = 0
	}
	return offering.OccupiedSeats, nil
}

func (f *fakeOfferingStore) Recount(ctx context.Context, id string) (int, error) {
	f.recountCalls++
	offering, ok := f.offerings[id]
	if !ok {
		return 0, sql.ErrNoRows
	}
	offering.OccupiedSeats = f.recount[id]
	return offering.OccupiedSeats, nil
}

func (f *fakeOfferingStore) ListActiveIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.offerings))
	for id, offering := range f.offerings {
		if offering.Active {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func TestSeatDelta(t *testing.T) {
	tests := []struct {
		from models.EnrollmentStatus
		to   models.EnrollmentStatus
		want int
	}{
		{models.EnrollmentStatusPending, models.EnrollmentStatusConfirmed, 1},
		{models.EnrollmentStatusWaitlisted, models.EnrollmentStatusConfirmed, 1},
		{models.EnrollmentStatusWithdrawn, models.EnrollmentStatusConfirmed, 1},
		{models.EnrollmentStatusConfirmed, models.EnrollmentStatusCancelled, -1},
		{models.EnrollmentStatusConfirmed, models.EnrollmentStatusWithdrawn, -1},
		{models.EnrollmentStatusConfirmed, models.EnrollmentStatusCompleted, -1},
		{models.EnrollmentStatusPending, models.EnrollmentStatusCancelled, 0},
		{models.EnrollmentStatusPending, models.EnrollmentStatusWaitlisted, 0},
		{models.EnrollmentStatusCancelled, models.EnrollmentStatusPending, 0},
		{models.EnrollmentStatusConfirmed, models.EnrollmentStatusConfirmed, 0},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, SeatDelta(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestSyncAppliesDelta(t *testing.T) {
	store := newFakeOfferingStore()
	store.offerings["OFF-1"] = &models.CourseOffering{ID: "OFF-1", MaxSeats: 5, OccupiedSeats: 4, Active: true}
	svc := NewCapacityService(store, nil, 0, nil, nil)

	seats, err := svc.Sync(context.Background(), "OFF-1", models.EnrollmentStatusPending, models.EnrollmentStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 5, seats)

	seats, err = svc.Sync(context.Background(), "OFF-1", models.EnrollmentStatusConfirmed, models.EnrollmentStatusWithdrawn)
	require.NoError(t, err)
	assert.Equal(t, 4, seats)
}

func TestSyncZeroDeltaSkipsStore(t *testing.T) {
	store := newFakeOfferingStore()
	svc := NewCapacityService(store, nil, 0, nil, nil)

	seats, err := svc.Sync(context.Background(), "OFF-1", models.EnrollmentStatusPending, models.EnrollmentStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 0, seats)
	assert.Equal(t, 0, store.applyCalls)
}

func TestOccupancyNotFound(t *testing.T) {
	svc := NewCapacityService(newFakeOfferingStore(), nil, 0, nil, nil)

	_, err := svc.Occupancy(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", appErrors.FromError(err).Code)
}

func TestReconcileRepairsDrift(t *testing.T) {
	store := newFakeOfferingStore()
	store.offerings["OFF-1"] = &models.CourseOffering{ID: "OFF-1", MaxSeats: 10, OccupiedSeats: 7, Active: true}
	store.recount["OFF-1"] = 5
	svc := NewCapacityService(store, nil, 0, nil, nil)

	seats, err := svc.Reconcile(context.Background(), "OFF-1")
	require.NoError(t, err)
	assert.Equal(t, 5, seats)
	assert.Equal(t, 5, store.offerings["OFF-1"].OccupiedSeats)
}

func TestReconcileAll(t *testing.T) {
	store := newFakeOfferingStore()
	store.offerings["OFF-1"] = &models.CourseOffering{ID: "OFF-1", MaxSeats: 10, OccupiedSeats: 3, Active: true}
	store.offerings["OFF-2"] = &models.CourseOffering{ID: "OFF-2", MaxSeats: 10, OccupiedSeats: 9, Active: true}
	store.offerings["OFF-3"] = &models.CourseOffering{ID: "OFF-3", MaxSeats: 10, OccupiedSeats: 1, Active: false}
	store.recount["OFF-1"] = 3
	store.recount["OFF-2"] = 8
	svc := NewCapacityService(store, nil, 0, nil, nil)

	require.NoError(t, svc.ReconcileAll(context.Background()))
	assert.Equal(t, 2, store.recountCalls, "inactive offerings are skipped")
	assert.Equal(t, 8, store.offerings["OFF-2"].OccupiedSeats)
}
