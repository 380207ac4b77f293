package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestOfferingRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOfferingRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "course_code", "title", "min_seats", "max_seats", "occupied_seats", "active", "created_at", "updated_at"}).
		AddRow("OFF-1", "GO-101", "Intro to Go", 0, 5, 4, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_code, title")).
		WithArgs("OFF-1").
		WillReturnRows(rows)

	offering, err := repo.FindByID(context.Background(), "OFF-1")
	require.NoError(t, err)
	require.Equal(t, 5, offering.MaxSeats)
	require.Equal(t, 4, offering.OccupiedSeats)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_code, title")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryOccupancy(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOfferingRepository(db)
	rows := sqlmock.NewRows([]string{"id", "occupied_seats", "max_seats", "min_seats"}).
		AddRow("OFF-1", 5, 5, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, occupied_seats, max_seats, min_seats")).
		WithArgs("OFF-1").
		WillReturnRows(rows)

	occupancy, err := repo.Occupancy(context.Background(), "OFF-1")
	require.NoError(t, err)
	require.True(t, occupancy.Full())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryApplyDelta(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOfferingRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SET occupied_seats = GREATEST(occupied_seats + $2, 0)")).
		WithArgs("OFF-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"occupied_seats"}).AddRow(5))

	seats, err := repo.ApplyDelta(context.Background(), "OFF-1", 1)
	require.NoError(t, err)
	require.Equal(t, 5, seats)

	// The floor lives in the statement itself: a release below zero
	// still reports zero, never a negative counter.
	mock.ExpectQuery(regexp.QuoteMeta("SET occupied_seats = GREATEST(occupied_seats + $2, 0)")).
		WithArgs("OFF-1", -1).
		WillReturnRows(sqlmock.NewRows([]string{"occupied_seats"}).AddRow(0))

	seats, err = repo.ApplyDelta(context.Background(), "OFF-1", -1)
	require.NoError(t, err)
	require.Equal(t, 0, seats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryRecount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOfferingRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SET occupied_seats = sub.confirmed")).
		WithArgs("OFF-1").
		WillReturnRows(sqlmock.NewRows([]string{"occupied_seats"}).AddRow(3))

	seats, err := repo.Recount(context.Background(), "OFF-1")
	require.NoError(t, err)
	require.Equal(t, 3, seats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryListActiveIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOfferingRepository(db)
	rows := sqlmock.NewRows([]string{"id"}).AddRow("OFF-1").AddRow("OFF-2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM course_offerings WHERE active")).
		WillReturnRows(rows)

	ids, err := repo.ListActiveIDs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"OFF-1", "OFF-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
