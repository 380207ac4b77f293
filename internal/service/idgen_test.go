package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

type stubSequence struct {
	counter int
	err     error
	calls   int
}

func (s *stubSequence) Next(ctx context.Context, prefix, day string) (int, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	s.counter++
	return s.counter, nil
}

type stubScanner struct {
	max   int
	err   error
	calls int
}

func (s *stubScanner) MaxSuffixForDay(ctx context.Context, prefix, day string) (int, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.max, nil
}

var testDay = time.Date(2025, 3, 1, 15, 30, 0, 0, time.UTC)

func TestFormatID(t *testing.T) {
	assert.Equal(t, "ENR-20250301-0007", FormatID("ENR", testDay, 7))
	assert.Equal(t, "ENR-20250301-1234", FormatID("ENR", testDay, 1234))

	// Local times normalize to UTC before the day is derived.
	late := time.Date(2025, 3, 1, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
	assert.Equal(t, "ENR-20250302-0001", FormatID("ENR", late, 1))
}

func TestNextIDFromCounter(t *testing.T) {
	seq := &stubSequence{}
	gen := NewIDGenerator("ENR", seq, &stubScanner{}, nil)

	id, err := gen.NextID(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, "ENR-20250301-0001", id)

	id, err = gen.NextID(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, "ENR-20250301-0002", id)
}

func TestNextIDFallsBackToSuffixScan(t *testing.T) {
	seq := &stubSequence{err: errors.New("relation does not exist")}
	scan := &stubScanner{max: 41}
	gen := NewIDGenerator("ENR", seq, scan, nil)

	id, err := gen.NextID(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, "ENR-20250301-0042", id)
	assert.Equal(t, 1, seq.calls)
	assert.Equal(t, 1, scan.calls)
}

func TestNextIDScanStartsAtOne(t *testing.T) {
	gen := NewIDGenerator("ENR", nil, &stubScanner{max: 0}, nil)

	id, err := gen.NextID(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, "ENR-20250301-0001", id)
}

func TestNextIDRefusesSuffixOverflow(t *testing.T) {
	// Counter 10000 would widen the four-digit suffix.
	seq := &stubSequence{counter: 9999}
	gen := NewIDGenerator("ENR", seq, nil, nil)

	_, err := gen.NextID(context.Background(), testDay)
	require.Error(t, err)
	assert.Equal(t, "SEQUENCE_EXHAUSTED", appErrors.FromError(err).Code)

	// The fallback scan refuses the same boundary.
	gen = NewIDGenerator("ENR", nil, &stubScanner{max: 9999}, nil)
	_, err = gen.NextID(context.Background(), testDay)
	require.Error(t, err)
	assert.Equal(t, "SEQUENCE_EXHAUSTED", appErrors.FromError(err).Code)

	// One below the boundary still yields the last four-digit identifier.
	gen = NewIDGenerator("ENR", &stubSequence{counter: 9998}, nil, nil)
	id, err := gen.NextID(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, "ENR-20250301-9999", id)
}

func TestNextIDErrors(t *testing.T) {
	gen := NewIDGenerator("ENR", nil, nil, nil)
	_, err := gen.NextID(context.Background(), testDay)
	require.Error(t, err)

	gen = NewIDGenerator("ENR", &stubSequence{err: errors.New("down")}, nil, nil)
	_, err = gen.NextID(context.Background(), testDay)
	require.Error(t, err)

	gen = NewIDGenerator("ENR", nil, &stubScanner{err: errors.New("down")}, nil)
	_, err = gen.NextID(context.Background(), testDay)
	require.Error(t, err)
}
