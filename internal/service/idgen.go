package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

// maxDailySuffix bounds the NNNN segment; the suffix scan parses exactly
// four digits, so the format never widens.
const maxDailySuffix = 9999

type sequenceSource interface {
	Next(ctx context.Context, prefix, day string) (int, error)
}

type suffixScanner interface {
	MaxSuffixForDay(ctx context.Context, prefix, day string) (int, error)
}

// IDGenerator produces human-readable identifiers of the form
// PREFIX-YYYYMMDD-NNNN. The canonical path is the atomic per-day counter row,
// which cannot hand the same number to two concurrent callers. When that
// path is unavailable it falls back to scanning the highest assigned suffix;
// the fallback is only collision-free together with the caller's
// retry-on-unique-violation loop.
type IDGenerator struct {
	prefix    string
	sequences sequenceSource
	fallback  suffixScanner
	logger    *zap.Logger
}

// NewIDGenerator constructs the generator.
func NewIDGenerator(prefix string, sequences sequenceSource, fallback suffixScanner, logger *zap.Logger) *IDGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IDGenerator{prefix: prefix, sequences: sequences, fallback: fallback, logger: logger}
}

// FormatID renders an identifier from its parts.
func FormatID(prefix string, at time.Time, n int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, at.UTC().Format("20060102"), n)
}

// NextID returns the next identifier for the given day.
func (g *IDGenerator) NextID(ctx context.Context, at time.Time) (string, error) {
	day := at.UTC().Format("20060102")

	if g.sequences != nil {
		counter, err := g.sequences.Next(ctx, g.prefix, day)
		if err == nil {
			if counter > maxDailySuffix {
				return "", appErrors.Clone(appErrors.ErrSequenceExhausted, "daily identifier space exhausted")
			}
			return fmt.Sprintf("%s-%s-%04d", g.prefix, day, counter), nil
		}
		if g.fallback == nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "identifier sequence unavailable")
		}
		g.logger.Warn("sequence counter unavailable, falling back to suffix scan", zap.Error(err))
	}

	if g.fallback == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "no identifier source configured")
	}
	max, err := g.fallback.MaxSuffixForDay(ctx, g.prefix, day)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "identifier scan failed")
	}
	if max >= maxDailySuffix {
		return "", appErrors.Clone(appErrors.ErrSequenceExhausted, "daily identifier space exhausted")
	}
	return fmt.Sprintf("%s-%s-%04d", g.prefix, day, max+1), nil
}
