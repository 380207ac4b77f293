package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SequenceRepository hands out per-day identifier counters backed by a
// dedicated table. The single upsert statement is the serialization point:
// two concurrent calls for the same (prefix, day) always observe distinct
// counter values.
type SequenceRepository struct {
	db *sqlx.DB
}

// NewSequenceRepository constructs the repository.
func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next atomically increments and returns the counter for the given prefix and
// day (formatted YYYYMMDD). The first call of a day returns 1.
func (r *SequenceRepository) Next(ctx context.Context, prefix, day string) (int, error) {
	const query = `INSERT INTO id_sequences (prefix, day, counter)
        VALUES ($1, $2, 1)
        ON CONFLICT (prefix, day)
        DO UPDATE SET counter = id_sequences.counter + 1
        RETURNING counter`
	var counter int
	if err := r.db.GetContext(ctx, &counter, query, prefix, day); err != nil {
		return 0, fmt.Errorf("next sequence %s-%s: %w", prefix, day, err)
	}
	return counter, nil
}
