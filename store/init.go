package store

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
)

func createBatchesTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*batchModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func createClaimIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*batchModel)(nil)).
		Index("idx_batches_status_next_visible").
		Column("status", "next_visible_at").
		IfNotExists().
		Exec(ctx)
	return err
}

func createExpiryIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*batchModel)(nil)).
		Index("idx_batches_status_claim_expires").
		Column("status", "claim_expires_at").
		IfNotExists().
		Exec(ctx)
	return err
}

// createIdempotencyIndex enforces the at-most-one-active-row key at the
// database level: a partial UNIQUE index over (batch_type,
// idempotency_key), filtered to the active statuses, makes two
// concurrent inserts of the same key a constraint violation rather
// than a race the application has to win. Terminal rows leave the
// index, so a completed batch never blocks a new one.
func createIdempotencyIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*batchModel)(nil)).
		Index("idx_batches_type_idempotency").
		Unique().
		Column("batch_type", "idempotency_key").
		Where("status IN ('pending', 'processing')").
		IfNotExists().
		Exec(ctx)
	return err
}

func createDepthIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*batchModel)(nil)).
		Index("idx_batches_type_status").
		Column("batch_type", "status").
		IfNotExists().
		Exec(ctx)
	return err
}

func createUpdatedIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*batchModel)(nil)).
		Index("idx_batches_status_updated").
		Column("status", "updated_at").
		IfNotExists().
		Exec(ctx)
	return err
}

func createDLQTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*dlqModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func createDLQRetryIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*dlqModel)(nil)).
		Index("idx_dlq_retry_created").
		Column("retry_count", "created_at").
		IfNotExists().
		Exec(ctx)
	return err
}

func createRateLimitsTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*rateLimitModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func initDB(ctx context.Context, db *bun.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	steps := []func(context.Context, bun.IDB) error{
		createBatchesTable,
		createClaimIndex,
		createExpiryIndex,
		createIdempotencyIndex,
		createDepthIndex,
		createUpdatedIndex,
		createDLQTable,
		createDLQRetryIndex,
		createRateLimitsTable,
	}
	for _, step := range steps {
		if err := step(ctx, tx); err != nil {
			return errors.Join(err, tx.Rollback())
		}
	}
	return tx.Commit()
}

// InitDB initializes the batches, dead_letter_items, and rate_limits
// tables and their indexes inside a single transaction. It is
// idempotent and safe to call on every process startup.
func InitDB(ctx context.Context, db *bun.DB) error {
	return initDB(ctx, db)
}
