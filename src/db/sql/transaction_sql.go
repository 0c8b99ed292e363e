package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spendlens/src/models"
)

func EnsureTransactionsTable(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS transactions (
			transaction_id TEXT PRIMARY KEY,
			date DATE NOT NULL,
			amount NUMERIC(14, 2) NOT NULL,
			category TEXT NOT NULL,
			merchant_name TEXT NOT NULL,
			pending BOOLEAN NOT NULL DEFAULT FALSE
		)
	`
	_, err := pool.Exec(ctx, query)
	return err
}

// ReplaceTransactions swaps the whole table for txns in one transaction.
func ReplaceTransactions(ctx context.Context, pool *pgxpool.Pool, transactions []models.Transaction) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM transactions`); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, txn := range transactions {
		batch.Queue(`
			INSERT INTO transactions (transaction_id, date, amount, category, merchant_name, pending)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			txn.ID,
			txn.Date,
			txn.Amount,
			txn.Category,
			txn.MerchantName,
			txn.Pending,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
