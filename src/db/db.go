package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	queries "spendlens/src/db/sql"
	"spendlens/src/models"
)

// TransactionStore replaces the stored expense table with a new snapshot.
type TransactionStore interface {
	ReplaceTransactions(ctx context.Context, txns []models.Transaction) error
	Close() error
}

// Open returns the store for backend ("sqlite" or "postgres").
func Open(ctx context.Context, backend, sqlitePath, databaseURL string) (TransactionStore, error) {
	switch backend {
	case "sqlite":
		return NewSQLiteStore(sqlitePath)
	case "postgres":
		return NewPostgresStore(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := Connect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := queries.EnsureTransactionsTable(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure transactions table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) ReplaceTransactions(ctx context.Context, txns []models.Transaction) error {
	return queries.ReplaceTransactions(ctx, s.pool, txns)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
