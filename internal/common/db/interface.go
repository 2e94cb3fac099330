package db

import "context"

// Database is the connection-pool-backed entry point for queries and transactions.
type Database interface {
	Querier

	// Transaction executes fn inside a transaction, rolling back on error.
	Transaction(ctx context.Context, fn func(tx Transaction) error) error

	// BeginTx starts a new transaction.
	BeginTx(ctx context.Context) (Transaction, error)

	// Ping verifies the connection is still alive.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Transaction is an in-progress database transaction.
type Transaction interface {
	Querier

	Commit() error
	Rollback() error
}

// Querier abstracts query operations shared by Database and Transaction.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// Rows is the result of a query.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Row is the result of a single-row query.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}
