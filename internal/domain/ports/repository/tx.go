package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque storage transaction handle. Repositories accept nil (NoTX)
// and fall back to their connection pool.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside one storage transaction and hands the
// handle to fn. The concrete type (pgx.Tx for Postgres) is infra-defined.
// The materializer does not run inside one; each of its steps is re-runnable.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
