package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// NoTX marks the non-transactional path explicitly at call sites.
var NoTX Tx

// TransactionManager executes a function within a database transaction,
// passing the transaction handle to repositories via the `tx` argument.
//
// Use-case interfaces stay free of storage types: repositories accept
// `tx Tx` and detect the concrete handle (pgx.Tx for Postgres) themselves,
// gracefully falling back to the pool when nil is passed.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
