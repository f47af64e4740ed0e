package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function within
// a database transaction, passing the underlying transaction handle via `tx`.
//
// Repositories accept a `tx Tx` argument and must gracefully accept nil
// (non-transactional path); the concrete type is infra-defined (pgx.Tx for
// Postgres). Keeping the handle opaque keeps use-case interfaces clean while
// still letting repositories run conditional updates inside one transaction.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
