package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ride-driver/internal/ports"
)

// ErrNoTx is returned by MustTxFromContext outside of WithinTx.
var ErrNoTx = errors.New("no transaction in context: call within UnitOfWork.WithinTx")

// txKey is the context key for the active pgx.Tx. An unexported type keeps
// it from colliding with keys set by other packages.
type txKey struct{}

// unitOfWork runs journal writes in transactions on a pgx pool.
type unitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork returns a unitOfWork bound to pool.
func NewUnitOfWork(pool *pgxpool.Pool) ports.UnitOfWork {
	return &unitOfWork{pool: pool}
}

// WithinTx runs fn inside a database transaction.
//   - If ctx already carries a transaction, fn joins it and nothing is committed here.
//   - If fn returns an error, the transaction is rolled back and the error returned.
//   - If fn panics, the transaction is rolled back and the panic re-raised.
//   - Otherwise the transaction is committed.
func (uow *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// nested call: the outer WithinTx owns commit and rollback
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := uow.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	// rollback must still run when ctx is already cancelled
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	// repositories pick the tx up with MustTxFromContext
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	return tx.Commit(ctx)
}

// TxFromContext extracts the pgx.Tx that WithinTx stored in ctx.
// It reports false outside of a transaction.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// MustTxFromContext returns the active pgx.Tx or ErrNoTx. Repository
// methods that only make sense inside WithinTx call it first.
func MustTxFromContext(ctx context.Context) (pgx.Tx, error) {
	if tx, ok := TxFromContext(ctx); ok {
		return tx, nil
	}
	return nil, ErrNoTx
}
