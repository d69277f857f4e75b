package datastore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	appctx "github.com/pulseras/pulseras-go/libs/context"
	"github.com/pulseras/pulseras-go/libs/logging"
)

// TxAble - something that is capable of beginning and rolling back a sqlx.Tx
type TxAble interface {
	RollbackTx(*sqlx.Tx)
	BeginTx() (*sqlx.Tx, error)
}

// GetTx will get or create a tx on the context, if created hands back rollback and commit functions
// NOTE a tx already on the context belongs to the caller, so the returned functions are no-ops
func GetTx(ctx context.Context, ta TxAble) (context.Context, *sqlx.Tx, func(), func() error, error) {
	if tx, ok := ctx.Value(appctx.DatabaseTransactionCTXKey).(*sqlx.Tx); ok && tx != nil {
		return ctx, tx, func() {}, func() error { return nil }, nil
	}

	tx, err := CreateTx(ctx, ta)
	if err != nil {
		return ctx, nil, func() {}, func() error { return nil }, err
	}

	ctx = context.WithValue(ctx, appctx.DatabaseTransactionCTXKey, tx)

	rollback := func() { ta.RollbackTx(tx) }
	commit := func() error {
		if err := tx.Commit(); err != nil {
			logging.Logger(ctx, "datastore.GetTx").Error().Err(err).Msg("failed to commit transaction")
			return err
		}
		return nil
	}

	return ctx, tx, rollback, commit, nil
}

// CreateTx - helper to create a tx
func CreateTx(ctx context.Context, ta TxAble) (*sqlx.Tx, error) {
	tx, err := ta.BeginTx()
	if err != nil {
		logging.Logger(ctx, "datastore.CreateTx").Error().Err(err).Msg("error creating transaction")
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}
