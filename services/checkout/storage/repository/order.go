package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	uuid "github.com/satori/go.uuid"

	"github.com/pulseras/pulseras-go/services/checkout/model"
)

const orderColumns = `id, user_id, transaction_id, items, total_usd, total_bs, payment_method,
	payment_details, status, created_at, updated_at`

type Order struct{}

func NewOrder() *Order { return &Order{} }

// Create inserts an order.
func (r *Order) Create(ctx context.Context, dbi sqlx.QueryerContext, req model.OrderNew) (*model.Order, error) {
	const q = `INSERT INTO orders
		(user_id, transaction_id, items, total_usd, total_bs, payment_method, payment_details, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING ` + orderColumns

	result := &model.Order{}
	if err := dbi.QueryRowxContext(
		ctx,
		q,
		req.UserID,
		req.TransactionID,
		req.Items,
		req.TotalUSD,
		req.TotalBS,
		req.PaymentMethod,
		req.PaymentDetails,
		req.Status,
	).StructScan(result); err != nil {
		return nil, err
	}

	return result, nil
}

// ListByTransactionIDs returns the orders funded by any of ids, oldest first.
func (r *Order) ListByTransactionIDs(ctx context.Context, dbi sqlx.QueryerContext, ids ...uuid.UUID) ([]model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE transaction_id = ANY($1::uuid[]) ORDER BY created_at`

	result := make([]model.Order, 0)
	if len(ids) == 0 {
		return result, nil
	}

	strs := make([]string, 0, len(ids))
	for i := range ids {
		strs = append(strs, ids[i].String())
	}

	if err := sqlx.SelectContext(ctx, dbi, &result, q, pq.StringArray(strs)); err != nil {
		return nil, err
	}

	return result, nil
}

// SetStatusByTransaction sets status on every order of txnID.
//
// A transaction without orders is not an error.
func (r *Order) SetStatusByTransaction(ctx context.Context, dbi sqlx.ExecerContext, txnID uuid.UUID, status string) (int64, error) {
	const q = `UPDATE orders SET status = $2, updated_at = now() WHERE transaction_id = $1`

	result, err := dbi.ExecContext(ctx, q, txnID, status)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
