// Package repository provides access to data available in SQL-based data store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	uuid "github.com/satori/go.uuid"

	"github.com/pulseras/pulseras-go/services/checkout/model"
)

const (
	errCodeUniqueViolation = "23505"

	transactionColumns = `id, user_id, amount_usd, amount_bs, exchange_rate, payment_method, status,
	sender_name, sender_phone, reference, screenshot, admin_notes, verified_at, idempotency_key,
	created_at, updated_at`

	defaultTransactionOrder = "created_at DESC"
)

type Transaction struct{}

func NewTransaction() *Transaction { return &Transaction{} }

// Create inserts a transaction.
//
// A second insert with the same idempotency key fails with model.ErrIdempotencyConflict.
func (r *Transaction) Create(ctx context.Context, dbi sqlx.QueryerContext, req model.TransactionNew) (*model.Transaction, error) {
	const q = `INSERT INTO transactions
		(user_id, amount_usd, amount_bs, exchange_rate, payment_method, status,
		sender_name, sender_phone, reference, screenshot, idempotency_key)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING ` + transactionColumns

	result := &model.Transaction{}
	if err := dbi.QueryRowxContext(
		ctx,
		q,
		req.UserID,
		req.AmountUSD,
		req.AmountBS,
		req.ExchangeRate,
		req.PaymentMethod,
		req.Status,
		req.SenderName,
		req.SenderPhone,
		req.Reference,
		req.Screenshot,
		req.IdempotencyKey,
	).StructScan(result); err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrIdempotencyConflict
		}

		return nil, err
	}

	return result, nil
}

// Get retrieves the transaction for the given id.
func (r *Transaction) Get(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	return r.get(ctx, dbi, q, id)
}

// GetForUpdate retrieves the transaction and locks its row until dbi is finished.
func (r *Transaction) GetForUpdate(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	return r.get(ctx, dbi, q, id)
}

// GetByIdempotencyKey retrieves the transaction userID created with key.
//
// Keys are scoped per user; an empty userID matches anonymous transactions.
func (r *Transaction) GetByIdempotencyKey(ctx context.Context, dbi sqlx.QueryerContext, userID, key string) (*model.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions
	WHERE coalesce(user_id, '') = $1 AND idempotency_key = $2`

	return r.get(ctx, dbi, q, userID, key)
}

// UpdateStatus applies chg.
//
// Nil notes and verification time leave the stored values as they are.
func (r *Transaction) UpdateStatus(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID, chg model.StatusChange) (*model.Transaction, error) {
	const q = `UPDATE transactions
	SET status = $2, admin_notes = COALESCE($3, admin_notes), verified_at = COALESCE($4, verified_at), updated_at = now()
	WHERE id = $1
	RETURNING ` + transactionColumns

	return r.get(ctx, dbi, q, id, chg.Status, chg.AdminNotes, chg.VerifiedAt)
}

// AttachScreenshot stores ref as the proof of payment and moves the transaction to VERIFYING.
func (r *Transaction) AttachScreenshot(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID, ref string) (*model.Transaction, error) {
	const q = `UPDATE transactions
	SET screenshot = $2, status = $3, updated_at = now()
	WHERE id = $1
	RETURNING ` + transactionColumns

	return r.get(ctx, dbi, q, id, ref, model.StatusVerifying)
}

// ListByUser returns all transactions of userID, newest first.
func (r *Transaction) ListByUser(ctx context.Context, dbi sqlx.QueryerContext, userID string) ([]model.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`

	result := make([]model.Transaction, 0)
	if err := sqlx.SelectContext(ctx, dbi, &result, q, userID); err != nil {
		return nil, err
	}

	return result, nil
}

// List returns a page of transactions, optionally filtered by status.
func (r *Transaction) List(ctx context.Context, dbi sqlx.QueryerContext, params model.ListParams) ([]model.Transaction, error) {
	orderBy := params.OrderBy
	if strings.TrimSpace(orderBy) == "" {
		orderBy = defaultTransactionOrder
	}

	q := `SELECT ` + transactionColumns + ` FROM transactions
	WHERE ($1::text IS NULL OR status = $1)
	ORDER BY ` + orderBy + `
	LIMIT $2 OFFSET $3`

	result := make([]model.Transaction, 0)
	if err := sqlx.SelectContext(ctx, dbi, &result, q, params.Status, params.Limit, params.Offset); err != nil {
		return nil, err
	}

	return result, nil
}

// Count returns the number of transactions, optionally filtered by status.
func (r *Transaction) Count(ctx context.Context, dbi sqlx.QueryerContext, status *model.Status) (int, error) {
	const q = `SELECT COUNT(*) FROM transactions WHERE ($1::text IS NULL OR status = $1)`

	var result int
	if err := sqlx.GetContext(ctx, dbi, &result, q, status); err != nil {
		return 0, err
	}

	return result, nil
}

func (r *Transaction) get(ctx context.Context, dbi sqlx.QueryerContext, q string, args ...interface{}) (*model.Transaction, error) {
	result := &model.Transaction{}
	if err := dbi.QueryRowxContext(ctx, q, args...).StructScan(result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrTransactionNotFound
		}

		return nil, err
	}

	return result, nil
}

func isUniqueViolation(err error) bool {
	var perr *pq.Error
	if !errors.As(err, &perr) {
		return false
	}

	return perr.Code == errCodeUniqueViolation
}
