package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/pulseras/pulseras-go/services/checkout/model"
)

type MockTransaction struct {
	FnCreate              func(ctx context.Context, dbi sqlx.QueryerContext, req model.TransactionNew) (*model.Transaction, error)
	FnGet                 func(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Transaction, error)
	FnGetForUpdate        func(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Transaction, error)
	FnGetByIdempotencyKey func(ctx context.Context, dbi sqlx.QueryerContext, userID, key string) (*model.Transaction, error)
	FnUpdateStatus        func(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID, chg model.StatusChange) (*model.Transaction, error)
	FnAttachScreenshot    func(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID, ref string) (*model.Transaction, error)
	FnListByUser          func(ctx context.Context, dbi sqlx.QueryerContext, userID string) ([]model.Transaction, error)
	FnList                func(ctx context.Context, dbi sqlx.QueryerContext, params model.ListParams) ([]model.Transaction, error)
	FnCount               func(ctx context.Context, dbi sqlx.QueryerContext, status *model.Status) (int, error)
}

func (r *MockTransaction) Create(ctx context.Context, dbi sqlx.QueryerContext, req model.TransactionNew) (*model.Transaction, error) {
	if r.FnCreate == nil {
		now := time.Now().UTC()

		result := &model.Transaction{
			ID:             uuid.NewV4(),
			UserID:         req.UserID,
			AmountUSD:      req.AmountUSD,
			AmountBS:       req.AmountBS,
			ExchangeRate:   req.ExchangeRate,
			PaymentMethod:  req.PaymentMethod,
			Status:         req.Status,
			SenderName:     req.SenderName,
			SenderPhone:    req.SenderPhone,
			Reference:      req.Reference,
			Screenshot:     req.Screenshot,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		return result, nil
	}

	return r.FnCreate(ctx, dbi, req)
}

func (r *MockTransaction) Get(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Transaction, error) {
	if r.FnGet == nil {
		return mockTransaction(id), nil
	}

	return r.FnGet(ctx, dbi, id)
}

func (r *MockTransaction) GetForUpdate(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Transaction, error) {
	if r.FnGetForUpdate == nil {
		return mockTransaction(id), nil
	}

	return r.FnGetForUpdate(ctx, dbi, id)
}

func (r *MockTransaction) GetByIdempotencyKey(ctx context.Context, dbi sqlx.QueryerContext, userID, key string) (*model.Transaction, error) {
	if r.FnGetByIdempotencyKey == nil {
		return nil, model.ErrTransactionNotFound
	}

	return r.FnGetByIdempotencyKey(ctx, dbi, userID, key)
}

func (r *MockTransaction) UpdateStatus(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID, chg model.StatusChange) (*model.Transaction, error) {
	if r.FnUpdateStatus == nil {
		result := mockTransaction(id)
		result.Status = chg.Status
		result.AdminNotes = chg.AdminNotes
		result.VerifiedAt = chg.VerifiedAt

		return result, nil
	}

	return r.FnUpdateStatus(ctx, dbi, id, chg)
}

func (r *MockTransaction) AttachScreenshot(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID, ref string) (*model.Transaction, error) {
	if r.FnAttachScreenshot == nil {
		result := mockTransaction(id)
		result.Screenshot = &ref
		result.Status = model.StatusVerifying

		return result, nil
	}

	return r.FnAttachScreenshot(ctx, dbi, id, ref)
}

func (r *MockTransaction) ListByUser(ctx context.Context, dbi sqlx.QueryerContext, userID string) ([]model.Transaction, error) {
	if r.FnListByUser == nil {
		return []model.Transaction{}, nil
	}

	return r.FnListByUser(ctx, dbi, userID)
}

func (r *MockTransaction) List(ctx context.Context, dbi sqlx.QueryerContext, params model.ListParams) ([]model.Transaction, error) {
	if r.FnList == nil {
		return []model.Transaction{}, nil
	}

	return r.FnList(ctx, dbi, params)
}

func (r *MockTransaction) Count(ctx context.Context, dbi sqlx.QueryerContext, status *model.Status) (int, error) {
	if r.FnCount == nil {
		return 0, nil
	}

	return r.FnCount(ctx, dbi, status)
}

type MockOrder struct {
	FnCreate                 func(ctx context.Context, dbi sqlx.QueryerContext, req model.OrderNew) (*model.Order, error)
	FnListByTransactionIDs   func(ctx context.Context, dbi sqlx.QueryerContext, ids ...uuid.UUID) ([]model.Order, error)
	FnSetStatusByTransaction func(ctx context.Context, dbi sqlx.ExecerContext, txnID uuid.UUID, status string) (int64, error)
}

func (r *MockOrder) Create(ctx context.Context, dbi sqlx.QueryerContext, req model.OrderNew) (*model.Order, error) {
	if r.FnCreate == nil {
		now := time.Now().UTC()

		result := &model.Order{
			ID:             uuid.NewV4(),
			UserID:         req.UserID,
			TransactionID:  req.TransactionID,
			Items:          req.Items,
			TotalUSD:       req.TotalUSD,
			TotalBS:        req.TotalBS,
			PaymentMethod:  req.PaymentMethod,
			PaymentDetails: req.PaymentDetails,
			Status:         req.Status,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		return result, nil
	}

	return r.FnCreate(ctx, dbi, req)
}

func (r *MockOrder) ListByTransactionIDs(ctx context.Context, dbi sqlx.QueryerContext, ids ...uuid.UUID) ([]model.Order, error) {
	if r.FnListByTransactionIDs == nil {
		return []model.Order{}, nil
	}

	return r.FnListByTransactionIDs(ctx, dbi, ids...)
}

func (r *MockOrder) SetStatusByTransaction(ctx context.Context, dbi sqlx.ExecerContext, txnID uuid.UUID, status string) (int64, error) {
	if r.FnSetStatusByTransaction == nil {
		return 1, nil
	}

	return r.FnSetStatusByTransaction(ctx, dbi, txnID, status)
}

func mockTransaction(id uuid.UUID) *model.Transaction {
	now := time.Now().UTC()

	return &model.Transaction{
		ID:            id,
		AmountUSD:     decimal.NewFromInt(10),
		PaymentMethod: model.PaymentMethodZelle,
		Status:        model.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
