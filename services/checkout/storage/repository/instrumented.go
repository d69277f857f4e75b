package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	uuid "github.com/satori/go.uuid"

	"github.com/pulseras/pulseras-go/services/checkout/model"
)

// PromTransaction wraps Transaction with Prometheus metrics.
type PromTransaction struct {
	name string
	repo *Transaction
	vec  *prometheus.SummaryVec
}

func NewPromTransaction(name string, repo *Transaction) *PromTransaction {
	result := &PromTransaction{
		name: name,
		repo: repo,
		vec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "checkout_repository_transaction_duration_seconds",
			Help:       "transaction repository runtime duration and result",
			MaxAge:     time.Minute,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"instance_name", "method", "result"}),
	}

	return result
}

func (r *PromTransaction) Create(ctx context.Context, dbi sqlx.QueryerContext, req model.TransactionNew) (rt *model.Transaction, err error) {
	now := time.Now()

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		ob := r.vec.WithLabelValues(r.name, "Create", result)
		ob.Observe(time.Since(now).Seconds())
	}()

	rt, err = r.repo.Create(ctx, dbi, req)

	return rt, err
}

func (r *PromTransaction) Get(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (rt *model.Transaction, err error) {
	now := time.Now()

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		ob := r.vec.WithLabelValues(r.name, "Get", result)
		ob.Observe(time.Since(now).Seconds())
	}()

	rt, err = r.repo.Get(ctx, dbi, id)

	return rt, err
}

func (r *PromTransaction) GetForUpdate(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (rt *model.Transaction, err error) {
	now := time.Now()

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		ob := r.vec.WithLabelValues(r.name, "GetForUpdate", result)
		ob.Observe(time.Since(now).Seconds())
	}()

	rt, err = r.repo.GetForUpdate(ctx, dbi, id)

	return rt, err
}

func (r *PromTransaction) GetByIdempotencyKey(ctx context.Context, dbi sqlx.QueryerContext, userID, key string) (rt *model.Transaction, err error) {
	now := time.Now()

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		ob := r.vec.WithLabelValues(r.name, "GetByIdempotencyKey", result)
		ob.Observe(time.Since(now).Seconds())
	}()

	rt, err = r.repo.GetByIdempotencyKey(ctx, dbi, userID, key)

	return rt, err
}

func (r *PromTransaction) UpdateStatus(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID, chg model.StatusChange) (rt *model.Transaction, err error) {
	now := time.Now()

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		ob := r.vec.WithLabelValues(r.name, "UpdateStatus", result)
		ob.Observe(time.Since(now).Seconds())
	}()

	rt, err = r.repo.UpdateStatus(ctx, dbi, id, chg)

	return rt, err
}

func (r *PromTransaction) AttachScreenshot(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID, ref string) (rt *model.Transaction, err error) {
	now := time.Now()

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		ob := r.vec.WithLabelValues(r.name, "AttachScreenshot", result)
		ob.Observe(time.Since(now).Seconds())
	}()

	rt, err = r.repo.AttachScreenshot(ctx, dbi, id, ref)

	return rt, err
}

func (r *PromTransaction) ListByUser(ctx context.Context, dbi sqlx.QueryerContext, userID string) (rt []model.Transaction, err error) {
	now := time.Now()

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		ob := r.vec.WithLabelValues(r.name, "ListByUser", result)
		ob.Observe(time.Since(now).Seconds())
	}()

	rt, err = r.repo.ListByUser(ctx, dbi, userID)

	return rt, err
}

func (r *PromTransaction) List(ctx context.Context, dbi sqlx.QueryerContext, params model.ListParams) (rt []model.Transaction, err error) {
	now := time.Now()

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		ob := r.vec.WithLabelValues(r.name, "List", result)
		ob.Observe(time.Since(now).Seconds())
	}()

	rt, err = r.repo.List(ctx, dbi, params)

	return rt, err
}

func (r *PromTransaction) Count(ctx context.Context, dbi sqlx.QueryerContext, status *model.Status) (rt int, err error) {
	now := time.Now()

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		ob := r.vec.WithLabelValues(r.name, "Count", result)
		ob.Observe(time.Since(now).Seconds())
	}()

	rt, err = r.repo.Count(ctx, dbi, status)

	return rt, err
}

// PromOrder wraps Order with Prometheus metrics.
type PromOrder struct {
	name string
	repo *Order
	vec  *prometheus.SummaryVec
}

func NewPromOrder(name string, repo *Order) *PromOrder {
	result := &PromOrder{
		name: name,
		repo: repo,
		vec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "checkout_repository_order_duration_seconds",
			Help:       "order repository runtime duration and result",
			MaxAge:     time.Minute,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"instance_name", "method", "result"}),
	}

	return result
}

func (r *PromOrder) Create(ctx context.Context, dbi sqlx.QueryerContext, req model.OrderNew) (rt *model.Order, err error) {
	now := time.Now()

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		ob := r.vec.WithLabelValues(r.name, "Create", result)
		ob.Observe(time.Since(now).Seconds())
	}()

	rt, err = r.repo.Create(ctx, dbi, req)

	return rt, err
}

func (r *PromOrder) ListByTransactionIDs(ctx context.Context, dbi sqlx.QueryerContext, ids ...uuid.UUID) (rt []model.Order, err error) {
	now := time.Now()

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		ob := r.vec.WithLabelValues(r.name, "ListByTransactionIDs", result)
		ob.Observe(time.Since(now).Seconds())
	}()

	rt, err = r.repo.ListByTransactionIDs(ctx, dbi, ids...)

	return rt, err
}

func (r *PromOrder) SetStatusByTransaction(ctx context.Context, dbi sqlx.ExecerContext, txnID uuid.UUID, status string) (rt int64, err error) {
	now := time.Now()

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		ob := r.vec.WithLabelValues(r.name, "SetStatusByTransaction", result)
		ob.Observe(time.Since(now).Seconds())
	}()

	rt, err = r.repo.SetStatusByTransaction(ctx, dbi, txnID, status)

	return rt, err
}
