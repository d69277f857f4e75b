// Package checkout records settlements, drives their status and accepts proof of payment.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jmoiron/sqlx"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	appctx "github.com/pulseras/pulseras-go/libs/context"
	"github.com/pulseras/pulseras-go/libs/datastore"
	"github.com/pulseras/pulseras-go/libs/logging"
	"github.com/pulseras/pulseras-go/libs/ptr"
	"github.com/pulseras/pulseras-go/libs/responses"
	"github.com/pulseras/pulseras-go/services/checkout/evidence"
	"github.com/pulseras/pulseras-go/services/checkout/events"
	"github.com/pulseras/pulseras-go/services/checkout/model"
	"github.com/pulseras/pulseras-go/services/checkout/pricing"
	"github.com/pulseras/pulseras-go/services/checkout/storage/repository"
	"github.com/pulseras/pulseras-go/services/rates"
)

const defaultEvidenceDir = "uploads"

type transactionStore interface {
	Create(ctx context.Context, dbi sqlx.QueryerContext, req model.TransactionNew) (*model.Transaction, error)
	Get(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Transaction, error)
	GetForUpdate(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, dbi sqlx.QueryerContext, userID, key string) (*model.Transaction, error)
	UpdateStatus(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID, chg model.StatusChange) (*model.Transaction, error)
	AttachScreenshot(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID, ref string) (*model.Transaction, error)
	ListByUser(ctx context.Context, dbi sqlx.QueryerContext, userID string) ([]model.Transaction, error)
	List(ctx context.Context, dbi sqlx.QueryerContext, params model.ListParams) ([]model.Transaction, error)
	Count(ctx context.Context, dbi sqlx.QueryerContext, status *model.Status) (int, error)
}

type orderStore interface {
	Create(ctx context.Context, dbi sqlx.QueryerContext, req model.OrderNew) (*model.Order, error)
	ListByTransactionIDs(ctx context.Context, dbi sqlx.QueryerContext, ids ...uuid.UUID) ([]model.Order, error)
	SetStatusByTransaction(ctx context.Context, dbi sqlx.ExecerContext, txnID uuid.UUID, status string) (int64, error)
}

type rateSource interface {
	Fetch(ctx context.Context) rates.ExchangeRates
	Latest(ctx context.Context) rates.ExchangeRates
}

// Service contains datastore and collaborators of the checkout flow.
type Service struct {
	Datastore datastore.Datastore

	txnRepo   transactionStore
	orderRepo orderStore
	rates     rateSource
	evidence  evidence.Store
	events    events.Publisher

	strict   bool
	maxProof int64
	now      func() time.Time
}

// Option configures a Service.
type Option func(s *Service)

// WithStrictTransitions makes SetStatus reject moves outside the status graph.
func WithStrictTransitions(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithMaxProofBytes sets the size limit of proof images.
func WithMaxProofBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxProof = n
		}
	}
}

// NewService creates a service.
func NewService(
	ds datastore.Datastore,
	txnRepo transactionStore,
	orderRepo orderStore,
	rts rateSource,
	store evidence.Store,
	pub events.Publisher,
	opts ...Option,
) *Service {
	s := &Service{
		Datastore: ds,
		txnRepo:   txnRepo,
		orderRepo: orderRepo,
		rates:     rts,
		evidence:  store,
		events:    pub,
		maxProof:  evidence.DefaultMaxBytes,
		now:       time.Now,
	}

	for _, fn := range opts {
		fn(s)
	}

	return s
}

// InitService creates a service using the passed context.
func InitService(ctx context.Context, rts rateSource) (*Service, error) {
	logger := logging.Logger(ctx, "checkout.InitService")

	dbURL, err := appctx.GetStringFromContext(ctx, appctx.DatabaseURLCTXKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get database url: %w", err)
	}

	migrate, _ := appctx.GetBoolFromContext(ctx, appctx.DatabaseMigrateCTXKey)

	pg, err := datastore.NewPostgres(dbURL, migrate)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize the datastore")
		return nil, fmt.Errorf("failed to initialize datastore: %w", err)
	}

	var store evidence.Store
	if bucket, _ := appctx.GetStringFromContext(ctx, appctx.EvidenceBucketCTXKey); bucket != "" {
		s3store, err := evidence.InitS3Store(ctx, bucket)
		if err != nil {
			logger.Error().Err(err).Msg("failed to initialize the evidence bucket")
			return nil, err
		}

		store = s3store
	} else {
		dir, _ := appctx.GetStringFromContext(ctx, appctx.EvidenceDirCTXKey)
		if dir == "" {
			dir = defaultEvidenceDir
		}

		logger.Warn().Str("dir", dir).Msg("no evidence bucket configured, storing proofs on local disk")
		store = evidence.NewFileStore(dir)
	}

	brokers, _ := appctx.GetStringSliceFromContext(ctx, appctx.KafkaBrokersCTXKey)
	topic, _ := appctx.GetStringFromContext(ctx, appctx.StatusEventsTopicCTXKey)

	pub, err := events.InitPublisher(ctx, brokers, topic)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize the status event publisher")
		return nil, err
	}

	strict, _ := appctx.GetBoolFromContext(ctx, appctx.StrictTransitionsCTXKey)
	maxProof, _ := appctx.GetInt64FromContext(ctx, appctx.EvidenceMaxBytesCTXKey)

	txnRepo := repository.NewPromTransaction("checkout", repository.NewTransaction())
	orderRepo := repository.NewPromOrder("checkout", repository.NewOrder())

	return NewService(pg, txnRepo, orderRepo, rts, store, pub, WithStrictTransitions(strict), WithMaxProofBytes(maxProof)), nil
}

// SettlementRequest is a checkout submission.
//
// Items and PaymentDetails hold the JSON documents exactly as submitted.
type SettlementRequest struct {
	UserID         string
	Items          string
	PaymentMethod  string
	PaymentDetails string
	Proof          *evidence.Proof
	IdempotencyKey string
}

// SettlementResult is the outcome of a checkout.
type SettlementResult struct {
	Transaction        *model.Transaction `json:"transaction"`
	OrderID            uuid.UUID          `json:"orderId"`
	DiscountPercentage *decimal.Decimal   `json:"discountPercentage,omitempty"`

	// Replayed is set when an earlier submission with the same idempotency key was returned.
	Replayed bool `json:"-"`
}

// CreateSettlement validates req, prices it and records a transaction together with its order.
func (s *Service) CreateSettlement(ctx context.Context, req *SettlementRequest) (*SettlementResult, error) {
	if strings.TrimSpace(req.Items) == "" {
		return nil, model.ErrItemsRequired
	}

	if strings.TrimSpace(req.PaymentMethod) == "" {
		return nil, model.ErrPaymentMethodRequired
	}

	lines, err := model.ParseItems(req.Items)
	if err != nil {
		return nil, err
	}

	details, err := model.ParsePaymentDetails(req.PaymentDetails)
	if err != nil {
		return nil, err
	}

	if len(lines) == 0 {
		return nil, model.ErrItemsEmpty
	}

	method, err := model.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	if method.RequiresReference() && details.Reference == "" {
		return nil, model.ErrReferenceRequired
	}

	if req.Proof != nil {
		if err := evidence.Validate(req.Proof, s.maxProof); err != nil {
			return nil, err
		}
	}

	if req.IdempotencyKey != "" {
		result, err := s.settlementByKey(ctx, req.UserID, req.IdempotencyKey)
		if err == nil {
			return result, nil
		}

		if !errors.Is(err, model.ErrTransactionNotFound) {
			return nil, err
		}
	}

	rts := s.rates.Fetch(ctx)
	stl := pricing.Settle(pricing.CartTotal(lines), method, rts)

	txnReq := model.TransactionNew{
		UserID:         ptr.FromNonEmptyString(req.UserID),
		AmountUSD:      stl.FinalUSD,
		AmountBS:       stl.AmountBS,
		ExchangeRate:   stl.ExchangeRate,
		PaymentMethod:  method,
		Status:         model.StatusPending,
		SenderName:     ptr.FromNonEmptyString(details.SenderName),
		SenderPhone:    ptr.FromNonEmptyString(details.SenderPhone),
		IdempotencyKey: ptr.FromNonEmptyString(req.IdempotencyKey),
	}

	if method.RequiresReference() {
		txnReq.Reference = ptr.FromNonEmptyString(details.Reference)
	}

	if req.Proof != nil {
		ref, err := s.evidence.Put(ctx, req.Proof)
		if err != nil {
			return nil, fmt.Errorf("failed to store proof of payment: %w", err)
		}

		txnReq.Screenshot = &ref
		txnReq.Status = model.StatusVerifying
	}

	orderReq := model.OrderNew{
		UserID:        txnReq.UserID,
		Items:         datastore.RawJSON(req.Items),
		TotalUSD:      stl.FinalUSD,
		TotalBS:       stl.AmountBS,
		PaymentMethod: method,
		Status:        txnReq.Status.OrderStatus(),
	}

	if strings.TrimSpace(req.PaymentDetails) != "" {
		orderReq.PaymentDetails = datastore.RawJSON(req.PaymentDetails)
	}

	txn, err := s.createTxnWithOrder(ctx, txnReq, orderReq)
	if err != nil {
		if txnReq.Screenshot != nil {
			s.discardProof(ctx, *txnReq.Screenshot)
		}

		if errors.Is(err, model.ErrIdempotencyConflict) {
			return s.settlementByKey(ctx, req.UserID, req.IdempotencyKey)
		}

		return nil, err
	}

	result := &SettlementResult{
		Transaction: txn,
		OrderID:     txn.Orders[0].ID,
	}

	if stl.DiscountPercentage.Valid {
		result.DiscountPercentage = &stl.DiscountPercentage.Decimal
	}

	return result, nil
}

func (s *Service) createTxnWithOrder(ctx context.Context, txnReq model.TransactionNew, orderReq model.OrderNew) (*model.Transaction, error) {
	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.Datastore)
	if err != nil {
		return nil, err
	}
	defer rollback()

	txn, err := s.txnRepo.Create(ctx, tx, txnReq)
	if err != nil {
		return nil, err
	}

	orderReq.TransactionID = txn.ID

	order, err := s.orderRepo.Create(ctx, tx, orderReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := commit(); err != nil {
		return nil, err
	}

	txn.Orders = []model.Order{*order}

	return txn, nil
}

func (s *Service) settlementByKey(ctx context.Context, userID, key string) (*SettlementResult, error) {
	dbi := s.Datastore.RawDB()

	txn, err := s.txnRepo.GetByIdempotencyKey(ctx, dbi, userID, key)
	if err != nil {
		return nil, err
	}

	if !txn.CreatedBy(userID) {
		return nil, model.ErrIdempotencyKeyReused
	}

	orders, err := s.orderRepo.ListByTransactionIDs(ctx, dbi, txn.ID)
	if err != nil {
		return nil, err
	}

	txn.Orders = orders

	result := &SettlementResult{Transaction: txn, Replayed: true}
	if len(orders) > 0 {
		result.OrderID = orders[0].ID
	}

	return result, nil
}

// SetStatus moves the transaction to the status named by raw and cascades it onto its orders.
//
// Non-nil adminNotes replace the stored notes.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, raw string, adminNotes *string) (*model.Transaction, error) {
	status, err := model.ParseStatus(raw)
	if err != nil {
		return nil, err
	}

	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.Datastore)
	if err != nil {
		return nil, err
	}
	defer rollback()

	cur, err := s.txnRepo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if s.strict && !cur.Status.CanTransitionTo(status) {
		return nil, model.ErrInvalidTransition
	}

	chg := model.StatusChange{Status: status, AdminNotes: adminNotes}
	if status == model.StatusCompleted {
		chg.VerifiedAt = ptr.FromTime(s.now().UTC())
	}

	txn, err := s.txnRepo.UpdateStatus(ctx, tx, id, chg)
	if err != nil {
		return nil, err
	}

	if err := s.cascade(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err := commit(); err != nil {
		return nil, err
	}

	s.publish(ctx, cur.Status, txn)

	return txn, nil
}

// AttachProof stores proof for the transaction and moves it to VERIFYING.
//
// Only admins may attach proof to a transaction owned by someone other than userID.
func (s *Service) AttachProof(ctx context.Context, id uuid.UUID, proof *evidence.Proof, userID string, admin bool) (*model.Transaction, error) {
	if err := evidence.Validate(proof, s.maxProof); err != nil {
		return nil, err
	}

	existing, err := s.txnRepo.Get(ctx, s.Datastore.RawDB(), id)
	if err != nil {
		return nil, err
	}

	if !admin && !existing.OwnedBy(userID) {
		return nil, model.ErrForbidden
	}

	ref, err := s.evidence.Put(ctx, proof)
	if err != nil {
		return nil, fmt.Errorf("failed to store proof of payment: %w", err)
	}

	cur, txn, err := s.attachScreenshot(ctx, id, ref)
	if err != nil {
		s.discardProof(ctx, ref)
		return nil, err
	}

	s.publish(ctx, cur.Status, txn)

	return txn, nil
}

// attachScreenshot stores ref on the transaction and returns it before and after the change.
func (s *Service) attachScreenshot(ctx context.Context, id uuid.UUID, ref string) (*model.Transaction, *model.Transaction, error) {
	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.Datastore)
	if err != nil {
		return nil, nil, err
	}
	defer rollback()

	cur, err := s.txnRepo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}

	txn, err := s.txnRepo.AttachScreenshot(ctx, tx, id, ref)
	if err != nil {
		return nil, nil, err
	}

	if err := s.cascade(ctx, tx, txn); err != nil {
		return nil, nil, err
	}

	if err := commit(); err != nil {
		return nil, nil, err
	}

	return cur, txn, nil
}

// discardProof removes an uploaded proof no transaction ended up referencing.
func (s *Service) discardProof(ctx context.Context, ref string) {
	if err := s.evidence.Delete(ctx, ref); err != nil {
		logging.Logger(ctx, "checkout.discardProof").Error().Err(err).
			Str("proof", ref).
			Msg("failed to delete orphaned proof of payment")
		sentry.CaptureException(err)
	}
}

// cascade copies the status of txn onto its orders and loads them into txn.
func (s *Service) cascade(ctx context.Context, tx *sqlx.Tx, txn *model.Transaction) error {
	if _, err := s.orderRepo.SetStatusByTransaction(ctx, tx, txn.ID, txn.Status.OrderStatus()); err != nil {
		return fmt.Errorf("failed to update orders: %w", err)
	}

	orders, err := s.orderRepo.ListByTransactionIDs(ctx, tx, txn.ID)
	if err != nil {
		return err
	}

	txn.Orders = orders

	return nil
}

func (s *Service) publish(ctx context.Context, from model.Status, txn *model.Transaction) {
	evt := events.NewStatusChanged(from, txn, s.now())

	if err := s.events.PublishStatusChanged(ctx, evt); err != nil {
		logging.Logger(ctx, "checkout.publish").Error().Err(err).
			Str("transaction_id", txn.ID.String()).
			Str("status", string(txn.Status)).
			Msg("failed to publish status change")

		sentry.CaptureException(err)
	}
}

// ListMine returns the transactions of userID with their orders, newest first.
func (s *Service) ListMine(ctx context.Context, userID string) ([]model.Transaction, error) {
	dbi := s.Datastore.RawDB()

	txns, err := s.txnRepo.ListByUser(ctx, dbi, userID)
	if err != nil {
		return nil, err
	}

	if err := s.loadOrders(ctx, dbi, txns); err != nil {
		return nil, err
	}

	return txns, nil
}

// TransactionPage is one page of the admin listing.
type TransactionPage struct {
	Transactions []model.Transaction   `json:"transactions"`
	Pagination   responses.Pagination `json:"pagination"`
}

// ListRequest selects a page of the admin listing.
type ListRequest struct {
	Status  string
	OrderBy string
	Page    int
	Limit   int
	Offset  int
}

// ListAll returns a page of all transactions, optionally filtered by status.
func (s *Service) ListAll(ctx context.Context, req ListRequest) (*TransactionPage, error) {
	params := model.ListParams{
		OrderBy: req.OrderBy,
		Limit:   req.Limit,
		Offset:  req.Offset,
	}

	if req.Status != "" {
		status, err := model.ParseStatus(req.Status)
		if err != nil {
			return nil, err
		}

		params.Status = &status
	}

	dbi := s.Datastore.RawDB()

	total, err := s.txnRepo.Count(ctx, dbi, params.Status)
	if err != nil {
		return nil, err
	}

	txns, err := s.txnRepo.List(ctx, dbi, params)
	if err != nil {
		return nil, err
	}

	if err := s.loadOrders(ctx, dbi, txns); err != nil {
		return nil, err
	}

	result := &TransactionPage{
		Transactions: txns,
		Pagination:   responses.NewPagination(req.Page, req.Limit, total),
	}

	return result, nil
}

func (s *Service) loadOrders(ctx context.Context, dbi sqlx.QueryerContext, txns []model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	orders, err := s.orderRepo.ListByTransactionIDs(ctx, dbi, model.TransactionIDs(txns)...)
	if err != nil {
		return err
	}

	model.AttachOrders(txns, orders)

	return nil
}

// Calculation is a quote together with what it was computed from.
type Calculation struct {
	pricing.QuoteResult

	Method *model.MethodInfo    `json:"method,omitempty"`
	Rates  rates.ExchangeRates `json:"rates"`
}

// Calculate quotes amountUSD for the method named by raw against the latest rates.
//
// An unsupported method is not an error, the quote only carries a prompt.
func (s *Service) Calculate(ctx context.Context, amountUSD decimal.Decimal, raw string) *Calculation {
	rts := s.rates.Latest(ctx)
	method := model.PaymentMethod(raw)

	result := &Calculation{
		QuoteResult: pricing.Quote(amountUSD, method, rts),
		Rates:       rts,
	}

	if info, ok := method.Info(); ok {
		result.Method = &info
	}

	return result
}
