package checkout

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"
	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"

	"github.com/pulseras/pulseras-go/libs/datastore"
	"github.com/pulseras/pulseras-go/libs/ptr"
	"github.com/pulseras/pulseras-go/services/checkout/evidence"
	"github.com/pulseras/pulseras-go/services/checkout/events"
	"github.com/pulseras/pulseras-go/services/checkout/model"
	"github.com/pulseras/pulseras-go/services/checkout/pricing"
	"github.com/pulseras/pulseras-go/services/checkout/storage/repository"
	"github.com/pulseras/pulseras-go/services/rates"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)

	os.Exit(m.Run())
}

type mockRates struct {
	rts rates.ExchangeRates
}

func (m *mockRates) Fetch(ctx context.Context) rates.ExchangeRates  { return m.rts }
func (m *mockRates) Latest(ctx context.Context) rates.ExchangeRates { return m.rts }

type serviceDeps struct {
	mock   sqlmock.Sqlmock
	txns   *repository.MockTransaction
	orders *repository.MockOrder
	store  *evidence.MockStore
	pub    *events.MockPublisher
}

func newTestService(t *testing.T, opts ...Option) (*Service, *serviceDeps) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	must.NoError(t, err)

	t.Cleanup(func() { _ = mockDB.Close() })

	deps := &serviceDeps{
		mock:   mock,
		txns:   &repository.MockTransaction{},
		orders: &repository.MockOrder{},
		store:  &evidence.MockStore{},
		pub:    &events.MockPublisher{},
	}

	ds := &datastore.Postgres{DB: sqlx.NewDb(mockDB, "sqlmock")}
	rts := &mockRates{rts: rates.FallbackRates(time.Now())}

	return NewService(ds, deps.txns, deps.orders, rts, deps.store, deps.pub, opts...), deps
}

func TestService_CreateSettlement_Validation(t *testing.T) {
	type testCase struct {
		name  string
		given *SettlementRequest
		exp   error
		field string
	}

	tests := []testCase{
		{
			name:  "items_missing",
			given: &SettlementRequest{PaymentMethod: "ZELLE"},
			exp:   model.ErrItemsRequired,
		},

		{
			name:  "method_missing",
			given: &SettlementRequest{Items: `[{"price":10}]`},
			exp:   model.ErrPaymentMethodRequired,
		},

		{
			name:  "items_not_json",
			given: &SettlementRequest{Items: `[{"price":`, PaymentMethod: "ZELLE"},
			field: "items",
		},

		{
			name:  "details_not_json",
			given: &SettlementRequest{Items: `[{"price":10}]`, PaymentMethod: "ZELLE", PaymentDetails: `{"x"`},
			field: "paymentDetails",
		},

		{
			name:  "items_empty",
			given: &SettlementRequest{Items: `[]`, PaymentMethod: "ZELLE"},
			exp:   model.ErrItemsEmpty,
		},

		{
			name:  "method_unknown",
			given: &SettlementRequest{Items: `[{"price":10}]`, PaymentMethod: "PAYPAL"},
			exp:   model.ErrInvalidPaymentMethod,
		},

		{
			name:  "pago_movil_without_reference",
			given: &SettlementRequest{Items: `[{"price":10}]`, PaymentMethod: "PAGO_MOVIL", PaymentDetails: `{"senderName":"Ana"}`},
			exp:   model.ErrReferenceRequired,
		},

		{
			name:  "pago_movil_blank_reference",
			given: &SettlementRequest{Items: `[{"price":10}]`, PaymentMethod: "PAGO_MOVIL", PaymentDetails: `{"reference":"  "}`},
			exp:   model.ErrReferenceRequired,
		},

		{
			name: "proof_not_image",
			given: &SettlementRequest{
				Items:         `[{"price":10}]`,
				PaymentMethod: "ZELLE",
				Proof:         &evidence.Proof{Filename: "a.txt", ContentType: "text/plain", Data: []byte("hello")},
			},
			exp: model.ErrScreenshotNotImage,
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			svc, deps := newTestService(t)

			deps.txns.FnCreate = func(ctx context.Context, dbi sqlx.QueryerContext, req model.TransactionNew) (*model.Transaction, error) {
				return nil, errors.New("unexpected call")
			}

			deps.store.FnPut = func(ctx context.Context, p *evidence.Proof) (string, error) {
				return "", errors.New("unexpected call")
			}

			_, err := svc.CreateSettlement(context.Background(), tc.given)

			if tc.field != "" {
				var perr *model.ParseError
				must.True(t, errors.As(err, &perr))
				should.Equal(t, tc.field, perr.Field)
			} else {
				should.Equal(t, tc.exp, err)
			}

			should.NoError(t, deps.mock.ExpectationsWereMet())
		})
	}
}

func TestService_CreateSettlement(t *testing.T) {
	type tcGiven struct {
		req *SettlementRequest
	}

	type tcExpected struct {
		amountUSD string
		amountBS  string
		rate      string
		pct       string
		status    model.Status
		reference *string
		sender    *string
		shot      bool
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	tests := []testCase{
		{
			name: "zelle_end_to_end",
			given: tcGiven{
				req: &SettlementRequest{
					UserID:         "user-1",
					Items:          `[{"productId":"p1","price":12.5,"quantity":2},{"productId":"p2","price":"20.99"}]`,
					PaymentMethod:  "ZELLE",
					PaymentDetails: `{"senderName":"Ana","reference":"ignored"}`,
				},
			},
			exp: tcExpected{
				amountUSD: "27.92",
				pct:       "39.3",
				status:    model.StatusPending,
				sender:    ptr.FromString("Ana"),
			},
		},

		{
			name: "pago_movil_with_proof",
			given: tcGiven{
				req: &SettlementRequest{
					Items:          `[{"price":45.99}]`,
					PaymentMethod:  "PAGO_MOVIL",
					PaymentDetails: `{"reference":"00123","senderPhone":"04141234567"}`,
					Proof:          &evidence.Proof{Filename: "p.png", ContentType: "image/png", Data: pngHeader},
				},
			},
			exp: tcExpected{
				amountUSD: "45.99",
				amountBS:  "7818.3",
				rate:      "170",
				status:    model.StatusVerifying,
				reference: ptr.FromString("00123"),
				shot:      true,
			},
		},

		{
			name: "cash_bs_no_details",
			given: tcGiven{
				req: &SettlementRequest{
					Items:         `[{"price":"10"}]`,
					PaymentMethod: "CASH_BS",
				},
			},
			exp: tcExpected{
				amountUSD: "10",
				amountBS:  "1700",
				rate:      "170",
				status:    model.StatusPending,
			},
		},

		{
			name: "negative_line_counts_as_zero",
			given: tcGiven{
				req: &SettlementRequest{
					Items:         `[{"price":10},{"price":-40,"quantity":-1}]`,
					PaymentMethod: "CASH_BS",
				},
			},
			exp: tcExpected{
				amountUSD: "10",
				amountBS:  "1700",
				rate:      "170",
				status:    model.StatusPending,
			},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			svc, deps := newTestService(t)

			deps.mock.ExpectBegin()
			deps.mock.ExpectCommit()

			var orderReq model.OrderNew
			deps.orders.FnCreate = func(ctx context.Context, dbi sqlx.QueryerContext, req model.OrderNew) (*model.Order, error) {
				orderReq = req
				return (&repository.MockOrder{}).Create(ctx, dbi, req)
			}

			actual, err := svc.CreateSettlement(context.Background(), tc.given.req)
			must.NoError(t, err)
			must.NoError(t, deps.mock.ExpectationsWereMet())

			txn := actual.Transaction
			should.Equal(t, tc.exp.amountUSD, txn.AmountUSD.String())
			should.Equal(t, tc.exp.status, txn.Status)
			should.Equal(t, tc.exp.reference, txn.Reference)
			should.Equal(t, tc.exp.sender, txn.SenderName)
			should.Equal(t, tc.exp.shot, txn.Screenshot != nil)

			if tc.exp.amountBS == "" {
				should.False(t, txn.AmountBS.Valid)
				should.False(t, txn.ExchangeRate.Valid)
			} else {
				should.Equal(t, tc.exp.amountBS, txn.AmountBS.Decimal.String())
				should.Equal(t, tc.exp.rate, txn.ExchangeRate.Decimal.String())
			}

			if tc.exp.pct == "" {
				should.Nil(t, actual.DiscountPercentage)
			} else {
				must.NotNil(t, actual.DiscountPercentage)
				should.Equal(t, tc.exp.pct, actual.DiscountPercentage.String())
			}

			must.Len(t, txn.Orders, 1)
			should.Equal(t, txn.Orders[0].ID, actual.OrderID)

			should.Equal(t, txn.ID, orderReq.TransactionID)
			should.True(t, txn.AmountUSD.Equal(orderReq.TotalUSD))
			should.Equal(t, txn.AmountBS, orderReq.TotalBS)
			should.Equal(t, txn.Status.OrderStatus(), orderReq.Status)
			should.Equal(t, tc.given.req.Items, string(orderReq.Items))
			should.Equal(t, tc.given.req.PaymentDetails, string(orderReq.PaymentDetails))
		})
	}
}

func TestService_CreateSettlement_FallbackInvariance(t *testing.T) {
	svc, deps := newTestService(t)
	svc.rates = &mockRates{rts: rates.FallbackRates(time.Now())}

	deps.mock.ExpectBegin()
	deps.mock.ExpectCommit()

	actual, err := svc.CreateSettlement(context.Background(), &SettlementRequest{
		Items:         `[{"price":100}]`,
		PaymentMethod: "CASH_USD",
	})
	must.NoError(t, err)

	exp := pricing.Settle(decimal.NewFromInt(100), model.PaymentMethodCashUSD, rates.FallbackRates(time.Now()))
	should.True(t, exp.FinalUSD.Equal(actual.Transaction.AmountUSD))
}

func TestService_CreateSettlement_Idempotency(t *testing.T) {
	existing := &model.Transaction{ID: uuid.NewV4(), Status: model.StatusPending}
	orderID := uuid.NewV4()

	req := func() *SettlementRequest {
		return &SettlementRequest{
			Items:          `[{"price":10}]`,
			PaymentMethod:  "ZELLE",
			IdempotencyKey: "key-1",
		}
	}

	t.Run("replay", func(t *testing.T) {
		svc, deps := newTestService(t)

		deps.txns.FnGetByIdempotencyKey = func(ctx context.Context, dbi sqlx.QueryerContext, userID, key string) (*model.Transaction, error) {
			should.Equal(t, "key-1", key)
			return existing, nil
		}

		deps.orders.FnListByTransactionIDs = func(ctx context.Context, dbi sqlx.QueryerContext, ids ...uuid.UUID) ([]model.Order, error) {
			return []model.Order{{ID: orderID, TransactionID: existing.ID}}, nil
		}

		actual, err := svc.CreateSettlement(context.Background(), req())
		must.NoError(t, err)
		must.NoError(t, deps.mock.ExpectationsWereMet())

		should.True(t, actual.Replayed)
		should.Equal(t, existing.ID, actual.Transaction.ID)
		should.Equal(t, orderID, actual.OrderID)
	})

	t.Run("concurrent_duplicate", func(t *testing.T) {
		svc, deps := newTestService(t)

		deps.mock.ExpectBegin()
		deps.mock.ExpectRollback()

		var lookups int
		deps.txns.FnGetByIdempotencyKey = func(ctx context.Context, dbi sqlx.QueryerContext, userID, key string) (*model.Transaction, error) {
			lookups++
			if lookups == 1 {
				return nil, model.ErrTransactionNotFound
			}

			return existing, nil
		}

		deps.txns.FnCreate = func(ctx context.Context, dbi sqlx.QueryerContext, req model.TransactionNew) (*model.Transaction, error) {
			should.Equal(t, "key-1", *req.IdempotencyKey)
			return nil, model.ErrIdempotencyConflict
		}

		actual, err := svc.CreateSettlement(context.Background(), req())
		must.NoError(t, err)
		must.NoError(t, deps.mock.ExpectationsWereMet())

		should.Equal(t, 2, lookups)
		should.True(t, actual.Replayed)
		should.Equal(t, existing.ID, actual.Transaction.ID)
	})

	t.Run("key_of_another_user", func(t *testing.T) {
		svc, deps := newTestService(t)

		owned := &model.Transaction{
			ID:         uuid.NewV4(),
			UserID:     ptr.FromString("alice"),
			Status:     model.StatusPending,
			SenderName: ptr.FromString("Alice"),
		}

		deps.txns.FnGetByIdempotencyKey = func(ctx context.Context, dbi sqlx.QueryerContext, userID, key string) (*model.Transaction, error) {
			should.Equal(t, "mallory", userID)
			return owned, nil
		}

		deps.orders.FnListByTransactionIDs = func(ctx context.Context, dbi sqlx.QueryerContext, ids ...uuid.UUID) ([]model.Order, error) {
			t.Fatal("orders of another user must not be read")
			return nil, nil
		}

		r := req()
		r.UserID = "mallory"

		actual, err := svc.CreateSettlement(context.Background(), r)
		should.ErrorIs(t, err, model.ErrIdempotencyKeyReused)
		should.Nil(t, actual)
		should.NoError(t, deps.mock.ExpectationsWereMet())
	})
}

func TestService_CreateSettlement_OrderFailureRollsBack(t *testing.T) {
	svc, deps := newTestService(t)

	deps.mock.ExpectBegin()
	deps.mock.ExpectRollback()

	errDB := errors.New("insert failed")
	deps.orders.FnCreate = func(ctx context.Context, dbi sqlx.QueryerContext, req model.OrderNew) (*model.Order, error) {
		return nil, errDB
	}

	_, err := svc.CreateSettlement(context.Background(), &SettlementRequest{Items: `[{"price":1}]`, PaymentMethod: "ZINLI"})
	should.ErrorIs(t, err, errDB)
	should.NoError(t, deps.mock.ExpectationsWereMet())
}

func TestService_CreateSettlement_DiscardsUnusedProof(t *testing.T) {
	existing := &model.Transaction{ID: uuid.NewV4(), UserID: ptr.FromString("user-1"), Status: model.StatusVerifying}

	type tcGiven struct {
		createErr error
	}

	type tcExpected struct {
		err      error
		replayed bool
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	errDB := errors.New("insert failed")

	tests := []testCase{
		{
			name:  "insert_failure",
			given: tcGiven{createErr: errDB},
			exp:   tcExpected{err: errDB},
		},

		{
			name:  "lost_idempotency_race",
			given: tcGiven{createErr: model.ErrIdempotencyConflict},
			exp:   tcExpected{replayed: true},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			svc, deps := newTestService(t)

			deps.mock.ExpectBegin()
			deps.mock.ExpectRollback()

			var lookups int
			deps.txns.FnGetByIdempotencyKey = func(ctx context.Context, dbi sqlx.QueryerContext, userID, key string) (*model.Transaction, error) {
				lookups++
				if lookups == 1 {
					return nil, model.ErrTransactionNotFound
				}

				return existing, nil
			}

			deps.txns.FnCreate = func(ctx context.Context, dbi sqlx.QueryerContext, req model.TransactionNew) (*model.Transaction, error) {
				return nil, tc.given.createErr
			}

			deps.store.FnPut = func(ctx context.Context, p *evidence.Proof) (string, error) {
				return "screenshots/2024/03/mine.png", nil
			}

			var deleted []string
			deps.store.FnDelete = func(ctx context.Context, ref string) error {
				deleted = append(deleted, ref)
				return nil
			}

			actual, err := svc.CreateSettlement(context.Background(), &SettlementRequest{
				UserID:         "user-1",
				Items:          `[{"price":10}]`,
				PaymentMethod:  "ZELLE",
				IdempotencyKey: "key-1",
				Proof:          &evidence.Proof{Filename: "p.png", ContentType: "image/png", Data: pngHeader},
			})
			must.NoError(t, deps.mock.ExpectationsWereMet())

			should.Equal(t, []string{"screenshots/2024/03/mine.png"}, deleted)

			if tc.exp.err != nil {
				should.ErrorIs(t, err, tc.exp.err)
				return
			}

			must.NoError(t, err)
			should.Equal(t, tc.exp.replayed, actual.Replayed)
			should.Equal(t, existing.ID, actual.Transaction.ID)
		})
	}
}

func TestService_AttachProof_DiscardsProofOnFailure(t *testing.T) {
	svc, deps := newTestService(t)

	deps.mock.ExpectBegin()
	deps.mock.ExpectRollback()

	id := uuid.NewV4()

	deps.txns.FnGet = func(ctx context.Context, dbi sqlx.QueryerContext, tid uuid.UUID) (*model.Transaction, error) {
		return &model.Transaction{ID: tid, UserID: ptr.FromString("u1"), Status: model.StatusPending}, nil
	}

	deps.txns.FnGetForUpdate = deps.txns.FnGet

	errDB := errors.New("update failed")
	deps.txns.FnAttachScreenshot = func(ctx context.Context, dbi sqlx.QueryerContext, tid uuid.UUID, ref string) (*model.Transaction, error) {
		return nil, errDB
	}

	deps.store.FnPut = func(ctx context.Context, p *evidence.Proof) (string, error) {
		return "screenshots/2024/03/x.png", nil
	}

	var deleted string
	deps.store.FnDelete = func(ctx context.Context, ref string) error {
		deleted = ref
		return errors.New("bucket unavailable")
	}

	deps.pub.FnPublishStatusChanged = func(ctx context.Context, evt events.StatusChanged) error {
		t.Fatal("no event is published for a failed attach")
		return nil
	}

	_, err := svc.AttachProof(context.Background(), id, &evidence.Proof{Filename: "p.png", ContentType: "image/png", Data: pngHeader}, "u1", false)
	should.ErrorIs(t, err, errDB)
	should.Equal(t, "screenshots/2024/03/x.png", deleted)
	should.NoError(t, deps.mock.ExpectationsWereMet())
}

func TestService_SetStatus(t *testing.T) {
	type tcGiven struct {
		current model.Status
		raw     string
		notes   *string
		strict  bool
	}

	type tcExpected struct {
		err      error
		status   model.Status
		verified bool
		cascade  string
		publish  bool
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	tests := []testCase{
		{
			name:  "invalid_status",
			given: tcGiven{current: model.StatusPending, raw: "SHIPPED"},
			exp:   tcExpected{err: model.ErrInvalidStatus},
		},

		{
			name:  "completed",
			given: tcGiven{current: model.StatusVerifying, raw: "COMPLETED", notes: ptr.FromString("ok")},
			exp:   tcExpected{status: model.StatusCompleted, verified: true, cascade: "completed", publish: true},
		},

		{
			name:  "permissive_completed_to_pending",
			given: tcGiven{current: model.StatusCompleted, raw: "PENDING"},
			exp:   tcExpected{status: model.StatusPending, cascade: "pending", publish: true},
		},

		{
			name:  "strict_rejects",
			given: tcGiven{current: model.StatusPending, raw: "COMPLETED", strict: true},
			exp:   tcExpected{err: model.ErrInvalidTransition},
		},

		{
			name:  "strict_allows_same",
			given: tcGiven{current: model.StatusCancelled, raw: "CANCELLED", strict: true},
			exp:   tcExpected{status: model.StatusCancelled, cascade: "cancelled", publish: true},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			svc, deps := newTestService(t, WithStrictTransitions(tc.given.strict))

			now := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
			svc.now = func() time.Time { return now }

			switch {
			case tc.exp.err == model.ErrInvalidStatus:
			case tc.exp.err != nil:
				deps.mock.ExpectBegin()
				deps.mock.ExpectRollback()
			default:
				deps.mock.ExpectBegin()
				deps.mock.ExpectCommit()
			}

			id := uuid.NewV4()

			deps.txns.FnGetForUpdate = func(ctx context.Context, dbi sqlx.QueryerContext, tid uuid.UUID) (*model.Transaction, error) {
				return &model.Transaction{ID: tid, Status: tc.given.current}, nil
			}

			var chg model.StatusChange
			deps.txns.FnUpdateStatus = func(ctx context.Context, dbi sqlx.QueryerContext, tid uuid.UUID, c model.StatusChange) (*model.Transaction, error) {
				chg = c
				return &model.Transaction{ID: tid, Status: c.Status, AdminNotes: c.AdminNotes, VerifiedAt: c.VerifiedAt}, nil
			}

			var cascaded string
			deps.orders.FnSetStatusByTransaction = func(ctx context.Context, dbi sqlx.ExecerContext, tid uuid.UUID, status string) (int64, error) {
				cascaded = status
				return 1, nil
			}

			orderID := uuid.NewV4()
			deps.orders.FnListByTransactionIDs = func(ctx context.Context, dbi sqlx.QueryerContext, ids ...uuid.UUID) ([]model.Order, error) {
				return []model.Order{{ID: orderID, TransactionID: id, Status: cascaded}}, nil
			}

			var published *events.StatusChanged
			deps.pub.FnPublishStatusChanged = func(ctx context.Context, evt events.StatusChanged) error {
				published = &evt
				return errors.New("broker down")
			}

			actual, err := svc.SetStatus(context.Background(), id, tc.given.raw, tc.given.notes)
			must.NoError(t, deps.mock.ExpectationsWereMet())

			if tc.exp.err != nil {
				should.Equal(t, tc.exp.err, err)
				should.Empty(t, cascaded)
				should.Nil(t, published)
				return
			}

			must.NoError(t, err)
			should.Equal(t, tc.exp.status, actual.Status)
			should.Equal(t, tc.given.notes, chg.AdminNotes)
			should.Equal(t, tc.exp.cascade, cascaded)

			must.Len(t, actual.Orders, 1)
			should.Equal(t, tc.exp.cascade, actual.Orders[0].Status)

			if tc.exp.verified {
				must.NotNil(t, actual.VerifiedAt)
				should.Equal(t, now, *actual.VerifiedAt)
			} else {
				should.Nil(t, actual.VerifiedAt)
			}

			must.NotNil(t, published)
			should.Equal(t, tc.given.current, published.From)
			should.Equal(t, tc.exp.status, published.To)
			should.Equal(t, []uuid.UUID{orderID}, published.OrderIDs)
		})
	}
}

func TestService_SetStatus_NotFound(t *testing.T) {
	svc, deps := newTestService(t)

	deps.mock.ExpectBegin()
	deps.mock.ExpectRollback()

	deps.txns.FnGetForUpdate = func(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Transaction, error) {
		return nil, model.ErrTransactionNotFound
	}

	_, err := svc.SetStatus(context.Background(), uuid.NewV4(), "COMPLETED", nil)
	should.Equal(t, model.ErrTransactionNotFound, err)
	should.NoError(t, deps.mock.ExpectationsWereMet())
}

func TestService_AttachProof(t *testing.T) {
	type tcGiven struct {
		proof *evidence.Proof
		owner *string
		user  string
		admin bool
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   error
	}

	proof := func() *evidence.Proof {
		return &evidence.Proof{Filename: "p.png", ContentType: "image/png", Data: pngHeader}
	}

	tests := []testCase{
		{
			name:  "missing_file",
			given: tcGiven{user: "u1"},
			exp:   model.ErrScreenshotRequired,
		},

		{
			name:  "other_owner",
			given: tcGiven{proof: proof(), owner: ptr.FromString("u2"), user: "u1"},
			exp:   model.ErrForbidden,
		},

		{
			name:  "owner",
			given: tcGiven{proof: proof(), owner: ptr.FromString("u1"), user: "u1"},
		},

		{
			name:  "admin_on_other_owner",
			given: tcGiven{proof: proof(), owner: ptr.FromString("u2"), user: "admin", admin: true},
		},

		{
			name:  "anonymous_transaction",
			given: tcGiven{proof: proof(), user: "u1"},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			svc, deps := newTestService(t)

			if tc.exp == nil {
				deps.mock.ExpectBegin()
				deps.mock.ExpectCommit()
			}

			id := uuid.NewV4()

			deps.txns.FnGet = func(ctx context.Context, dbi sqlx.QueryerContext, tid uuid.UUID) (*model.Transaction, error) {
				return &model.Transaction{ID: tid, UserID: tc.given.owner, Status: model.StatusCompleted}, nil
			}

			deps.txns.FnGetForUpdate = deps.txns.FnGet

			var stored bool
			deps.store.FnPut = func(ctx context.Context, p *evidence.Proof) (string, error) {
				stored = true
				return "screenshots/2024/03/x.png", nil
			}

			var cascaded string
			deps.orders.FnSetStatusByTransaction = func(ctx context.Context, dbi sqlx.ExecerContext, tid uuid.UUID, status string) (int64, error) {
				cascaded = status
				return 1, nil
			}

			var published *events.StatusChanged
			deps.pub.FnPublishStatusChanged = func(ctx context.Context, evt events.StatusChanged) error {
				published = &evt
				return nil
			}

			actual, err := svc.AttachProof(context.Background(), id, tc.given.proof, tc.given.user, tc.given.admin)
			must.NoError(t, deps.mock.ExpectationsWereMet())

			if tc.exp != nil {
				should.Equal(t, tc.exp, err)
				should.False(t, stored)
				return
			}

			must.NoError(t, err)
			should.True(t, stored)
			should.Equal(t, model.StatusVerifying, actual.Status)
			should.Equal(t, "screenshots/2024/03/x.png", *actual.Screenshot)
			should.Equal(t, "verifying", cascaded)

			must.NotNil(t, published)
			should.Equal(t, model.StatusCompleted, published.From)
			should.Equal(t, model.StatusVerifying, published.To)
		})
	}
}

func TestService_ListMine(t *testing.T) {
	svc, _ := newTestService(t)

	t1, t2 := uuid.NewV4(), uuid.NewV4()

	svc.txnRepo = &repository.MockTransaction{
		FnListByUser: func(ctx context.Context, dbi sqlx.QueryerContext, userID string) ([]model.Transaction, error) {
			should.Equal(t, "u1", userID)
			return []model.Transaction{{ID: t2}, {ID: t1}}, nil
		},
	}

	svc.orderRepo = &repository.MockOrder{
		FnListByTransactionIDs: func(ctx context.Context, dbi sqlx.QueryerContext, ids ...uuid.UUID) ([]model.Order, error) {
			should.Equal(t, []uuid.UUID{t2, t1}, ids)
			return []model.Order{{ID: uuid.NewV4(), TransactionID: t1}}, nil
		},
	}

	actual, err := svc.ListMine(context.Background(), "u1")
	must.NoError(t, err)
	must.Len(t, actual, 2)

	should.Empty(t, actual[0].Orders)
	should.Len(t, actual[1].Orders, 1)
}

func TestService_ListAll(t *testing.T) {
	type tcExpected struct {
		err   error
		pages int
	}

	type testCase struct {
		name  string
		given ListRequest
		exp   tcExpected
	}

	tests := []testCase{
		{
			name:  "invalid_status",
			given: ListRequest{Status: "pending", Page: 1, Limit: 10},
			exp:   tcExpected{err: model.ErrInvalidStatus},
		},

		{
			name:  "filtered",
			given: ListRequest{Status: "PENDING", Page: 2, Limit: 10, Offset: 10},
			exp:   tcExpected{pages: 3},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			svc, deps := newTestService(t)

			deps.txns.FnCount = func(ctx context.Context, dbi sqlx.QueryerContext, status *model.Status) (int, error) {
				must.NotNil(t, status)
				should.Equal(t, model.StatusPending, *status)
				return 25, nil
			}

			deps.txns.FnList = func(ctx context.Context, dbi sqlx.QueryerContext, params model.ListParams) ([]model.Transaction, error) {
				should.Equal(t, 10, params.Limit)
				should.Equal(t, 10, params.Offset)
				return []model.Transaction{{ID: uuid.NewV4()}}, nil
			}

			actual, err := svc.ListAll(context.Background(), tc.given)
			if tc.exp.err != nil {
				should.Equal(t, tc.exp.err, err)
				return
			}

			must.NoError(t, err)
			should.Len(t, actual.Transactions, 1)
			should.Equal(t, 25, actual.Pagination.Total)
			should.Equal(t, tc.exp.pages, actual.Pagination.Pages)
			should.Equal(t, tc.given.Page, actual.Pagination.Page)
		})
	}
}

func TestService_Calculate(t *testing.T) {
	svc, _ := newTestService(t)

	actual := svc.Calculate(context.Background(), decimal.NewFromInt(10), "ZELLE")
	must.NotNil(t, actual.Method)
	should.Equal(t, model.PaymentMethodZelle, actual.Method.ID)
	should.Equal(t, "39.3", actual.DiscountPercentage.Decimal.String())
	should.True(t, rates.OfficialFallback.Equal(actual.Rates.Official))

	actual = svc.Calculate(context.Background(), decimal.NewFromInt(10), "PAYPAL")
	should.Nil(t, actual.Method)
	should.Equal(t, pricing.MsgSelectMethod, actual.Message)
	should.False(t, actual.AmountLocal.Valid)
	should.False(t, actual.DiscountPercentage.Valid)
}
