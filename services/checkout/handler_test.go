package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"
	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"

	"github.com/pulseras/pulseras-go/libs/middleware"
	"github.com/pulseras/pulseras-go/libs/requestutils"
	"github.com/pulseras/pulseras-go/services/checkout/evidence"
	"github.com/pulseras/pulseras-go/services/checkout/model"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type mockService struct {
	fnCreateSettlement func(ctx context.Context, req *SettlementRequest) (*SettlementResult, error)
	fnSetStatus        func(ctx context.Context, id uuid.UUID, raw string, adminNotes *string) (*model.Transaction, error)
	fnAttachProof      func(ctx context.Context, id uuid.UUID, proof *evidence.Proof, userID string, admin bool) (*model.Transaction, error)
	fnListMine         func(ctx context.Context, userID string) ([]model.Transaction, error)
	fnListAll          func(ctx context.Context, req ListRequest) (*TransactionPage, error)
	fnCalculate        func(ctx context.Context, amountUSD decimal.Decimal, raw string) *Calculation
}

func (s *mockService) CreateSettlement(ctx context.Context, req *SettlementRequest) (*SettlementResult, error) {
	return s.fnCreateSettlement(ctx, req)
}

func (s *mockService) SetStatus(ctx context.Context, id uuid.UUID, raw string, adminNotes *string) (*model.Transaction, error) {
	return s.fnSetStatus(ctx, id, raw, adminNotes)
}

func (s *mockService) AttachProof(ctx context.Context, id uuid.UUID, proof *evidence.Proof, userID string, admin bool) (*model.Transaction, error) {
	return s.fnAttachProof(ctx, id, proof, userID, admin)
}

func (s *mockService) ListMine(ctx context.Context, userID string) ([]model.Transaction, error) {
	return s.fnListMine(ctx, userID)
}

func (s *mockService) ListAll(ctx context.Context, req ListRequest) (*TransactionPage, error) {
	return s.fnListAll(ctx, req)
}

func (s *mockService) Calculate(ctx context.Context, amountUSD decimal.Decimal, raw string) *Calculation {
	return s.fnCalculate(ctx, amountUSD, raw)
}

type appErrorBody struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
	Code      int    `json:"code"`
	Data      struct {
		ValidationErrors map[string]interface{} `json:"validationErrors"`
	} `json:"data"`
}

func decodeAppError(t *testing.T, rw *httptest.ResponseRecorder) appErrorBody {
	t.Helper()

	var body appErrorBody
	must.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))

	return body
}

func bearer(t *testing.T, subject, role string) string {
	t.Helper()

	token, err := middleware.SignActorToken(testSecret, subject, role, time.Hour)
	must.NoError(t, err)

	return "Bearer " + token
}

func multipartBody(t *testing.T, fields map[string]string, file []byte, ctype string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	for k, v := range fields {
		must.NoError(t, mw.WriteField(k, v))
	}

	if file != nil {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="screenshot"; filename="proof.png"`)
		hdr.Set("Content-Type", ctype)

		part, err := mw.CreatePart(hdr)
		must.NoError(t, err)

		_, err = part.Write(file)
		must.NoError(t, err)
	}

	must.NoError(t, mw.Close())

	return body, mw.FormDataContentType()
}

func TestHandler_Calculate(t *testing.T) {
	type tcExpected struct {
		code   int
		field  string
		called bool
	}

	type testCase struct {
		name  string
		given string
		exp   tcExpected
	}

	tests := []testCase{
		{
			name:  "valid",
			given: `{"amountUSD":45.99,"method":"ZELLE"}`,
			exp:   tcExpected{code: http.StatusOK, called: true},
		},

		{
			name:  "unknown_method_is_not_an_error",
			given: `{"amountUSD":"10","method":"PAYPAL"}`,
			exp:   tcExpected{code: http.StatusOK, called: true},
		},

		{
			name:  "amount_missing",
			given: `{"method":"ZELLE"}`,
			exp:   tcExpected{code: http.StatusBadRequest, field: "amountUSD"},
		},

		{
			name:  "method_missing",
			given: `{"amountUSD":10}`,
			exp:   tcExpected{code: http.StatusBadRequest, field: "method"},
		},

		{
			name:  "amount_negative",
			given: `{"amountUSD":-1,"method":"ZELLE"}`,
			exp:   tcExpected{code: http.StatusBadRequest, field: "amountUSD"},
		},

		{
			name:  "not_json",
			given: `amount=10`,
			exp:   tcExpected{code: http.StatusBadRequest},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			var called bool
			svc := &mockService{
				fnCalculate: func(ctx context.Context, amountUSD decimal.Decimal, raw string) *Calculation {
					called = true
					return &Calculation{}
				},
			}

			router := PaymentsRouter(NewHandler(svc, 0), []string{"*"})

			req := httptest.NewRequest(http.MethodPost, "/calculate", strings.NewReader(tc.given))
			rw := httptest.NewRecorder()

			router.ServeHTTP(rw, req)

			should.Equal(t, tc.exp.code, rw.Code)
			should.Equal(t, tc.exp.called, called)

			if tc.exp.field != "" {
				body := decodeAppError(t, rw)
				should.Contains(t, body.Data.ValidationErrors, tc.exp.field)
			}
		})
	}
}

func TestHandler_CreateTransaction(t *testing.T) {
	txnID, orderID := uuid.NewV4(), uuid.NewV4()

	type tcGiven struct {
		result *SettlementResult
		err    error
		file   []byte
		key    string
	}

	type tcExpected struct {
		code      int
		errorCode string
		field     string
		message   string
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	tests := []testCase{
		{
			name: "created",
			given: tcGiven{
				result: &SettlementResult{Transaction: &model.Transaction{ID: txnID}, OrderID: orderID},
				file:   pngHeader,
				key:    "abc",
			},
			exp: tcExpected{code: http.StatusCreated},
		},

		{
			name: "replayed",
			given: tcGiven{
				result: &SettlementResult{Transaction: &model.Transaction{ID: txnID}, OrderID: orderID, Replayed: true},
				key:    "abc",
			},
			exp: tcExpected{code: http.StatusOK},
		},

		{
			name:  "parse_error",
			given: tcGiven{err: &model.ParseError{Field: "items", Cause: errors.New("bad")}},
			exp:   tcExpected{code: http.StatusBadRequest, errorCode: "parse_error"},
		},

		{
			name:  "reference_required",
			given: tcGiven{err: model.ErrReferenceRequired},
			exp:   tcExpected{code: http.StatusBadRequest, errorCode: "validation_error", field: "reference"},
		},

		{
			name:  "screenshot_too_large",
			given: tcGiven{err: model.ErrScreenshotTooLarge},
			exp:   tcExpected{code: http.StatusBadRequest, errorCode: "validation_error", field: "screenshot"},
		},

		{
			name:  "key_of_another_user",
			given: tcGiven{err: model.ErrIdempotencyKeyReused, key: "abc"},
			exp:   tcExpected{code: http.StatusConflict, errorCode: "idempotency_conflict"},
		},

		{
			name:  "persistence_failure",
			given: tcGiven{err: errors.New("pq: db down")},
			exp:   tcExpected{code: http.StatusInternalServerError, errorCode: "persistence_error", message: "pq: db down"},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			var actual *SettlementRequest
			svc := &mockService{
				fnCreateSettlement: func(ctx context.Context, req *SettlementRequest) (*SettlementResult, error) {
					actual = req
					return tc.given.result, tc.given.err
				},
			}

			router := TransactionsRouter(NewHandler(svc, 0), testSecret, []string{"*"})

			fields := map[string]string{
				"items":          `[{"price":45.99}]`,
				"paymentMethod":  "ZELLE",
				"paymentDetails": `{"senderName":"Ana"}`,
			}

			body, ctype := multipartBody(t, fields, tc.given.file, "image/png")

			req := httptest.NewRequest(http.MethodPost, "/", body)
			req.Header.Set("Content-Type", ctype)
			req.Header.Set("Authorization", bearer(t, "user-1", middleware.RoleCustomer))
			if tc.given.key != "" {
				req.Header.Set(requestutils.IdempotencyKeyHeaderKey, tc.given.key)
			}

			rw := httptest.NewRecorder()
			router.ServeHTTP(rw, req)

			must.Equal(t, tc.exp.code, rw.Code)
			must.NotNil(t, actual)

			should.Equal(t, "user-1", actual.UserID)
			should.Equal(t, fields["items"], actual.Items)
			should.Equal(t, fields["paymentMethod"], actual.PaymentMethod)
			should.Equal(t, fields["paymentDetails"], actual.PaymentDetails)
			should.Equal(t, tc.given.key, actual.IdempotencyKey)

			if tc.given.file != nil {
				must.NotNil(t, actual.Proof)
				should.Equal(t, "proof.png", actual.Proof.Filename)
				should.Equal(t, "image/png", actual.Proof.ContentType)
				should.Equal(t, tc.given.file, actual.Proof.Data)
			} else {
				should.Nil(t, actual.Proof)
			}

			if tc.given.result != nil {
				var result map[string]interface{}
				must.NoError(t, json.Unmarshal(rw.Body.Bytes(), &result))
				should.Equal(t, orderID.String(), result["orderId"])
				return
			}

			errBody := decodeAppError(t, rw)
			if tc.exp.errorCode != "" {
				should.Equal(t, tc.exp.errorCode, errBody.ErrorCode)
			}

			if tc.exp.field != "" {
				should.Contains(t, errBody.Data.ValidationErrors, tc.exp.field)
			}

			if tc.exp.message != "" {
				should.Contains(t, errBody.Message, tc.exp.message)
			}
		})
	}
}

func TestHandler_CreateTransaction_Unauthenticated(t *testing.T) {
	router := TransactionsRouter(NewHandler(&mockService{}, 0), testSecret, []string{"*"})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("items=[]"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)

	should.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestHandler_SetStatus(t *testing.T) {
	type tcGiven struct {
		id   string
		role string
		body string
		err  error
	}

	type tcExpected struct {
		code      int
		errorCode string
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	id := uuid.NewV4().String()

	tests := []testCase{
		{
			name:  "updated",
			given: tcGiven{id: id, role: middleware.RoleAdmin, body: `{"status":"COMPLETED","adminNotes":"ok"}`},
			exp:   tcExpected{code: http.StatusOK},
		},

		{
			name:  "customer_forbidden",
			given: tcGiven{id: id, role: middleware.RoleCustomer, body: `{"status":"COMPLETED"}`},
			exp:   tcExpected{code: http.StatusForbidden, errorCode: "forbidden"},
		},

		{
			name:  "invalid_id",
			given: tcGiven{id: "nope", role: middleware.RoleAdmin, body: `{"status":"COMPLETED"}`},
			exp:   tcExpected{code: http.StatusBadRequest, errorCode: "validation_error"},
		},

		{
			name:  "status_missing",
			given: tcGiven{id: id, role: middleware.RoleAdmin, body: `{"adminNotes":"x"}`},
			exp:   tcExpected{code: http.StatusBadRequest, errorCode: "validation_error"},
		},

		{
			name:  "invalid_status",
			given: tcGiven{id: id, role: middleware.RoleAdmin, body: `{"status":"SHIPPED"}`, err: model.ErrInvalidStatus},
			exp:   tcExpected{code: http.StatusBadRequest, errorCode: "validation_error"},
		},

		{
			name:  "not_found",
			given: tcGiven{id: id, role: middleware.RoleAdmin, body: `{"status":"COMPLETED"}`, err: model.ErrTransactionNotFound},
			exp:   tcExpected{code: http.StatusNotFound, errorCode: "not_found"},
		},

		{
			name:  "invalid_transition",
			given: tcGiven{id: id, role: middleware.RoleAdmin, body: `{"status":"COMPLETED"}`, err: model.ErrInvalidTransition},
			exp:   tcExpected{code: http.StatusConflict, errorCode: "invalid_transition"},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{
				fnSetStatus: func(ctx context.Context, tid uuid.UUID, raw string, adminNotes *string) (*model.Transaction, error) {
					should.Equal(t, tc.given.id, tid.String())

					if tc.given.err != nil {
						return nil, tc.given.err
					}

					return &model.Transaction{ID: tid, Status: model.Status(raw), AdminNotes: adminNotes}, nil
				},
			}

			router := TransactionsRouter(NewHandler(svc, 0), testSecret, []string{"*"})

			req := httptest.NewRequest(http.MethodPut, "/"+tc.given.id+"/status", strings.NewReader(tc.given.body))
			req.Header.Set("Authorization", bearer(t, "staff-1", tc.given.role))

			rw := httptest.NewRecorder()
			router.ServeHTTP(rw, req)

			must.Equal(t, tc.exp.code, rw.Code)

			if tc.exp.errorCode != "" {
				should.Equal(t, tc.exp.errorCode, decodeAppError(t, rw).ErrorCode)
				return
			}

			var actual model.Transaction
			must.NoError(t, json.Unmarshal(rw.Body.Bytes(), &actual))
			should.Equal(t, model.StatusCompleted, actual.Status)
			should.Equal(t, "ok", *actual.AdminNotes)
		})
	}
}

func TestHandler_AttachProof(t *testing.T) {
	id := uuid.NewV4()

	type tcGiven struct {
		role string
		err  error
	}

	type tcExpected struct {
		code  int
		admin bool
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	tests := []testCase{
		{
			name:  "owner",
			given: tcGiven{role: middleware.RoleCustomer},
			exp:   tcExpected{code: http.StatusOK},
		},

		{
			name:  "admin",
			given: tcGiven{role: middleware.RoleAdmin},
			exp:   tcExpected{code: http.StatusOK, admin: true},
		},

		{
			name:  "other_owner",
			given: tcGiven{role: middleware.RoleCustomer, err: model.ErrForbidden},
			exp:   tcExpected{code: http.StatusForbidden},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{
				fnAttachProof: func(ctx context.Context, tid uuid.UUID, proof *evidence.Proof, userID string, admin bool) (*model.Transaction, error) {
					should.Equal(t, id, tid)
					should.Equal(t, "user-1", userID)
					should.Equal(t, tc.exp.admin, admin)

					must.NotNil(t, proof)
					should.Equal(t, pngHeader, proof.Data)

					if tc.given.err != nil {
						return nil, tc.given.err
					}

					return &model.Transaction{ID: tid, Status: model.StatusVerifying}, nil
				},
			}

			router := TransactionsRouter(NewHandler(svc, 0), testSecret, []string{"*"})

			body, ctype := multipartBody(t, nil, pngHeader, "image/png")

			req := httptest.NewRequest(http.MethodPost, "/"+id.String()+"/screenshot", body)
			req.Header.Set("Content-Type", ctype)
			req.Header.Set("Authorization", bearer(t, "user-1", tc.given.role))

			rw := httptest.NewRecorder()
			router.ServeHTTP(rw, req)

			should.Equal(t, tc.exp.code, rw.Code)
		})
	}
}

func TestHandler_ListAll(t *testing.T) {
	var actual ListRequest
	svc := &mockService{
		fnListAll: func(ctx context.Context, req ListRequest) (*TransactionPage, error) {
			actual = req
			return &TransactionPage{Transactions: []model.Transaction{}}, nil
		},
	}

	router := TransactionsRouter(NewHandler(svc, 0), testSecret, []string{"*"})

	req := httptest.NewRequest(http.MethodGet, "/?status=PENDING&page=2&limit=10", nil)
	req.Header.Set("Authorization", bearer(t, "staff-1", middleware.RoleAdmin))

	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)

	must.Equal(t, http.StatusOK, rw.Code)
	should.Equal(t, "PENDING", actual.Status)
	should.Equal(t, 2, actual.Page)
	should.Equal(t, 10, actual.Limit)
	should.Equal(t, 10, actual.Offset)
}

func TestHandler_ListMine(t *testing.T) {
	svc := &mockService{
		fnListMine: func(ctx context.Context, userID string) ([]model.Transaction, error) {
			should.Equal(t, "user-1", userID)
			return []model.Transaction{{ID: uuid.NewV4()}}, nil
		},
	}

	router := TransactionsRouter(NewHandler(svc, 0), testSecret, []string{"*"})

	req := httptest.NewRequest(http.MethodGet, "/my-transactions", nil)
	req.Header.Set("Authorization", bearer(t, "user-1", middleware.RoleCustomer))

	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)

	must.Equal(t, http.StatusOK, rw.Code)

	var actual []model.Transaction
	must.NoError(t, json.Unmarshal(rw.Body.Bytes(), &actual))
	should.Len(t, actual, 1)
}
