package checkout

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/pulseras/pulseras-go/libs/handlers"
	"github.com/pulseras/pulseras-go/libs/inputs"
	"github.com/pulseras/pulseras-go/libs/logging"
	"github.com/pulseras/pulseras-go/libs/middleware"
	"github.com/pulseras/pulseras-go/libs/requestutils"
	"github.com/pulseras/pulseras-go/services/checkout/evidence"
	"github.com/pulseras/pulseras-go/services/checkout/model"
)

const (
	// multipart bodies may carry a proof image plus the JSON fields
	formOverheadBytes = 1 << 20
	formMemoryBytes   = 8 << 20
)

type settlementService interface {
	CreateSettlement(ctx context.Context, req *SettlementRequest) (*SettlementResult, error)
	SetStatus(ctx context.Context, id uuid.UUID, raw string, adminNotes *string) (*model.Transaction, error)
	AttachProof(ctx context.Context, id uuid.UUID, proof *evidence.Proof, userID string, admin bool) (*model.Transaction, error)
	ListMine(ctx context.Context, userID string) ([]model.Transaction, error)
	ListAll(ctx context.Context, req ListRequest) (*TransactionPage, error)
	Calculate(ctx context.Context, amountUSD decimal.Decimal, raw string) *Calculation
}

// Handler serves the checkout endpoints.
type Handler struct {
	svc      settlementService
	valid    *validator.Validate
	maxProof int64
}

func NewHandler(svc settlementService, maxProof int64) *Handler {
	if maxProof <= 0 {
		maxProof = evidence.DefaultMaxBytes
	}

	valid := validator.New()
	valid.RegisterTagNameFunc(jsonFieldName)

	return &Handler{svc: svc, valid: valid, maxProof: maxProof}
}

type calculateRequest struct {
	AmountUSD *decimal.Decimal `json:"amountUSD" validate:"required"`
	Method    string           `json:"method" validate:"required"`
}

// Calculate quotes an amount for a payment method.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()

	var req calculateRequest
	if err := requestutils.ReadJSON(ctx, r.Body, &req); err != nil {
		return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
	}

	if err := h.valid.StructCtx(ctx, req); err != nil {
		verrs, ok := collectValidationErrors(err)
		if !ok {
			return handlers.WrapError(err, "Failed to validate request", http.StatusBadRequest)
		}

		return handlers.ValidationError("request body", verrs)
	}

	if req.AmountUSD.IsNegative() {
		return fieldError("amountUSD", model.ErrAmountNegative)
	}

	return handlers.RenderContent(ctx, h.svc.Calculate(ctx, *req.AmountUSD, req.Method), w, http.StatusOK)
}

// CreateTransaction records a settlement from a multipart form.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()

	lg := logging.Logger(ctx, "checkout").With().Str("func", "CreateTransaction").Logger()

	if err := h.parseForm(w, r); err != nil {
		return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
	}

	proof, err := h.readProof(r)
	if err != nil {
		return handlers.WrapError(err, "Error reading screenshot", http.StatusBadRequest)
	}

	req := &SettlementRequest{
		Items:          r.FormValue("items"),
		PaymentMethod:  r.FormValue("paymentMethod"),
		PaymentDetails: r.FormValue("paymentDetails"),
		Proof:          proof,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(requestutils.IdempotencyKeyHeaderKey)),
	}

	if actor, ok := middleware.ActorFromContext(ctx); ok {
		req.UserID = actor.ID
	}

	result, err := h.svc.CreateSettlement(ctx, req)
	if err != nil {
		return renderError(&lg, err, "Error creating the transaction")
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}

	return handlers.RenderContent(ctx, result, w, status)
}

// ListMine lists the transactions of the calling actor.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()

	lg := logging.Logger(ctx, "checkout").With().Str("func", "ListMine").Logger()

	actor, ok := middleware.ActorFromContext(ctx)
	if !ok {
		return unauthorized()
	}

	result, err := h.svc.ListMine(ctx, actor.ID)
	if err != nil {
		return renderError(&lg, err, "Error listing transactions")
	}

	return handlers.RenderContent(ctx, result, w, http.StatusOK)
}

// ListAll lists a page of all transactions.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()

	lg := logging.Logger(ctx, "checkout").With().Str("func", "ListAll").Logger()

	ctx, page, err := inputs.NewPagination(ctx, r.URL.String(), new(model.Transaction))
	if err != nil {
		return handlers.WrapError(err, "Error in pagination parameters", http.StatusBadRequest)
	}

	req := ListRequest{
		Status:  r.URL.Query().Get("status"),
		OrderBy: page.GetOrderBy(ctx),
		Page:    page.Page,
		Limit:   page.Limit,
		Offset:  page.Offset(),
	}

	result, err := h.svc.ListAll(ctx, req)
	if err != nil {
		return renderError(&lg, err, "Error listing transactions")
	}

	return handlers.RenderContent(ctx, result, w, http.StatusOK)
}

type setStatusRequest struct {
	Status     string  `json:"status" valid:"required"`
	AdminNotes *string `json:"adminNotes" valid:"-"`
}

// SetStatus changes the status of a transaction.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()

	lg := logging.Logger(ctx, "checkout").With().Str("func", "SetStatus").Logger()

	id, aerr := transactionID(r)
	if aerr != nil {
		return aerr
	}

	var req setStatusRequest
	if err := requestutils.ReadJSON(ctx, r.Body, &req); err != nil {
		return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
	}

	if _, err := govalidator.ValidateStruct(req); err != nil {
		return handlers.WrapValidationError(err)
	}

	result, err := h.svc.SetStatus(ctx, id, req.Status, req.AdminNotes)
	if err != nil {
		return renderError(&lg, err, "Error updating the transaction status")
	}

	return handlers.RenderContent(ctx, result, w, http.StatusOK)
}

// AttachProof uploads a proof of payment for a transaction.
func (h *Handler) AttachProof(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()

	lg := logging.Logger(ctx, "checkout").With().Str("func", "AttachProof").Logger()

	id, aerr := transactionID(r)
	if aerr != nil {
		return aerr
	}

	actor, ok := middleware.ActorFromContext(ctx)
	if !ok {
		return unauthorized()
	}

	if err := h.parseForm(w, r); err != nil {
		return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
	}

	proof, err := h.readProof(r)
	if err != nil {
		return handlers.WrapError(err, "Error reading screenshot", http.StatusBadRequest)
	}

	result, err := h.svc.AttachProof(ctx, id, proof, actor.ID, actor.IsAdmin())
	if err != nil {
		return renderError(&lg, err, "Error attaching the screenshot")
	}

	return handlers.RenderContent(ctx, result, w, http.StatusOK)
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxProof+formOverheadBytes)

	err := r.ParseMultipartForm(formMemoryBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}

	return err
}

// readProof returns nil when the request carries no screenshot.
func (h *Handler) readProof(r *http.Request) (*evidence.Proof, error) {
	f, hdr, err := r.FormFile("screenshot")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}

		return nil, err
	}
	defer func() { _ = f.Close() }()

	return proofFromPart(f, hdr, h.maxProof)
}

func proofFromPart(f multipart.File, hdr *multipart.FileHeader, maxProof int64) (*evidence.Proof, error) {
	// one byte over the limit is enough for validation to reject it
	data, err := io.ReadAll(io.LimitReader(f, maxProof+1))
	if err != nil {
		return nil, err
	}

	result := &evidence.Proof{
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Data:        data,
	}

	return result, nil
}

func transactionID(r *http.Request) (uuid.UUID, *handlers.AppError) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, handlers.ValidationError("request url parameter", map[string]interface{}{
			"id": "must be a valid uuid",
		})
	}

	return id, nil
}

func renderError(lg *zerolog.Logger, err error, msg string) *handlers.AppError {
	var perr *model.ParseError
	if errors.As(err, &perr) {
		return handlers.ParseError(perr.Field, perr.Cause)
	}

	switch {
	case errors.Is(err, model.ErrItemsRequired), errors.Is(err, model.ErrItemsEmpty):
		return fieldError("items", err)

	case errors.Is(err, model.ErrPaymentMethodRequired), errors.Is(err, model.ErrInvalidPaymentMethod):
		return fieldError("paymentMethod", err)

	case errors.Is(err, model.ErrReferenceRequired):
		return fieldError("reference", err)

	case errors.Is(err, model.ErrScreenshotRequired),
		errors.Is(err, model.ErrScreenshotNotImage),
		errors.Is(err, model.ErrScreenshotTooLarge):
		return fieldError("screenshot", err)

	case errors.Is(err, model.ErrInvalidStatus):
		return fieldError("status", err)

	case errors.Is(err, model.ErrTransactionNotFound):
		return &handlers.AppError{
			Message:   "Transaction not found",
			ErrorCode: handlers.ErrorCodeNotFound,
			Code:      http.StatusNotFound,
		}

	case errors.Is(err, model.ErrForbidden):
		return &handlers.AppError{
			Message:   "Transaction belongs to another user",
			ErrorCode: handlers.ErrorCodeForbidden,
			Code:      http.StatusForbidden,
		}

	case errors.Is(err, model.ErrIdempotencyKeyReused):
		return &handlers.AppError{
			Message:   "Idempotency key was already used for another submission",
			ErrorCode: handlers.ErrorCodeIdempotent,
			Code:      http.StatusConflict,
		}

	case errors.Is(err, model.ErrInvalidTransition):
		return &handlers.AppError{
			Message:   "Status change is not allowed from the current status",
			ErrorCode: handlers.ErrorCodeConflict,
			Code:      http.StatusConflict,
		}
	}

	lg.Error().Err(err).Msg(msg)

	// the settlement is not confirmed; the caller gets the cause so it can decide to retry
	return &handlers.AppError{
		Cause:     errors.New(truncate(err.Error(), maxCauseLen)),
		Message:   msg,
		ErrorCode: handlers.ErrorCodePersistence,
		Code:      http.StatusInternalServerError,
	}
}

const maxCauseLen = 200

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}

func fieldError(field string, err error) *handlers.AppError {
	return handlers.ValidationError(field, map[string]interface{}{field: err.Error()})
}

func unauthorized() *handlers.AppError {
	return &handlers.AppError{
		Message: "Authentication required",
		Code:    http.StatusUnauthorized,
	}
}

func collectValidationErrors(err error) (map[string]string, bool) {
	var verr validator.ValidationErrors
	if !errors.As(err, &verr) {
		return nil, false
	}

	result := make(map[string]string, len(verr))
	for i := range verr {
		msg := verr[i].Error()
		if verr[i].Tag() == "required" {
			msg = verr[i].Field() + " is required"
		}

		result[verr[i].Field()] = msg
	}

	return result, true
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}

	return name
}
