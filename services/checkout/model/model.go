// Package model provides data that the checkout service operates on.
package model

import (
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/pulseras/pulseras-go/libs/datastore"
)

const (
	ErrTransactionNotFound   Error = "model: transaction not found"
	ErrInvalidTransition     Error = "model: invalid status transition"
	ErrForbidden             Error = "model: transaction belongs to another user"
	ErrIdempotencyConflict   Error = "model: idempotency key already used"
	ErrIdempotencyKeyReused  Error = "idempotency key belongs to another submission"
	ErrNoRowsChangedTransact Error = "model: no rows changed in transactions"

	// The text of the following errors is shown to the caller as is.
	ErrItemsRequired         Error = "items are required"
	ErrPaymentMethodRequired Error = "paymentMethod is required"
	ErrInvalidPaymentMethod  Error = "paymentMethod is not supported"
	ErrReferenceRequired     Error = "reference is required for PAGO_MOVIL payments"
	ErrScreenshotRequired    Error = "screenshot file is required"
	ErrScreenshotNotImage    Error = "screenshot must be an image"
	ErrScreenshotTooLarge    Error = "screenshot exceeds the maximum size"
	ErrInvalidStatus         Error = "invalid status"
	ErrItemsEmpty            Error = "items must contain at least one line"
	ErrAmountRequired        Error = "amountUSD is required"
	ErrAmountNegative        Error = "amountUSD must not be negative"
	ErrMethodRequired        Error = "method is required"
)

// Error represents a model error.
type Error string

func (e Error) Error() string {
	return string(e)
}

// ParseError reports a JSON encoded request field that could not be decoded.
type ParseError struct {
	Field string
	Cause error
}

func (e *ParseError) Error() string {
	return "model: failed to parse " + e.Field + ": " + e.Cause.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Transaction is a single payment attempt.
//
// AmountBS and ExchangeRate are both set only for local-settled methods.
type Transaction struct {
	ID             uuid.UUID           `db:"id" json:"id"`
	UserID         *string             `db:"user_id" json:"userId"`
	AmountUSD      decimal.Decimal     `db:"amount_usd" json:"amountUSD"`
	AmountBS       decimal.NullDecimal `db:"amount_bs" json:"amountBS"`
	ExchangeRate   decimal.NullDecimal `db:"exchange_rate" json:"exchangeRate"`
	PaymentMethod  PaymentMethod       `db:"payment_method" json:"paymentMethod"`
	Status         Status              `db:"status" json:"status"`
	SenderName     *string             `db:"sender_name" json:"senderName"`
	SenderPhone    *string             `db:"sender_phone" json:"senderPhone"`
	Reference      *string             `db:"reference" json:"reference"`
	Screenshot     *string             `db:"screenshot" json:"screenshot"`
	AdminNotes     *string             `db:"admin_notes" json:"adminNotes"`
	VerifiedAt     *time.Time          `db:"verified_at" json:"verifiedAt"`
	IdempotencyKey *string             `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updatedAt"`

	Orders []Order `db:"-" json:"orders,omitempty"`
}

// OwnedBy reports whether userID may act on the transaction as its owner.
//
// A transaction created without an owner accepts any user.
func (t *Transaction) OwnedBy(userID string) bool {
	return t.UserID == nil || *t.UserID == userID
}

// CreatedBy reports whether userID submitted t; an empty userID stands for an anonymous submission.
func (t *Transaction) CreatedBy(userID string) bool {
	if t.UserID == nil {
		return userID == ""
	}

	return *t.UserID == userID
}

// TransactionNew holds the values needed to insert a transaction.
type TransactionNew struct {
	UserID         *string
	AmountUSD      decimal.Decimal
	AmountBS       decimal.NullDecimal
	ExchangeRate   decimal.NullDecimal
	PaymentMethod  PaymentMethod
	Status         Status
	SenderName     *string
	SenderPhone    *string
	Reference      *string
	Screenshot     *string
	IdempotencyKey *string
}

// Order is the fulfillment record funded by a transaction.
type Order struct {
	ID             uuid.UUID           `db:"id" json:"id"`
	UserID         *string             `db:"user_id" json:"userId"`
	TransactionID  uuid.UUID           `db:"transaction_id" json:"transactionId"`
	Items          datastore.RawJSON   `db:"items" json:"items"`
	TotalUSD       decimal.Decimal     `db:"total_usd" json:"totalUSD"`
	TotalBS        decimal.NullDecimal `db:"total_bs" json:"totalBS"`
	PaymentMethod  PaymentMethod       `db:"payment_method" json:"paymentMethod"`
	PaymentDetails datastore.RawJSON   `db:"payment_details" json:"paymentDetails"`
	Status         string              `db:"status" json:"status"`
	CreatedAt      time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updatedAt"`
}

// OrderNew holds the values needed to insert an order.
type OrderNew struct {
	UserID         *string
	TransactionID  uuid.UUID
	Items          datastore.RawJSON
	TotalUSD       decimal.Decimal
	TotalBS        decimal.NullDecimal
	PaymentMethod  PaymentMethod
	PaymentDetails datastore.RawJSON
	Status         string
}

// AttachOrders sets the orders of each transaction from orders.
func AttachOrders(txns []Transaction, orders []Order) {
	byTxn := make(map[uuid.UUID][]Order, len(txns))
	for i := range orders {
		byTxn[orders[i].TransactionID] = append(byTxn[orders[i].TransactionID], orders[i])
	}

	for i := range txns {
		txns[i].Orders = byTxn[txns[i].ID]
	}
}

// TransactionIDs returns the ids of txns.
func TransactionIDs(txns []Transaction) []uuid.UUID {
	result := make([]uuid.UUID, 0, len(txns))
	for i := range txns {
		result = append(result, txns[i].ID)
	}

	return result
}

// ListParams selects a page of transactions.
//
// OrderBy must hold trusted column expressions only, it is not escaped.
type ListParams struct {
	Status  *Status
	OrderBy string
	Limit   int
	Offset  int
}

// StatusChange describes an update applied to a transaction's status.
type StatusChange struct {
	Status     Status
	AdminNotes *string
	VerifiedAt *time.Time
}
