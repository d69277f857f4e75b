package model

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	errItemsNotArray    = errors.New("must be a JSON array of objects")
	errDetailsNotObject = errors.New("must be a JSON object")
)

// CartLine is one entry of a cart as far as pricing is concerned.
//
// Unrecognised fields of the submitted line are ignored here but kept in the stored items.
type CartLine struct {
	UnitPriceUSD decimal.Decimal
	Quantity     decimal.Decimal
}

// Subtotal is the line price times its quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPriceUSD.Mul(l.Quantity)
}

func (l *CartLine) UnmarshalJSON(data []byte) error {
	var raw struct {
		Price        json.RawMessage `json:"price"`
		UnitPriceUSD json.RawMessage `json:"unitPriceUSD"`
		Quantity     json.RawMessage `json:"quantity"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	price := raw.Price
	if len(price) == 0 {
		price = raw.UnitPriceUSD
	}

	// a negative price is as invalid as a non numeric one
	l.UnitPriceUSD = lenientDecimal(price, decimal.Zero)
	if l.UnitPriceUSD.IsNegative() {
		l.UnitPriceUSD = decimal.Zero
	}

	l.Quantity = lenientDecimal(raw.Quantity, decimal.NewFromInt(1))
	if !l.Quantity.IsPositive() {
		l.Quantity = decimal.NewFromInt(1)
	}

	return nil
}

// lenientDecimal reads a JSON number or numeric string and returns def for anything else.
func lenientDecimal(raw json.RawMessage, def decimal.Decimal) decimal.Decimal {
	if len(raw) == 0 {
		return def
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if d, err := decimal.NewFromString(n.String()); err == nil {
			return d
		}
		return def
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return def
	}

	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return def
	}

	return d
}

// ParseItems decodes the JSON encoded items field of a settlement request.
func ParseItems(raw string) ([]CartLine, error) {
	var objs []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &objs); err != nil {
		return nil, &ParseError{Field: "items", Cause: err}
	}

	result := make([]CartLine, 0, len(objs))
	for i := range objs {
		if !isJSONObject(objs[i]) {
			return nil, &ParseError{Field: "items", Cause: errItemsNotArray}
		}

		var line CartLine
		if err := json.Unmarshal(objs[i], &line); err != nil {
			return nil, &ParseError{Field: "items", Cause: err}
		}

		result = append(result, line)
	}

	return result, nil
}

// PaymentDetails are the payer-supplied fields copied onto a transaction.
type PaymentDetails struct {
	SenderName  string `json:"senderName"`
	SenderPhone string `json:"senderPhone"`
	Reference   string `json:"reference"`
}

// ParsePaymentDetails decodes the JSON encoded paymentDetails field.
//
// An empty raw value yields zero details.
func ParsePaymentDetails(raw string) (PaymentDetails, error) {
	if strings.TrimSpace(raw) == "" {
		return PaymentDetails{}, nil
	}

	if !isJSONObject([]byte(raw)) {
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return PaymentDetails{}, &ParseError{Field: "paymentDetails", Cause: err}
		}

		return PaymentDetails{}, &ParseError{Field: "paymentDetails", Cause: errDetailsNotObject}
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return PaymentDetails{}, &ParseError{Field: "paymentDetails", Cause: err}
	}

	return PaymentDetails{
		SenderName:  stringField(fields, "senderName"),
		SenderPhone: stringField(fields, "senderPhone"),
		Reference:   stringField(fields, "reference"),
	}, nil
}

func stringField(fields map[string]interface{}, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return decimal.NewFromFloat(v).String()
	default:
		return ""
	}
}

func isJSONObject(raw []byte) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "{")
}
