// Package pricing turns USD amounts into what a customer pays for a given payment method.
//
// Every function here is pure: rates are passed in and nothing is fetched or stored.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/pulseras/pulseras-go/services/checkout/model"
	"github.com/pulseras/pulseras-go/services/rates"
)

// MsgSelectMethod is the only content of a quote for an unknown payment method.
const MsgSelectMethod = "Select a payment method to see the final amount."

var hundred = decimal.NewFromInt(100)

// QuoteResult is what the customer is shown for an amount and a payment method.
type QuoteResult struct {
	AmountUSD           decimal.Decimal     `json:"amountUSD"`
	AmountLocal         decimal.NullDecimal `json:"amountLocal"`
	RateUsed            decimal.NullDecimal `json:"rateUsed"`
	DiscountPercentage  decimal.NullDecimal `json:"discountPercentage"`
	DiscountAmountLocal decimal.NullDecimal `json:"discountAmountLocal"`
	Message             string              `json:"message,omitempty"`
}

// DiscountPercentage returns the spread between the parallel and official rates
// as a percentage of the parallel rate, at full precision.
//
// A non-positive parallel rate yields zero.
func DiscountPercentage(rts rates.ExchangeRates) decimal.Decimal {
	if !rts.Parallel.IsPositive() {
		return decimal.Zero
	}

	return rts.Parallel.Sub(rts.Official).Mul(hundred).Div(rts.Parallel)
}

// Quote prices amountUSD for method.
func Quote(amountUSD decimal.Decimal, method model.PaymentMethod, rts rates.ExchangeRates) QuoteResult {
	result := QuoteResult{AmountUSD: amountUSD}

	switch method.Regime() {
	case model.RegimeUSD:
		pct := DiscountPercentage(rts)
		saved := amountUSD.Mul(rts.Parallel).Sub(amountUSD.Mul(rts.Official))

		result.DiscountPercentage = nullDecimal(pct.Round(1))
		result.DiscountAmountLocal = nullDecimal(saved.Round(2))

	case model.RegimeLocal:
		result.AmountLocal = nullDecimal(amountUSD.Mul(rts.Official).Round(2))
		result.RateUsed = nullDecimal(rts.Official)

	default:
		result.Message = MsgSelectMethod
	}

	return result
}

// CartTotal sums the subtotals of lines.
func CartTotal(lines []model.CartLine) decimal.Decimal {
	total := decimal.Zero
	for i := range lines {
		total = total.Add(lines[i].Subtotal())
	}

	return total
}

// CartQuote prices the total of lines for method.
func CartQuote(lines []model.CartLine, method model.PaymentMethod, rts rates.ExchangeRates) QuoteResult {
	return Quote(CartTotal(lines), method, rts)
}

// Settlement holds the amounts recorded when a cart is paid for.
type Settlement struct {
	TotalUSD decimal.Decimal

	// FinalUSD is the amount the transaction is created for.
	FinalUSD decimal.Decimal

	// AmountBS and ExchangeRate are valid only for local-settled methods.
	AmountBS     decimal.NullDecimal
	ExchangeRate decimal.NullDecimal

	// DiscountPercentage is valid only for USD-settled methods and is reported, not stored.
	DiscountPercentage decimal.NullDecimal
}

// Settle computes the amounts for paying totalUSD with method.
//
// USD-settled methods get the parallel spread taken off the dollar price.
// Local-settled methods pay the undiscounted price converted at the official rate.
func Settle(totalUSD decimal.Decimal, method model.PaymentMethod, rts rates.ExchangeRates) Settlement {
	result := Settlement{
		TotalUSD: totalUSD,
		FinalUSD: totalUSD.Round(2),
	}

	switch method.Regime() {
	case model.RegimeUSD:
		pct := DiscountPercentage(rts)
		factor := decimal.NewFromInt(1).Sub(pct.Div(hundred))

		result.FinalUSD = totalUSD.Mul(factor).Round(2)
		result.DiscountPercentage = nullDecimal(pct.Round(1))

	case model.RegimeLocal:
		result.AmountBS = nullDecimal(totalUSD.Mul(rts.Official).Round(2))
		result.ExchangeRate = nullDecimal(rts.Official)
	}

	return result
}

func nullDecimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
