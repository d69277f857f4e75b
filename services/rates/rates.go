package rates

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	// OfficialFallback is used whenever the official rate cannot be fetched
	OfficialFallback = decimal.NewFromInt(170)
	// ParallelFallback is used whenever the parallel rate cannot be fetched
	ParallelFallback = decimal.NewFromInt(280)
)

// ExchangeRates is a snapshot of the two USD rates in bolivars
// NOTE parallel >= official holds by convention only and is never checked
type ExchangeRates struct {
	Official  decimal.Decimal `json:"official"`
	Parallel  decimal.Decimal `json:"parallel"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// FallbackRates is the snapshot used when the provider is unreachable
func FallbackRates(now time.Time) ExchangeRates {
	return ExchangeRates{
		Official:  OfficialFallback,
		Parallel:  ParallelFallback,
		FetchedAt: now,
	}
}
