package model

// PaymentMethod is one of the closed set of ways a customer can pay.
type PaymentMethod string

const (
	PaymentMethodZelle     PaymentMethod = "ZELLE"
	PaymentMethodCrypto    PaymentMethod = "CRYPTO"
	PaymentMethodZinli     PaymentMethod = "ZINLI"
	PaymentMethodCashUSD   PaymentMethod = "CASH_USD"
	PaymentMethodPagoMovil PaymentMethod = "PAGO_MOVIL"
	PaymentMethodCashBS    PaymentMethod = "CASH_BS"
)

// Regime is how a payment method is priced.
type Regime int

const (
	// RegimeUnknown applies to anything outside the supported methods.
	RegimeUnknown Regime = iota
	// RegimeUSD methods are charged in dollars and shown a comparative discount.
	RegimeUSD
	// RegimeLocal methods are charged in bolivars at the official rate.
	RegimeLocal
)

// MethodInfo is the static description shown next to a quote.
type MethodInfo struct {
	ID           PaymentMethod `json:"id"`
	DisplayName  string        `json:"displayName"`
	Currency     string        `json:"currency"`
	Instructions string        `json:"instructions"`
}

var methods = map[PaymentMethod]struct {
	regime Regime
	info   MethodInfo
}{
	PaymentMethodZelle: {
		regime: RegimeUSD,
		info: MethodInfo{
			DisplayName:  "Zelle",
			Currency:     "USD",
			Instructions: "Send the exact amount in USD through Zelle and upload the confirmation screenshot.",
		},
	},
	PaymentMethodCrypto: {
		regime: RegimeUSD,
		info: MethodInfo{
			DisplayName:  "Crypto (USDT)",
			Currency:     "USD",
			Instructions: "Send the exact amount in USDT and upload the transfer screenshot.",
		},
	},
	PaymentMethodZinli: {
		regime: RegimeUSD,
		info: MethodInfo{
			DisplayName:  "Zinli",
			Currency:     "USD",
			Instructions: "Send the exact amount in USD through Zinli and upload the confirmation screenshot.",
		},
	},
	PaymentMethodCashUSD: {
		regime: RegimeUSD,
		info: MethodInfo{
			DisplayName:  "Cash (USD)",
			Currency:     "USD",
			Instructions: "Pay the exact amount in US dollars on delivery.",
		},
	},
	PaymentMethodPagoMovil: {
		regime: RegimeLocal,
		info: MethodInfo{
			DisplayName:  "Pago Movil",
			Currency:     "VES",
			Instructions: "Transfer the amount in bolivars through Pago Movil and include the reference number.",
		},
	},
	PaymentMethodCashBS: {
		regime: RegimeLocal,
		info: MethodInfo{
			DisplayName:  "Cash (Bs.)",
			Currency:     "VES",
			Instructions: "Pay the amount in bolivars on delivery.",
		},
	},
}

// ParsePaymentMethod returns the method named by raw.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	m := PaymentMethod(raw)
	if !m.IsValid() {
		return "", ErrInvalidPaymentMethod
	}

	return m, nil
}

// IsValid reports whether m is a supported method.
func (m PaymentMethod) IsValid() bool {
	_, ok := methods[m]
	return ok
}

// Regime returns the pricing regime of m.
func (m PaymentMethod) Regime() Regime {
	return methods[m].regime
}

// Info returns the static description of m.
func (m PaymentMethod) Info() (MethodInfo, bool) {
	v, ok := methods[m]
	if !ok {
		return MethodInfo{}, false
	}

	result := v.info
	result.ID = m

	return result, true
}

// RequiresReference reports whether m needs a transfer reference.
func (m PaymentMethod) RequiresReference() bool {
	return m == PaymentMethodPagoMovil
}
