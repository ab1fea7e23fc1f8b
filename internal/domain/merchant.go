package domain

import "slices"

// MerchantLimits is the processing policy configured for a merchant.
// The gateway reads it from the merchant configuration service and
// never writes it.
type MerchantLimits struct {
	MerchantID          string
	MinAmount           int64
	MaxAmount           int64
	DailyLimit          int64
	SupportedCurrencies []string

	AllowPartialRefunds  bool
	AllowPartialCaptures bool
}

// ValidateAmount checks a requested payment against the merchant's
// currency and amount policy.
func (m MerchantLimits) ValidateAmount(amount Money) error {
	if !slices.Contains(m.SupportedCurrencies, amount.Currency) {
		return NewUnsupportedCurrencyError(amount.Currency)
	}
	if amount.Amount < m.MinAmount {
		return NewAmountBelowMinimumError(amount.Amount, m.MinAmount)
	}
	if m.MaxAmount > 0 && amount.Amount > m.MaxAmount {
		return NewAmountAboveMaximumError(amount.Amount, m.MaxAmount)
	}
	return nil
}

// WithinDailyLimit reports whether one more payment of amount fits under
// the merchant's daily volume cap. A cap of zero means uncapped.
func (m MerchantLimits) WithinDailyLimit(initiatedToday, amount int64) bool {
	if m.DailyLimit <= 0 {
		return true
	}
	return initiatedToday+amount <= m.DailyLimit
}
