package merchant

import (
	"context"
	"errors"

	"github.com/hackload-kz/payment-sub008/internal/domain"
)

// StaticProvider serves limits from a fixed in-memory table. It backs the
// test suites and local development without a merchant service.
type StaticProvider struct {
	limits map[string]domain.MerchantLimits
}

func NewStaticProvider(limits ...domain.MerchantLimits) *StaticProvider {
	m := make(map[string]domain.MerchantLimits, len(limits))
	for _, l := range limits {
		m[l.MerchantID] = l
	}
	return &StaticProvider{limits: m}
}

func (p *StaticProvider) GetLimits(ctx context.Context, merchantID string) (domain.MerchantLimits, error) {
	l, ok := p.limits[merchantID]
	if !ok {
		return domain.MerchantLimits{}, domain.NewMerchantUnavailableError(merchantID, errors.New("merchant not configured"))
	}
	return l, nil
}
