package merchant

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/hackload-kz/payment-sub008/internal/application"
	"github.com/hackload-kz/payment-sub008/internal/config"
	"github.com/hackload-kz/payment-sub008/internal/domain"
)

// RetryProvider wraps another provider with exponential backoff on
// transient failures.
type RetryProvider struct {
	inner      application.MerchantConfigProvider
	baseDelay  time.Duration
	maxRetries int
}

func NewRetryProvider(inner application.MerchantConfigProvider, cfg config.RetryConfig) application.MerchantConfigProvider {
	return &RetryProvider{
		inner:      inner,
		baseDelay:  time.Duration(cfg.BaseDelay) * time.Second,
		maxRetries: int(cfg.MaxRetries),
	}
}

func (r *RetryProvider) GetLimits(ctx context.Context, merchantID string) (domain.MerchantLimits, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return domain.MerchantLimits{}, ctx.Err()
		default:
		}

		limits, err := r.inner.GetLimits(ctx, merchantID)
		if err == nil {
			return limits, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return domain.MerchantLimits{}, err
		}

		if attempt < r.maxRetries-1 {
			time.Sleep(r.backoff(attempt))
		}
	}

	return domain.MerchantLimits{}, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

// Helper: to check retryable errors
func isRetryable(err error) bool {
	var serr *ServiceError
	if errors.As(err, &serr) {
		return serr.IsRetryable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return true
}

// Backoff calculation with exponential delay and jitter
func (r *RetryProvider) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)

	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond

	return base + jitter
}
