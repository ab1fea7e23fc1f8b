package application

import (
	"context"
	"errors"

	"github.com/hackload-kz/payment-sub008/internal/domain"
)

// ErrorCategory represents the nature of an error for retry and alerting
type ErrorCategory string

const (
	// CategoryTransient covers timeouts and infrastructure hiccups. The
	// caller may retry the whole operation.
	CategoryTransient ErrorCategory = "TRANSIENT"
	// CategoryConflict covers lost optimistic-version races and
	// duplicate claims. Retrying means re-reading current state first.
	CategoryConflict ErrorCategory = "CONFLICT"
	// CategoryPermanent covers business rule violations that no retry
	// will fix.
	CategoryPermanent ErrorCategory = "PERMANENT"
	// CategoryClientError covers lookups of things that do not exist
	// and malformed requests.
	CategoryClientError ErrorCategory = "CLIENT_ERROR"
	// CategorySecurity covers integrity violations. These always page.
	CategorySecurity ErrorCategory = "SECURITY"
)

// CategorizeError determines error category for retry and logging purposes
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	// Context errors (transient network/timeout issues)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient
	}

	// Tampered or drifted records
	if errors.Is(err, domain.ErrIntegrityViolation) {
		return CategorySecurity
	}

	// Lost races and duplicate claims
	if errors.Is(err, domain.ErrConcurrentModification) ||
		errors.Is(err, domain.ErrDuplicateOrder) ||
		errors.Is(err, domain.ErrDuplicateTransaction) {
		return CategoryConflict
	}

	// Lifecycle and amount rule violations
	if errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrTransactionFinal) ||
		errors.Is(err, domain.ErrInvalidAmount) ||
		errors.Is(err, domain.ErrAmountExceedsAuthorization) ||
		errors.Is(err, domain.ErrRefundExceedsCaptured) ||
		errors.Is(err, domain.ErrPartialCaptureNotAllowed) ||
		errors.Is(err, domain.ErrPartialRefundNotAllowed) ||
		errors.Is(err, domain.ErrAmountBelowMinimum) ||
		errors.Is(err, domain.ErrAmountAboveMaximum) ||
		errors.Is(err, domain.ErrUnsupportedCurrency) ||
		errors.Is(err, domain.ErrDailyLimitExceeded) ||
		errors.Is(err, domain.ErrPaymentNotExpired) {
		return CategoryPermanent
	}

	// Lookups that found nothing
	if errors.Is(err, domain.ErrPaymentNotFound) ||
		errors.Is(err, domain.ErrAuditEntryNotFound) {
		return CategoryClientError
	}

	// The merchant config service being down is retryable
	if errors.Is(err, domain.ErrMerchantUnavailable) {
		return CategoryTransient
	}

	if svcErr, ok := IsServiceError(err); ok {
		switch svcErr.Code {
		case ErrCodeInvalidInput:
			return CategoryClientError
		case ErrCodeInternal, ErrCodeStorage:
			return CategoryTransient
		}
	}

	// Default: transient (safe fallback for unknown storage errors)
	return CategoryTransient
}

// IsRetryable returns true if the error category suggests retry
func IsRetryable(err error) bool {
	return CategorizeError(err) == CategoryTransient
}

// ToErrorCode extracts the stable code an embedding layer should expose
func ToErrorCode(err error) string {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "TIMEOUT"
	}
	return ErrCodeInternal
}
