package domain

import (
	"errors"
	"fmt"
	"time"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Sentinel errors for errors.Is checks. Constructors below wrap these so a
// caller can match either the sentinel or the stable code.
var (
	ErrInvalidTransition          = errors.New("invalid payment status transition")
	ErrConcurrentModification     = errors.New("payment was modified concurrently")
	ErrDuplicateOrder             = errors.New("order already has an active payment")
	ErrDuplicateTransaction       = errors.New("transaction already recorded")
	ErrTransactionFinal           = errors.New("transaction is in a terminal status")
	ErrInvalidAmount              = errors.New("invalid amount")
	ErrAmountExceedsAuthorization = errors.New("capture exceeds authorized amount")
	ErrRefundExceedsCaptured      = errors.New("refund exceeds captured amount")
	ErrPartialCaptureNotAllowed   = errors.New("merchant does not allow partial captures")
	ErrPartialRefundNotAllowed    = errors.New("merchant does not allow partial refunds")
	ErrAmountBelowMinimum         = errors.New("amount below merchant minimum")
	ErrAmountAboveMaximum         = errors.New("amount above merchant maximum")
	ErrUnsupportedCurrency        = errors.New("currency not supported by merchant")
	ErrDailyLimitExceeded         = errors.New("merchant daily limit exceeded")
	ErrPaymentNotFound            = errors.New("payment not found")
	ErrPaymentNotExpired          = errors.New("payment has not expired yet")
	ErrAuditEntryNotFound         = errors.New("audit entry not found")
	ErrIntegrityViolation         = errors.New("audit integrity violation")
	ErrMerchantUnavailable        = errors.New("merchant configuration unavailable")
)

// Stable error codes carried by DomainError
const (
	ErrCodeInvalidTransition          = "INVALID_TRANSITION"
	ErrCodeConcurrentModification     = "CONCURRENT_MODIFICATION"
	ErrCodeDuplicateOrder             = "DUPLICATE_ORDER"
	ErrCodeDuplicateTransaction       = "DUPLICATE_TRANSACTION"
	ErrCodeTransactionFinal           = "TRANSACTION_FINAL"
	ErrCodeInvalidAmount              = "INVALID_AMOUNT"
	ErrCodeAmountExceedsAuthorization = "AMOUNT_EXCEEDS_AUTHORIZATION"
	ErrCodeRefundExceedsCaptured      = "REFUND_EXCEEDS_CAPTURED"
	ErrCodePartialCaptureNotAllowed   = "PARTIAL_CAPTURE_NOT_ALLOWED"
	ErrCodePartialRefundNotAllowed    = "PARTIAL_REFUND_NOT_ALLOWED"
	ErrCodeAmountBelowMinimum         = "AMOUNT_BELOW_MINIMUM"
	ErrCodeAmountAboveMaximum         = "AMOUNT_ABOVE_MAXIMUM"
	ErrCodeUnsupportedCurrency        = "UNSUPPORTED_CURRENCY"
	ErrCodeDailyLimitExceeded         = "DAILY_LIMIT_EXCEEDED"
	ErrCodePaymentNotFound            = "PAYMENT_NOT_FOUND"
	ErrCodePaymentNotExpired          = "PAYMENT_NOT_EXPIRED"
	ErrCodeAuditEntryNotFound         = "AUDIT_ENTRY_NOT_FOUND"
	ErrCodeIntegrityViolation         = "INTEGRITY_VIOLATION"
	ErrCodeLedgerDrift                = "LEDGER_DRIFT"
	ErrCodeMissingRequiredField       = "MISSING_REQUIRED_FIELD"
	ErrCodeMerchantUnavailable        = "MERCHANT_UNAVAILABLE"
)

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewInvalidAmountError(amount int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %d", amount),
		Err:     ErrInvalidAmount,
	}
}

func NewInvalidTransitionError(from, to PaymentStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Err:     ErrInvalidTransition,
	}
}

func NewConcurrentModificationError(paymentID string, version int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeConcurrentModification,
		Message: fmt.Sprintf("payment %s changed since version %d was read", paymentID, version),
		Err:     ErrConcurrentModification,
	}
}

func NewDuplicateOrderError(merchantID, orderID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicateOrder,
		Message: fmt.Sprintf("order %s for merchant %s already has a payment", orderID, merchantID),
		Err:     ErrDuplicateOrder,
	}
}

func NewDuplicateTransactionError(paymentID string, txType TransactionType, attempt int) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicateTransaction,
		Message: fmt.Sprintf("transaction %s attempt %d already recorded for payment %s", txType, attempt, paymentID),
		Err:     ErrDuplicateTransaction,
	}
}

func NewTransactionFinalError(id string, status TransactionStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeTransactionFinal,
		Message: fmt.Sprintf("transaction %s is already %s", id, status),
		Err:     ErrTransactionFinal,
	}
}

func NewAmountExceedsAuthorizationError(requested, remaining int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeAmountExceedsAuthorization,
		Message: fmt.Sprintf("capture of %d exceeds remaining authorized amount %d", requested, remaining),
		Err:     ErrAmountExceedsAuthorization,
	}
}

func NewRefundExceedsCapturedError(requested, remaining int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeRefundExceedsCaptured,
		Message: fmt.Sprintf("refund of %d exceeds remaining captured amount %d", requested, remaining),
		Err:     ErrRefundExceedsCaptured,
	}
}

func NewPartialCaptureNotAllowedError(merchantID string) *DomainError {
	return &DomainError{
		Code:    ErrCodePartialCaptureNotAllowed,
		Message: fmt.Sprintf("merchant %s does not allow partial captures", merchantID),
		Err:     ErrPartialCaptureNotAllowed,
	}
}

func NewPartialRefundNotAllowedError(merchantID string) *DomainError {
	return &DomainError{
		Code:    ErrCodePartialRefundNotAllowed,
		Message: fmt.Sprintf("merchant %s does not allow partial refunds", merchantID),
		Err:     ErrPartialRefundNotAllowed,
	}
}

func NewAmountBelowMinimumError(amount, minAmount int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeAmountBelowMinimum,
		Message: fmt.Sprintf("amount %d below merchant minimum %d", amount, minAmount),
		Err:     ErrAmountBelowMinimum,
	}
}

func NewAmountAboveMaximumError(amount, maxAmount int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeAmountAboveMaximum,
		Message: fmt.Sprintf("amount %d above merchant maximum %d", amount, maxAmount),
		Err:     ErrAmountAboveMaximum,
	}
}

func NewUnsupportedCurrencyError(currency string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnsupportedCurrency,
		Message: fmt.Sprintf("currency %s is not supported by merchant", currency),
		Err:     ErrUnsupportedCurrency,
	}
}

func NewDailyLimitExceededError(merchantID string, limit int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeDailyLimitExceeded,
		Message: fmt.Sprintf("daily limit %d exceeded for merchant %s", limit, merchantID),
		Err:     ErrDailyLimitExceeded,
	}
}

func NewPaymentNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentNotFound,
		Message: fmt.Sprintf("payment with ID %s not found", id),
		Err:     ErrPaymentNotFound,
	}
}

func NewPaymentNotExpiredError(id string, expiresAt time.Time) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentNotExpired,
		Message: fmt.Sprintf("payment %s does not expire until %s", id, expiresAt.Format(time.RFC3339)),
		Err:     ErrPaymentNotExpired,
	}
}

func NewAuditEntryNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeAuditEntryNotFound,
		Message: fmt.Sprintf("audit entry with ID %s not found", id),
		Err:     ErrAuditEntryNotFound,
	}
}

func NewIntegrityViolationError(entryID string, detail string) *DomainError {
	return &DomainError{
		Code:    ErrCodeIntegrityViolation,
		Message: fmt.Sprintf("audit entry %s failed integrity verification: %s", entryID, detail),
		Err:     ErrIntegrityViolation,
	}
}

func NewLedgerDriftError(paymentID, counter string, stored, derived int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeLedgerDrift,
		Message: fmt.Sprintf("payment %s %s counter %d disagrees with ledger total %d", paymentID, counter, stored, derived),
		Err:     ErrIntegrityViolation,
	}
}

func NewMerchantUnavailableError(merchantID string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeMerchantUnavailable,
		Message: fmt.Sprintf("merchant configuration for %s unavailable: %v", merchantID, err),
		Err:     ErrMerchantUnavailable,
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
