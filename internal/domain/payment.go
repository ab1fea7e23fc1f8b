// Package domain encodes the payment lifecycle entities and the rules
// that govern them.
package domain

import (
	"slices"
	"time"
)

// PaymentStatus represents the current state of a payment in its lifecycle
type PaymentStatus string

const (
	StatusInit            PaymentStatus = "INIT"
	StatusNew             PaymentStatus = "NEW"
	StatusFormShowed      PaymentStatus = "FORM_SHOWED"
	StatusAuthorized      PaymentStatus = "AUTHORIZED"
	StatusConfirmed       PaymentStatus = "CONFIRMED"
	StatusPartialRefunded PaymentStatus = "PARTIAL_REFUNDED"
	StatusRefunded        PaymentStatus = "REFUNDED"
	StatusCancelled       PaymentStatus = "CANCELLED"
	StatusRejected        PaymentStatus = "REJECTED"
	StatusExpired         PaymentStatus = "EXPIRED"
)

type Payment struct {
	ID         string
	MerchantID string
	OrderID    string

	// Amounts are minor units of Currency.
	Amount         int64
	Currency       string
	CapturedAmount int64
	RefundedAmount int64
	RefundCount    int

	Status        PaymentStatus
	FailureReason *string
	AuthRef       *string

	CreatedAt    time.Time
	AuthorizedAt *time.Time
	ConfirmedAt  *time.Time
	CancelledAt  *time.Time
	RefundedAt   *time.Time
	ExpiresAt    time.Time

	// Version increases on every persisted mutation. Conditional writes
	// compare against it so exactly one concurrent writer wins.
	Version int64
}

func NewPayment(
	id string,
	merchantID string,
	orderID string,
	amount Money,
	ttl time.Duration,
) (*Payment, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("payment ID")
	}
	if merchantID == "" {
		return nil, NewMissingRequiredFieldError("merchant ID")
	}
	if orderID == "" {
		return nil, NewMissingRequiredFieldError("order ID")
	}
	if amount.Amount <= 0 {
		return nil, NewInvalidAmountError(amount.Amount)
	}

	now := time.Now().UTC()
	return &Payment{
		ID:         id,
		MerchantID: merchantID,
		OrderID:    orderID,
		Amount:     amount.Amount,
		Currency:   amount.Currency,
		Status:     StatusInit,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		Version:    1,
	}, nil
}

func (p *Payment) MarkNew() error {
	return p.transition(StatusNew)
}

func (p *Payment) MarkFormShowed() error {
	return p.transition(StatusFormShowed)
}

func (p *Payment) transition(target PaymentStatus) error {
	if err := p.canTransitionTo(target); err != nil {
		return err
	}
	p.Status = target
	return nil
}

// defines the closed transition table of the payment lifecycle
func (p *Payment) canTransitionTo(target PaymentStatus) error {
	switch p.Status {
	case StatusInit:
		return p.allow(target, StatusNew, StatusFormShowed, StatusAuthorized, StatusRejected, StatusCancelled, StatusExpired)
	case StatusNew:
		return p.allow(target, StatusFormShowed, StatusAuthorized, StatusRejected, StatusCancelled, StatusExpired)
	case StatusFormShowed:
		return p.allow(target, StatusAuthorized, StatusRejected, StatusCancelled, StatusExpired)
	case StatusAuthorized:
		// AUTHORIZED -> AUTHORIZED covers partial captures.
		return p.allow(target, StatusAuthorized, StatusConfirmed, StatusCancelled)
	case StatusConfirmed:
		return p.allow(target, StatusPartialRefunded, StatusRefunded)
	case StatusPartialRefunded:
		return p.allow(target, StatusPartialRefunded, StatusRefunded)
	}
	return NewInvalidTransitionError(p.Status, target)
}

// Helper to check allowed state transitions
func (p *Payment) allow(target PaymentStatus, allowed ...PaymentStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(p.Status, target)
}

// Authorize moves the payment to authorized and records the acquirer reference.
func (p *Payment) Authorize(authRef string, authorizedAt time.Time) error {
	if err := p.transition(StatusAuthorized); err != nil {
		return err
	}
	if authRef != "" {
		p.AuthRef = &authRef
	}
	p.AuthorizedAt = &authorizedAt
	return nil
}

// Reject marks the payment as declined by the acquirer. Terminal.
func (p *Payment) Reject(reason string) error {
	if err := p.transition(StatusRejected); err != nil {
		return err
	}
	p.FailureReason = &reason
	return nil
}

// Capture books amount against the authorization. A full capture confirms
// the payment; a partial one leaves it authorized for further captures.
func (p *Payment) Capture(amount int64, capturedAt time.Time) error {
	if p.Status != StatusAuthorized {
		return NewInvalidTransitionError(p.Status, StatusConfirmed)
	}
	if amount <= 0 {
		return NewInvalidAmountError(amount)
	}
	if amount > p.Amount-p.CapturedAmount {
		return NewAmountExceedsAuthorizationError(amount, p.Amount-p.CapturedAmount)
	}
	p.CapturedAmount += amount
	if p.CapturedAmount == p.Amount {
		if err := p.transition(StatusConfirmed); err != nil {
			return err
		}
		p.ConfirmedAt = &capturedAt
	}
	return nil
}

// Refund returns amount of the captured total. Refunding everything that
// was captured is terminal; anything less leaves the payment refundable.
// A fully refunded payment falls through to the amount check so the
// caller learns there is nothing left to refund, not that the status is
// wrong.
func (p *Payment) Refund(amount int64, refundedAt time.Time) error {
	if p.Status != StatusConfirmed && p.Status != StatusPartialRefunded && p.Status != StatusRefunded {
		return NewInvalidTransitionError(p.Status, StatusRefunded)
	}
	if amount <= 0 {
		return NewInvalidAmountError(amount)
	}
	if amount > p.CapturedAmount-p.RefundedAmount {
		return NewRefundExceedsCapturedError(amount, p.CapturedAmount-p.RefundedAmount)
	}
	target := StatusPartialRefunded
	if p.RefundedAmount+amount == p.CapturedAmount {
		target = StatusRefunded
	}
	if err := p.transition(target); err != nil {
		return err
	}
	p.RefundedAmount += amount
	p.RefundCount++
	p.RefundedAt = &refundedAt
	return nil
}

// Cancel abandons the payment. Whether the remaining authorization needs
// reversing is the caller's concern; here it is only a status change.
func (p *Payment) Cancel(reason string, cancelledAt time.Time) error {
	if err := p.transition(StatusCancelled); err != nil {
		return err
	}
	if reason != "" {
		p.FailureReason = &reason
	}
	p.CancelledAt = &cancelledAt
	return nil
}

// MarkExpired ends a payment that never reached authorization in time.
func (p *Payment) MarkExpired(now time.Time) error {
	if err := p.canTransitionTo(StatusExpired); err != nil {
		return err
	}
	if now.Before(p.ExpiresAt) {
		return NewPaymentNotExpiredError(p.ID, p.ExpiresAt)
	}
	p.Status = StatusExpired
	return nil
}

// helper to identify payment statuses that are terminal
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case StatusRefunded, StatusCancelled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// RemainingAuthorized is the authorized amount not yet captured.
func (p *Payment) RemainingAuthorized() int64 {
	return p.Amount - p.CapturedAmount
}

// RemainingCaptured is the captured amount not yet refunded.
func (p *Payment) RemainingCaptured() int64 {
	return p.CapturedAmount - p.RefundedAmount
}

// Reconstitute - Special constructor for loading from storage
func Reconstitute(
	id string, merchantID string, orderID string,
	amount int64, currency string,
	capturedAmount, refundedAmount int64, refundCount int,
	status PaymentStatus,
	failureReason, authRef *string,
	createdAt time.Time,
	authorizedAt, confirmedAt, cancelledAt, refundedAt *time.Time,
	expiresAt time.Time,
	version int64,
) *Payment {
	return &Payment{
		ID:             id,
		MerchantID:     merchantID,
		OrderID:        orderID,
		Amount:         amount,
		Currency:       currency,
		CapturedAmount: capturedAmount,
		RefundedAmount: refundedAmount,
		RefundCount:    refundCount,
		Status:         status,
		FailureReason:  failureReason,
		AuthRef:        authRef,
		CreatedAt:      createdAt,
		AuthorizedAt:   authorizedAt,
		ConfirmedAt:    confirmedAt,
		CancelledAt:    cancelledAt,
		RefundedAt:     refundedAt,
		ExpiresAt:      expiresAt,
		Version:        version,
	}
}
