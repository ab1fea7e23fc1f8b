package domain

import (
	"slices"
	"time"
)

// TransactionType classifies the monetary operation a ledger record represents
type TransactionType string

const (
	TxTypeAuthorization TransactionType = "AUTHORIZATION"
	TxTypeCapture       TransactionType = "CAPTURE"
	TxTypeRefund        TransactionType = "REFUND"
	TxTypeReversal      TransactionType = "REVERSAL"
	TxTypeVoid          TransactionType = "VOID"
)

// TransactionStatus represents the processing state of a ledger record
type TransactionStatus string

const (
	TxStatusPending    TransactionStatus = "PENDING"
	TxStatusProcessing TransactionStatus = "PROCESSING"
	TxStatusCompleted  TransactionStatus = "COMPLETED"
	TxStatusFailed     TransactionStatus = "FAILED"
	TxStatusDeclined   TransactionStatus = "DECLINED"
)

// Transaction is one append-only ledger record. Records in a terminal
// status are immutable; corrections are new records, never updates.
type Transaction struct {
	ID                  string
	PaymentID           string
	ParentTransactionID *string

	Type   TransactionType
	Status TransactionStatus

	// Amounts are minor units of the payment currency.
	Amount    int64
	FeeAmount int64
	NetAmount int64

	AttemptNumber    int
	MaxRetryAttempts int
	NextRetryAt      *time.Time
	FailureReason    *string

	CreatedAt   time.Time
	CompletedAt *time.Time
}

func NewTransaction(id, paymentID string, txType TransactionType, amount int64) (*Transaction, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("transaction ID")
	}
	if paymentID == "" {
		return nil, NewMissingRequiredFieldError("payment ID")
	}
	if amount <= 0 {
		return nil, NewInvalidAmountError(amount)
	}

	return &Transaction{
		ID:               id,
		PaymentID:        paymentID,
		Type:             txType,
		Status:           TxStatusPending,
		Amount:           amount,
		AttemptNumber:    1,
		MaxRetryAttempts: 3,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

func (t *Transaction) MarkProcessing() error {
	return t.transition(TxStatusProcessing)
}

// Complete settles the record and fixes the net amount after fees.
func (t *Transaction) Complete(completedAt time.Time) error {
	if err := t.transition(TxStatusCompleted); err != nil {
		return err
	}
	t.NetAmount = t.Amount - t.FeeAmount
	t.CompletedAt = &completedAt
	return nil
}

func (t *Transaction) Fail(reason string, failedAt time.Time) error {
	if err := t.transition(TxStatusFailed); err != nil {
		return err
	}
	t.FailureReason = &reason
	t.CompletedAt = &failedAt
	return nil
}

func (t *Transaction) Decline(reason string, declinedAt time.Time) error {
	if err := t.transition(TxStatusDeclined); err != nil {
		return err
	}
	t.FailureReason = &reason
	t.CompletedAt = &declinedAt
	return nil
}

func (t *Transaction) transition(target TransactionStatus) error {
	if t.IsTerminal() {
		return NewTransactionFinalError(t.ID, t.Status)
	}
	var allowed []TransactionStatus
	switch t.Status {
	case TxStatusPending:
		allowed = []TransactionStatus{TxStatusProcessing, TxStatusCompleted, TxStatusFailed, TxStatusDeclined}
	case TxStatusProcessing:
		allowed = []TransactionStatus{TxStatusCompleted, TxStatusFailed, TxStatusDeclined}
	}
	if !slices.Contains(allowed, target) {
		return NewTransactionFinalError(t.ID, t.Status)
	}
	t.Status = target
	return nil
}

// helper to identify transaction statuses that are immutable
func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case TxStatusCompleted, TxStatusFailed, TxStatusDeclined:
		return true
	default:
		return false
	}
}

// NextAttempt clones a failed record into a fresh pending attempt. The
// ledger dedup key includes the attempt number, so the clone appends
// cleanly while a replay of the same attempt is refused.
func (t *Transaction) NextAttempt(id string, retryAt time.Time) (*Transaction, error) {
	if t.Status != TxStatusFailed {
		return nil, NewTransactionFinalError(t.ID, t.Status)
	}
	if t.AttemptNumber >= t.MaxRetryAttempts {
		return nil, NewTransactionFinalError(t.ID, t.Status)
	}
	next := &Transaction{
		ID:                  id,
		PaymentID:           t.PaymentID,
		ParentTransactionID: t.ParentTransactionID,
		Type:                t.Type,
		Status:              TxStatusPending,
		Amount:              t.Amount,
		FeeAmount:           t.FeeAmount,
		AttemptNumber:       t.AttemptNumber + 1,
		MaxRetryAttempts:    t.MaxRetryAttempts,
		CreatedAt:           time.Now().UTC(),
	}
	next.NextRetryAt = &retryAt
	return next, nil
}

// LedgerAggregate is the sum of completed records by type for one payment.
// It is derived from the ledger and is the source of truth the stored
// payment counters must reconcile with.
type LedgerAggregate struct {
	AuthorizedTotal int64
	CapturedTotal   int64
	RefundedTotal   int64
	ReversedTotal   int64
}

// AggregateTransactions folds completed records into per-type totals.
func AggregateTransactions(txs []*Transaction) LedgerAggregate {
	var agg LedgerAggregate
	for _, t := range txs {
		if t.Status != TxStatusCompleted {
			continue
		}
		switch t.Type {
		case TxTypeAuthorization:
			agg.AuthorizedTotal += t.Amount
		case TxTypeCapture:
			agg.CapturedTotal += t.Amount
		case TxTypeRefund:
			agg.RefundedTotal += t.Amount
		case TxTypeReversal, TxTypeVoid:
			agg.ReversedTotal += t.Amount
		}
	}
	return agg
}

// ReconcileAggregate checks the stored payment counters against the
// ledger-derived totals. Drift means the two records of truth disagree
// and is surfaced as an integrity violation, never papered over.
func ReconcileAggregate(p *Payment, agg LedgerAggregate) error {
	if p.CapturedAmount != agg.CapturedTotal {
		return NewLedgerDriftError(p.ID, "captured", p.CapturedAmount, agg.CapturedTotal)
	}
	if p.RefundedAmount != agg.RefundedTotal {
		return NewLedgerDriftError(p.ID, "refunded", p.RefundedAmount, agg.RefundedTotal)
	}
	return nil
}

// ReconstituteTransaction - Special constructor for loading from storage
func ReconstituteTransaction(
	id, paymentID string, parentTransactionID *string,
	txType TransactionType, status TransactionStatus,
	amount, feeAmount, netAmount int64,
	attemptNumber, maxRetryAttempts int,
	nextRetryAt *time.Time, failureReason *string,
	createdAt time.Time, completedAt *time.Time,
) *Transaction {
	return &Transaction{
		ID:                  id,
		PaymentID:           paymentID,
		ParentTransactionID: parentTransactionID,
		Type:                txType,
		Status:              status,
		Amount:              amount,
		FeeAmount:           feeAmount,
		NetAmount:           netAmount,
		AttemptNumber:       attemptNumber,
		MaxRetryAttempts:    maxRetryAttempts,
		NextRetryAt:         nextRetryAt,
		FailureReason:       failureReason,
		CreatedAt:           createdAt,
		CompletedAt:         completedAt,
	}
}
