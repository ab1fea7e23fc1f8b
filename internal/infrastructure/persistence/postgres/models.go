package postgres

import (
	"time"

	"github.com/hackload-kz/payment-sub008/internal/domain"
)

type paymentRow struct {
	ID             string
	MerchantID     string
	OrderID        string
	Amount         int64
	Currency       string
	CapturedAmount int64
	RefundedAmount int64
	RefundCount    int
	Status         string
	FailureReason  *string
	AuthRef        *string
	CreatedAt      time.Time
	AuthorizedAt   *time.Time
	ConfirmedAt    *time.Time
	CancelledAt    *time.Time
	RefundedAt     *time.Time
	ExpiresAt      time.Time
	Version        int64
}

func (m paymentRow) toDomain() *domain.Payment {
	return domain.Reconstitute(
		m.ID, m.MerchantID, m.OrderID,
		m.Amount, m.Currency,
		m.CapturedAmount, m.RefundedAmount, m.RefundCount,
		domain.PaymentStatus(m.Status),
		m.FailureReason, m.AuthRef,
		m.CreatedAt,
		m.AuthorizedAt, m.ConfirmedAt, m.CancelledAt, m.RefundedAt,
		m.ExpiresAt,
		m.Version,
	)
}

type transactionRow struct {
	ID                  string
	PaymentID           string
	ParentTransactionID *string
	Type                string
	Status              string
	Amount              int64
	FeeAmount           int64
	NetAmount           int64
	AttemptNumber       int
	MaxRetryAttempts    int
	NextRetryAt         *time.Time
	FailureReason       *string
	CreatedAt           time.Time
	CompletedAt         *time.Time
}

func (m transactionRow) toDomain() *domain.Transaction {
	return domain.ReconstituteTransaction(
		m.ID, m.PaymentID, m.ParentTransactionID,
		domain.TransactionType(m.Type), domain.TransactionStatus(m.Status),
		m.Amount, m.FeeAmount, m.NetAmount,
		m.AttemptNumber, m.MaxRetryAttempts, m.NextRetryAt,
		m.FailureReason,
		m.CreatedAt, m.CompletedAt,
	)
}

type auditRow struct {
	ID             string
	EntityType     string
	EntityID       string
	Action         string
	SeqNo          int64
	SnapshotBefore []byte
	SnapshotAfter  []byte
	IntegrityHash  string
	IsSensitive    bool
	IsArchived     bool
	CreatedAt      time.Time
}

func (m auditRow) toDomain() *domain.AuditEntry {
	return domain.ReconstituteAuditEntry(
		m.ID, domain.EntityType(m.EntityType), m.EntityID, m.Action,
		m.SeqNo,
		m.SnapshotBefore, m.SnapshotAfter,
		m.IntegrityHash,
		m.IsSensitive, m.IsArchived,
		m.CreatedAt,
	)
}
