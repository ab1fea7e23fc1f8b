package application

import (
	"context"
	"time"

	"github.com/hackload-kz/payment-sub008/internal/domain"
)

// MerchantConfigProvider is the port for the external merchant
// configuration service.
type MerchantConfigProvider interface {
	GetLimits(ctx context.Context, merchantID string) (domain.MerchantLimits, error)
}

// TxStore is the persistence surface available inside one atomic unit.
// Everything written through it commits together or not at all.
type TxStore interface {
	CreatePayment(ctx context.Context, payment *domain.Payment) error

	// GetPayment reads without locking. Concurrent writers are resolved
	// by the conditional update, not by blocking each other here.
	GetPayment(ctx context.Context, id string) (*domain.Payment, error)

	// UpdatePaymentVersioned persists the payment only if the stored
	// version still equals expectedVersion, bumping it by one. A version
	// mismatch returns domain.ErrConcurrentModification.
	UpdatePaymentVersioned(ctx context.Context, payment *domain.Payment, expectedVersion int64) error

	// ClaimOrder takes the (merchant, order) uniqueness claim. A second
	// claim for the same pair returns domain.ErrDuplicateOrder.
	ClaimOrder(ctx context.Context, merchantID, orderID, paymentID string) error
	ReleaseOrder(ctx context.Context, merchantID, orderID string) error

	// AppendTransaction adds a ledger record. A duplicate
	// (payment, type, attempt) among non-failed records returns
	// domain.ErrDuplicateTransaction.
	AppendTransaction(ctx context.Context, tx *domain.Transaction) error
	GetTransactions(ctx context.Context, paymentID string) ([]*domain.Transaction, error)
	AggregateLedger(ctx context.Context, paymentID string) (domain.LedgerAggregate, error)

	// AppendAuditEntry seals the entry onto the tail of its entity's
	// hash chain and persists it. Appends to one chain are serialized.
	AppendAuditEntry(ctx context.Context, entry *domain.AuditEntry) error
}

// Store is the persistence port for the payment gateway.
type Store interface {
	// WithinTx runs fn inside one storage transaction. Returning an
	// error rolls every write back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error

	GetPayment(ctx context.Context, id string) (*domain.Payment, error)
	GetPaymentByOrder(ctx context.Context, merchantID, orderID string) (*domain.Payment, error)

	// ListExpiredPayments returns payments still waiting for
	// authorization whose deadline passed before asOf.
	ListExpiredPayments(ctx context.Context, asOf time.Time, limit int) ([]*domain.Payment, error)

	// SumInitiatedAmount totals payment amounts a merchant created since
	// the given instant, excluding payments that failed without moving
	// money. Feeds the daily limit check.
	SumInitiatedAmount(ctx context.Context, merchantID string, since time.Time) (int64, error)

	GetTransactions(ctx context.Context, paymentID string) ([]*domain.Transaction, error)
	AggregateLedger(ctx context.Context, paymentID string) (domain.LedgerAggregate, error)

	GetAuditEntry(ctx context.Context, id string) (*domain.AuditEntry, error)

	// GetAuditTrail returns an entity's chain ordered by sequence number.
	GetAuditTrail(ctx context.Context, entityID string) ([]*domain.AuditEntry, error)

	// Retention operations. Batch sizes bound each statement; callers
	// loop until the returned count reaches zero.
	ArchiveAuditBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	PurgeArchivedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	SampleSensitiveAudit(ctx context.Context, since time.Time, limit int) ([]*domain.AuditEntry, error)

	// AcquireRetentionLease takes the single-runner lease for the
	// retention cycle. When acquired, release must be called once the
	// cycle ends; when not acquired another instance holds it.
	AcquireRetentionLease(ctx context.Context) (release func(), acquired bool, err error)
}
