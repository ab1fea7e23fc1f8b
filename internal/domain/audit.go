package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"time"
)

// EntityType names the kind of entity an audit entry describes
type EntityType string

const (
	EntityPayment     EntityType = "payment"
	EntityTransaction EntityType = "transaction"
	EntityAudit       EntityType = "audit"
)

// Audit actions recorded on the payment chain
const (
	ActionPaymentCreated    = "payment.created"
	ActionPaymentNew        = "payment.new"
	ActionPaymentFormShowed = "payment.form_showed"
	ActionPaymentAuthorized = "payment.authorized"
	ActionPaymentRejected   = "payment.rejected"
	ActionPaymentCaptured   = "payment.captured"
	ActionPaymentConfirmed  = "payment.confirmed"
	ActionPaymentCancelled  = "payment.cancelled"
	ActionPaymentRefunded   = "payment.refunded"
	ActionPaymentExpired    = "payment.expired"
)

// Audit actions recorded by the retention archiver on its own chain
const (
	ActionRetentionArchived = "retention.archived"
	ActionRetentionPurged   = "retention.purged"
	ActionRetentionVerified = "retention.verified"
	ActionSecurityViolation = "security.violation"
)

// AuditEntry is one link in a per-entity hash chain. Entries are written
// once and never updated; only IsArchived may change later, which is why
// it is excluded from the canonical serialization.
type AuditEntry struct {
	ID         string
	EntityType EntityType
	EntityID   string
	Action     string

	// SeqNo orders the entry within its entity chain, starting at 1.
	SeqNo int64

	SnapshotBefore []byte
	SnapshotAfter  []byte

	// IntegrityHash = SHA-256(previous entry hash || canonical bytes).
	// The first entry of a chain hashes against the empty string.
	IntegrityHash string

	IsSensitive bool
	IsArchived  bool
	CreatedAt   time.Time
}

func NewAuditEntry(
	id string,
	entityType EntityType,
	entityID string,
	action string,
	before, after []byte,
	sensitive bool,
) (*AuditEntry, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("audit entry ID")
	}
	if entityID == "" {
		return nil, NewMissingRequiredFieldError("entity ID")
	}
	if action == "" {
		return nil, NewMissingRequiredFieldError("action")
	}
	if len(after) == 0 {
		return nil, NewMissingRequiredFieldError("snapshot after")
	}

	return &AuditEntry{
		ID:             id,
		EntityType:     entityType,
		EntityID:       entityID,
		Action:         action,
		SnapshotBefore: before,
		SnapshotAfter:  after,
		IsSensitive:    sensitive,
		// Microsecond precision is what the stores round-trip, and the
		// stored timestamp must rehash to the stored value on verify.
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}, nil
}

// Seal fixes the entry's position in its chain and computes its hash.
// Called exactly once, inside the same transaction that persists it.
func (e *AuditEntry) Seal(seqNo int64, prevHash string) {
	e.SeqNo = seqNo
	e.IntegrityHash = ComputeIntegrityHash(prevHash, e)
}

// ComputeIntegrityHash chains the entry onto its predecessor's hash.
func ComputeIntegrityHash(prevHash string, e *AuditEntry) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(canonicalBytes(e))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyEntryHash recomputes the entry hash from stored fields and the
// stored predecessor hash. Any divergence is an integrity violation.
func VerifyEntryHash(e *AuditEntry, prevHash string) error {
	if ComputeIntegrityHash(prevHash, e) != e.IntegrityHash {
		return NewIntegrityViolationError(e.ID, "stored hash does not match recomputed hash")
	}
	return nil
}

// VerifyChain replays an entity's full chain in sequence order. It
// reports the first entry whose linkage or hash fails; everything after
// a tampered entry fails too since each hash covers its predecessor.
func VerifyChain(entries []*AuditEntry) error {
	prevHash := ""
	var prevSeq int64
	for _, e := range entries {
		if e.SeqNo != prevSeq+1 {
			return NewIntegrityViolationError(e.ID, "sequence gap in audit chain")
		}
		if err := VerifyEntryHash(e, prevHash); err != nil {
			return err
		}
		prevHash = e.IntegrityHash
		prevSeq = e.SeqNo
	}
	return nil
}

// canonicalBytes serializes every hashed field with a length prefix so
// no two distinct entries can produce the same byte stream.
func canonicalBytes(e *AuditEntry) []byte {
	var buf bytes.Buffer
	writeField(&buf, []byte(e.ID))
	writeField(&buf, []byte(e.EntityType))
	writeField(&buf, []byte(e.EntityID))
	writeField(&buf, []byte(e.Action))
	writeField(&buf, []byte(strconv.FormatInt(e.SeqNo, 10)))
	if e.SnapshotBefore == nil {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		writeField(&buf, e.SnapshotBefore)
	}
	writeField(&buf, e.SnapshotAfter)
	if e.IsSensitive {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	writeField(&buf, []byte(strconv.FormatInt(e.CreatedAt.UTC().UnixMicro(), 10)))
	return buf.Bytes()
}

func writeField(buf *bytes.Buffer, b []byte) {
	var l [8]byte
	binary.BigEndian.PutUint64(l[:], uint64(len(b)))
	buf.Write(l[:])
	buf.Write(b)
}

// ReconstituteAuditEntry - Special constructor for loading from storage
func ReconstituteAuditEntry(
	id string, entityType EntityType, entityID, action string,
	seqNo int64,
	snapshotBefore, snapshotAfter []byte,
	integrityHash string,
	isSensitive, isArchived bool,
	createdAt time.Time,
) *AuditEntry {
	return &AuditEntry{
		ID:             id,
		EntityType:     entityType,
		EntityID:       entityID,
		Action:         action,
		SeqNo:          seqNo,
		SnapshotBefore: snapshotBefore,
		SnapshotAfter:  snapshotAfter,
		IntegrityHash:  integrityHash,
		IsSensitive:    isSensitive,
		IsArchived:     isArchived,
		CreatedAt:      createdAt,
	}
}
