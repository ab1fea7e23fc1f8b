package domain_test

import (
	"fmt"
	"testing"

	"github.com/hackload-kz/payment-sub008/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuditEntry(t *testing.T) {
	t.Run("creates entry successfully", func(t *testing.T) {
		entry, err := domain.NewAuditEntry(
			"audit-1", domain.EntityPayment, "pay-123", domain.ActionPaymentCreated,
			nil, []byte(`{"status":"INIT"}`), false,
		)

		require.NoError(t, err)
		assert.Equal(t, "audit-1", entry.ID)
		assert.Equal(t, domain.EntityPayment, entry.EntityType)
		assert.Equal(t, "pay-123", entry.EntityID)
		assert.Nil(t, entry.SnapshotBefore)
		assert.Empty(t, entry.IntegrityHash)
		assert.Zero(t, entry.SeqNo)
		assert.NotZero(t, entry.CreatedAt)
	})

	t.Run("rejects missing action", func(t *testing.T) {
		_, err := domain.NewAuditEntry("audit-1", domain.EntityPayment, "pay-123", "", nil, []byte(`{}`), false)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "action is required")
	})

	t.Run("rejects missing after snapshot", func(t *testing.T) {
		_, err := domain.NewAuditEntry("audit-1", domain.EntityPayment, "pay-123", domain.ActionPaymentCreated, nil, nil, false)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "snapshot after is required")
	})
}

func TestAuditChain_SealAndVerify(t *testing.T) {
	t.Run("sealed entries verify individually and as a chain", func(t *testing.T) {
		entries := sealedChain(t, 5)

		prevHash := ""
		for _, e := range entries {
			require.NoError(t, domain.VerifyEntryHash(e, prevHash))
			prevHash = e.IntegrityHash
		}
		assert.NoError(t, domain.VerifyChain(entries))
	})

	t.Run("first entry chains against the empty hash", func(t *testing.T) {
		entries := sealedChain(t, 1)

		assert.Equal(t, int64(1), entries[0].SeqNo)
		assert.NoError(t, domain.VerifyEntryHash(entries[0], ""))
		assert.Error(t, domain.VerifyEntryHash(entries[0], "not-empty"))
	})

	t.Run("empty chain verifies", func(t *testing.T) {
		assert.NoError(t, domain.VerifyChain(nil))
	})
}

func TestAuditChain_TamperDetection(t *testing.T) {
	t.Run("mutated field fails the tampered entry", func(t *testing.T) {
		entries := sealedChain(t, 4)

		entries[1].Action = domain.ActionPaymentRefunded

		err := domain.VerifyChain(entries)
		assert.ErrorIs(t, err, domain.ErrIntegrityViolation)
		assert.Contains(t, err.Error(), entries[1].ID)
	})

	t.Run("mutated snapshot fails the tampered entry", func(t *testing.T) {
		entries := sealedChain(t, 4)

		entries[2].SnapshotAfter = []byte(`{"amount":9999}`)

		err := domain.VerifyChain(entries)
		assert.ErrorIs(t, err, domain.ErrIntegrityViolation)
		assert.Contains(t, err.Error(), entries[2].ID)
	})

	t.Run("recomputed hash still breaks the successor", func(t *testing.T) {
		entries := sealedChain(t, 4)

		// An attacker who edits an entry and recomputes its hash makes
		// that entry self-consistent, but the successor sealed the old
		// hash and now refuses to verify.
		entries[1].SnapshotAfter = []byte(`{"amount":9999}`)
		entries[1].IntegrityHash = domain.ComputeIntegrityHash(entries[0].IntegrityHash, entries[1])

		require.NoError(t, domain.VerifyEntryHash(entries[1], entries[0].IntegrityHash))

		err := domain.VerifyChain(entries)
		assert.ErrorIs(t, err, domain.ErrIntegrityViolation)
		assert.Contains(t, err.Error(), entries[2].ID)
	})

	t.Run("deleted entry leaves a sequence gap", func(t *testing.T) {
		entries := sealedChain(t, 4)

		truncated := append([]*domain.AuditEntry{entries[0]}, entries[2:]...)

		err := domain.VerifyChain(truncated)
		assert.ErrorIs(t, err, domain.ErrIntegrityViolation)
		assert.Contains(t, err.Error(), "sequence gap")
	})

	t.Run("archive flag does not participate in the hash", func(t *testing.T) {
		entries := sealedChain(t, 2)

		entries[0].IsArchived = true

		assert.NoError(t, domain.VerifyChain(entries))
	})

	t.Run("nil and empty before snapshots hash differently", func(t *testing.T) {
		withNil, err := domain.NewAuditEntry("audit-1", domain.EntityPayment, "pay-123", domain.ActionPaymentCreated, nil, []byte(`{}`), false)
		require.NoError(t, err)
		withEmpty, err := domain.NewAuditEntry("audit-1", domain.EntityPayment, "pay-123", domain.ActionPaymentCreated, []byte{}, []byte(`{}`), false)
		require.NoError(t, err)
		withEmpty.CreatedAt = withNil.CreatedAt

		withNil.Seal(1, "")
		withEmpty.Seal(1, "")

		assert.NotEqual(t, withNil.IntegrityHash, withEmpty.IntegrityHash)
	})
}

func sealedChain(t *testing.T, n int) []*domain.AuditEntry {
	t.Helper()

	entries := make([]*domain.AuditEntry, 0, n)
	prevHash := ""
	for i := 1; i <= n; i++ {
		entry, err := domain.NewAuditEntry(
			fmt.Sprintf("audit-%d", i),
			domain.EntityPayment,
			"pay-123",
			domain.ActionPaymentCreated,
			nil,
			[]byte(fmt.Sprintf(`{"seq":%d}`, i)),
			false,
		)
		require.NoError(t, err)
		entry.Seal(int64(i), prevHash)
		prevHash = entry.IntegrityHash
		entries = append(entries, entry)
	}
	return entries
}
