package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackload-kz/payment-sub008/internal/application"
	"github.com/hackload-kz/payment-sub008/internal/domain"
)

func appendEntry(t *testing.T, store *Store, entityID string, sensitive bool, createdAt time.Time) *domain.AuditEntry {
	t.Helper()

	entry, err := domain.NewAuditEntry(
		uuid.New().String(),
		domain.EntityPayment,
		entityID,
		domain.ActionPaymentCreated,
		nil,
		[]byte(fmt.Sprintf(`{"at":%q}`, createdAt.Format(time.RFC3339Nano))),
		sensitive,
	)
	require.NoError(t, err)
	entry.CreatedAt = createdAt

	err = store.WithinTx(context.Background(), func(ctx context.Context, tx application.TxStore) error {
		return tx.AppendAuditEntry(ctx, entry)
	})
	require.NoError(t, err)
	return entry
}

func TestAppendAuditEntry_SealsOntoChainTail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		appendEntry(t, store, "entity-1", false, now.Add(time.Duration(i)*time.Second))
	}

	trail, err := store.GetAuditTrail(ctx, "entity-1")
	require.NoError(t, err)
	require.Len(t, trail, 3)

	prevHash := ""
	for i, entry := range trail {
		assert.Equal(t, int64(i+1), entry.SeqNo)
		assert.Equal(t, domain.ComputeIntegrityHash(prevHash, entry), entry.IntegrityHash)
		prevHash = entry.IntegrityHash
	}
	require.NoError(t, domain.VerifyChain(trail))

	loaded, err := store.GetAuditEntry(ctx, trail[1].ID)
	require.NoError(t, err)
	assert.Equal(t, trail[1].IntegrityHash, loaded.IntegrityHash)
	assert.Equal(t, int64(2), loaded.SeqNo)
}

func TestAppendAuditEntry_ChainsAreIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	appendEntry(t, store, "entity-1", false, now)
	appendEntry(t, store, "entity-2", false, now)
	appendEntry(t, store, "entity-1", false, now.Add(time.Second))

	first, err := store.GetAuditTrail(ctx, "entity-1")
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := store.GetAuditTrail(ctx, "entity-2")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, int64(1), second[0].SeqNo)
}

func TestTamperedSnapshot_BreaksChain(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 4; i++ {
		appendEntry(t, store, "entity-1", false, now.Add(time.Duration(i)*time.Second))
	}

	trail, err := store.GetAuditTrail(ctx, "entity-1")
	require.NoError(t, err)
	require.NoError(t, domain.VerifyChain(trail))

	_, err = store.db.ExecContext(ctx,
		`UPDATE audit_log SET snapshot_after = ? WHERE id = ?`,
		[]byte(`{"amount":999999}`), trail[1].ID,
	)
	require.NoError(t, err)

	tampered, err := store.GetAuditTrail(ctx, "entity-1")
	require.NoError(t, err)

	err = domain.VerifyChain(tampered)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIntegrityViolation)

	// The prefix before the tampered entry still verifies on its own.
	require.NoError(t, domain.VerifyChain(tampered[:1]))
}

func TestArchiveAuditBefore_MarksInBatches(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-48 * time.Hour)
	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	for i := 0; i < 5; i++ {
		appendEntry(t, store, "entity-old", false, old.Add(time.Duration(i)*time.Second))
	}
	appendEntry(t, store, "entity-new", false, time.Now().UTC())

	var total int64
	for {
		n, err := store.ArchiveAuditBefore(ctx, cutoff, 2)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		total += n
	}
	assert.Equal(t, int64(5), total)

	// Archiving never disturbs the hashes.
	trail, err := store.GetAuditTrail(ctx, "entity-old")
	require.NoError(t, err)
	for _, entry := range trail {
		assert.True(t, entry.IsArchived)
	}
	require.NoError(t, domain.VerifyChain(trail))

	recent, err := store.GetAuditTrail(ctx, "entity-new")
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.False(t, recent[0].IsArchived)
}

func TestPurgeArchivedBefore_WholeChainsOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-48 * time.Hour)
	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	// Fully archived and fully old: eligible.
	for i := 0; i < 3; i++ {
		appendEntry(t, store, "entity-done", false, old.Add(time.Duration(i)*time.Second))
	}
	// Old head but a live tail: the chain must survive intact.
	appendEntry(t, store, "entity-live", false, old)
	appendEntry(t, store, "entity-live", false, old.Add(time.Second))
	appendEntry(t, store, "entity-live", false, time.Now().UTC())

	for {
		n, err := store.ArchiveAuditBefore(ctx, cutoff, 10)
		require.NoError(t, err)
		if n == 0 {
			break
		}
	}

	purged, err := store.PurgeArchivedBefore(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)

	gone, err := store.GetAuditTrail(ctx, "entity-done")
	require.NoError(t, err)
	assert.Empty(t, gone)

	// The partially-live chain keeps every entry, archived ones included,
	// so it can still verify from its first entry.
	kept, err := store.GetAuditTrail(ctx, "entity-live")
	require.NoError(t, err)
	require.Len(t, kept, 3)
	require.NoError(t, domain.VerifyChain(kept))

	n, err := store.PurgeArchivedBefore(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSampleSensitiveAudit_WindowAndFlag(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	since := now.Add(-24 * time.Hour)

	appendEntry(t, store, "entity-1", true, now.Add(-48*time.Hour))
	inWindow := appendEntry(t, store, "entity-1", true, now.Add(-time.Hour))
	appendEntry(t, store, "entity-1", false, now.Add(-time.Hour))

	sample, err := store.SampleSensitiveAudit(ctx, since, 10)
	require.NoError(t, err)
	require.Len(t, sample, 1)
	assert.Equal(t, inWindow.ID, sample[0].ID)
	assert.True(t, sample[0].IsSensitive)
}
