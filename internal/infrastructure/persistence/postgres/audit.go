package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hackload-kz/payment-sub008/internal/domain"
	"github.com/hackload-kz/payment-sub008/internal/infrastructure/persistence"
)

const auditColumns = `
	id, entity_type, entity_id, action,
	seq_no, snapshot_before, snapshot_after, integrity_hash,
	is_sensitive, is_archived, created_at
`

// AppendAuditEntry seals the entry onto the tail of its entity's chain
// and persists it. The advisory lock serializes appends per entity so
// two transactions cannot both read the same head and write the same
// sequence number; the lock releases with the transaction.
func (t *txStore) AppendAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	_, err := t.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, entry.EntityID)
	if err != nil {
		return fmt.Errorf("lock audit chain: %w", err)
	}

	var prevSeq int64
	var prevHash string
	err = t.q.QueryRow(ctx,
		`SELECT seq_no, integrity_hash FROM audit_log WHERE entity_id = $1 ORDER BY seq_no DESC LIMIT 1`,
		entry.EntityID,
	).Scan(&prevSeq, &prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("read audit chain head: %w", err)
	}

	entry.Seal(prevSeq+1, prevHash)

	query := `
		INSERT INTO audit_log (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = t.q.Exec(ctx, query,
		entry.ID, string(entry.EntityType), entry.EntityID, entry.Action,
		entry.SeqNo, entry.SnapshotBefore, entry.SnapshotAfter, entry.IntegrityHash,
		entry.IsSensitive, entry.IsArchived, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) GetAuditEntry(ctx context.Context, id string) (*domain.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log WHERE id = $1`

	var m auditRow
	err := s.db.Pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.EntityType, &m.EntityID, &m.Action,
		&m.SeqNo, &m.SnapshotBefore, &m.SnapshotAfter, &m.IntegrityHash,
		&m.IsSensitive, &m.IsArchived, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewAuditEntryNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to scan audit entry: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) GetAuditTrail(ctx context.Context, entityID string) ([]*domain.AuditEntry, error) {
	return getAuditTrail(ctx, s.db.Pool, entityID)
}

func (t *txStore) GetAuditTrail(ctx context.Context, entityID string) ([]*domain.AuditEntry, error) {
	return getAuditTrail(ctx, t.q, entityID)
}

func getAuditTrail(ctx context.Context, q persistence.Executor, entityID string) ([]*domain.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_log
		WHERE entity_id = $1
		ORDER BY seq_no ASC
	`

	rows, err := q.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.AuditEntry, error) {
		var m auditRow
		err := row.Scan(
			&m.ID, &m.EntityType, &m.EntityID, &m.Action,
			&m.SeqNo, &m.SnapshotBefore, &m.SnapshotAfter, &m.IntegrityHash,
			&m.IsSensitive, &m.IsArchived, &m.CreatedAt,
		)
		return m.toDomain(), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit trail: %w", err)
	}
	return results, nil
}

// ArchiveAuditBefore marks up to limit unarchived entries older than the
// cutoff. Archiving flips a flag and nothing else; the entries stay
// verifiable in place.
func (s *Store) ArchiveAuditBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		UPDATE audit_log
		SET is_archived = TRUE
		WHERE id IN (
			SELECT id FROM audit_log
			WHERE NOT is_archived AND created_at < $1
			ORDER BY created_at ASC
			LIMIT $2
		)
	`

	tag, err := s.db.Pool.Exec(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("archive audit entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeArchivedBefore deletes whole chains, never single entries. A chain
// is eligible only when every entry is archived and its newest entry is
// older than the cutoff; deleting part of a chain would leave a remainder
// that can no longer verify from its genesis.
func (s *Store) PurgeArchivedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM audit_log
		WHERE entity_id IN (
			SELECT entity_id FROM audit_log
			GROUP BY entity_id
			HAVING bool_and(is_archived) AND max(created_at) < $1
			LIMIT $2
		)
	`

	tag, err := s.db.Pool.Exec(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SampleSensitiveAudit picks random sensitive entries written since the
// given instant for spot verification.
func (s *Store) SampleSensitiveAudit(ctx context.Context, since time.Time, limit int) ([]*domain.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_log
		WHERE is_sensitive AND created_at >= $1
		ORDER BY random()
		LIMIT $2
	`

	rows, err := s.db.Pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("sample sensitive audit entries: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.AuditEntry, error) {
		var m auditRow
		err := row.Scan(
			&m.ID, &m.EntityType, &m.EntityID, &m.Action,
			&m.SeqNo, &m.SnapshotBefore, &m.SnapshotAfter, &m.IntegrityHash,
			&m.IsSensitive, &m.IsArchived, &m.CreatedAt,
		)
		return m.toDomain(), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan sampled audit entries: %w", err)
	}
	return results, nil
}
