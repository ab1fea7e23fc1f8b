package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hackload-kz/payment-sub008/internal/domain"
)

const auditColumns = `
	id, entity_type, entity_id, action,
	seq_no, snapshot_before, snapshot_after, integrity_hash,
	is_sensitive, is_archived, created_at
`

// AppendAuditEntry seals the entry onto the tail of its entity's chain
// and persists it. The store's single connection already serializes
// transactions, so the head read below cannot race another writer.
func (t *txStore) AppendAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	var prevSeq int64
	var prevHash string
	err := t.q.QueryRowContext(ctx,
		`SELECT seq_no, integrity_hash FROM audit_log WHERE entity_id = ? ORDER BY seq_no DESC LIMIT 1`,
		entry.EntityID,
	).Scan(&prevSeq, &prevHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read audit chain head: %w", err)
	}

	entry.Seal(prevSeq+1, prevHash)

	query := `
		INSERT INTO audit_log (` + auditColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
	`
	_, err = t.q.ExecContext(ctx, query,
		entry.ID, string(entry.EntityType), entry.EntityID, entry.Action,
		entry.SeqNo, entry.SnapshotBefore, entry.SnapshotAfter, entry.IntegrityHash,
		entry.IsSensitive, entry.IsArchived, formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) GetAuditEntry(ctx context.Context, id string) (*domain.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log WHERE id = ?`

	entry, err := scanAuditEntry(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewAuditEntryNotFoundError(id)
		}
		return nil, err
	}
	return entry, nil
}

func (s *Store) GetAuditTrail(ctx context.Context, entityID string) ([]*domain.AuditEntry, error) {
	return getAuditTrail(ctx, s.db, entityID)
}

func (t *txStore) GetAuditTrail(ctx context.Context, entityID string) ([]*domain.AuditEntry, error) {
	return getAuditTrail(ctx, t.q, entityID)
}

func getAuditTrail(ctx context.Context, q executor, entityID string) ([]*domain.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_log
		WHERE entity_id = ?
		ORDER BY seq_no ASC
	`

	rows, err := q.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	var results []*domain.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, entry)
	}
	return results, rows.Err()
}

func (s *Store) ArchiveAuditBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		UPDATE audit_log
		SET is_archived = 1
		WHERE id IN (
			SELECT id FROM audit_log
			WHERE is_archived = 0 AND created_at < ?
			ORDER BY created_at ASC
			LIMIT ?
		)
	`

	res, err := s.db.ExecContext(ctx, query, formatTime(cutoff), limit)
	if err != nil {
		return 0, fmt.Errorf("archive audit entries: %w", err)
	}
	return res.RowsAffected()
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
			HAVING MIN(is_archived) = 1 AND MAX(created_at) < ?
			LIMIT ?
		)
	`

	res, err := s.db.ExecContext(ctx, query, formatTime(cutoff), limit)
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) SampleSensitiveAudit(ctx context.Context, since time.Time, limit int) ([]*domain.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_log
		WHERE is_sensitive = 1 AND created_at >= ?
		ORDER BY RANDOM()
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, formatTime(since), limit)
	if err != nil {
		return nil, fmt.Errorf("sample sensitive audit entries: %w", err)
	}
	defer rows.Close()

	var results []*domain.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, entry)
	}
	return results, rows.Err()
}

func scanAuditEntry(row scanner) (*domain.AuditEntry, error) {
	var (
		id, entityType, entityID, action string
		seqNo                            int64
		snapshotBefore, snapshotAfter    []byte
		integrityHash                    string
		isSensitive, isArchived          bool
		createdAt                        string
	)

	err := row.Scan(
		&id, &entityType, &entityID, &action,
		&seqNo, &snapshotBefore, &snapshotAfter, &integrityHash,
		&isSensitive, &isArchived, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan audit entry: %w", err)
	}

	return domain.ReconstituteAuditEntry(
		id, domain.EntityType(entityType), entityID, action,
		seqNo,
		snapshotBefore, snapshotAfter,
		integrityHash,
		isSensitive, isArchived,
		parseStoredTime(createdAt),
	), nil
}
