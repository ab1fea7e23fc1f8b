package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hackload-kz/payment-sub008/internal/application"
	"github.com/hackload-kz/payment-sub008/internal/config"
	"github.com/hackload-kz/payment-sub008/internal/domain"
	"github.com/hackload-kz/payment-sub008/internal/monitoring"
)

// retentionChainID names the audit chain the retention worker writes its
// own actions to.
const retentionChainID = "retention"

// RetentionWorker ages the audit log: it archives entries past the
// archive window, purges whole chains past the purge window, and spot
// checks sampled sensitive entries against their hash chains. Only one
// instance runs a cycle at a time; the storage lease elects it.
type RetentionWorker struct {
	store  application.Store
	cfg    config.RetentionConfig
	logger *slog.Logger
}

func NewRetentionWorker(store application.Store, cfg config.RetentionConfig, logger *slog.Logger) *RetentionWorker {
	return &RetentionWorker{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

func (w *RetentionWorker) Start(ctx context.Context) {
	w.logger.Info("retention worker started",
		"interval", w.cfg.Interval,
		"archive_after", w.cfg.ArchiveAfter,
		"purge_after", w.cfg.PurgeAfter,
	)
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("retention worker stopping")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("retention cycle failed", "error", err)
			}
		}
	}
}

// RunOnce executes a single retention cycle. Losing the lease election
// to another instance is a skip, not an error.
func (w *RetentionWorker) RunOnce(ctx context.Context) error {
	release, acquired, err := w.store.AcquireRetentionLease(ctx)
	if err != nil {
		monitoring.RetentionCycles.WithLabelValues("failed").Inc()
		return err
	}
	if !acquired {
		w.logger.Debug("retention lease held elsewhere, skipping cycle")
		monitoring.RetentionCycles.WithLabelValues("skipped").Inc()
		return nil
	}
	defer release()

	// Cutoffs are fixed before the first batch so entries written while
	// the cycle runs are never eligible for it.
	now := time.Now().UTC()
	archiveCutoff := now.Add(-w.cfg.ArchiveAfter)
	purgeCutoff := now.Add(-w.cfg.PurgeAfter)

	archived, err := w.archive(ctx, archiveCutoff)
	if err != nil {
		monitoring.RetentionCycles.WithLabelValues("failed").Inc()
		return err
	}

	purged, err := w.purge(ctx, purgeCutoff)
	if err != nil {
		monitoring.RetentionCycles.WithLabelValues("failed").Inc()
		return err
	}

	verified, corrupt, err := w.verifySample(ctx, purgeCutoff)
	if err != nil {
		monitoring.RetentionCycles.WithLabelValues("failed").Inc()
		return err
	}

	w.recordCycle(ctx, archived, archiveCutoff, purged, purgeCutoff, verified, corrupt)

	monitoring.RetentionCycles.WithLabelValues("completed").Inc()
	w.logger.Info("retention cycle completed",
		"archived", archived,
		"purged", purged,
		"verified", verified,
		"corrupt", corrupt,
	)
	return nil
}

func (w *RetentionWorker) archive(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for {
		n, err := w.store.ArchiveAuditBefore(ctx, cutoff, w.cfg.BatchSize)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
		monitoring.ArchivedAuditEntries.Add(float64(n))
	}
}

func (w *RetentionWorker) purge(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for {
		n, err := w.store.PurgeArchivedBefore(ctx, cutoff, w.cfg.BatchSize)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
		monitoring.PurgedAuditEntries.Add(float64(n))
	}
}

// verifySample spot checks sensitive entries still inside the retention
// window by replaying the full chain of every sampled entity.
func (w *RetentionWorker) verifySample(ctx context.Context, since time.Time) (verified, corrupt int, err error) {
	sample, err := w.store.SampleSensitiveAudit(ctx, since, w.cfg.SampleSize)
	if err != nil {
		return 0, 0, err
	}

	entities := make(map[string]bool)
	for _, e := range sample {
		entities[e.EntityID] = true
	}

	for entityID := range entities {
		trail, err := w.store.GetAuditTrail(ctx, entityID)
		if err != nil {
			return verified, corrupt, err
		}
		if verr := domain.VerifyChain(trail); verr != nil {
			corrupt++
			monitoring.IntegrityFailures.Inc()
			w.logger.Error("audit chain verification failed",
				"entity_id", entityID,
				"category", string(application.CategorizeError(verr)),
				"error", verr)
			w.recordViolation(ctx, entityID, verr)
			continue
		}
		verified++
	}
	return verified, corrupt, nil
}

// recordCycle writes the cycle's outcome onto the retention audit chain.
func (w *RetentionWorker) recordCycle(
	ctx context.Context,
	archived int64, archiveCutoff time.Time,
	purged int64, purgeCutoff time.Time,
	verified, corrupt int,
) {
	err := w.store.WithinTx(ctx, func(ctx context.Context, tx application.TxStore) error {
		if archived > 0 {
			err := appendRetentionEntry(ctx, tx, domain.ActionRetentionArchived, map[string]any{
				"count":  archived,
				"cutoff": archiveCutoff.Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
		}
		if purged > 0 {
			err := appendRetentionEntry(ctx, tx, domain.ActionRetentionPurged, map[string]any{
				"count":  purged,
				"cutoff": purgeCutoff.Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
		}
		return appendRetentionEntry(ctx, tx, domain.ActionRetentionVerified, map[string]any{
			"verified": verified,
			"corrupt":  corrupt,
		})
	})
	if err != nil {
		w.logger.Error("failed to record retention cycle", "error", err)
	}
}

func (w *RetentionWorker) recordViolation(ctx context.Context, entityID string, verr error) {
	err := w.store.WithinTx(ctx, func(ctx context.Context, tx application.TxStore) error {
		return appendRetentionEntry(ctx, tx, domain.ActionSecurityViolation, map[string]any{
			"entity_id": entityID,
			"error":     verr.Error(),
		})
	})
	if err != nil {
		w.logger.Error("failed to record security violation",
			"entity_id", entityID,
			"error", err)
	}
}

func appendRetentionEntry(ctx context.Context, tx application.TxStore, action string, report map[string]any) error {
	after, _ := json.Marshal(report)
	entry, err := domain.NewAuditEntry(
		uuid.New().String(),
		domain.EntityAudit,
		retentionChainID,
		action,
		nil,
		after,
		action == domain.ActionSecurityViolation,
	)
	if err != nil {
		return err
	}
	return tx.AppendAuditEntry(ctx, entry)
}
