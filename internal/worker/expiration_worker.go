// Package worker holds the gateway's background loops.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hackload-kz/payment-sub008/internal/application"
	"github.com/hackload-kz/payment-sub008/internal/application/services"
)

// ExpirationWorker sweeps payments whose authorization deadline passed
// and moves them to their terminal expired status.
type ExpirationWorker struct {
	store     application.Store
	payments  *services.PaymentService
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewExpirationWorker(
	store application.Store,
	payments *services.PaymentService,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *ExpirationWorker {
	return &ExpirationWorker{
		store:     store,
		payments:  payments,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (w *ExpirationWorker) Start(ctx context.Context) {
	w.logger.Info("expiration worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiration worker stopping")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("expiration processing failed", "error", err)
			}
		}
	}
}

// RunOnce executes a single expiration sweep.
func (w *ExpirationWorker) RunOnce(ctx context.Context) error {
	expired, err := w.store.ListExpiredPayments(ctx, time.Now().UTC(), w.batchSize)
	if err != nil {
		return err
	}

	if len(expired) == 0 {
		return nil
	}

	var processed, marked int

	for _, p := range expired {
		processed++
		if _, err := w.payments.Expire(ctx, p.ID); err != nil {
			// Losing the race to another writer is fine; the next sweep
			// sees whatever status won.
			switch application.CategorizeError(err) {
			case application.CategoryConflict, application.CategoryPermanent:
				continue
			}
			w.logger.Error("failed to expire payment",
				"payment_id", p.ID,
				"code", application.ToErrorCode(err),
				"error", err)
			continue
		}
		marked++
	}

	w.logger.Info("processed expiration check",
		"processed", processed,
		"marked_expired", marked)

	return nil
}
