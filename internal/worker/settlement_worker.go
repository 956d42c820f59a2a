// Package worker keeps settlement plans fresh outside the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"splitsmart/internal/amqp"
	"splitsmart/internal/core"
	"splitsmart/internal/log"
	"splitsmart/internal/services"
	"splitsmart/internal/sheets"
	"splitsmart/internal/storage"
)

// SettlementWorker recomputes a group's plan whenever its ledger changes and
// exports it when an exporter is configured.
type SettlementWorker struct {
	store       storage.Store
	settlements *services.SettlementService
	exporter    sheets.PlanExporter
	concurrency int64
	logger      *log.Logger
}

// NewSettlementWorker wires the worker. exporter may be nil.
func NewSettlementWorker(store storage.Store, settlements *services.SettlementService, exporter sheets.PlanExporter, concurrency int, logger *log.Logger) *SettlementWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SettlementWorker{
		store:       store,
		settlements: settlements,
		exporter:    exporter,
		concurrency: int64(concurrency),
		logger:      logger.WithComponent(log.ComponentWorker),
	}
}

// HandleExpenseRecorded processes a single ledger change message from AMQP.
// Returning an error requeues the message, so errors that a retry cannot fix
// are logged and swallowed.
func (w *SettlementWorker) HandleExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error {
	w.logger.InfoContext(ctx, "Processing expense recorded message",
		log.FieldGroupID, msg.GroupID,
		log.FieldExpenseID, msg.ExpenseID,
		"ledger_version", msg.LedgerVersion)

	err := w.syncGroup(ctx, msg.GroupID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		w.logger.WarnContext(ctx, "Dropping message for unknown group", log.FieldGroupID, msg.GroupID)
		return nil
	case errors.Is(err, core.ErrUnbalanced):
		w.logger.ErrorContext(ctx, "Skipping unbalanced group", log.FieldGroupID, msg.GroupID, log.FieldError, err)
		return nil
	default:
		return err
	}
}

// RefreshAll syncs every group with at most concurrency groups in flight.
// It is the backup for lost messages and runs at startup and on a timer.
func (w *SettlementWorker) RefreshAll(ctx context.Context) error {
	ids, err := w.store.ListGroupIDs(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	if len(ids) == 0 {
		w.logger.DebugContext(ctx, "No groups to refresh")
		return nil
	}

	var synced, failed atomic.Int64
	sem := semaphore.NewWeighted(w.concurrency)
	for _, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		id := id
		go func() {
			defer sem.Release(1)
			if err := w.syncGroup(ctx, id); err != nil {
				failed.Add(1)
				w.logger.ErrorContext(ctx, "Failed to refresh group", log.FieldGroupID, id, log.FieldError, err)
				return
			}
			synced.Add(1)
		}()
	}
	// Wait for the stragglers; this only fails if ctx is done.
	if err := sem.Acquire(context.WithoutCancel(ctx), w.concurrency); err == nil {
		sem.Release(w.concurrency)
	}

	w.logger.InfoContext(ctx, "Refresh completed",
		log.FieldOperation, log.OpRefresh,
		"total", len(ids),
		"synced", synced.Load(),
		"errors", failed.Load())

	return ctx.Err()
}

// Run refreshes every group once and then every interval until ctx is done.
func (w *SettlementWorker) Run(ctx context.Context, interval time.Duration) {
	if err := w.RefreshAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.ErrorContext(ctx, "Startup refresh failed", log.FieldError, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RefreshAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.ErrorContext(ctx, "Periodic refresh failed", log.FieldError, err)
			}
		}
	}
}

func (w *SettlementWorker) syncGroup(ctx context.Context, groupID string) error {
	plan, err := w.settlements.Plan(ctx, groupID)
	if err != nil {
		return fmt.Errorf("compute plan: %w", err)
	}
	if w.exporter == nil {
		return nil
	}

	group, err := w.store.GetGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}
	ref, err := w.exporter.ExportPlan(ctx, sheets.Snapshot{
		GroupID:       groupID,
		GroupName:     group.Name,
		LedgerVersion: plan.LedgerVersion,
		Transactions:  plan.Transactions,
		ComputedAt:    plan.ComputedAt,
	})
	if err != nil {
		return fmt.Errorf("export plan: %w", err)
	}

	w.logger.InfoContext(ctx, "Settlement plan exported",
		log.FieldGroupID, groupID,
		log.FieldTransactions, len(plan.Transactions),
		log.FieldSheetsRef, ref)
	return nil
}
