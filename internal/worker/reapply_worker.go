// Package worker processes queued rule re-application jobs.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"lucid/internal/amqp"
	"lucid/internal/ingest"
	applog "lucid/internal/log"
)

// RuleApplier is the slice of the ingestion service the worker needs.
type RuleApplier interface {
	ApplyRules(ctx context.Context, ownerID int64) (ingest.ApplyResult, error)
}

type ReapplyWorker struct {
	applier RuleApplier
}

func NewReapplyWorker(applier RuleApplier) *ReapplyWorker {
	return &ReapplyWorker{applier: applier}
}

// HandleMessage processes one queued job. An error requeues the message,
// which is safe: rule application is idempotent.
func (w *ReapplyWorker) HandleMessage(ctx context.Context, msg *amqp.ReapplyRulesMessage) error {
	slog.InfoContext(ctx, "Processing reapply-rules job",
		applog.FieldJobID, msg.JobID,
		applog.FieldOwnerID, msg.OwnerID)

	result, err := w.applier.ApplyRules(ctx, msg.OwnerID)
	if err != nil {
		return fmt.Errorf("apply rules for owner %d: %w", msg.OwnerID, err)
	}

	slog.InfoContext(ctx, "Reapply-rules job completed",
		applog.FieldJobID, msg.JobID,
		applog.FieldOwnerID, msg.OwnerID,
		"scanned", result.Scanned,
		"updated", result.Updated)
	return nil
}
