// Package worker mirrors transaction change events into the audit sheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"soldi/internal/amqp"
	"soldi/internal/sheets"
)

// AuditAppender appends one mirrored event row.
type AuditAppender interface {
	AppendAudit(ctx context.Context, entry sheets.AuditEntry) (rowRef string, err error)
}

// MirrorWorker consumes transaction change events and appends an audit row
// per event. Append failures propagate so the broker redelivers the event.
type MirrorWorker struct {
	appender AuditAppender
	logger   *slog.Logger
}

func NewMirrorWorker(appender AuditAppender, logger *slog.Logger) *MirrorWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorWorker{appender: appender, logger: logger}
}

// HandleEvent processes a single transaction change event.
func (w *MirrorWorker) HandleEvent(ctx context.Context, event *amqp.TransactionEvent) error {
	w.logger.InfoContext(ctx, "Mirroring transaction event",
		"action", event.Action,
		"transaction_id", event.TransactionID)

	ref, err := w.appender.AppendAudit(ctx, sheets.AuditEntry{
		Action:        event.Action,
		TransactionID: event.TransactionID,
		OwnerID:       event.OwnerID,
		Timestamp:     event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}

	w.logger.InfoContext(ctx, "Mirrored transaction event",
		"action", event.Action,
		"transaction_id", event.TransactionID,
		"row_ref", ref)
	return nil
}
