package worker

import (
	"context"
	"fmt"
	"log/slog"

	"sumal/internal/amqp"
	"sumal/internal/core"
	"sumal/internal/ledger"
	"sumal/internal/storage"
)

// RecordSource is the slice of the SQLite repository the mirror worker needs.
type RecordSource interface {
	GetRecord(ctx context.Context, id int64) (core.Record, error)
	PendingMirror(ctx context.Context, limit int) ([]storage.PendingMirrorRecord, error)
	MarkMirrored(ctx context.Context, id int64) error
	MarkMirrorError(ctx context.Context, id int64) error
}

// MirrorWorker copies ledger records from SQLite to the CSV interchange file.
type MirrorWorker struct {
	source    RecordSource
	mirror    ledger.Store
	batchSize int
}

func NewMirrorWorker(source RecordSource, mirror ledger.Store, batchSize int) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &MirrorWorker{
		source:    source,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleMessage processes a single record-appended message from AMQP.
func (w *MirrorWorker) HandleMessage(ctx context.Context, msg *amqp.RecordAppendedMessage) error {
	slog.InfoContext(ctx, "Processing mirror message", "id", msg.ID)

	if err := w.mirrorRecord(ctx, msg.ID); err != nil {
		return fmt.Errorf("mirror record: %w", err)
	}
	return nil
}

// ProcessPending mirrors records that never got a message delivered.
// This is a backup mechanism in case AMQP messages are lost.
func (w *MirrorWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.source.PendingMirror(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending records: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending mirror records", "count", len(pending))

	for _, p := range pending {
		if err := w.mirrorRecord(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror record", "id", p.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupCheck drains the pending queue at worker startup, covering records
// appended while the worker was down. Uses a larger batch than the sweep.
func (w *MirrorWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.source.PendingMirror(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending records for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending mirror records found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending mirror records on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, p := range pending {
		if err := w.mirrorRecord(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror record on startup",
				"id", p.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup mirror check complete",
		"success", successCount,
		"errors", errorCount)

	return nil
}

func (w *MirrorWorker) mirrorRecord(ctx context.Context, id int64) error {
	rec, err := w.source.GetRecord(ctx, id)
	if err != nil {
		if markErr := w.source.MarkMirrorError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark mirror error", "id", id, "error", markErr)
		}
		return fmt.Errorf("get record %d: %w", id, err)
	}

	if _, err := w.mirror.Append(ctx, rec); err != nil {
		if markErr := w.source.MarkMirrorError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark mirror error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append record %d to mirror: %w", id, err)
	}

	if err := w.source.MarkMirrored(ctx, id); err != nil {
		return fmt.Errorf("mark record %d as mirrored: %w", id, err)
	}

	slog.InfoContext(ctx, "Mirrored record", "id", id)
	return nil
}
