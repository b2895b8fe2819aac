package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budgeteer/internal/amqp"
	"budgeteer/internal/core"
	"budgeteer/internal/metrics"
	"budgeteer/internal/sheets"
)

// TipsGenerator regenerates and stores a user's tips.
type TipsGenerator interface {
	Generate(ctx context.Context, userID string) ([]core.Tip, error)
}

// ArchiveReader is the storage subset needed to export archives.
type ArchiveReader interface {
	GetUser(ctx context.Context, id string) (core.User, error)
	GetArchive(ctx context.Context, userID, id string) (core.PeriodArchive, error)
	ListArchives(ctx context.Context, userID string) ([]core.PeriodArchive, error)
}

// EventWorker handles domain events consumed from AMQP.
type EventWorker struct {
	tips     TipsGenerator
	archives ArchiveReader
	exporter sheets.ArchiveExporter
	logger   *slog.Logger
}

// NewEventWorker creates a worker. A nil exporter disables archive export.
func NewEventWorker(tips TipsGenerator, archives ArchiveReader, exporter sheets.ArchiveExporter, logger *slog.Logger) *EventWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventWorker{
		tips:     tips,
		archives: archives,
		exporter: exporter,
		logger:   logger,
	}
}

// Handle dispatches one event. Returning an error asks the consumer to
// redeliver; events about records that no longer exist are dropped.
func (w *EventWorker) Handle(ctx context.Context, e *amqp.Event) error {
	w.logger.InfoContext(ctx, "Processing event",
		"event_type", e.Type,
		"user_id", e.UserID)

	var err error
	switch e.Type {
	case amqp.EventTipsRefresh:
		err = w.handleTipsRefresh(ctx, e)
	case amqp.EventPeriodArchived:
		err = w.handlePeriodArchived(ctx, e)
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event type", "event_type", e.Type)
		metrics.EventProcessed(e.Type, "skipped")
		return nil
	}

	switch {
	case err == nil:
		metrics.EventProcessed(e.Type, "ok")
		return nil
	case errors.Is(err, core.ErrNotFound):
		w.logger.WarnContext(ctx, "Dropping event for missing record",
			"event_type", e.Type, "user_id", e.UserID, "error", err)
		metrics.EventProcessed(e.Type, "skipped")
		return nil
	default:
		metrics.EventProcessed(e.Type, "error")
		return err
	}
}

func (w *EventWorker) handleTipsRefresh(ctx context.Context, e *amqp.Event) error {
	out, err := w.tips.Generate(ctx, e.UserID)
	if err != nil {
		return fmt.Errorf("generate tips: %w", err)
	}
	source := ""
	if len(out) > 0 {
		source = out[0].Source
		metrics.TipsGenerated(source)
	}
	w.logger.InfoContext(ctx, "Tips refreshed",
		"user_id", e.UserID,
		"count", len(out),
		"tips_source", source)
	return nil
}

func (w *EventWorker) handlePeriodArchived(ctx context.Context, e *amqp.Event) error {
	if w.exporter == nil {
		w.logger.DebugContext(ctx, "No archive exporter configured, skipping export",
			"archive_id", e.ArchiveID)
		return nil
	}
	user, err := w.archives.GetUser(ctx, e.UserID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	a, err := w.archives.GetArchive(ctx, e.UserID, e.ArchiveID)
	if err != nil {
		return fmt.Errorf("get archive: %w", err)
	}
	return w.export(ctx, user, a)
}

// ExportHistory re-exports every archived period of a user, oldest first.
// It returns the number of rows written.
func (w *EventWorker) ExportHistory(ctx context.Context, userID string) (int, error) {
	if w.exporter == nil {
		return 0, errors.New("no archive exporter configured")
	}
	user, err := w.archives.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get user: %w", err)
	}
	archives, err := w.archives.ListArchives(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list archives: %w", err)
	}
	for i, a := range archives {
		if err := w.export(ctx, user, a); err != nil {
			return i, err
		}
	}
	return len(archives), nil
}

func (w *EventWorker) export(ctx context.Context, user core.User, a core.PeriodArchive) error {
	ref, err := w.exporter.ExportArchive(ctx, user, a)
	if err != nil {
		return fmt.Errorf("export archive %s: %w", a.ID, err)
	}
	metrics.ArchiveExported()
	w.logger.InfoContext(ctx, "Exported archived period",
		"user_id", user.ID,
		"archive_id", a.ID,
		"sheets_ref", ref)
	return nil
}
