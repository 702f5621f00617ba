package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nedwiyt/internal/amqp"
	"nedwiyt/internal/core"
	"nedwiyt/internal/log"
	"nedwiyt/internal/services"
	"nedwiyt/internal/sheets"
)

// Source produces the snapshot an export writes.
type Source interface {
	Snapshot(ctx context.Context) (sheets.Snapshot, error)
}

// ExportWorker mirrors the inventory into a spreadsheet whenever an event
// arrives and on a backup interval. Exports run one at a time.
type ExportWorker struct {
	source   Source
	exporter sheets.Exporter
	logger   *log.Logger
	now      func() time.Time

	mu          sync.Mutex
	lastStarted time.Time // start of the latest successful export
	exports     int
}

func NewExportWorker(source Source, exporter sheets.Exporter, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		source:   source,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
	}
}

// HandleEvent exports a fresh snapshot. Events that happened before the
// latest successful export started are already covered and are skipped,
// which collapses bursts of mutations into one write.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.InventoryEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.lastStarted.IsZero() && ev.OccurredAt.Before(w.lastStarted) {
		w.logger.DebugContext(ctx, "Event already covered by a newer export",
			log.FieldEventID, ev.ID,
			log.FieldEntity, ev.Entity)
		return nil
	}
	w.logger.InfoContext(ctx, "Processing inventory event",
		log.FieldEventID, ev.ID,
		log.FieldEntity, ev.Entity,
		log.FieldEntityID, ev.EntityID,
		"action", ev.Action)
	return w.exportLocked(ctx, ev.Action)
}

// Backup exports unconditionally. It is the safety net for lost messages.
func (w *ExportWorker) Backup(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exportLocked(ctx, amqp.ActionBackup)
}

// RunBackups calls Backup every interval until ctx is done. Failures are
// logged and the next tick tries again.
func (w *ExportWorker) RunBackups(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Backup(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Backup export failed", "error", err)
			}
		}
	}
}

// Exports is the number of successful exports so far.
func (w *ExportWorker) Exports() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exports
}

func (w *ExportWorker) exportLocked(ctx context.Context, reason string) error {
	started := w.now()
	snap, err := w.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	ref, err := w.exporter.Export(ctx, snap)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	w.lastStarted = started
	w.exports++
	w.logger.InfoContext(ctx, "Snapshot exported",
		log.FieldSheetsRef, ref,
		log.FieldOperation, log.OpExport,
		"reason", reason,
		log.FieldDuration, time.Since(started).Milliseconds())
	return nil
}

// StateSource reads snapshots through an InventoryState signed in with a
// dedicated account. The session is reused until it expires or is rejected.
type StateSource struct {
	state    *services.InventoryState
	email    string
	password string

	mu sync.Mutex
}

func NewStateSource(state *services.InventoryState, email, password string) *StateSource {
	return &StateSource{state: state, email: email, password: password}
}

func (s *StateSource) Snapshot(ctx context.Context) (sheets.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refresh(ctx); err != nil {
		return sheets.Snapshot{}, err
	}
	st := s.state
	return sheets.NewSnapshot(st.Categories(), st.StockItems(), st.Threshold(), st.Now()), nil
}

func (s *StateSource) refresh(ctx context.Context) error {
	session, ok := s.state.Session()
	if ok && !session.Expired(s.state.Now()) {
		err := s.state.Load(ctx)
		if !core.IsKind(err, core.KindAuth) {
			return err
		}
	}
	_, err := s.state.Login(ctx, s.email, s.password)
	return err
}
