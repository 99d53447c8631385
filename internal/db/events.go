package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/dvstream/internal/dvs"
	"github.com/banshee-data/dvstream/internal/wire"
)

// DefaultBatchSize is the number of events an EventWriter buffers per
// transaction.
const DefaultBatchSize = 4096

// InsertEvents stores events for a session in one transaction, numbering
// them from firstSeq.
func (db *DB) InsertEvents(ctx context.Context, id uuid.UUID, firstSeq int64, events []dvs.PolarityEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (session_id, seq, ts_us, x, y, polarity) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	sid := id.String()
	for i, ev := range events {
		if _, err := stmt.ExecContext(ctx, sid, firstSeq+int64(i), ev.Timestamp, ev.X, ev.Y, ev.Polarity); err != nil {
			return fmt.Errorf("insert event %d: %w", firstSeq+int64(i), err)
		}
	}
	return tx.Commit()
}

// SessionEvents returns the stored events of a session in insertion order.
func (db *DB) SessionEvents(ctx context.Context, id uuid.UUID) ([]dvs.PolarityEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT ts_us, x, y, polarity FROM events WHERE session_id = ? ORDER BY seq`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dvs.PolarityEvent
	for rows.Next() {
		ev := dvs.PolarityEvent{Valid: true}
		if err := rows.Scan(&ev.Timestamp, &ev.X, &ev.Y, &ev.Polarity); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// EventWriter batches events for one session. It satisfies
// wire.EventRecorder for senders and network.EventHandler for listeners.
type EventWriter struct {
	mu        sync.Mutex
	ctx       context.Context
	db        *DB
	id        uuid.UUID
	batchSize int
	pending   []dvs.PolarityEvent
	seq       int64
}

// NewEventWriter returns a writer for session id. Inserts run under ctx.
func (db *DB) NewEventWriter(ctx context.Context, id uuid.UUID, batchSize int) *EventWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &EventWriter{ctx: ctx, db: db, id: id, batchSize: batchSize}
}

// Record buffers one event, writing the batch once it is full.
func (w *EventWriter) Record(ev dvs.PolarityEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.add(ev)
}

// HandleEvents buffers events decoded by a listener.
func (w *EventWriter) HandleEvents(events []wire.DecodedEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range events {
		if err := w.add(d.Event()); err != nil {
			return err
		}
	}
	return nil
}

func (w *EventWriter) add(ev dvs.PolarityEvent) error {
	w.pending = append(w.pending, ev)
	if len(w.pending) >= w.batchSize {
		return w.flush()
	}
	return nil
}

// Flush writes any buffered events.
func (w *EventWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flush()
}

func (w *EventWriter) flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	if err := w.db.InsertEvents(w.ctx, w.id, w.seq, w.pending); err != nil {
		return err
	}
	w.seq += int64(len(w.pending))
	w.pending = w.pending[:0]
	return nil
}

// Written returns the number of events committed so far.
func (w *EventWriter) Written() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}
