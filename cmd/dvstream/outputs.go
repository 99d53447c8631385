package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/dvstream/internal/config"
	"github.com/banshee-data/dvstream/internal/db"
	"github.com/banshee-data/dvstream/internal/dvs"
	"github.com/banshee-data/dvstream/internal/metrics"
	"github.com/banshee-data/dvstream/internal/monitoring"
	"github.com/banshee-data/dvstream/internal/network"
	"github.com/banshee-data/dvstream/internal/recording"
	"github.com/banshee-data/dvstream/internal/wire"
)

// outputs fans events out to the text log and the session database, either
// of which may be disabled. It records sent events and handles received
// ones.
type outputs struct {
	log     *recording.Writer
	logPath string
	store   *db.DB
	events  *db.EventWriter
	rec     db.SessionRecord
}

// openOutputs opens what cfg enables and registers rec in the database.
// Database writes are not tied to ctx so that a cancelled session still
// stores what it did.
func openOutputs(ctx context.Context, cfg *config.Config, rec db.SessionRecord) (*outputs, error) {
	o := &outputs{rec: rec}
	if cfg.RecordingPath != "" {
		w, err := recording.Create(cfg.RecordingPath)
		if err != nil {
			return nil, err
		}
		o.log, o.logPath = w, cfg.RecordingPath
	}
	if cfg.DatabasePath != "" {
		store, err := db.Open(cfg.DatabasePath)
		if err != nil {
			o.closeLog()
			return nil, err
		}
		dbCtx := context.WithoutCancel(ctx)
		if err := store.CreateSession(dbCtx, rec); err != nil {
			store.Close()
			o.closeLog()
			return nil, err
		}
		o.store = store
		o.events = store.NewEventWriter(dbCtx, rec.ID, 0)
	}
	return o, nil
}

func (o *outputs) active() bool { return o.log != nil || o.events != nil }

func (o *outputs) Record(ev dvs.PolarityEvent) error {
	if o.log != nil {
		if err := o.log.Record(ev); err != nil {
			return err
		}
	}
	if o.events != nil {
		return o.events.Record(ev)
	}
	return nil
}

func (o *outputs) HandleEvents(events []wire.DecodedEvent) error {
	if o.log != nil {
		if err := o.log.HandleEvents(events); err != nil {
			return err
		}
	}
	if o.events != nil {
		return o.events.HandleEvents(events)
	}
	return nil
}

func (o *outputs) closeLog() error {
	if o.log == nil {
		return nil
	}
	n := o.log.Count()
	if err := o.log.Close(); err != nil {
		return fmt.Errorf("close recording: %w", err)
	}
	monitoring.Logf("Recorded %s events to %s", network.FormatWithCommas(int64(n)), o.logPath)
	return nil
}

// close flushes everything and stores the final totals.
func (o *outputs) close(t db.Totals) error {
	errs := []error{o.closeLog()}
	if o.store != nil {
		errs = append(errs, o.events.Flush())
		errs = append(errs, o.store.FinishSession(context.Background(), o.rec.ID, time.Now(), t))
		errs = append(errs, o.store.Close())
	}
	return errors.Join(errs...)
}

// receiveTally counts received traffic for the session totals and forwards
// every observation to the metrics.
type receiveTally struct {
	next      network.DatagramObserver
	datagrams atomic.Int64
	bytes     atomic.Int64
	events    atomic.Int64
}

func (t *receiveTally) ObserveReceived(bytes, events int) {
	t.datagrams.Add(1)
	t.bytes.Add(int64(bytes))
	t.events.Add(int64(events))
	t.next.ObserveReceived(bytes, events)
}

func (t *receiveTally) ObserveMalformed() { t.next.ObserveMalformed() }

func (t *receiveTally) totals() db.Totals {
	return db.Totals{Events: t.events.Load(), Datagrams: t.datagrams.Load(), Bytes: t.bytes.Load()}
}

// serveMetrics exposes m on addr until the returned stop function is
// called. An empty addr serves nothing.
func serveMetrics(ctx context.Context, addr string, m *metrics.Manager) (stop func()) {
	if addr == "" {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.Serve(ctx, addr); err != nil {
			monitoring.Logf("Metrics server failed: %v", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
