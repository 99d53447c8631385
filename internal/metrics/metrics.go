// Package metrics exposes Prometheus counters for streaming sessions and
// listeners.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/dvstream/internal/monitoring"
	"github.com/banshee-data/dvstream/internal/wire"
)

const defaultNamespace = "dvstream"

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace overrides the metric name prefix.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry registers metrics on r instead of a private registry.
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithBuckets sets the events-per-datagram histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// Manager owns the session and listener metrics. It satisfies
// network.DatagramObserver and session.Observer.
type Manager struct {
	namespace string
	registry  *prometheus.Registry
	buckets   []float64

	eventsEncoded     prometheus.Counter
	eventsSkipped     prometheus.Counter
	datagramsSent     prometheus.Counter
	bytesSent         prometheus.Counter
	containers        prometheus.Counter
	datagramsReceived prometheus.Counter
	bytesReceived     prometheus.Counter
	malformedPackets  prometheus.Counter
	eventsPerDatagram prometheus.Histogram
}

// NewManager creates and registers all metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: defaultNamespace,
		buckets:   prometheus.LinearBuckets(0, 16, 9),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(m.registry)
	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{Namespace: m.namespace, Name: name, Help: help})
	}
	m.eventsEncoded = counter("events_encoded_total", "Valid events packed into datagrams.")
	m.eventsSkipped = counter("events_skipped_total", "Invalid events dropped by the encoder.")
	m.datagramsSent = counter("datagrams_sent_total", "Datagrams handed to the transport.")
	m.bytesSent = counter("bytes_sent_total", "Payload bytes handed to the transport.")
	m.containers = counter("containers_total", "Event containers encoded by sessions.")
	m.datagramsReceived = counter("datagrams_received_total", "Datagrams decoded by listeners.")
	m.bytesReceived = counter("bytes_received_total", "Payload bytes decoded by listeners.")
	m.malformedPackets = counter("malformed_packets_total", "Received datagrams that failed to decode.")
	m.eventsPerDatagram = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "events_per_datagram",
		Help:      "Events carried by each received datagram.",
		Buckets:   m.buckets,
	})
	return m
}

// Registry returns the registry the metrics live in.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// ObserveContainer records one encoded container.
func (m *Manager) ObserveContainer(s wire.EncodeStats) {
	m.containers.Inc()
	m.eventsEncoded.Add(float64(s.Events))
	m.eventsSkipped.Add(float64(s.Skipped))
	m.datagramsSent.Add(float64(s.Datagrams))
	m.bytesSent.Add(float64(s.Bytes))
}

// ObserveReceived records one decoded datagram.
func (m *Manager) ObserveReceived(bytes, events int) {
	m.datagramsReceived.Inc()
	m.bytesReceived.Add(float64(bytes))
	m.eventsPerDatagram.Observe(float64(events))
}

// ObserveMalformed records a datagram that failed to decode.
func (m *Manager) ObserveMalformed() {
	m.malformedPackets.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Manager) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("Metrics listening on %s/metrics", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
