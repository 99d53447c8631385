package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dvstream/internal/wire"
)

func TestManager_ObserveContainer(t *testing.T) {
	m := NewManager()
	m.ObserveContainer(wire.EncodeStats{Events: 130, Skipped: 2, Datagrams: 2, Bytes: 520})
	m.ObserveContainer(wire.EncodeStats{Events: 1, Datagrams: 1, Bytes: 4})

	assert.Equal(t, 131.0, promtest.ToFloat64(m.eventsEncoded))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.eventsSkipped))
	assert.Equal(t, 3.0, promtest.ToFloat64(m.datagramsSent))
	assert.Equal(t, 524.0, promtest.ToFloat64(m.bytesSent))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.containers))
}

func TestManager_ObserveReceived(t *testing.T) {
	m := NewManager()
	m.ObserveReceived(512, 128)
	m.ObserveReceived(8, 2)
	m.ObserveMalformed()

	assert.Equal(t, 2.0, promtest.ToFloat64(m.datagramsReceived))
	assert.Equal(t, 520.0, promtest.ToFloat64(m.bytesReceived))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.malformedPackets))
	assert.Equal(t, 1, promtest.CollectAndCount(m.eventsPerDatagram))
}

func TestManager_SharedRegistryAndNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewManager(WithRegistry(reg), WithNamespace("dvs_test"), WithBuckets([]float64{1, 64, 128}))
	assert.Same(t, reg, m.Registry())

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "dvs_test_events_per_datagram")

	// A second manager on the same registry collides.
	assert.Panics(t, func() { NewManager(WithRegistry(reg), WithNamespace("dvs_test")) })
}

func TestManager_Handler(t *testing.T) {
	m := NewManager()
	m.ObserveContainer(wire.EncodeStats{Events: 3, Datagrams: 1, Bytes: 12})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, "dvstream_events_encoded_total 3"), text)
	assert.Contains(t, text, "dvstream_datagrams_sent_total 1")
	assert.Contains(t, text, "dvstream_malformed_packets_total 0")
}
