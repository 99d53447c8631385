package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dvstream/internal/config"
	"github.com/banshee-data/dvstream/internal/dvs"
	"github.com/banshee-data/dvstream/internal/network"
	"github.com/banshee-data/dvstream/internal/recording"
	"github.com/banshee-data/dvstream/internal/testutil"
	"github.com/banshee-data/dvstream/internal/wire"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvConfigPath, "")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func writeRecording(t *testing.T, path string, events []dvs.PolarityEvent) {
	t.Helper()
	w, err := recording.Create(path)
	require.NoError(t, err)
	for _, ev := range events {
		require.NoError(t, w.Record(ev))
	}
	require.NoError(t, w.Close())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"configuration", &config.ConfigurationError{Field: "port", Reason: "bad"}, exitConfig},
		{"transport", &network.TransportError{Op: "dial", Addr: "x", Err: errors.New("refused")}, exitTransport},
		{"wrapped transport", fmt.Errorf("session: %w", &network.TransportError{Op: "send", Err: errors.New("boom")}), exitTransport},
		{"joined configuration", errors.Join(errors.New("other"), &config.ConfigurationError{Reason: "bad"}), exitConfig},
		{"other", errors.New("disk full"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestConfigOverrides_OnlyChangedConfigFlags(t *testing.T) {
	cmd := newSendCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "5000", "-t", "--seed", "9", "--container-interval", "25ms"}))

	got := configOverrides(cmd.Flags())
	want := map[string]any{"port": "5000", "include_timestamp": "true", "container_interval": "25ms"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("overrides mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTimestampMode(t *testing.T) {
	mode, err := parseTimestampMode("auto")
	require.NoError(t, err)
	assert.Nil(t, mode)

	mode, err = parseTimestampMode("on")
	require.NoError(t, err)
	require.NotNil(t, mode)
	assert.True(t, *mode)

	mode, err = parseTimestampMode("off")
	require.NoError(t, err)
	require.NotNil(t, mode)
	assert.False(t, *mode)

	_, err = parseTimestampMode("sometimes")
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestCommands_ConfigurationErrors(t *testing.T) {
	_, err := execute(t, "send", "--port", "0")
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCode(err))

	_, err = execute(t, "listen", "--timestamps", "sometimes")
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCode(err))

	_, err = execute(t, "convert", "--reduction", "median", "missing.log")
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCode(err))
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "dvstream "), out)
}

func TestSend_StreamsRecordingAndStoresSession(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.log")
	dbPath := filepath.Join(dir, "sessions.db")
	events := testutil.EvenlySpaced(300, 1_000, 10, 64, 64)
	writeRecording(t, input, events)

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()
	port := conn.LocalAddr().(*net.UDPAddr).Port

	out, err := execute(t, "send",
		"--input", input, "--replay-speed", "0", "--buffer-size", "100",
		"--destination", "127.0.0.1", "--port", strconv.Itoa(port),
		"--include-timestamp", "--database-path", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "source exhausted; 3 containers, 300 events (0 skipped), 6 datagrams")

	// 100 events of 8 bytes per container: one full datagram of 64 and a
	// flushed remainder of 36.
	var got []dvs.PolarityEvent
	buf := make([]byte, wire.MaxUDPPayload)
	for range 6 {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		n, _, err := conn.ReadFromUDP(buf)
		require.NoError(t, err)
		decoded, err := wire.DecodeDatagram(buf[:n], true)
		require.NoError(t, err)
		for _, d := range decoded {
			got = append(got, d.Event())
		}
	}
	if diff := cmp.Diff(events, got); diff != "" {
		t.Errorf("received events mismatch (-want +got):\n%s", diff)
	}

	fields := strings.Fields(out)
	require.GreaterOrEqual(t, len(fields), 2)
	id := fields[1]

	outDir := filepath.Join(dir, "frames")
	out, err = execute(t, "convert", "--database-path", dbPath, "--session", id, "-o", outDir, "--heatmaps=false")
	require.NoError(t, err)
	assert.Contains(t, out, "session "+id+": 300 events (300 valid), 64x5 sensor")
	assert.Contains(t, out, "frames: 1 (sum)")
	assert.FileExists(t, filepath.Join(outDir, "activity.html"))
}

func TestListen_ReplaysCaptureIntoRecording(t *testing.T) {
	dir := t.TempDir()
	capturePath := filepath.Join(dir, "in.pcap")
	logPath := filepath.Join(dir, "out.log")
	events := testutil.EvenlySpaced(130, 5_000, 1_000, 32, 32)

	f, err := os.Create(capturePath)
	require.NoError(t, err)
	cw, err := network.NewCaptureWriter(f, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: wire.DefaultPort})
	require.NoError(t, err)
	src := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
	sink := wire.DatagramSinkFunc(func(payload []byte) error {
		return cw.WriteDatagram(payload, time.Unix(1700000000, 0), src)
	})
	enc, err := wire.NewEncoder(wire.Layout{IncludeTimestamp: true, MaxDatagramBytes: wire.DefaultMaxDatagramBytes}, sink)
	require.NoError(t, err)
	_, err = enc.EncodeContainer(events)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, err := execute(t, "listen", "--replay", capturePath, "--recording-path", logPath)
	require.NoError(t, err)
	assert.Contains(t, out, "3 datagrams, 130 events")

	got, err := recording.ReadFile(logPath)
	require.NoError(t, err)
	if diff := cmp.Diff(events, got); diff != "" {
		t.Errorf("recorded events mismatch (-want +got):\n%s", diff)
	}
}

func TestConvert_WritesFramesAndChart(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "walk.log")
	// 250 events 10ms apart cover seconds 0, 1 and 2.
	writeRecording(t, input, testutil.EvenlySpaced(250, 0, 10_000, 16, 16))

	outDir := filepath.Join(dir, "out")
	out, err := execute(t, "convert", input, "-o", outDir, "--reduction", "max")
	require.NoError(t, err)

	assert.Contains(t, out, "walk.log: 250 events (250 valid), 16x16 sensor")
	// Windows start every 50ms while the start is before the last event
	// minus one window.
	assert.Contains(t, out, "windows: 49 of 50000µs every 50000µs")
	assert.Contains(t, out, "frames: 3 (max)")
	for _, name := range []string{"frame_0000.png", "frame_0001.png", "frame_0002.png", "activity.html"} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}
}

func TestConvert_NeedsInput(t *testing.T) {
	_, err := execute(t, "convert")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to convert")

	_, err = execute(t, "convert", "a.log", "--session", "3f1c2a4e-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, config.ErrConfiguration)
}
