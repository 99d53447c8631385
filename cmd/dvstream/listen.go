package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/banshee-data/dvstream/internal/config"
	"github.com/banshee-data/dvstream/internal/db"
	"github.com/banshee-data/dvstream/internal/metrics"
	"github.com/banshee-data/dvstream/internal/monitoring"
	"github.com/banshee-data/dvstream/internal/network"
)

func newListenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Receive and decode event datagrams",
		Long: `Receive UDP event datagrams, decode them and store the events.

By default the timestamp mode is read from the first event of every
datagram. --replay decodes a pcap capture instead of opening a socket.`,
		Args: cobra.NoArgs,
		RunE: runListen,
	}
	addConfigFlags(cmd.Flags(),
		"bind_address", "port", "recording_path", "database_path", "capture_path", "metrics_addr")
	cmd.Flags().String("timestamps", "auto", "timestamp mode: auto, on or off")
	cmd.Flags().String("replay", "", "decode datagrams from this pcap file instead of the network")
	cmd.Flags().Duration("stats-interval", time.Minute, "how often to log traffic statistics")
	return cmd
}

// parseTimestampMode maps --timestamps to the listener's fixed mode; nil
// means detect per datagram.
func parseTimestampMode(s string) (*bool, error) {
	on, off := true, false
	switch s {
	case "auto", "":
		return nil, nil
	case "on":
		return &on, nil
	case "off":
		return &off, nil
	}
	return nil, &config.ConfigurationError{Field: "timestamps", Reason: fmt.Sprintf("want auto, on or off, got %q", s)}
}

func runListen(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	modeFlag, _ := flags.GetString("timestamps")
	mode, err := parseTimestampMode(modeFlag)
	if err != nil {
		return err
	}
	replayPath, _ := flags.GetString("replay")
	interval, _ := flags.GetDuration("stats-interval")

	m := metrics.NewManager()
	stopMetrics := serveMetrics(ctx, cfg.MetricsAddr, m)
	defer stopMetrics()

	peer := cfg.ListenAddr()
	if replayPath != "" {
		peer = replayPath
	}
	id := uuid.New()
	out, err := openOutputs(ctx, cfg, db.SessionRecord{
		ID:               id,
		Mode:             db.ModeListen,
		Peer:             peer,
		IncludeTimestamp: mode != nil && *mode,
		StartedAt:        time.Now(),
	})
	if err != nil {
		return err
	}

	tally := &receiveTally{next: m}
	lcfg := network.ListenerConfig{
		Address:          cfg.ListenAddr(),
		LogInterval:      interval,
		IncludeTimestamp: mode,
		Observer:         tally,
		Stats:            network.NewPacketStats(),
	}
	if out.active() {
		lcfg.Handler = out
	}

	var capture *network.CaptureWriter
	if cfg.CapturePath != "" {
		f, cw, err := createCapture(cfg)
		if err != nil {
			return errors.Join(err, out.close(db.Totals{}))
		}
		defer f.Close()
		capture, lcfg.Capture = cw, cw
	}

	listener := network.NewListener(lcfg)
	if replayPath != "" {
		err = replayCapture(ctx, listener, replayPath, cfg.Port)
	} else {
		err = listener.Start(ctx)
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	totals := tally.totals()
	closeErr := out.close(totals)
	if capture != nil {
		monitoring.Logf("Captured %d datagrams to %s", capture.Count(), cfg.CapturePath)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session %s from %s: %d datagrams, %d events, %s bytes\n",
		id, peer, totals.Datagrams, totals.Events, network.FormatWithCommas(totals.Bytes))
	return errors.Join(err, closeErr)
}

func createCapture(cfg *config.Config) (*os.File, *network.CaptureWriter, error) {
	dst, err := net.ResolveUDPAddr("udp", cfg.ListenAddr())
	if err != nil {
		return nil, nil, &config.ConfigurationError{Field: "bind_address", Reason: "cannot resolve", Err: err}
	}
	f, err := os.Create(cfg.CapturePath)
	if err != nil {
		return nil, nil, err
	}
	cw, err := network.NewCaptureWriter(f, dst)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, cw, nil
}

func replayCapture(ctx context.Context, l *network.Listener, path string, port int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return l.Replay(ctx, f, port)
}
