package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/banshee-data/dvstream/internal/config"
	"github.com/banshee-data/dvstream/internal/db"
	"github.com/banshee-data/dvstream/internal/metrics"
	"github.com/banshee-data/dvstream/internal/network"
	"github.com/banshee-data/dvstream/internal/recording"
	"github.com/banshee-data/dvstream/internal/session"
	"github.com/banshee-data/dvstream/internal/source"
)

const progressEvery = 100 // containers between progress lines

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Stream events to a receiver over UDP",
		Long: `Stream polarity events to a receiver as UDP datagrams.

Events come from a recording (--input) or, by default, from a synthetic
sensor. Each container is split into datagrams of at most
--max-datagram-bytes; the last datagram of a container is always sent.`,
		Args: cobra.NoArgs,
		RunE: runSend,
	}
	addConfigFlags(cmd.Flags(),
		"destination", "port", "include_timestamp", "max_datagram_bytes", "max_packets",
		"buffer_size", "container_interval", "replay_speed",
		"recording_path", "database_path", "metrics_addr")
	cmd.Flags().StringP("input", "i", "", "replay this recording instead of generating events")
	cmd.Flags().Int("containers", 0, "stop after this many containers (0 = unbounded)")
	cmd.Flags().Uint16("width", 346, "synthetic sensor width")
	cmd.Flags().Uint16("height", 260, "synthetic sensor height")
	cmd.Flags().Int64("seed", 1, "synthetic generator seed")
	return cmd
}

func runSend(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	containers, _ := cmd.Flags().GetInt("containers")
	if containers < 0 {
		return &config.ConfigurationError{Field: "containers", Reason: fmt.Sprintf("must not be negative, got %d", containers)}
	}

	src, err := newEventSource(cfg, cmd.Flags())
	if err != nil {
		return err
	}

	m := metrics.NewManager()
	stopMetrics := serveMetrics(ctx, cfg.MetricsAddr, m)
	defer stopMetrics()

	sender, err := network.NewSender(network.SenderConfig{Destination: cfg.DestinationAddr()})
	if err != nil {
		return err
	}
	defer sender.Close()

	id := uuid.New()
	out, err := openOutputs(ctx, cfg, db.SessionRecord{
		ID:               id,
		Mode:             db.ModeSend,
		Peer:             sender.Destination(),
		IncludeTimestamp: cfg.IncludeTimestamp,
		StartedAt:        time.Now(),
	})
	if err != nil {
		return err
	}

	opts := []session.Option{session.WithSessionID(id), session.WithObserver(m)}
	if out.active() {
		opts = append(opts, session.WithRecorder(out))
	}
	ctrl, err := session.New(session.Config{
		Layout:        cfg.Layout(),
		MaxPackets:    cfg.MaxPackets,
		MaxContainers: containers,
		LogEvery:      progressEvery,
	}, src, sender, opts...)
	if err != nil {
		return errors.Join(err, out.close(db.Totals{}))
	}

	sum, runErr := ctrl.Run(ctx)
	closeErr := out.close(db.Totals{
		Containers: int64(sum.Containers),
		Events:     int64(sum.Events),
		Datagrams:  int64(sum.Datagrams),
		Bytes:      int64(sum.Bytes),
	})

	fmt.Fprintf(cmd.OutOrStdout(), "session %s to %s: %s; %d containers, %d events (%d skipped), %d datagrams, %s bytes\n",
		id, sender.Destination(), stopReason(sum.Reason), sum.Containers, sum.Events, sum.Skipped,
		sum.Datagrams, network.FormatWithCommas(int64(sum.Bytes)))
	return errors.Join(runErr, closeErr)
}

func stopReason(r session.StopReason) string {
	if r == "" {
		return "failed"
	}
	return string(r)
}

// newEventSource replays --input when given and otherwise generates
// events.
func newEventSource(cfg *config.Config, flags *pflag.FlagSet) (source.EventSource, error) {
	if input, _ := flags.GetString("input"); input != "" {
		events, err := recording.ReadFile(input)
		if err != nil {
			return nil, err
		}
		return source.NewReplay(events, source.ReplayConfig{ContainerSize: cfg.BufferSize, Speed: cfg.ReplaySpeed})
	}

	width, _ := flags.GetUint16("width")
	height, _ := flags.GetUint16("height")
	seed, _ := flags.GetInt64("seed")
	syn, err := source.NewSynthetic(source.SyntheticConfig{
		Width:         width,
		Height:        height,
		ContainerSize: cfg.BufferSize,
		Interval:      cfg.ContainerInterval,
		Seed:          seed,
	})
	if err != nil {
		return nil, &config.ConfigurationError{Field: "width", Reason: "unusable synthetic sensor", Err: err}
	}
	return syn, nil
}
