package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/banshee-data/dvstream/internal/config"
	"github.com/banshee-data/dvstream/internal/db"
	"github.com/banshee-data/dvstream/internal/dvs"
	"github.com/banshee-data/dvstream/internal/monitoring"
	"github.com/banshee-data/dvstream/internal/recording"
	"github.com/banshee-data/dvstream/internal/report"
	"github.com/banshee-data/dvstream/internal/tensor"
)

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [RECORDING]",
		Short: "Convert recorded events into windows and per-second frames",
		Long: `Convert a recording, or a session stored with --database-path and
--session, into sliding-window tensors and per-second frames.

The window pass is summarised on stdout. Each frame is written to the
output directory as a heatmap PNG, alongside activity.html charting event
counts per second.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runConvert,
	}
	addConfigFlags(cmd.Flags(), "window_size", "window_step", "reduction", "database_path")
	cmd.Flags().String("session", "", "session ID to read from the database")
	cmd.Flags().StringP("output", "o", ".", "directory for heatmaps and the activity chart")
	cmd.Flags().Int64("width", 0, "sensor width (0 = infer from events)")
	cmd.Flags().Int64("height", 0, "sensor height (0 = infer from events)")
	cmd.Flags().Bool("heatmaps", true, "write one heatmap per frame")
	return cmd
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	sessionID, _ := flags.GetString("session")
	outDir, _ := flags.GetString("output")
	width, _ := flags.GetInt64("width")
	height, _ := flags.GetInt64("height")
	heatmaps, _ := flags.GetBool("heatmaps")

	events, name, err := loadEvents(cmd.Context(), cfg, args, sessionID)
	if err != nil {
		return err
	}
	valid := dvs.FilterValid(events)
	if len(valid) == 0 {
		return fmt.Errorf("%s: no valid events", name)
	}

	inferredW, inferredH := extent(valid)
	if width == 0 {
		width = inferredW
	}
	if height == 0 {
		height = inferredH
	}

	seq, err := tensor.BuildWindows(events, cfg.WindowConfig(width, height))
	if err != nil {
		return &config.ConfigurationError{Field: "window", Reason: "unusable window", Err: err}
	}
	windows, entries, busiest := 0, 0, 0
	for w := range seq {
		windows++
		entries += w.Tensor.Len()
		busiest = max(busiest, w.Tensor.Len())
	}

	reduction, err := tensor.ParseReduction(cfg.Reduction)
	if err != nil {
		return &config.ConfigurationError{Field: "reduction", Reason: "unknown reduction", Err: err}
	}
	frames, err := tensor.FramesFromEventsWith(events, reduction)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	if heatmaps {
		for _, f := range frames {
			path := filepath.Join(outDir, fmt.Sprintf("frame_%04d.png", f.Second))
			if err := report.SaveFrameHeatmap(path, f); err != nil {
				return fmt.Errorf("frame %d: %w", f.Second, err)
			}
			monitoring.Debugf("wrote %s", path)
		}
	}
	chartPath := filepath.Join(outDir, "activity.html")
	if err := report.SaveActivityChart(chartPath, "Activity: "+name, frames); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d events (%d valid), %dx%d sensor\n", name, len(events), len(valid), width, height)
	fmt.Fprintf(out, "windows: %d of %dµs every %dµs, %d entries, busiest %d\n",
		windows, cfg.WindowSize, cfg.WindowStep, entries, busiest)
	fmt.Fprintf(out, "frames: %d (%s) written to %s\n", len(frames), reduction, outDir)
	return nil
}

// loadEvents reads the recording named in args or, with a session ID, the
// events stored for that session.
func loadEvents(ctx context.Context, cfg *config.Config, args []string, sessionID string) ([]dvs.PolarityEvent, string, error) {
	switch {
	case sessionID != "" && len(args) > 0:
		return nil, "", &config.ConfigurationError{Field: "session", Reason: "give either a recording or --session, not both"}
	case sessionID != "":
		id, err := uuid.Parse(sessionID)
		if err != nil {
			return nil, "", &config.ConfigurationError{Field: "session", Reason: "not a session ID", Err: err}
		}
		if cfg.DatabasePath == "" {
			return nil, "", &config.ConfigurationError{Field: "database_path", Reason: "required with --session"}
		}
		store, err := db.Open(cfg.DatabasePath)
		if err != nil {
			return nil, "", err
		}
		defer store.Close()
		if _, err := store.GetSession(ctx, id); err != nil {
			return nil, "", err
		}
		events, err := store.SessionEvents(ctx, id)
		return events, "session " + id.String(), err
	case len(args) == 1:
		events, err := recording.ReadFile(args[0])
		return events, filepath.Base(args[0]), err
	}
	return nil, "", errors.New("nothing to convert: give a recording or --session")
}

// extent is the smallest sensor that holds every event.
func extent(events []dvs.PolarityEvent) (width, height int64) {
	for _, ev := range events {
		width = max(width, int64(ev.X)+1)
		height = max(height, int64(ev.Y)+1)
	}
	return width, height
}
