package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/banshee-data/dvstream/internal/config"
	"github.com/banshee-data/dvstream/internal/monitoring"
)

// configFlagUsage lists the configuration keys that can be set from the
// command line. Flag names use hyphens in place of underscores.
var configFlagUsage = map[string]string{
	"container_interval": "pause between synthetic containers",
	"buffer_size":        "events per container",
	"port":               "UDP port",
	"bind_address":       "address to listen on",
	"destination":        "host to stream to",
	"include_timestamp":  "carry the 32-bit timestamp with every event",
	"max_datagram_bytes": "payload budget per datagram",
	"max_packets":        "stop after this many datagrams (0 = unbounded)",
	"recording_path":     "append every event to this text log",
	"database_path":      "store the session and its events in this SQLite file",
	"capture_path":       "write received datagrams to this pcap file",
	"metrics_addr":       "serve Prometheus metrics on this address",
	"replay_speed":       "recording playback speed (1 = real time, 0 = no pacing)",
	"window_size":        "window length in microseconds",
	"window_step":        "window start spacing in microseconds",
	"reduction":          "how frames combine events on one pixel: sum, max or first",
	"verbose":            "log per-container and per-datagram detail",
}

func flagName(key string) string { return strings.ReplaceAll(key, "_", "-") }

// addConfigFlags registers flags for keys with the built-in defaults.
// Only flags the user sets override file and environment values.
func addConfigFlags(fs *pflag.FlagSet, keys ...string) {
	d := config.Default()
	for _, key := range keys {
		name, usage := flagName(key), configFlagUsage[key]
		switch key {
		case "container_interval":
			fs.Duration(name, d.ContainerInterval, usage)
		case "buffer_size":
			fs.Int(name, d.BufferSize, usage)
		case "port":
			fs.IntP(name, "p", d.Port, usage)
		case "bind_address":
			fs.String(name, d.BindAddress, usage)
		case "destination":
			fs.StringP(name, "d", d.Destination, usage)
		case "include_timestamp":
			fs.BoolP(name, "t", d.IncludeTimestamp, usage)
		case "max_datagram_bytes":
			fs.Int(name, d.MaxDatagramBytes, usage)
		case "max_packets":
			fs.IntP(name, "n", d.MaxPackets, usage)
		case "recording_path":
			fs.StringP(name, "r", d.RecordingPath, usage)
		case "database_path":
			fs.String(name, d.DatabasePath, usage)
		case "capture_path":
			fs.String(name, d.CapturePath, usage)
		case "metrics_addr":
			fs.String(name, d.MetricsAddr, usage)
		case "replay_speed":
			fs.Float64(name, d.ReplaySpeed, usage)
		case "window_size":
			fs.Int64(name, d.WindowSize, usage)
		case "window_step":
			fs.Int64(name, d.WindowStep, usage)
		case "reduction":
			fs.String(name, d.Reduction, usage)
		case "verbose":
			fs.BoolP(name, "v", d.Verbose, usage)
		}
	}
}

// configOverrides collects the configuration flags the user set.
func configOverrides(fs *pflag.FlagSet) map[string]any {
	out := make(map[string]any)
	fs.Visit(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if _, ok := configFlagUsage[key]; ok {
			out[key] = f.Value.String()
		}
	})
	return out
}

// loadConfig layers defaults, the --config file, environment and flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.LoadOptions{Path: path, Overrides: configOverrides(cmd.Flags())})
	if err != nil {
		return nil, err
	}
	monitoring.SetVerbose(cfg.Verbose)
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dvstream",
		Short:         "Stream and convert event-camera polarity events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "YAML configuration file (default $"+config.EnvConfigPath+")")
	addConfigFlags(root.PersistentFlags(), "verbose")

	root.AddCommand(newSendCmd(), newListenCmd(), newConvertCmd(), newVersionCmd())
	return root
}
