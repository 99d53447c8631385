// Command dvstream streams event-camera polarity events over UDP, receives
// them back, and converts recordings into windows and per-second frames.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/dvstream/internal/config"
	"github.com/banshee-data/dvstream/internal/network"
)

// Process exit statuses.
const (
	exitOK        = 0
	exitFailure   = 1
	exitConfig    = 2
	exitTransport = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dvstream: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, config.ErrConfiguration):
		return exitConfig
	case errors.Is(err, network.ErrTransport):
		return exitTransport
	default:
		return exitFailure
	}
}
