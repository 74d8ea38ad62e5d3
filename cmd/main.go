// Command ecoaudit measures the energy and carbon cost of training or running ML models.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/huh"
)

// Version is set at build time.
var Version = "dev"

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.Version = Version
	if err := fang.Execute(ctx, root); err != nil {
		// A cancelled prompt is not a failure.
		if errors.Is(err, huh.ErrUserAborted) {
			return
		}
		stop()
		os.Exit(1)
	}
}
