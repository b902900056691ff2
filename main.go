package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/beanbocchi/nimbus/internal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := internal.NewConfig()
	internal.SetupLogger(cfg.Log)

	if err := internal.Start(ctx, cfg); err != nil {
		slog.Error("emulator exited with error", "error", err)
		os.Exit(1)
	}
}
