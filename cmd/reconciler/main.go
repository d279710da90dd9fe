package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/openscrutiny/tallyx/app/reconciler"
	"github.com/openscrutiny/tallyx/pkg/utils"
)

func main() {
	utils.LoadDotEnv()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := reconciler.Initialize(ctx)
	if err != nil {
		panic(err)
	}

	// Immediate pass before cron
	app.ReconcileOnce(ctx)

	// Start cron scheduler
	app.StartCron()

	// Setup server
	app.SetupServer()

	// Start server
	app.Start(ctx)
}
