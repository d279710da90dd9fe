package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/openscrutiny/tallyx/app/scores"
	"github.com/openscrutiny/tallyx/pkg/utils"
)

func main() {
	utils.LoadDotEnv()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	app := scores.Initialize(ctx)

	serverErr := scores.NewServer(app)
	if serverErr != nil {
		app.Logger.Fatal("Unable to initialize server", zap.Error(serverErr))
	}

	app.Start(ctx)
}
