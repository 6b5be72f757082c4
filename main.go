package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/locvowork/employee_roster/internal/bootstrap"
	"github.com/locvowork/employee_roster/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := bootstrap.NewApp()
	if err := app.Initialize(ctx); err != nil {
		logger.ErrorErr(ctx, err, "Failed to initialize app")
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.ErrorErr(ctx, err, "Roster console stopped")
		os.Exit(1)
	}
	logger.InfoLog(ctx, "Roster console stopped")
}
