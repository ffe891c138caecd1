package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/livinlefevreloca/wotdaily/cmd/wotdaily/app"
	"github.com/livinlefevreloca/wotdaily/internal/vehicles"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	status := vehicles.StatusOK
	err := app.NewWotDailyCommand(ctx, &status).Execute()
	stop()

	if err != nil {
		os.Exit(1)
	}
	os.Exit(status.ExitCode())
}
