// Command analyze runs the image to recipes pipeline against a local photo
// and prints the result as JSON.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pageza/kitchen-assistant/backend/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(defaultServiceFactory).Run(ctx, os.Args); err != nil {
		logger.Setup("error", "text").Error("analyze failed", "error", err)
		stop()
		os.Exit(1)
	}
}
