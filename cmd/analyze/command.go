package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/pageza/kitchen-assistant/backend/config"
	"github.com/pageza/kitchen-assistant/backend/internal/logger"
	"github.com/pageza/kitchen-assistant/backend/internal/metrics"
	"github.com/pageza/kitchen-assistant/backend/internal/provider"
	"github.com/pageza/kitchen-assistant/backend/internal/recipe"
	"github.com/pageza/kitchen-assistant/backend/internal/retry"
	"github.com/pageza/kitchen-assistant/backend/internal/service"
	"github.com/pageza/kitchen-assistant/backend/internal/storage"
)

// serviceFactory builds the kitchen service from the loaded configuration.
type serviceFactory func(ctx context.Context, cfg *config.Config, l *slog.Logger) (service.IKitchenService, error)

func defaultServiceFactory(ctx context.Context, cfg *config.Config, l *slog.Logger) (service.IKitchenService, error) {
	p, err := provider.New(ctx, cfg, l)
	if err != nil {
		return nil, err
	}
	caller := retry.New(cfg.MaxRetries, cfg.RetryInitialDelay, l)
	caller.Observer = metrics.ObserveAttempt

	return service.NewKitchenService(p, caller, recipe.NewFormatter(nil), service.Options{
		Parallel: cfg.ParallelRecipes,
		Timeout:  cfg.RequestTimeout,
	}, l), nil
}

func newCommand(newService serviceFactory) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Detect the ingredients in a photo and generate recipes with them",
		Description: `Runs the same pipeline as POST /analyze against a local image file.
Provider credentials and models are read from the environment like the server does.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "image",
				Aliases:  []string{"i"},
				Usage:    "Path to a png, jpg or jpeg photo",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "recipes",
				Aliases: []string{"n"},
				Value:   1,
				Usage:   "Number of recipes to generate (1-3)",
			},
			&cli.StringFlag{
				Name:  "allergies",
				Usage: "Dietary restrictions to respect",
			},
			&cli.StringFlag{
				Name:  "main-ingredients",
				Usage: "Comma separated ingredients to add to the detected ones",
			},
			&cli.StringFlag{
				Name:  "cuisine",
				Usage: "Preferred cuisine style",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the JSON result to this file instead of stdout",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "log level (debug, info, warn, error)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			l := logger.New(os.Stderr, cmd.String("log-level"), "text")

			imagePath := cmd.String("image")
			cfg, err := config.LoadClientConfig()
			if err != nil {
				return err
			}
			if !cfg.IsAllowedExtension(imagePath) {
				return fmt.Errorf("unsupported image type: %s", imagePath)
			}

			svc, err := newService(ctx, cfg, l)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}

			out := cmd.Writer
			if out == nil {
				out = os.Stdout
			}
			if path := cmd.String("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() {
					if err := f.Close(); err != nil {
						l.Warn("failed to close output file", "error", err)
					}
				}()
				out = f
			}

			return run(ctx, svc, service.AnalyzeRequest{
				NumRecipes:      cmd.Int("recipes"),
				Allergies:       cmd.String("allergies"),
				MainIngredients: cmd.String("main-ingredients"),
				CuisineType:     cmd.String("cuisine"),
			}, imagePath, out)
		},
	}
}

// run encodes the image at imagePath, analyzes it and writes the result as
// indented JSON.
func run(ctx context.Context, svc service.IKitchenService, req service.AnalyzeRequest, imagePath string, out io.Writer) error {
	encoded, err := storage.EncodeFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	req.Image = provider.Image{Base64: encoded, MimeType: storage.MimeType(imagePath)}

	result, err := svc.Analyze(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}
