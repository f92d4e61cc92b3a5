package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pageza/kitchen-assistant/backend/internal/logger"
	"github.com/pageza/kitchen-assistant/backend/internal/metrics"
	"github.com/pageza/kitchen-assistant/backend/internal/provider"
	"github.com/pageza/kitchen-assistant/backend/internal/recipe"
	"github.com/pageza/kitchen-assistant/backend/internal/retry"
)

const (
	MinRecipes = 1
	MaxRecipes = 3
)

var (
	// ErrNoIngredients is returned when neither the image nor the request
	// produced a single ingredient.
	ErrNoIngredients = errors.New("no ingredients detected")
	// ErrVisionFailed wraps the provider error of a failed image analysis.
	ErrVisionFailed = errors.New("image analysis failed")
)

// IKitchenService defines the interface for the image to recipes pipeline
type IKitchenService interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error)
}

// AnalyzeRequest is one photo plus the user's preferences.
type AnalyzeRequest struct {
	Image           provider.Image
	NumRecipes      int
	Allergies       string
	MainIngredients string
	CuisineType     string
}

// AnalyzeResult holds the merged ingredient list and one HTML fragment per
// recipe that was generated. Recipes may be fewer than requested.
type AnalyzeResult struct {
	Ingredients []string `json:"ingredients"`
	Recipes     []string `json:"recipes"`
}

// Options tunes KitchenService.
type Options struct {
	// Parallel generates the requested recipes concurrently.
	Parallel bool
	// Timeout bounds a whole Analyze call, retries included. Zero disables it.
	Timeout time.Duration
}

// KitchenService turns a fridge photo into formatted recipes
type KitchenService struct {
	provider  provider.Provider
	caller    *retry.Caller
	formatter *recipe.Formatter
	opts      Options
	logger    *slog.Logger
}

// NewKitchenService creates a new KitchenService instance
func NewKitchenService(p provider.Provider, caller *retry.Caller, formatter *recipe.Formatter, opts Options, l *slog.Logger) *KitchenService {
	if formatter == nil {
		formatter = recipe.NewFormatter(nil)
	}
	return &KitchenService{
		provider:  p,
		caller:    caller,
		formatter: formatter,
		opts:      opts,
		logger:    logger.OrDefault(l),
	}
}

// ClampRecipeCount bounds n to [MinRecipes, MaxRecipes].
func ClampRecipeCount(n int) int {
	if n < MinRecipes {
		return MinRecipes
	}
	if n > MaxRecipes {
		return MaxRecipes
	}
	return n
}

// Analyze detects the ingredients in req.Image and generates up to
// req.NumRecipes recipes from them. A recipe whose generation fails is
// skipped; only a failed image analysis or an empty ingredient list fails
// the whole call.
func (s *KitchenService) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	start := time.Now()
	defer func() { metrics.AnalyzeDuration.Observe(time.Since(start).Seconds()) }()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	numRecipes := ClampRecipeCount(req.NumRecipes)
	s.logger.InfoContext(ctx, "analyzing image",
		"num_recipes", numRecipes,
		"allergies", req.Allergies,
		"main_ingredients", req.MainIngredients,
		"cuisine_type", req.CuisineType)

	raw, err := retry.Do(ctx, s.caller, "vision", func(ctx context.Context) (string, error) {
		return s.provider.DescribeImage(ctx, req.Image, recipe.VisionInstruction)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVisionFailed, err)
	}

	ingredients := recipe.MergeIngredients(
		recipe.ParseIngredients(raw),
		recipe.ParseIngredients(req.MainIngredients),
	)
	s.logger.InfoContext(ctx, "detected ingredients", "ingredients", ingredients)
	if len(ingredients) == 0 {
		return nil, ErrNoIngredients
	}

	prompt := recipe.BuildPrompt(ingredients, req.Allergies, req.CuisineType)

	var recipes []string
	if s.opts.Parallel {
		recipes = s.generateParallel(ctx, prompt, ingredients, numRecipes)
	} else {
		recipes = s.generateSequential(ctx, prompt, ingredients, numRecipes)
	}

	return &AnalyzeResult{Ingredients: ingredients, Recipes: recipes}, nil
}

func (s *KitchenService) generateSequential(ctx context.Context, prompt string, ingredients []string, n int) []string {
	recipes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			s.logger.WarnContext(ctx, "request deadline reached, skipping remaining recipes",
				"generated", len(recipes),
				"requested", n)
			metrics.RecipesSkipped.Add(float64(n - i))
			break
		}
		if html, ok := s.generateOne(ctx, prompt, ingredients, i); ok {
			recipes = append(recipes, html)
		}
	}
	return recipes
}

// generateParallel runs every generation concurrently and keeps the results
// in request order.
func (s *KitchenService) generateParallel(ctx context.Context, prompt string, ingredients []string, n int) []string {
	results := make([]string, n)
	ok := make([]bool, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			results[i], ok[i] = s.generateOne(ctx, prompt, ingredients, i)
			return nil
		})
	}
	_ = g.Wait()

	recipes := make([]string, 0, n)
	for i := range results {
		if ok[i] {
			recipes = append(recipes, results[i])
		}
	}
	return recipes
}

// generateOne requests recipe number index and formats it. It reports false
// when the recipe must be skipped.
func (s *KitchenService) generateOne(ctx context.Context, prompt string, ingredients []string, index int) (string, bool) {
	operation := fmt.Sprintf("recipe_%d", index+1)
	text, err := retry.Do(ctx, s.caller, operation, func(ctx context.Context) (string, error) {
		return s.provider.Complete(ctx, recipe.SystemMessage, prompt)
	})
	if err != nil {
		metrics.RecipesSkipped.Inc()
		s.logger.ErrorContext(ctx, "recipe generation failed, skipping",
			"recipe", index+1,
			"error", err)
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		metrics.RecipesSkipped.Inc()
		s.logger.WarnContext(ctx, "recipe generation returned no text, skipping", "recipe", index+1)
		return "", false
	}

	metrics.RecipesGenerated.Inc()
	return s.formatter.Format(text, ingredients), true
}
