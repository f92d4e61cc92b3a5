package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/pageza/kitchen-assistant/backend/internal/logger"
	"github.com/pageza/kitchen-assistant/backend/internal/retry"
)

const geminiName = "gemini"

// GeminiConfig configures a GeminiProvider.
type GeminiConfig struct {
	APIKey      string
	ImageModel  string
	RecipeModel string
}

// GeminiProvider talks to the Gemini API through the genai SDK.
type GeminiProvider struct {
	client      *genai.Client
	imageModel  string
	recipeModel string
	logger      *slog.Logger
}

// NewGeminiProvider creates a new GeminiProvider instance
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, l *slog.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key must be set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		imageModel:  cfg.ImageModel,
		recipeModel: cfg.RecipeModel,
		logger:      logger.OrDefault(l),
	}, nil
}

// DescribeImage implements Provider.
func (g *GeminiProvider) DescribeImage(ctx context.Context, img Image, instruction string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(img.Base64)
	if err != nil {
		return "", fmt.Errorf("gemini: invalid image payload: %w", err)
	}

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{
			{Text: instruction},
			{InlineData: &genai.Blob{Data: data, MIMEType: img.MimeType}},
		},
	}}

	return g.generate(ctx, g.imageModel, contents, nil)
}

// Complete implements Provider.
func (g *GeminiProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	temperature := float32(recipeTemperature)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		Temperature:       &temperature,
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}

	return g.generate(ctx, g.recipeModel, contents, cfg)
}

func (g *GeminiProvider) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", geminiError(ctx, err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", &APIError{
			Provider: geminiName,
			Type:     string(candidate.FinishReason),
			Message:  "content blocked by safety filters",
			class:    retry.Fatal,
		}
	}
	if candidate.Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

func geminiError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newAPIError(geminiName, apiErr.Code, apiErr.Status, "", apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return newAPIError(geminiName, apiErrPtr.Code, apiErrPtr.Status, "", apiErrPtr.Message)
	}

	return retry.Remote(fmt.Errorf("gemini: %w", err))
}
