// Package provider adapts remote model APIs to the two calls the kitchen
// assistant needs: describing an image and completing a text prompt.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pageza/kitchen-assistant/backend/config"
	"github.com/pageza/kitchen-assistant/backend/internal/retry"
)

// ErrEmptyResponse is returned when the provider answered without any text.
var ErrEmptyResponse = errors.New("provider returned an empty response")

// Image is an encoded upload ready to send to a vision model.
type Image struct {
	Base64   string
	MimeType string
}

// DataURL renders the image as a data URL.
func (i Image) DataURL() string {
	mime := i.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + i.Base64
}

// Provider is a chat-style model API. Implementations are safe for
// concurrent use.
type Provider interface {
	// DescribeImage sends the image together with instruction to the vision model.
	DescribeImage(ctx context.Context, img Image, instruction string) (string, error)
	// Complete sends a system message and a user prompt to the text model.
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// APIError is a failed provider response with structured status information.
type APIError struct {
	Provider   string
	StatusCode int
	Type       string
	Code       string
	Message    string

	class retry.Classification
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: status %d (%s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
}

// Classification implements retry.Classifier.
func (e *APIError) Classification() retry.Classification {
	return e.class
}

// newAPIError builds an APIError classified from its status code and error type.
func newAPIError(provider string, status int, errType, code, message string) *APIError {
	return &APIError{
		Provider:   provider,
		StatusCode: status,
		Type:       errType,
		Code:       code,
		Message:    message,
		class:      classifyStatus(status, errType, code),
	}
}

func timeoutError(provider string, err error) *APIError {
	return &APIError{Provider: provider, Message: err.Error(), class: retry.Timeout}
}

func classifyStatus(status int, errType, code string) retry.Classification {
	// an exhausted quota is reported as 429 but does not clear on retry
	if errType == "insufficient_quota" || code == "insufficient_quota" {
		return retry.Fatal
	}
	switch {
	case status == http.StatusTooManyRequests:
		return retry.RateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return retry.Timeout
	case status >= 500:
		return retry.ServerError
	case status == 0:
		return retry.Unknown
	default:
		return retry.Fatal
	}
}

// New builds the provider selected by cfg.AIProvider.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Provider, error) {
	switch cfg.AIProvider {
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			ImageModel:  cfg.ImageModel,
			RecipeModel: cfg.RecipeModel,
			Timeout:     cfg.ProviderTimeout,
		}, logger)
	case "gemini":
		return NewGeminiProvider(ctx, GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			ImageModel:  cfg.ImageModel,
			RecipeModel: cfg.RecipeModel,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}
}
