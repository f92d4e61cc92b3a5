package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pageza/kitchen-assistant/backend/internal/logger"
	"github.com/pageza/kitchen-assistant/backend/internal/retry"
)

const (
	openAIName         = "openai"
	visionMaxTokens    = 2000
	recipeMaxTokens    = 2500
	recipeTemperature  = 0.8
	defaultHTTPTimeout = 60 * time.Second
)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ImageModel  string
	RecipeModel string
	Timeout     time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// OpenAIProvider talks to an OpenAI compatible chat completions endpoint.
type OpenAIProvider struct {
	apiKey      string
	apiURL      string
	imageModel  string
	recipeModel string
	client      *http.Client
	logger      *slog.Logger
}

// NewOpenAIProvider creates a new OpenAIProvider instance
func NewOpenAIProvider(cfg OpenAIConfig, l *slog.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key must be set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &OpenAIProvider{
		apiKey:      cfg.APIKey,
		apiURL:      strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		imageModel:  cfg.ImageModel,
		recipeModel: cfg.RecipeModel,
		client:      client,
		logger:      logger.OrDefault(l),
	}, nil
}

// chatMessage content is either a string or a list of contentParts.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// DescribeImage implements Provider.
func (p *OpenAIProvider) DescribeImage(ctx context.Context, img Image, instruction string) (string, error) {
	return p.chat(ctx, chatRequest{
		Model: p.imageModel,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: instruction},
				{Type: "image_url", ImageURL: &imageURL{URL: img.DataURL()}},
			},
		}},
		MaxTokens: visionMaxTokens,
	})
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	temperature := recipeTemperature
	return p.chat(ctx, chatRequest{
		Model: p.recipeModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   recipeMaxTokens,
		Temperature: &temperature,
	})
}

func (p *OpenAIProvider) chat(ctx context.Context, reqBody chatRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return "", p.transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", p.transportError(ctx, err)
	}

	p.logger.DebugContext(ctx, "chat completion response",
		"model", reqBody.Model,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp.StatusCode, body)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return result.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return timeoutError(openAIName, err)
	}
	return retry.Remote(fmt.Errorf("openai: request failed: %w", err))
}

func decodeAPIError(status int, body []byte) *APIError {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Message == "" {
		return newAPIError(openAIName, status, http.StatusText(status), "", strings.TrimSpace(string(body)))
	}
	code := ""
	if parsed.Error.Code != nil {
		code = fmt.Sprint(parsed.Error.Code)
	}
	return newAPIError(openAIName, status, parsed.Error.Type, code, parsed.Error.Message)
}
