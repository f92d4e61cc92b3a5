package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultMaxContentLength = 16 * 1024 * 1024

// Config holds all configuration for the application
type Config struct {
	Environment Environment

	// Server configuration
	ServerHost         string
	ServerPort         string   `validate:"required,numeric"`
	LogLevel           string   `validate:"oneof=debug info warn error"`
	LogFormat          string   `validate:"oneof=json text"`
	CORSAllowedOrigins []string `validate:"min=1"`

	// Model provider configuration
	AIProvider      string `validate:"oneof=openai gemini"`
	OpenAIAPIKey    string `validate:"required_if=AIProvider openai"`
	OpenAIBaseURL   string `validate:"omitempty,url"`
	GeminiAPIKey    string `validate:"required_if=AIProvider gemini"`
	ImageModel      string `validate:"required"`
	RecipeModel     string `validate:"required"`
	ProviderTimeout time.Duration

	// Remote call orchestration
	MaxRetries        int `validate:"gte=1"`
	RetryInitialDelay time.Duration
	RequestTimeout    time.Duration
	ParallelRecipes   bool

	// Upload configuration
	MaxContentLength  int64    `validate:"gt=0"`
	UploadBackend     string   `validate:"oneof=disk s3"`
	UploadFolder      string   `validate:"required_if=UploadBackend disk"`
	S3BucketName      string   `validate:"required_if=UploadBackend s3"`
	AWSRegion         string
	AllowedExtensions []string `validate:"min=1,dive,required"`

	// Rate limiting configuration
	RateLimitPerMinute int `validate:"gte=0"`
	RateLimitPerHour   int `validate:"gte=0"`
	RedisURL           string
}

// LoadConfig creates a new Config instance with values from environment variables,
// an optional config file (CONFIG_FILE) and Docker secrets
func LoadConfig() (*Config, error) {
	return load(ValidateConfig)
}

// LoadClientConfig loads the configuration like LoadConfig but leaves the upload
// folder alone, for tools that never receive uploads
func LoadClientConfig() (*Config, error) {
	return load(ValidateSettings)
}

func load(validateFn func(*Config) error) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}

	if err := validateFn(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", "5000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("cors_allowed_origins", "*")

	v.SetDefault("ai_provider", "openai")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_api_key_file", "")
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_api_key_file", "")
	v.SetDefault("provider_timeout", "60s")

	v.SetDefault("max_retries", 3)
	v.SetDefault("retry_initial_delay", "1s")
	v.SetDefault("request_timeout", "3m")
	v.SetDefault("parallel_recipes", false)

	v.SetDefault("max_content_length", "")
	v.SetDefault("upload_backend", "disk")
	v.SetDefault("upload_folder", "temp_uploads")
	v.SetDefault("s3_bucket_name", "")
	v.SetDefault("aws_region", "")
	v.SetDefault("allowed_extensions", "png,jpg,jpeg")

	v.SetDefault("rate_limit_per_minute", 10)
	v.SetDefault("rate_limit_per_hour", 50)
	v.SetDefault("redis_url", "")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment:        GetEnvironment(),
		ServerHost:         v.GetString("server_host"),
		ServerPort:         v.GetString("server_port"),
		LogLevel:           strings.ToLower(v.GetString("log_level")),
		LogFormat:          strings.ToLower(v.GetString("log_format")),
		CORSAllowedOrigins: splitList(v.GetString("cors_allowed_origins")),

		AIProvider:      strings.ToLower(v.GetString("ai_provider")),
		OpenAIBaseURL:   strings.TrimRight(v.GetString("openai_base_url"), "/"),
		ProviderTimeout: v.GetDuration("provider_timeout"),

		MaxRetries:        v.GetInt("max_retries"),
		RetryInitialDelay: v.GetDuration("retry_initial_delay"),
		RequestTimeout:    v.GetDuration("request_timeout"),
		ParallelRecipes:   v.GetBool("parallel_recipes"),

		MaxContentLength:  parseContentLength(v.GetString("max_content_length")),
		UploadBackend:     strings.ToLower(v.GetString("upload_backend")),
		UploadFolder:      v.GetString("upload_folder"),
		S3BucketName:      v.GetString("s3_bucket_name"),
		AWSRegion:         v.GetString("aws_region"),
		AllowedExtensions: splitList(strings.ToLower(v.GetString("allowed_extensions"))),

		RateLimitPerMinute: v.GetInt("rate_limit_per_minute"),
		RateLimitPerHour:   v.GetInt("rate_limit_per_hour"),
		RedisURL:           v.GetString("redis_url"),
	}

	cfg.ImageModel = modelOrDefault(v.GetString("image_model"), cfg.AIProvider)
	cfg.RecipeModel = modelOrDefault(v.GetString("recipe_model"), cfg.AIProvider)

	var err error
	if cfg.OpenAIAPIKey, err = resolveSecret(v, "openai_api_key"); err != nil {
		return nil, err
	}
	if cfg.GeminiAPIKey, err = resolveSecret(v, "gemini_api_key"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// modelOrDefault picks the stock model for the provider when none is configured
func modelOrDefault(model, provider string) string {
	if model = strings.TrimSpace(model); model != "" {
		return model
	}
	if provider == "gemini" {
		return "gemini-2.0-flash"
	}
	return "gpt-4o-mini"
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}

// IsAllowedExtension reports whether filename carries one of the configured extensions
func (c *Config) IsAllowedExtension(filename string) bool {
	dot := strings.LastIndex(filename, ".")
	if dot < 0 {
		return false
	}
	ext := strings.ToLower(filename[dot+1:])
	for _, allowed := range c.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// resolveSecret looks up a secret from the environment, then from the file named by
// <KEY>_FILE, then from the Docker secrets directory
func resolveSecret(v *viper.Viper, key string) (string, error) {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		return value, nil
	}

	if file := v.GetString(key + "_file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s file: %w", strings.ToUpper(key), err)
		}
		value := strings.TrimSpace(string(data))
		if value == "" {
			return "", fmt.Errorf("%s file is empty", strings.ToUpper(key))
		}
		return value, nil
	}

	return readSecret(key), nil
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	secretPath := filepath.Join(secretsDir, name)
	if data, err := os.ReadFile(secretPath); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}

// parseContentLength keeps only the digits of raw so values such as
// "16777216 # 16MB" written in .env files still parse
func parseContentLength(raw string) int64 {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return defaultMaxContentLength
	}
	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil || n <= 0 {
		return defaultMaxContentLength
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
