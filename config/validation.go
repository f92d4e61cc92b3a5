package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateConfig checks the configuration values and prepares the upload folder
// when the disk backend is selected
func ValidateConfig(cfg *Config) error {
	if err := ValidateSettings(cfg); err != nil {
		return err
	}

	if cfg.UploadBackend == "disk" {
		if err := ensureWritableDir(cfg.UploadFolder); err != nil {
			return ValidationError{Field: "UploadFolder", Message: err.Error()}
		}
	}

	return nil
}

// ValidateSettings checks the configuration values without touching the filesystem
func ValidateSettings(cfg *Config) error {
	var problems []string

	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			problems = append(problems, ValidationError{
				Field:   fe.Field(),
				Message: describe(fe),
			}.Error())
		}
	}

	if cfg.RetryInitialDelay < 0 {
		problems = append(problems, ValidationError{Field: "RetryInitialDelay", Message: "must not be negative"}.Error())
	}
	if cfg.RequestTimeout < 0 {
		problems = append(problems, ValidationError{Field: "RequestTimeout", Message: "must not be negative"}.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(problems, "\n"))
	}

	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// ensureWritableDir creates dir if missing and verifies a file can be written in it
func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory %q: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("upload directory %q is not writable: %w", dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}
