package config

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for invalid values.
//
// Struct tags drive most of the validation; cross-field rules that tags
// cannot express live here.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("invalid configuration: %s", formatValidationErrors(errs))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Inference.BaseURL != "" {
		if _, err := url.Parse(cfg.Inference.BaseURL); err != nil {
			return fmt.Errorf("invalid inference base URL %q: %w", cfg.Inference.BaseURL, err)
		}
	}
	if cfg.Library.BaseURL != "" {
		if _, err := url.Parse(cfg.Library.BaseURL); err != nil {
			return fmt.Errorf("invalid library base URL %q: %w", cfg.Library.BaseURL, err)
		}
	}
	if cfg.Library.BaseURL != "" && cfg.Library.APIKey == "" {
		return fmt.Errorf("library.api_key is required when library.base_url is set")
	}
	return nil
}

// formatValidationErrors turns validator output into a readable message.
func formatValidationErrors(errs validator.ValidationErrors) string {
	msg := ""
	for i, fieldErr := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("field %s failed rule %q", fieldErr.Namespace(), fieldErr.Tag())
	}
	return msg
}
