package config

import (
	"fmt"
	"os"
	"slices"

	"github.com/go-playground/validator/v10"
)

// apiKeyEnvVars are consulted, in order, when no key is configured. The
// hosting environment commonly exports one of these.
var apiKeyEnvVars = []string{"GEMINI_API_KEY", "API_KEY"}

// Validate checks struct tags on the whole configuration tree.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// IsTextModel reports whether name is a selectable text model.
func IsTextModel(name string) bool {
	return slices.Contains(TextModels, name)
}

// IsImageModel reports whether name is a selectable image model.
func IsImageModel(name string) bool {
	return slices.Contains(ImageModels, name)
}

func lookupAPIKey() string {
	for _, name := range apiKeyEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
