// Package ai decides whether an announcement is relevant to a usage profile
// by consulting an external LLM endpoint. Each classification is stateless
// and independent, so calls are parallel-safe by construction.
package ai

import (
	"context"
	"fmt"

	"github.com/rowanlabs/cloudbrief/internal/models"
)

// Classifier is the interface all LLM providers implement.
//
// Classify always returns a usable verdict: when the provider call fails
// after retries, or its response cannot be parsed, the verdict degrades to
// not-relevant and the error describes why. A missed announcement is an
// acceptable failure mode; a crashed run is not.
type Classifier interface {
	Classify(ctx context.Context, ann models.Announcement, profile *models.UsageProfile) (models.Verdict, error)
}

// ProviderConfig holds the configuration needed to create a classifier.
type ProviderConfig struct {
	Provider string // "anthropic" | "openai"
	APIKey   string
	Model    string
}

// NewClassifier creates the appropriate provider based on config.
func NewClassifier(cfg ProviderConfig) (Classifier, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.Model), nil
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}
