// Package llm wraps the Gemini API behind a small tiered client. Callers pick
// a tier; Config maps tiers to concrete models and output limits.
package llm

import "maps"

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for cheap tasks: summarizing a README, classifying a repo
	TierLite ModelTier = "lite"
	// TierStandard is for structured output over moderate input
	TierStandard ModelTier = "standard"
	// TierAdvanced is for full repository analysis with recommendations
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider
const ProviderGemini Provider = "gemini"

// reviewerInstruction frames every request as a code review.
const reviewerInstruction = "You are a senior engineer reviewing a GitHub repository for a developer portfolio. " +
	"Be specific, cite files by path, and never invent files that were not shown to you."

// Config holds the model configuration for the application
type Config struct {
	Provider  Provider
	Models    map[ModelTier]string
	MaxTokens map[ModelTier]int32 // zero or missing: provider default

	Temperature       float32
	SystemInstruction string
}

// DefaultConfig returns the Gemini configuration used by the analysis service.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		MaxTokens: map[ModelTier]int32{
			TierLite:     1024,
			TierStandard: 4096,
			TierAdvanced: 8192,
		},
		Temperature:       0.2,
		SystemInstruction: reviewerInstruction,
	}
}

// ConfigForModel returns the default configuration with every tier pinned to
// model. An empty model leaves the defaults untouched.
func ConfigForModel(model string) *Config {
	cfg := DefaultConfig()
	if model == "" {
		return cfg
	}
	for tier := range cfg.Models {
		cfg = cfg.WithModel(tier, model)
	}
	return cfg
}

// GetModel returns the model for tier, falling back to standard and then lite.
func (c *Config) GetModel(tier ModelTier) string {
	for _, t := range []ModelTier{tier, TierStandard, TierLite} {
		if model, ok := c.Models[t]; ok && model != "" {
			return model
		}
	}
	return ""
}

// WithModel returns a copy of c with tier mapped to model.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := *c
	next.Models = maps.Clone(c.Models)
	if next.Models == nil {
		next.Models = map[ModelTier]string{}
	}
	next.Models[tier] = model
	next.MaxTokens = maps.Clone(c.MaxTokens)
	return &next
}
