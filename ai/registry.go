package ai

import (
	"context"
	"fmt"

	"github.com/askql/askql/config"
)

// ProviderType is the closed set of provider variants. Call sites
// select providers through this enum and the factory below, never by
// matching strings.
type ProviderType int

const (
	ProviderLocal ProviderType = iota
	ProviderOpenAI
	ProviderAnthropic
	ProviderCompatible
)

func (t ProviderType) String() string {
	switch t {
	case ProviderLocal:
		return "local"
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderCompatible:
		return "compatible"
	default:
		return "unknown"
	}
}

// ParseProviderType maps a config tag to a ProviderType.
func ParseProviderType(s string) (ProviderType, error) {
	switch s {
	case "local", "":
		return ProviderLocal, nil
	case "openai":
		return ProviderOpenAI, nil
	case "anthropic":
		return ProviderAnthropic, nil
	case "compatible":
		return ProviderCompatible, nil
	default:
		return 0, fmt.Errorf("unknown AI provider %q. Supported: local, openai, anthropic, compatible", s)
	}
}

// SupportedProviders lists available provider tags for display.
var SupportedProviders = []string{"local", "openai", "anthropic", "compatible"}

// NewProvider constructs a provider of the given type from its typed
// config section. The provider is returned uninitialized; callers run
// Initialize (or TestConnection) before generating.
func NewProvider(t ProviderType, cfg config.AIConfig) (Provider, error) {
	switch t {
	case ProviderOpenAI:
		return NewOpenAIStyle(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL), nil
	case ProviderAnthropic:
		return NewAnthropicStyle(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.BaseURL), nil
	case ProviderCompatible:
		return NewOpenAICompatible(cfg.Compatible.BaseURL, cfg.Compatible.Model, cfg.Compatible.APIKey), nil
	case ProviderLocal:
		model := cfg.Local.Model
		if model == "" {
			model = LocalModelCatalog[0].ID
		}
		return NewLocalInference(NewCannedEngine(), model), nil
	default:
		return nil, fmt.Errorf("unknown provider type %d", t)
	}
}

// TestConnection initializes the provider, surfacing the probe result.
func TestConnection(ctx context.Context, p Provider) error {
	return p.Initialize(ctx)
}
