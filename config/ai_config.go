// Package config — AI provider configuration.
//
// AI settings are stored in ~/.askql/config.json alongside connection
// profiles. Each provider variant gets its own typed section; which
// section applies is selected by the Provider tag, never by probing
// which optional fields happen to be set. API keys can also come from
// environment variables (OPENAI_API_KEY, ANTHROPIC_API_KEY).
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// AIConfig holds the AI provider selection and per-variant settings.
type AIConfig struct {
	Provider   string           `json:"provider"` // "local", "openai", "anthropic", "compatible"
	OpenAI     OpenAIConfig     `json:"openai"`
	Anthropic  AnthropicConfig  `json:"anthropic"`
	Compatible CompatibleConfig `json:"compatible"`
	Local      LocalConfig      `json:"local"`
}

// OpenAIConfig holds hosted OpenAI settings. BaseURL is only set when
// targeting a self-hosted deployment of the same API.
type OpenAIConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
}

// AnthropicConfig holds hosted Anthropic settings.
type AnthropicConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
}

// CompatibleConfig holds settings for OpenAI-compatible self-hosted
// servers (Ollama, vLLM, llama.cpp, LM Studio). BaseURL and Model are
// required; the key is optional.
type CompatibleConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key,omitempty"`
}

// LocalConfig holds in-process local inference settings.
type LocalConfig struct {
	Model string `json:"model"`
}

// AppConfig is the top-level config file structure (~/.askql/config.json).
type AppConfig struct {
	AI AIConfig `json:"ai"`
}

// DefaultAIConfig returns sensible defaults.
func DefaultAIConfig() AIConfig {
	return AIConfig{
		Provider: "local",
		OpenAI: OpenAIConfig{
			Model: "gpt-4o",
		},
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Compatible: CompatibleConfig{
			BaseURL: "http://localhost:11434/v1",
			Model:   "llama3.2",
		},
		Local: LocalConfig{
			Model: "qwen2.5-coder-1.5b",
		},
	}
}

// LoadAppConfig reads ~/.askql/config.json; returns defaults if not found.
func LoadAppConfig() (*AppConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return defaultAppConfig(), nil
	}

	path := filepath.Join(homeDir, ".askql", "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultAppConfig(), nil
		}
		return nil, err
	}

	cfg := defaultAppConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Env vars override file config
	if envKey := os.Getenv("OPENAI_API_KEY"); envKey != "" {
		cfg.AI.OpenAI.APIKey = envKey
	}
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		cfg.AI.Anthropic.APIKey = envKey
	}
	if envURL := os.Getenv("ASKQL_COMPATIBLE_URL"); envURL != "" {
		cfg.AI.Compatible.BaseURL = envURL
	}
	if envModel := os.Getenv("ASKQL_COMPATIBLE_MODEL"); envModel != "" {
		cfg.AI.Compatible.Model = envModel
	}
	if envProvider := os.Getenv("ASKQL_AI_PROVIDER"); envProvider != "" {
		cfg.AI.Provider = envProvider
	}

	return cfg, nil
}

// SaveAppConfig writes the config to ~/.askql/config.json.
func SaveAppConfig(cfg *AppConfig) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	dir := filepath.Join(homeDir, ".askql")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0600)
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		AI: DefaultAIConfig(),
	}
}
