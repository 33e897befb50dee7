// Package config provides the configuration schema and loader for Everloom.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("config: duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Backend selects an LLM backend implementation.
type Backend string

const (
	BackendOpenAI    Backend = "openai"
	BackendAnthropic Backend = "anthropic"
	BackendGemini    Backend = "gemini"
	BackendOllama    Backend = "ollama"
	BackendMistral   Backend = "mistral"
)

// IsValid reports whether b is a recognised backend.
func (b Backend) IsValid() bool {
	switch b {
	case BackendOpenAI, BackendAnthropic, BackendGemini, BackendOllama, BackendMistral:
		return true
	}
	return false
}

// Config is the root configuration structure for Everloom.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Game          GameConfig          `yaml:"game"`
	LLM           LLMConfig           `yaml:"llm"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// GameConfig holds the world and session settings.
type GameConfig struct {
	// Universe is a free-text setting description injected into the
	// narrator's system prompt (e.g., "a mist-soaked fantasy realm").
	Universe string `yaml:"universe"`

	// MaxTurns caps a session's length. 0 means the default of 50.
	MaxTurns int `yaml:"max_turns"`

	// HistoryWindow is the maximum number of messages of rolling narrative
	// context. 0 means the default of 20.
	HistoryWindow int `yaml:"history_window"`

	// PromptsDir points at a directory of prompt template overrides.
	// Empty uses the embedded defaults.
	PromptsDir string `yaml:"prompts_dir"`

	// Seed fixes the random source for odds rolls and character generation.
	// 0 seeds from entropy.
	Seed uint64 `yaml:"seed"`
}

// LLMConfig declares the backend chain: one primary, zero or more fallbacks,
// and the circuit-breaker settings guarding each.
type LLMConfig struct {
	Primary   ProviderEntry   `yaml:"primary"`
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
	Breaker   BreakerConfig   `yaml:"breaker"`
}

// ProviderEntry configures a single LLM backend.
type ProviderEntry struct {
	// Backend selects the implementation.
	Backend Backend `yaml:"backend"`

	// Model selects a specific model within the backend (e.g., "gpt-4o").
	Model string `yaml:"model"`

	// APIKey is the authentication key for the backend's API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default API endpoint.
	// Leave empty to use the built-in default.
	BaseURL string `yaml:"base_url"`
}

// BreakerConfig tunes the per-backend circuit breakers.
type BreakerConfig struct {
	// MaxFailures is how many consecutive failures trip a breaker. 0 means
	// the default of 5.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long a tripped breaker rejects calls before probing
	// again. 0 means the default of 30s.
	ResetTimeout Duration `yaml:"reset_timeout"`

	// ProbeSuccesses is how many consecutive probe successes close a breaker
	// again. 0 means the default of 3.
	ProbeSuccesses int `yaml:"probe_successes"`
}

// ObservabilityConfig holds metrics settings.
type ObservabilityConfig struct {
	// MetricsEnabled serves Prometheus metrics when true.
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// ListenAddr is the TCP address of the metrics endpoint. Empty means
	// the default of ":9090".
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level controls verbosity. Empty means info.
	Level LogLevel `yaml:"level"`
}
