package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [Validate] for zero-value fields.
const (
	DefaultMaxTurns      = 50
	DefaultHistoryWindow = 20
	DefaultListenAddr    = ":9090"
	DefaultUniverse      = "a medieval fantasy realm"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, validates the result, and
// fills in defaults. Useful in tests where configs are string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and applies
// defaults to zero-value fields. It returns a joined error listing all
// validation failures found; soft issues are logged, not returned.
func Validate(cfg *Config) error {
	var errs []error

	// Logging.
	if cfg.Logging.Level != "" && !cfg.Logging.Level.IsValid() {
		errs = append(errs, fmt.Errorf("logging.level %q is invalid; valid values: debug, info, warn, error", cfg.Logging.Level))
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogInfo
	}

	// Game.
	if cfg.Game.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("game.max_turns %d must not be negative", cfg.Game.MaxTurns))
	}
	if cfg.Game.MaxTurns == 0 {
		cfg.Game.MaxTurns = DefaultMaxTurns
	}
	if cfg.Game.HistoryWindow < 0 {
		errs = append(errs, fmt.Errorf("game.history_window %d must not be negative", cfg.Game.HistoryWindow))
	}
	if cfg.Game.HistoryWindow == 0 {
		cfg.Game.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.Game.PromptsDir != "" {
		if info, err := os.Stat(cfg.Game.PromptsDir); err != nil || !info.IsDir() {
			slog.Warn("game.prompts_dir is not a readable directory; embedded templates will be used",
				"dir", cfg.Game.PromptsDir)
		}
	}
	if cfg.Game.Universe == "" {
		cfg.Game.Universe = DefaultUniverse
	}

	// LLM chain.
	validateProvider("llm.primary", cfg.LLM.Primary, &errs)
	for i, entry := range cfg.LLM.Fallbacks {
		validateProvider(fmt.Sprintf("llm.fallbacks[%d]", i), entry, &errs)
	}
	if cfg.LLM.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("llm.breaker.max_failures %d must not be negative", cfg.LLM.Breaker.MaxFailures))
	}
	if cfg.LLM.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("llm.breaker.reset_timeout %v must not be negative", cfg.LLM.Breaker.ResetTimeout.Std()))
	}
	if reset := cfg.LLM.Breaker.ResetTimeout.Std(); reset > 0 && reset < time.Second {
		slog.Warn("llm.breaker.reset_timeout is very short; a struggling backend will be hammered",
			"reset_timeout", reset)
	}

	// Observability.
	if cfg.Observability.ListenAddr == "" {
		cfg.Observability.ListenAddr = DefaultListenAddr
	}

	return errors.Join(errs...)
}

// validateProvider checks one backend entry. Hard failures are appended to
// errs; a missing API key is only a warning because local backends
// (e.g. ollama) need none.
func validateProvider(prefix string, entry ProviderEntry, errs *[]error) {
	if entry.Backend == "" {
		*errs = append(*errs, fmt.Errorf("%s.backend is required", prefix))
	} else if !entry.Backend.IsValid() {
		*errs = append(*errs, fmt.Errorf("%s.backend %q is invalid; valid values: openai, anthropic, gemini, ollama, mistral", prefix, entry.Backend))
	}
	if entry.Model == "" {
		*errs = append(*errs, fmt.Errorf("%s.model is required", prefix))
	}
	if entry.APIKey == "" && entry.Backend != BackendOllama {
		slog.Warn("backend configured without an api_key; requests will likely be rejected",
			"entry", prefix, "backend", entry.Backend)
	}
}
