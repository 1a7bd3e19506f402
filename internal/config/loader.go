package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"acoustic": {"whisper", "whisper-native", "mock"},
	"g2p":      {"cmudict", "espeak", "mock"},
	"narrator": {"openai", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
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

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.VocabPath == "" {
		errs = append(errs, errors.New("server.vocab_path is required"))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("acoustic", cfg.Providers.Acoustic.Name)
	validateProviderName("g2p", cfg.Providers.G2P.Name)
	validateProviderName("narrator", cfg.Providers.Narrator.Name)

	// The two scoring-path providers are mandatory; the narrator is optional
	// feedback-text generation and may be left unconfigured entirely.
	if cfg.Providers.Acoustic.Name == "" {
		errs = append(errs, errors.New("providers.acoustic.name is required"))
	}
	if cfg.Providers.G2P.Name == "" {
		errs = append(errs, errors.New("providers.g2p.name is required"))
	}

	// History
	if cfg.History.PostgresDSN == "" {
		slog.Warn("history.postgres_dsn is empty; result history and feedback recall will not be available")
	}
	if cfg.History.PostgresDSN != "" && cfg.History.EmbeddingDimensions <= 0 {
		slog.Warn("history.postgres_dsn is configured but history.embedding_dimensions is not set; the history store sizes its profile column from the vocabulary")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
