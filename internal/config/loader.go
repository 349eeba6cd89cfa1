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
	"stt": {"whisperx", "deepgram"},
	"llm": {"openai"},
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
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadMB < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb %d must not be negative", cfg.Server.MaxUploadMB))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Both STT backends are mandatory; with one transcript there is
	// nothing to reconcile.
	errs = append(errs, validateSTTEntry("providers.primary", cfg.Providers.Primary)...)
	errs = append(errs, validateSTTEntry("providers.secondary", cfg.Providers.Secondary)...)

	if cfg.Providers.Primary.Name != "" && cfg.Providers.Primary.Name == cfg.Providers.Secondary.Name {
		slog.Warn("primary and secondary STT providers use the same backend; reconciliation works best with independent engines",
			"name", cfg.Providers.Primary.Name,
		)
	}

	// Arbiter
	if len(cfg.Arbiter.LLM) == 0 {
		slog.Warn("arbiter.llm is empty; merged transcripts will keep their disagreement markers")
	}
	for i, entry := range cfg.Arbiter.LLM {
		prefix := fmt.Sprintf("arbiter.llm[%d]", i)
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			validateProviderName("llm", entry.Name)
		}
		if entry.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", prefix))
		}
		if entry.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required", prefix))
		}
	}
	if cfg.Arbiter.Temperature < 0 || cfg.Arbiter.Temperature > 2 {
		errs = append(errs, fmt.Errorf("arbiter.temperature %.2f is out of range [0, 2]", cfg.Arbiter.Temperature))
	}
	if cfg.Arbiter.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("arbiter.max_tokens %d must not be negative", cfg.Arbiter.MaxTokens))
	}

	return errors.Join(errs...)
}

// validateSTTEntry checks one STT backend block. prefix names the block in
// error messages.
func validateSTTEntry(prefix string, entry STTEntry) []error {
	var errs []error

	if entry.Name == "" {
		errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		return errs
	}
	validateProviderName("stt", entry.Name)

	if entry.SpeedMode != "" && !entry.SpeedMode.IsValid() {
		errs = append(errs, fmt.Errorf("%s.speed_mode %q is invalid; valid values: auto, turbo, precision", prefix, entry.SpeedMode))
	}

	switch entry.Name {
	case "whisperx":
		if entry.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required for whisperx (sidecar address)", prefix))
		}
	case "deepgram":
		if entry.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required for deepgram", prefix))
		}
	}

	return errs
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
