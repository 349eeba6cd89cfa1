// Package config provides the configuration schema, loader, and provider
// registry for the dualscribe dictation server.
package config

// LogLevel controls log verbosity for the dualscribe server.
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

// SpeedMode selects the WhisperX transcription profile.
type SpeedMode string

const (
	SpeedAuto      SpeedMode = "auto"
	SpeedTurbo     SpeedMode = "turbo"
	SpeedPrecision SpeedMode = "precision"
)

// IsValid reports whether m is a recognised speed mode.
func (m SpeedMode) IsValid() bool {
	switch m {
	case SpeedAuto, SpeedTurbo, SpeedPrecision:
		return true
	}
	return false
}

// Config is the root configuration structure for dualscribe.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Arbiter   ArbiterConfig   `yaml:"arbiter"`
}

// ServerConfig holds network and logging settings for the dualscribe server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxUploadMB caps the accepted dictation audio size in megabytes.
	// Zero means the default of 64.
	MaxUploadMB int `yaml:"max_upload_mb"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares the two STT backends every dictation is sent to.
// Primary is transcript A in merge markers, Secondary is transcript B.
type ProvidersConfig struct {
	Primary   STTEntry `yaml:"primary"`
	Secondary STTEntry `yaml:"secondary"`
}

// STTEntry configures a single speech-to-text backend. The Name field is
// used to look up the constructor in the [Registry].
type STTEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "whisperx", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. Required for
	// "whisperx" (the sidecar address), optional for hosted APIs.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "nova-2").
	Model string `yaml:"model"`

	// Language is the default transcription language. Empty means "de".
	Language string `yaml:"language"`

	// SpeedMode selects the WhisperX profile. Ignored by other providers.
	SpeedMode SpeedMode `yaml:"speed_mode"`
}

// ArbiterConfig configures the LLM resolution stage. An empty LLM list
// disables arbitration; merged texts then keep their markers.
type ArbiterConfig struct {
	// LLM lists the language-model backends in preference order. The
	// first entry is tried first; later entries are fallbacks.
	LLM []LLMEntry `yaml:"llm"`

	// Temperature is the sampling temperature for arbitration calls.
	// Zero means the default of 0.1.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the completion length. Zero means the default.
	MaxTokens int `yaml:"max_tokens"`
}

// LLMEntry configures a single language-model backend.
type LLMEntry struct {
	// Name selects the registered provider implementation (e.g., "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. Set this to
	// point at an OpenAI-compatible local server.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o").
	Model string `yaml:"model"`
}
