// Package config provides the configuration schema, loader, and provider
// registry for the Fonoletra evaluation service.
package config

import "github.com/fonoletra/fonoletra/internal/rating"

// LogLevel controls log verbosity for the Fonoletra server.
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

// Config is the root configuration structure for Fonoletra.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Review     ReviewConfig     `yaml:"review"`
	Cache      CacheConfig      `yaml:"cache"`
}

// ServerConfig holds network and logging settings for the Fonoletra server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

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

// ProvidersConfig declares which provider implementation to use for each
// pipeline capability. Each field selects a named provider registered in
// the [Registry].
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	G2P ProviderEntry `yaml:"g2p"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the
// [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "whisper",
	// "espeak", "coqui").
	Name string `yaml:"name"`

	// BaseURL overrides the provider's default endpoint. Leave empty to use
	// the provider's built-in default. Ignored by subprocess providers.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above. Values may be strings, numbers, booleans,
	// or nested maps.
	Options map[string]any `yaml:"options"`
}

// EvaluationConfig holds the scoring and enhancement tunables.
type EvaluationConfig struct {
	// Language is the default BCP-47 code applied when a request does not
	// name one. Default "pt".
	Language string `yaml:"language"`

	// Thresholds are the rating decision boundaries. Omitted fields fall
	// back to the stock values.
	Thresholds rating.Thresholds `yaml:"thresholds"`

	// Enhance tunes the audio enhancement chain.
	Enhance EnhanceConfig `yaml:"enhance"`
}

// EnhanceConfig tunes the audio enhancement chain. Zero values keep the
// built-in defaults.
type EnhanceConfig struct {
	// TargetDBFS is the loudness target in dBFS (negative).
	TargetDBFS float64 `yaml:"target_dbfs"`

	// SilenceThresholdDB is the edge-silence threshold in dBFS (negative).
	SilenceThresholdDB float64 `yaml:"silence_threshold_db"`

	// MinDurationMs is the minimum clip length; shorter clips are repeated.
	MinDurationMs int `yaml:"min_duration_ms"`
}

// ReviewConfig locates the spaced-repetition scheduling backend.
type ReviewConfig struct {
	// BaseURL is the scheduling backend root (e.g.,
	// "http://valcoin:3000").
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds bounds each review submission. Default 10.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// CacheConfig locates the synthesized-audio file cache.
type CacheConfig struct {
	// Dir is the directory holding cached feedback audio. Default
	// "audio_cache".
	Dir string `yaml:"dir"`
}
