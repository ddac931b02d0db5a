package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/fonoletra/fonoletra/internal/rating"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper"},
	"g2p": {"espeak"},
	"tts": {"coqui"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
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

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("g2p", cfg.Providers.G2P.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required; spoken-mode evaluation cannot run without a transcription backend"))
	}
	if cfg.Providers.G2P.Name == "" {
		slog.Warn("providers.g2p is not configured; phoneme-level comparison will be skipped")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("providers.tts is not configured; results will carry no spoken feedback")
	}

	for mode, v := range cfg.Evaluation.Thresholds.Correct {
		if !validMode(mode) {
			errs = append(errs, fmt.Errorf("evaluation.thresholds.correct: unknown mode %q; valid modes: phoneme, spelling, speech, text", mode))
		}
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Errorf("evaluation.thresholds.correct[%s] %.1f is out of range [0, 100]", mode, v))
		}
	}
	if pf := cfg.Evaluation.Thresholds.PartialFloor; pf < 0 || pf > 100 {
		errs = append(errs, fmt.Errorf("evaluation.thresholds.partial_floor %.1f is out of range [0, 100]", pf))
	}

	if t := cfg.Evaluation.Enhance.TargetDBFS; t > 0 {
		errs = append(errs, fmt.Errorf("evaluation.enhance.target_dbfs %.1f must be negative (dBFS)", t))
	}
	if t := cfg.Evaluation.Enhance.SilenceThresholdDB; t > 0 {
		errs = append(errs, fmt.Errorf("evaluation.enhance.silence_threshold_db %.1f must be negative (dBFS)", t))
	}
	if d := cfg.Evaluation.Enhance.MinDurationMs; d < 0 {
		errs = append(errs, fmt.Errorf("evaluation.enhance.min_duration_ms %d must not be negative", d))
	}

	if cfg.Review.BaseURL == "" {
		errs = append(errs, errors.New("review.base_url is required; evaluations must report to the scheduling backend"))
	}
	if cfg.Review.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("review.timeout_seconds %d must not be negative", cfg.Review.TimeoutSeconds))
	}

	return errors.Join(errs...)
}

func validMode(m rating.Mode) bool {
	switch m {
	case rating.ModePhoneme, rating.ModeSpelling, rating.ModeSpeech, rating.ModeText:
		return true
	}
	return false
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
