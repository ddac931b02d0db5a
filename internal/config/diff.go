package config

import (
	"reflect"

	"github.com/fonoletra/fonoletra/internal/rating"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ThresholdsChanged bool
	NewThresholds     rating.Thresholds

	LanguageChanged bool
	NewLanguage     string
}

// Any reports whether the diff carries at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.ThresholdsChanged || d.LanguageChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; provider
// and server address changes require one.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !reflect.DeepEqual(old.Evaluation.Thresholds, new.Evaluation.Thresholds) {
		d.ThresholdsChanged = true
		d.NewThresholds = new.Evaluation.Thresholds
	}

	if old.Evaluation.Language != new.Evaluation.Language {
		d.LanguageChanged = true
		d.NewLanguage = new.Evaluation.Language
	}

	return d
}
