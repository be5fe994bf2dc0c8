package model

import (
	"fmt"
	"time"
)

// BreakType identifies one of the configured break lengths.
type BreakType string

const (
	BreakShort  BreakType = "short"
	BreakMedium BreakType = "medium"
	BreakLong   BreakType = "long"
)

// SettingsVersion is the current BreakSettings schema version.
const SettingsVersion = 1

const (
	MinWorkThresholdMinutes = 5
	MaxWorkThresholdMinutes = 180
)

// BreakTypeConfig describes a single break option offered to the user.
type BreakTypeConfig struct {
	DurationMinutes int    `json:"duration"`
	Label           string `json:"label"`
}

// BreakSettings holds the user-tunable break behavior. It is persisted
// in the key-value store under the "breakSettings" key and carries a
// version field for forward migration.
type BreakSettings struct {
	WorkTimeThresholdMinutes int                           `json:"workTimeThresholdMinutes"`
	NotificationsEnabled     bool                          `json:"notificationsEnabled"`
	BreakTypes               map[BreakType]BreakTypeConfig `json:"breakTypes"`
	Version                  int                           `json:"version"`
}

// DefaultBreakSettings returns the settings used on first run.
func DefaultBreakSettings() BreakSettings {
	return BreakSettings{
		WorkTimeThresholdMinutes: 30,
		NotificationsEnabled:     true,
		BreakTypes: map[BreakType]BreakTypeConfig{
			BreakShort:  {DurationMinutes: 5, Label: "Short break"},
			BreakMedium: {DurationMinutes: 15, Label: "Medium break"},
			BreakLong:   {DurationMinutes: 30, Label: "Long break"},
		},
		Version: SettingsVersion,
	}
}

// KnownBreakType reports whether value names a configured break type.
func KnownBreakType(value BreakType) bool {
	switch value {
	case BreakShort, BreakMedium, BreakLong:
		return true
	}
	return false
}

// Validate checks settings against the allowed ranges.
func (settings BreakSettings) Validate() error {
	if settings.WorkTimeThresholdMinutes < MinWorkThresholdMinutes ||
		settings.WorkTimeThresholdMinutes > MaxWorkThresholdMinutes {
		return fmt.Errorf("work time threshold %d out of range [%d, %d]",
			settings.WorkTimeThresholdMinutes, MinWorkThresholdMinutes, MaxWorkThresholdMinutes)
	}
	for breakType, config := range settings.BreakTypes {
		if !KnownBreakType(breakType) {
			return fmt.Errorf("unknown break type %q", breakType)
		}
		if config.DurationMinutes <= 0 {
			return fmt.Errorf("break type %q has non-positive duration %d",
				breakType, config.DurationMinutes)
		}
	}
	return nil
}

// Migrate upgrades settings loaded from an older schema version to the
// current one. It fills missing break types from defaults, clamps the
// threshold into range, and stamps the current version. The returned
// bool reports whether anything changed.
func (settings *BreakSettings) Migrate() bool {
	changed := false
	defaults := DefaultBreakSettings()

	if settings.BreakTypes == nil {
		settings.BreakTypes = map[BreakType]BreakTypeConfig{}
		changed = true
	}
	for breakType, config := range defaults.BreakTypes {
		if _, ok := settings.BreakTypes[breakType]; !ok {
			settings.BreakTypes[breakType] = config
			changed = true
		}
	}

	if settings.WorkTimeThresholdMinutes < MinWorkThresholdMinutes {
		settings.WorkTimeThresholdMinutes = defaults.WorkTimeThresholdMinutes
		changed = true
	}
	if settings.WorkTimeThresholdMinutes > MaxWorkThresholdMinutes {
		settings.WorkTimeThresholdMinutes = MaxWorkThresholdMinutes
		changed = true
	}

	if settings.Version != SettingsVersion {
		settings.Version = SettingsVersion
		changed = true
	}
	return changed
}

// WorkTimeThreshold returns the threshold as a duration.
func (settings BreakSettings) WorkTimeThreshold() time.Duration {
	return time.Duration(settings.WorkTimeThresholdMinutes) * time.Minute
}

// BreakDuration returns the configured duration for a break type, or
// zero if the type is not configured.
func (settings BreakSettings) BreakDuration(breakType BreakType) time.Duration {
	config, ok := settings.BreakTypes[breakType]
	if !ok {
		return 0
	}
	return time.Duration(config.DurationMinutes) * time.Minute
}
