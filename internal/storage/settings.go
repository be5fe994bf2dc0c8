package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"focusguard/internal/core/model"
)

// SettingsKey is the store key holding BreakSettings.
const SettingsKey = "breakSettings"

// LoadBreakSettings reads settings from the store. Missing settings
// yield defaults; settings from an older schema are migrated and
// written back.
func LoadBreakSettings(ctx context.Context, store Store) (model.BreakSettings, error) {
	settings := model.DefaultBreakSettings()

	raw, err := store.Get(ctx, SettingsKey)
	if errors.Is(err, ErrNotFound) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("load break settings: %w", err)
	}

	if err := json.Unmarshal(raw, &settings); err != nil {
		return model.DefaultBreakSettings(), fmt.Errorf("parse break settings: %w", err)
	}

	if settings.Migrate() {
		if err := SaveBreakSettings(ctx, store, settings); err != nil {
			return settings, err
		}
	}
	return settings, nil
}

// SaveBreakSettings validates and persists settings.
func SaveBreakSettings(ctx context.Context, store Store, settings model.BreakSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal break settings: %w", err)
	}
	if err := store.Set(ctx, SettingsKey, raw); err != nil {
		return fmt.Errorf("save break settings: %w", err)
	}
	return nil
}
