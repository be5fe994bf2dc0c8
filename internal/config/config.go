// Package config loads daemon configuration from a YAML file under
// the user config dir, with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// Config holds daemon-level settings. Break settings proper live in
// the key-value store; these are the knobs the store does not own.
type Config struct {
	DataDir     string
	LogFile     string
	ListenAddr  string
	Development bool
	Autostart   bool

	TickInterval        time.Duration
	InactivityThreshold time.Duration
	BreakCooldown       time.Duration
	FocusCooldown       time.Duration
	FocusGrace          time.Duration
	UnfocusedPauseAfter time.Duration

	FocusTabURL string
}

type yamlConfig struct {
	DataDir                    string `yaml:"data_dir"`
	LogFile                    string `yaml:"log_file"`
	ListenAddr                 string `yaml:"listen_addr"`
	Development                bool   `yaml:"development"`
	Autostart                  bool   `yaml:"autostart"`
	TickIntervalSeconds        int    `yaml:"tick_interval_seconds"`
	InactivityThresholdMinutes int    `yaml:"inactivity_threshold_minutes"`
	BreakCooldownMinutes       int    `yaml:"break_cooldown_minutes"`
	FocusCooldownMinutes       int    `yaml:"focus_cooldown_minutes"`
	FocusGraceSeconds          int    `yaml:"focus_grace_seconds"`
	UnfocusedPauseSeconds      int    `yaml:"unfocused_pause_seconds"`
	FocusTabURL                string `yaml:"focus_tab_url"`
}

// Default returns the built-in configuration for the given app name.
func Default(appName string) Config {
	dataDir := ""
	if configDir, err := os.UserConfigDir(); err == nil {
		dataDir = filepath.Join(configDir, appName)
	}
	config := Config{
		DataDir:             dataDir,
		ListenAddr:          "127.0.0.1:48632",
		TickInterval:        15 * time.Second,
		InactivityThreshold: 5 * time.Minute,
		BreakCooldown:       5 * time.Minute,
		FocusCooldown:       5 * time.Minute,
		FocusGrace:          30 * time.Second,
		UnfocusedPauseAfter: 5 * time.Minute,
	}
	if dataDir != "" {
		config.LogFile = filepath.Join(dataDir, "focusguard.log")
	}
	return config
}

// Load reads configuration for appName: defaults, then the YAML file
// if present, then a .env file and environment overrides.
func Load(appName string) (Config, error) {
	config := Default(appName)

	path, err := resolveConfigPath(appName)
	if err == nil {
		rawData, readErr := os.ReadFile(path)
		switch {
		case readErr == nil:
			var fileData yamlConfig
			if err := yaml.Unmarshal(rawData, &fileData); err != nil {
				return config, fmt.Errorf("parse config yaml: %w", err)
			}
			applyYamlConfig(&config, fileData)
		case !errors.Is(readErr, os.ErrNotExist):
			return config, fmt.Errorf("read config file: %w", readErr)
		}
	}

	// A .env next to the binary is a development convenience; a
	// missing file is not an error.
	_ = godotenv.Load()
	applyEnvOverrides(&config)

	return config, nil
}

func resolveConfigPath(appName string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, appName, configFileName), nil
}

func applyYamlConfig(config *Config, fileData yamlConfig) {
	if fileData.DataDir != "" {
		config.DataDir = fileData.DataDir
	}
	if fileData.LogFile != "" {
		config.LogFile = fileData.LogFile
	}
	if fileData.ListenAddr != "" {
		config.ListenAddr = fileData.ListenAddr
	}
	config.Development = fileData.Development
	config.Autostart = fileData.Autostart
	if fileData.TickIntervalSeconds > 0 {
		config.TickInterval = time.Duration(fileData.TickIntervalSeconds) * time.Second
	}
	if fileData.InactivityThresholdMinutes > 0 {
		config.InactivityThreshold = time.Duration(fileData.InactivityThresholdMinutes) * time.Minute
	}
	if fileData.BreakCooldownMinutes > 0 {
		config.BreakCooldown = time.Duration(fileData.BreakCooldownMinutes) * time.Minute
	}
	if fileData.FocusCooldownMinutes > 0 {
		config.FocusCooldown = time.Duration(fileData.FocusCooldownMinutes) * time.Minute
	}
	if fileData.FocusGraceSeconds > 0 {
		config.FocusGrace = time.Duration(fileData.FocusGraceSeconds) * time.Second
	}
	if fileData.UnfocusedPauseSeconds > 0 {
		config.UnfocusedPauseAfter = time.Duration(fileData.UnfocusedPauseSeconds) * time.Second
	}
	if fileData.FocusTabURL != "" {
		config.FocusTabURL = fileData.FocusTabURL
	}
}

func applyEnvOverrides(config *Config) {
	if value := os.Getenv("FOCUSGUARD_DATA_DIR"); value != "" {
		config.DataDir = value
	}
	if value := os.Getenv("FOCUSGUARD_LOG_FILE"); value != "" {
		config.LogFile = value
	}
	if value := os.Getenv("FOCUSGUARD_LISTEN_ADDR"); value != "" {
		config.ListenAddr = value
	}
	if value := os.Getenv("FOCUSGUARD_DEV"); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			config.Development = parsed
		}
	}
	if value := os.Getenv("FOCUSGUARD_AUTOSTART"); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			config.Autostart = parsed
		}
	}
	if value := os.Getenv("FOCUSGUARD_FOCUS_TAB_URL"); value != "" {
		config.FocusTabURL = value
	}
	if value := os.Getenv("FOCUSGUARD_TICK_INTERVAL_SECONDS"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			config.TickInterval = time.Duration(parsed) * time.Second
		}
	}
	if value := os.Getenv("FOCUSGUARD_INACTIVITY_THRESHOLD_MINUTES"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			config.InactivityThreshold = time.Duration(parsed) * time.Minute
		}
	}
}

// DatabasePath returns the SQLite file location under the data dir.
func (config Config) DatabasePath() string {
	if config.DataDir == "" {
		return "focusguard.db"
	}
	return filepath.Join(config.DataDir, "focusguard.db")
}
