package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jpsutton/headset-charge-indicator-qt/internal/status"
)

const (
	minPollIntervalSeconds  = 1
	maxPollIntervalSeconds  = 3600
	minHelperTimeoutSeconds = 1
	maxHelperTimeoutSeconds = 120
	minRetentionDays        = 1
	maxRetentionDays        = 3650
	minCleanupIntervalHours = 1
	maxCleanupIntervalHours = 720
)

type Config struct {
	Helper        HelperConfig        `toml:"helper"`
	Poll          PollConfig          `toml:"poll"`
	Battery       BatteryConfig       `toml:"battery"`
	Notifications NotificationsConfig `toml:"notifications"`
	Tray          TrayConfig          `toml:"tray"`
	Storage       StorageConfig       `toml:"storage"`
}

type HelperConfig struct {
	Binary         string `toml:"binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type PollConfig struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

type BatteryConfig struct {
	LowThreshold    int `toml:"low_threshold"`
	MediumThreshold int `toml:"medium_threshold"`
}

type NotificationsConfig struct {
	Enabled bool `toml:"enabled"`
}

type TrayConfig struct {
	IconPath     string `toml:"icon_path"`
	ForceBackend string `toml:"force_backend"`
}

type StorageConfig struct {
	DBPath               string `toml:"db_path"`
	RetentionDays        int    `toml:"retention_days"`
	CleanupIntervalHours int    `toml:"cleanup_interval_hours"`
}

func DefaultConfig() *Config {
	return &Config{
		Helper: HelperConfig{
			Binary:         "headsetcontrol",
			TimeoutSeconds: 10,
		},
		Poll: PollConfig{
			IntervalSeconds: 60,
		},
		Battery: BatteryConfig{
			LowThreshold:    20,
			MediumThreshold: 50,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
		},
		Tray: TrayConfig{},
		Storage: StorageConfig{
			DBPath:               defaultDBPath(),
			RetentionDays:        30,
			CleanupIntervalHours: 24,
		},
	}
}

// DefaultPath is where Load looks when no -config flag is given.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "headset-indicator", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "headset-indicator", "config.toml")
}

func defaultDBPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "headset-indicator", "data.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "headset-indicator", "data.db")
	}
	return filepath.Join(home, ".local", "share", "headset-indicator", "data.db")
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return NormalizeAndValidate(cfg)
}

func NormalizeAndValidate(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	sanitized := *cfg

	sanitized.Helper.Binary = strings.TrimSpace(sanitized.Helper.Binary)
	if sanitized.Helper.Binary == "" {
		return nil, fmt.Errorf("helper.binary must not be empty")
	}

	var err error
	sanitized.Storage.DBPath, err = sanitizePath("storage.db_path", sanitized.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	if err := validateRange("helper.timeout_seconds", sanitized.Helper.TimeoutSeconds, minHelperTimeoutSeconds, maxHelperTimeoutSeconds); err != nil {
		return nil, err
	}
	if err := validateRange("poll.interval_seconds", sanitized.Poll.IntervalSeconds, minPollIntervalSeconds, maxPollIntervalSeconds); err != nil {
		return nil, err
	}
	if err := sanitized.Thresholds().Validate(); err != nil {
		return nil, fmt.Errorf("battery: %w", err)
	}
	if err := validateRange("storage.retention_days", sanitized.Storage.RetentionDays, minRetentionDays, maxRetentionDays); err != nil {
		return nil, err
	}
	if err := validateRange("storage.cleanup_interval_hours", sanitized.Storage.CleanupIntervalHours, minCleanupIntervalHours, maxCleanupIntervalHours); err != nil {
		return nil, err
	}

	switch sanitized.Tray.ForceBackend {
	case "", "sni", "legacy":
	default:
		return nil, fmt.Errorf("tray.force_backend must be \"sni\", \"legacy\", or empty, got %q", sanitized.Tray.ForceBackend)
	}

	return &sanitized, nil
}

// Thresholds returns the battery thresholds as the status package's type.
func (c *Config) Thresholds() status.Thresholds {
	return status.Thresholds{Low: c.Battery.LowThreshold, Medium: c.Battery.MediumThreshold}
}

func Save(path string, cfg *Config) error {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return fmt.Errorf("config path must not be empty")
	}

	sanitized, err := NormalizeAndValidate(cfg)
	if err != nil {
		return err
	}

	var data bytes.Buffer
	if err := toml.NewEncoder(&data).Encode(sanitized); err != nil {
		return fmt.Errorf("encode config TOML: %w", err)
	}

	dir := filepath.Dir(trimmedPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data.Bytes()); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, trimmedPath); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	tmpPath = ""

	return nil
}

func sanitizePath(name, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%s must not be empty", name)
	}
	cleaned := filepath.Clean(trimmed)
	if !filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%s must be an absolute path, got %q", name, value)
	}
	return cleaned, nil
}

func validateRange(name string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, min, max, value)
	}

	return nil
}
