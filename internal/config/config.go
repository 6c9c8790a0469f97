// Package config loads and persists the daemon's YAML configuration,
// following the teacher's first-run-default / atomic-write pattern.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// PanelConfig describes the SPI bus and GPIO lines the panel driver binds to.
type PanelConfig struct {
	SPIBus      string `yaml:"spi_bus" json:"spi_bus"`
	ResetPin    string `yaml:"reset_pin" json:"reset_pin"`
	BusyPin     string `yaml:"busy_pin" json:"busy_pin"`
	DCPin       string `yaml:"dc_pin" json:"dc_pin"`
	CSPin       string `yaml:"cs_pin" json:"cs_pin"`
}

// WifiConfig tunes the provisioning FSM's network interfaces and timers.
type WifiConfig struct {
	StationInterface string `yaml:"station_interface" json:"station_interface"`
	APInterface      string `yaml:"ap_interface" json:"ap_interface"`
	APSSIDPrefix     string `yaml:"ap_ssid_prefix" json:"ap_ssid_prefix"`
	ConfigTimeoutSec int    `yaml:"config_timeout_sec" json:"config_timeout_sec"`
	ConnectTimeoutSec int   `yaml:"connect_timeout_sec" json:"connect_timeout_sec"`
	MaxRetry         int    `yaml:"max_retry" json:"max_retry"`
}

// OTAConfig tunes the update engine's manifest source and auto-check cadence.
type OTAConfig struct {
	ManifestURL        string `yaml:"manifest_url" json:"manifest_url"`
	AutoCheckHours     int    `yaml:"auto_check_hours" json:"auto_check_hours"`
	StagingDir         string `yaml:"staging_dir" json:"staging_dir"`
	CurrentVersion     string `yaml:"current_version" json:"current_version"`
}

// DisplayConfig tunes the display service façade's refresh-mode policy.
type DisplayConfig struct {
	PartialStreakLimit   int `yaml:"partial_streak_limit" json:"partial_streak_limit"`
	FullRefreshMinutes   int `yaml:"full_refresh_minutes" json:"full_refresh_minutes"`
	SleepAfterInactiveMin int `yaml:"sleep_after_inactive_minutes" json:"sleep_after_inactive_minutes"`
}

// PluginConfig names the domains plugin HTTP calls may reach and which
// built-in plugins auto-start.
type PluginConfig struct {
	HTTPAllowlist []string `yaml:"http_allowlist" json:"http_allowlist"`
	AutoStart     []string `yaml:"auto_start" json:"auto_start"`
}

// Config is the top-level daemon configuration.
type Config struct {
	Listen   string `yaml:"listen" json:"listen"`
	Timezone string `yaml:"timezone" json:"timezone"`
	DeviceName string `yaml:"device_name" json:"device_name"`
	StateDir string `yaml:"state_dir" json:"state_dir"`
	StaticDir string `yaml:"static_dir" json:"static_dir"`
	FirmwareVersion string `yaml:"firmware_version" json:"firmware_version"`

	Panel   PanelConfig   `yaml:"panel" json:"panel"`
	Wifi    WifiConfig    `yaml:"wifi" json:"wifi"`
	OTA     OTAConfig     `yaml:"ota" json:"ota"`
	Display DisplayConfig `yaml:"display" json:"display"`
	Plugins PluginConfig  `yaml:"plugins" json:"plugins"`

	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:     "0.0.0.0:8080",
		Timezone:   "UTC",
		DeviceName: "pin",
		StateDir:   "/var/lib/pin",
		StaticDir:  "/usr/share/pin/web",
		FirmwareVersion: "0.0.0",
		Panel: PanelConfig{
			SPIBus:   "/dev/spidev0.0",
			ResetPin: "GPIO17",
			BusyPin:  "GPIO24",
			DCPin:    "GPIO25",
			CSPin:    "GPIO8",
		},
		Wifi: WifiConfig{
			StationInterface:  "wlan0",
			APInterface:       "wlan0",
			APSSIDPrefix:      "Pin-Device-",
			ConfigTimeoutSec:  300,
			ConnectTimeoutSec: 30,
			MaxRetry:          3,
		},
		OTA: OTAConfig{
			ManifestURL:    "",
			AutoCheckHours: 0,
			StagingDir:     "/var/lib/pin/ota",
			CurrentVersion: "0.0.0",
		},
		Display: DisplayConfig{
			PartialStreakLimit:    10,
			FullRefreshMinutes:    30,
			SleepAfterInactiveMin: 10,
		},
		Plugins: PluginConfig{
			HTTPAllowlist: []string{"api.openweathermap.org"},
			AutoStart:     []string{"clock"},
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "0.0.0.0:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.DeviceName == "" {
		c.DeviceName = "pin"
	}
	if c.StateDir == "" {
		c.StateDir = "/var/lib/pin"
	}
	if c.StaticDir == "" {
		c.StaticDir = "/usr/share/pin/web"
	}
	if c.FirmwareVersion == "" {
		c.FirmwareVersion = "0.0.0"
	}
	if c.Wifi.APSSIDPrefix == "" {
		c.Wifi.APSSIDPrefix = "Pin-Device-"
	}
	if c.Wifi.ConfigTimeoutSec <= 0 {
		c.Wifi.ConfigTimeoutSec = 300
	}
	if c.Wifi.ConnectTimeoutSec <= 0 {
		c.Wifi.ConnectTimeoutSec = 30
	}
	if c.Wifi.MaxRetry <= 0 {
		c.Wifi.MaxRetry = 3
	}
	if c.OTA.StagingDir == "" {
		c.OTA.StagingDir = "/var/lib/pin/ota"
	}
	if c.OTA.CurrentVersion == "" {
		c.OTA.CurrentVersion = "0.0.0"
	}
	if c.Display.PartialStreakLimit <= 0 {
		c.Display.PartialStreakLimit = 10
	}
	if c.Display.FullRefreshMinutes <= 0 {
		c.Display.FullRefreshMinutes = 30
	}
	if c.Display.SleepAfterInactiveMin <= 0 {
		c.Display.SleepAfterInactiveMin = 10
	}
	if c.Plugins.HTTPAllowlist == nil {
		c.Plugins.HTTPAllowlist = []string{}
	}
	if c.Plugins.AutoStart == nil {
		c.Plugins.AutoStart = []string{}
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create the parent directory, write a
//     default config with 0600 perms, and return the default config.
//   - If the file exists: read YAML, unmarshal, and normalize defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to path atomically (temp file
// plus rename) with final permissions of 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".pin-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
