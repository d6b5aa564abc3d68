// Package config provides persistent configuration for the mawaqit CLI.
//
// Configuration is stored as JSON at ~/.config/mawaqit/config.json
// (XDG-compliant). Every key can be overridden by an environment variable
// MAWAQIT_<KEY>. The merge priority is: CLI flags > environment > config
// file > defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/smokyabdulrahman/mawaqit/internal/i18n"
	"github.com/smokyabdulrahman/mawaqit/internal/store"
)

const (
	configDirName  = "mawaqit"
	configFileName = "config.json"

	// EnvPrefix prefixes the environment overrides.
	EnvPrefix = "MAWAQIT"
)

// ValidKeys lists all config keys that can be set via `config set`.
var ValidKeys = []string{
	"latitude", "longitude", "location_name",
	"timezone", "auto_locate",
	"time_format", "lang",
	"store", "cache_dir", "redis_addr", "redis_password",
	"listen_addr", "mqtt_broker", "mqtt_topic",
	"log_level",
}

// Config holds all user-configurable settings.
// Zero values mean "not set" (use defaults or auto-detect).
type Config struct {
	Latitude      float64 `json:"latitude,omitempty" mapstructure:"latitude"`
	Longitude     float64 `json:"longitude,omitempty" mapstructure:"longitude"`
	LocationName  string  `json:"location_name,omitempty" mapstructure:"location_name"`
	Timezone      string  `json:"timezone,omitempty" mapstructure:"timezone"`
	AutoLocate    *bool   `json:"auto_locate,omitempty" mapstructure:"auto_locate"` // pointer so we can distinguish "not set" from false
	TimeFormat    string  `json:"time_format,omitempty" mapstructure:"time_format"` // "12h" or "24h"
	Lang          string  `json:"lang,omitempty" mapstructure:"lang"`
	Store         string  `json:"store,omitempty" mapstructure:"store"`
	CacheDir      string  `json:"cache_dir,omitempty" mapstructure:"cache_dir"`
	RedisAddr     string  `json:"redis_addr,omitempty" mapstructure:"redis_addr"`
	RedisPassword string  `json:"redis_password,omitempty" mapstructure:"redis_password"`
	ListenAddr    string  `json:"listen_addr,omitempty" mapstructure:"listen_addr"`
	MQTTBroker    string  `json:"mqtt_broker,omitempty" mapstructure:"mqtt_broker"`
	MQTTTopic     string  `json:"mqtt_topic,omitempty" mapstructure:"mqtt_topic"`
	LogLevel      string  `json:"log_level,omitempty" mapstructure:"log_level"`
}

// Defaults returns a Config with all default values applied.
func Defaults() Config {
	auto := true
	return Config{
		AutoLocate: &auto,
		TimeFormat: "24h",
		Lang:       "ar",
		Store:      store.KindFile,
		ListenAddr: "127.0.0.1:8085",
		MQTTTopic:  "mawaqit/prayers",
		LogLevel:   "warn",
	}
}

// WithDefaults returns a copy of c with unset fields taken from Defaults.
func (c Config) WithDefaults() Config {
	d := Defaults()
	if c.AutoLocate == nil {
		c.AutoLocate = d.AutoLocate
	}
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&c.TimeFormat, d.TimeFormat)
	fill(&c.Lang, d.Lang)
	fill(&c.Store, d.Store)
	fill(&c.ListenAddr, d.ListenAddr)
	fill(&c.MQTTTopic, d.MQTTTopic)
	fill(&c.LogLevel, d.LogLevel)
	return c
}

// HasCoordinates reports whether a fixed position is configured.
func (c *Config) HasCoordinates() bool {
	return c.Latitude != 0 || c.Longitude != 0
}

// AutoLocateEnabled reports whether IP-based location is allowed.
func (c *Config) AutoLocateEnabled() bool {
	return c.AutoLocate == nil || *c.AutoLocate
}

// TimeLayout returns the Go layout for the configured time format.
func (c *Config) TimeLayout() string {
	if c.TimeFormat == "12h" {
		return "3:04 PM"
	}
	return "15:04"
}

// Location resolves the configured time zone; empty means the process zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// StoreOptions maps the storage settings onto store.Options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Kind:          c.Store,
		Dir:           c.CacheDir,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
	}
}

// Dir returns the config directory path.
// It respects $XDG_CONFIG_HOME if set, otherwise uses ~/.config/.
func Dir() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, configDirName), nil
}

// Path returns the full path to the config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the config file and applies environment overrides.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadWithEnv(path)
}

// LoadFrom reads only the config file at path.
// If the file does not exist, it returns an empty Config (not an error).
// If the file exists but is invalid JSON, it returns an error.
func LoadFrom(path string) (*Config, error) {
	return load(path, false)
}

// LoadWithEnv reads the config file at path and applies MAWAQIT_* overrides.
func LoadWithEnv(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, env bool) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if env {
		v.SetEnvPrefix(EnvPrefix)
		for _, key := range ValidKeys {
			if err := v.BindEnv(key); err != nil {
				return nil, fmt.Errorf("failed to bind %s: %w", key, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("invalid config file %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config to disk, creating the directory if needed.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to a specific file path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Reset deletes the config file.
func Reset() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return ResetAt(path)
}

// ResetAt deletes the config file at a specific path.
func ResetAt(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}
	return nil
}

func parseCoordinate(key, value string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a number", key, value)
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("invalid %s %q: must be between %g and %g", key, value, -limit, limit)
	}
	return v, nil
}

// Set sets a config key to the given value.
// It validates the key name and parses the value into the correct type.
func (c *Config) Set(key, value string) error {
	switch key {
	case "latitude":
		v, err := parseCoordinate(key, value, 90)
		if err != nil {
			return err
		}
		c.Latitude = v
	case "longitude":
		v, err := parseCoordinate(key, value, 180)
		if err != nil {
			return err
		}
		c.Longitude = v
	case "location_name":
		c.LocationName = value
	case "timezone":
		if value != "" {
			if _, err := time.LoadLocation(value); err != nil {
				return fmt.Errorf("invalid timezone %q: %w", value, err)
			}
		}
		c.Timezone = value
	case "auto_locate":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid auto_locate %q: must be true or false", value)
		}
		c.AutoLocate = &v
	case "time_format":
		if value != "12h" && value != "24h" {
			return fmt.Errorf("invalid time_format %q: must be \"12h\" or \"24h\"", value)
		}
		c.TimeFormat = value
	case "lang":
		if _, err := i18n.For(value); err != nil {
			return err
		}
		c.Lang = strings.ToLower(value)
	case "store":
		if !contains(store.Kinds, strings.ToLower(value)) {
			return fmt.Errorf("invalid store %q: must be one of %s", value, strings.Join(store.Kinds, ", "))
		}
		c.Store = strings.ToLower(value)
	case "cache_dir":
		c.CacheDir = value
	case "redis_addr":
		c.RedisAddr = value
	case "redis_password":
		c.RedisPassword = value
	case "listen_addr":
		c.ListenAddr = value
	case "mqtt_broker":
		c.MQTTBroker = value
	case "mqtt_topic":
		if strings.ContainsAny(value, "+#") {
			return fmt.Errorf("invalid mqtt_topic %q: wildcards are not allowed", value)
		}
		c.MQTTTopic = value
	case "log_level":
		if _, err := zerolog.ParseLevel(value); err != nil || value == "" {
			return fmt.Errorf("invalid log_level %q: must be one of trace, debug, info, warn, error", value)
		}
		c.LogLevel = value
	default:
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(ValidKeys, ", "))
	}

	return nil
}

// Get returns the string value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "latitude":
		if c.Latitude == 0 {
			return "", nil
		}
		return strconv.FormatFloat(c.Latitude, 'f', -1, 64), nil
	case "longitude":
		if c.Longitude == 0 {
			return "", nil
		}
		return strconv.FormatFloat(c.Longitude, 'f', -1, 64), nil
	case "location_name":
		return c.LocationName, nil
	case "timezone":
		return c.Timezone, nil
	case "auto_locate":
		if c.AutoLocate == nil {
			return "", nil
		}
		return strconv.FormatBool(*c.AutoLocate), nil
	case "time_format":
		return c.TimeFormat, nil
	case "lang":
		return c.Lang, nil
	case "store":
		return c.Store, nil
	case "cache_dir":
		return c.CacheDir, nil
	case "redis_addr":
		return c.RedisAddr, nil
	case "redis_password":
		if c.RedisPassword == "" {
			return "", nil
		}
		return "********", nil
	case "listen_addr":
		return c.ListenAddr, nil
	case "mqtt_broker":
		return c.MQTTBroker, nil
	case "mqtt_topic":
		return c.MQTTTopic, nil
	case "log_level":
		return c.LogLevel, nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
