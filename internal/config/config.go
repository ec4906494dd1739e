// Package config loads lockboxctl settings from defaults, an optional YAML
// file, LOCKBOX_* environment variables, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/HerbHall/lockboxctl/internal/discovery"
	"github.com/HerbHall/lockboxctl/internal/lockbox"
	"github.com/HerbHall/lockboxctl/internal/password"
)

// EnvPrefix is prepended to environment variable names.
const EnvPrefix = "LOCKBOX"

// Keys.
const (
	KeyDiscoveryService     = "discovery.service"
	KeyDiscoveryInterval    = "discovery.interval"
	KeyDiscoveryAttempts    = "discovery.attempts"
	KeyDiscoveryInterface   = "discovery.interface"
	KeyDiscoveryDisableIPv6 = "discovery.disable_ipv6"
	KeyHTTPTimeout          = "http.timeout"
	KeyPasswordFile         = "password.file"
	KeyDevice               = "device"
	KeyHostOverride         = "host_override"
)

// Keys lists every configuration key.
var Keys = []string{
	KeyDiscoveryService,
	KeyDiscoveryInterval,
	KeyDiscoveryAttempts,
	KeyDiscoveryInterface,
	KeyDiscoveryDisableIPv6,
	KeyHTTPTimeout,
	KeyPasswordFile,
	KeyDevice,
	KeyHostOverride,
}

// ErrUnknownKey is returned by Get for keys outside Keys.
var ErrUnknownKey = errors.New("unknown config key")

// Config wraps a *viper.Viper. A nil Viper yields zero values.
type Config struct {
	v *viper.Viper
}

// New wraps v.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

// Get returns the effective value of a known key as a string.
func (c *Config) Get(key string) (string, error) {
	for _, k := range Keys {
		if k == key {
			return c.GetString(key), nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownKey, key)
}

func (c *Config) GetString(key string) string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

func (c *Config) Unmarshal(target any) error {
	if c.v == nil {
		return nil
	}
	return c.v.Unmarshal(target)
}

// BindFlag binds a command-line flag to key so a changed flag overrides
// file and environment values.
func (c *Config) BindFlag(key string, flag *pflag.Flag) error {
	if c.v == nil || flag == nil {
		return nil
	}
	return c.v.BindPFlag(key, flag)
}

// ConfigFile returns the file the settings were read from, if any.
func (c *Config) ConfigFile() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDiscoveryService, discovery.Service)
	v.SetDefault(KeyDiscoveryInterval, discovery.DefaultInterval)
	v.SetDefault(KeyDiscoveryAttempts, discovery.DefaultAttempts)
	v.SetDefault(KeyDiscoveryInterface, "")
	v.SetDefault(KeyDiscoveryDisableIPv6, true)
	v.SetDefault(KeyHTTPTimeout, lockbox.DefaultTimeout)
	v.SetDefault(KeyPasswordFile, password.DefaultFile)
	v.SetDefault(KeyDevice, "")
	v.SetDefault(KeyHostOverride, "")
}

// Load builds a Config. path names a YAML file; when empty, lockboxctl.yaml
// is looked up in the working directory and the user config directory, and
// its absence is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lockboxctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "lockboxctl"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return New(v), nil
}
