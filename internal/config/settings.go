package config

import (
	"fmt"
	"time"
)

// Settings is the decoded configuration.
type Settings struct {
	Discovery    DiscoverySettings `mapstructure:"discovery" yaml:"discovery"`
	HTTP         HTTPSettings      `mapstructure:"http" yaml:"http"`
	Password     PasswordSettings  `mapstructure:"password" yaml:"password"`
	Device       string            `mapstructure:"device" yaml:"device"`
	HostOverride string            `mapstructure:"host_override" yaml:"host_override"`
}

// DiscoverySettings configures the mDNS discovery window.
type DiscoverySettings struct {
	Service     string        `mapstructure:"service" yaml:"service"`
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	Attempts    int           `mapstructure:"attempts" yaml:"attempts"`
	Interface   string        `mapstructure:"interface" yaml:"interface"`
	DisableIPv6 bool          `mapstructure:"disable_ipv6" yaml:"disable_ipv6"`
}

// HTTPSettings configures the control client.
type HTTPSettings struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// PasswordSettings configures the password artifact.
type PasswordSettings struct {
	File string `mapstructure:"file" yaml:"file"`
}

// Settings decodes and validates the configuration.
func (c *Config) Settings() (*Settings, error) {
	var s Settings
	if err := c.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects values no component can run with.
func (s *Settings) Validate() error {
	if s.Discovery.Interval <= 0 {
		return fmt.Errorf("config: discovery.interval must be positive, got %s", s.Discovery.Interval)
	}
	if s.Discovery.Attempts <= 0 {
		return fmt.Errorf("config: discovery.attempts must be positive, got %d", s.Discovery.Attempts)
	}
	if s.HTTP.Timeout <= 0 {
		return fmt.Errorf("config: http.timeout must be positive, got %s", s.HTTP.Timeout)
	}
	if s.Password.File == "" {
		return fmt.Errorf("config: password.file must not be empty")
	}
	return nil
}
