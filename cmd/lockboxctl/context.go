package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/HerbHall/lockboxctl/internal/config"
	"github.com/HerbHall/lockboxctl/internal/discovery"
	"github.com/HerbHall/lockboxctl/internal/dispatch"
	"github.com/HerbHall/lockboxctl/internal/lockbox"
	"github.com/HerbHall/lockboxctl/internal/password"
	"github.com/HerbHall/lockboxctl/internal/resolve"
	"github.com/HerbHall/lockboxctl/internal/version"
)

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"device":        config.KeyDevice,
	"host-override": config.KeyHostOverride,
	"password-file": config.KeyPasswordFile,
	"timeout":       config.KeyDiscoveryInterval,
	"attempts":      config.KeyDiscoveryAttempts,
	"interface":     config.KeyDiscoveryInterface,
	"http-timeout":  config.KeyHTTPTimeout,
}

type commandContext struct {
	configFlag  *string
	verboseFlag *bool
	outputFlag  *string
	flags       *pflag.FlagSet

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verboseFlag *bool, outputFlag *string, flags *pflag.FlagSet) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
		outputFlag:  outputFlag,
		flags:       flags,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		for name, key := range flagKeys {
			if err := cfg.BindFlag(key, c.flags.Lookup(name)); err != nil {
				c.configErr = fmt.Errorf("bind --%s: %w", name, err)
				return
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) settings() (*config.Settings, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Settings()
}

func (c *commandContext) verbose() bool {
	return c.verboseFlag != nil && *c.verboseFlag
}

// newDispatcher wires the components for one invocation. The returned
// function flushes the logger.
func (c *commandContext) newDispatcher(cmd *cobra.Command) (*dispatch.Dispatcher, *config.Settings, func(), error) {
	s, err := c.settings()
	if err != nil {
		return nil, nil, nil, err
	}

	format := dispatch.FormatText
	if c.outputFlag != nil && *c.outputFlag != "" {
		if format, err = dispatch.ParseFormat(*c.outputFlag); err != nil {
			return nil, nil, nil, err
		}
	}

	logger := newLogger(cmd.ErrOrStderr(), c.verbose())
	cleanup := func() { _ = logger.Sync() }

	browser, err := discovery.NewMDNSBrowser(s.Discovery.Interface, s.Discovery.Interval, s.Discovery.DisableIPv6, logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	engine := discovery.NewEngine(browser, discovery.Options{
		Service:  s.Discovery.Service,
		Interval: s.Discovery.Interval,
		Attempts: s.Discovery.Attempts,
	}, logger.Named("discovery"))

	d := dispatch.New(dispatch.Deps{
		Resolver: resolve.New(engine, logger.Named("resolve")),
		Client: lockbox.New(logger.Named("lockbox"),
			lockbox.WithTimeout(s.HTTP.Timeout),
			lockbox.WithUserAgent(version.UserAgent()),
		),
		Store:      password.NewStore(password.NewImageRenderer(), logger.Named("password")),
		Discoverer: engine,
		Out:        cmd.OutOrStdout(),
		Format:     format,
		Logger:     logger,
	})

	logger.Debug("configuration loaded",
		zap.String("config_file", c.config.ConfigFile()),
		zap.String("service", s.Discovery.Service),
		zap.Duration("interval", s.Discovery.Interval),
		zap.Int("attempts", s.Discovery.Attempts),
	)
	return d, s, cleanup, nil
}

// runAction executes one control action.
func (c *commandContext) runAction(cmd *cobra.Command, action dispatch.Action, pw *string, setting string) error {
	d, s, cleanup, err := c.newDispatcher(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	req := dispatch.Request{
		Action:       action,
		PasswordFile: s.Password.File,
		Device:       s.Device,
		HostOverride: s.HostOverride,
		Setting:      setting,
	}
	if pw != nil {
		req.Password = *pw
		req.PasswordSet = true
	}
	return d.Run(cmd.Context(), req)
}
