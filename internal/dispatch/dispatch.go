// Package dispatch runs one lockboxctl invocation: it resolves the target
// lockbox, executes the requested action, and reports the outcome.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/HerbHall/lockboxctl/internal/discovery"
	"github.com/HerbHall/lockboxctl/internal/lockbox"
	"github.com/HerbHall/lockboxctl/internal/password"
	"github.com/HerbHall/lockboxctl/internal/resolve"
)

// ErrUnknownAction is returned for actions outside Actions.
var ErrUnknownAction = errors.New("unknown action")

// Action is an operator command.
type Action string

const (
	ActionLock          Action = "lock"
	ActionUnlock        Action = "unlock"
	ActionUpdate        Action = "update"
	ActionInfo          Action = "info"
	ActionChangeSetting Action = "change_setting"
)

// Actions lists every supported action.
var Actions = []Action{ActionLock, ActionUnlock, ActionUpdate, ActionInfo, ActionChangeSetting}

// ParseAction validates s as an Action.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownAction, s)
}

// Request is one invocation.
type Request struct {
	Action Action
	// Password is used when PasswordSet is true; otherwise lock generates
	// one and unlock reads PasswordFile.
	Password     string
	PasswordSet  bool
	PasswordFile string
	Device       string
	HostOverride string
	// Setting is "key=value" for change_setting.
	Setting string
}

// HostResolver picks the lockbox to talk to.
type HostResolver interface {
	Resolve(ctx context.Context, override, name string) (*resolve.Host, error)
}

// Controller sends control commands to a lockbox.
type Controller interface {
	Lock(ctx context.Context, baseURL, password string) error
	Unlock(ctx context.Context, baseURL, password string) error
	Update(ctx context.Context, baseURL string) error
	Settings(ctx context.Context, baseURL string) (json.RawMessage, error)
	SetSetting(ctx context.Context, baseURL, key, value string) error
}

// PasswordStore keeps the password artifact.
type PasswordStore interface {
	Generate() (string, error)
	Save(password, path string) error
	Load(path string) (string, error)
}

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Resolver   HostResolver
	Client     Controller
	Store      PasswordStore
	Discoverer resolve.Discoverer
	// Out receives operator-facing messages. Defaults to os.Stdout.
	Out    io.Writer
	Format Format
	Logger *zap.Logger
}

// Dispatcher composes resolution and control for one invocation.
type Dispatcher struct {
	resolver   HostResolver
	client     Controller
	store      PasswordStore
	discoverer resolve.Discoverer
	out        io.Writer
	format     Format
	logger     *zap.Logger
}

// New creates a Dispatcher.
func New(deps Deps) *Dispatcher {
	d := &Dispatcher{
		resolver:   deps.Resolver,
		client:     deps.Client,
		store:      deps.Store,
		discoverer: deps.Discoverer,
		out:        deps.Out,
		format:     deps.Format,
		logger:     deps.Logger,
	}
	if d.out == nil {
		d.out = os.Stdout
	}
	if d.format == "" {
		d.format = FormatText
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d
}

// ExitCode maps the result of Run to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// Run executes req. Invalid requests fail before any discovery or network
// traffic.
func (d *Dispatcher) Run(ctx context.Context, req Request) error {
	action, err := ParseAction(string(req.Action))
	if err != nil {
		return err
	}

	var key, value string
	if action == ActionChangeSetting {
		if key, value, err = lockbox.ParseSetting(req.Setting); err != nil {
			return err
		}
	}

	host, err := d.resolver.Resolve(ctx, req.HostOverride, req.Device)
	if err != nil {
		return err
	}
	if host.Device != nil && req.Device == "" {
		d.printf("Found one device: %s\n", host.Device.Name)
	}
	d.printf("Picked host %s\n", host.BaseURL)
	d.logger.Info("lockbox selected",
		zap.String("action", string(action)),
		zap.String("base_url", host.BaseURL),
		zap.Bool("override", host.Overridden()),
	)

	switch action {
	case ActionLock:
		return d.lock(ctx, host, req)
	case ActionUnlock:
		return d.unlock(ctx, host, req)
	case ActionUpdate:
		if err := d.client.Update(ctx, host.BaseURL); err != nil {
			return fmt.Errorf("update failed: %w", err)
		}
		d.printf("Updated successfully\n")
		return nil
	case ActionInfo:
		data, err := d.client.Settings(ctx, host.BaseURL)
		if err != nil {
			return fmt.Errorf("could not read settings: %w", err)
		}
		return d.printSettings(data)
	case ActionChangeSetting:
		if err := d.client.SetSetting(ctx, host.BaseURL, key, value); err != nil {
			return fmt.Errorf("setting not changed: %w", err)
		}
		d.printf("Set!\n")
		return nil
	}
	return fmt.Errorf("%w %q", ErrUnknownAction, action)
}

func (d *Dispatcher) lock(ctx context.Context, host *resolve.Host, req Request) error {
	pw := req.Password
	if !req.PasswordSet {
		var err error
		if pw, err = d.store.Generate(); err != nil {
			return err
		}
	}
	d.printf("Password: %s\n", pw)

	path := passwordFile(req)
	if err := d.store.Save(pw, path); err != nil {
		return fmt.Errorf("could not save password: %w", err)
	}

	if err := d.client.Lock(ctx, host.BaseURL, pw); err != nil {
		return fmt.Errorf("could not lock: %w", err)
	}
	d.printf("Locked!\n")
	return nil
}

func (d *Dispatcher) unlock(ctx context.Context, host *resolve.Host, req Request) error {
	pw := req.Password
	if !req.PasswordSet {
		path := passwordFile(req)
		var err error
		pw, err = d.store.Load(path)
		switch {
		case errors.Is(err, password.ErrNotFound):
			d.printf("Warning: password file %s not found, trying an empty password\n", path)
			d.logger.Warn("password file missing, unlocking with empty password", zap.String("path", path))
			pw = ""
		case err != nil:
			return fmt.Errorf("could not read password: %w", err)
		}
	}

	if err := d.client.Unlock(ctx, host.BaseURL, pw); err != nil {
		return fmt.Errorf("could not unlock: %w", err)
	}
	d.printf("Unlocked!\n")
	return nil
}

// Discover lists the lockboxes observed in one discovery window. Finding
// none is not an error.
func (d *Dispatcher) Discover(ctx context.Context, name string) ([]discovery.Announcement, error) {
	if d.discoverer == nil {
		return nil, errors.New("discovery is not configured")
	}
	devices, err := d.discoverer.Discover(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("discover lockboxes: %w", err)
	}
	return devices, d.printDevices(devices)
}

func (d *Dispatcher) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(d.out, format, args...)
}

func passwordFile(req Request) string {
	if req.PasswordFile != "" {
		return req.PasswordFile
	}
	return password.DefaultFile
}
