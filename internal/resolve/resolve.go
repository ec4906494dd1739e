// Package resolve selects the single lockbox an invocation talks to.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/lockboxctl/internal/discovery"
)

var (
	// ErrNoDeviceFound means unscoped discovery observed no device.
	ErrNoDeviceFound = errors.New("no lockbox available")

	// ErrAmbiguousSelection means unscoped discovery observed more than one
	// device and none was selected.
	ErrAmbiguousSelection = errors.New("too many lockboxes, select a specific one")

	// ErrDeviceNotFound means the named device was not observed.
	ErrDeviceNotFound = errors.New("selected lockbox not found")
)

// AmbiguousError lists the candidates of an ambiguous selection.
// It matches ErrAmbiguousSelection with errors.Is.
type AmbiguousError struct {
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%s (found %s)", ErrAmbiguousSelection, strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousError) Is(target error) bool {
	return target == ErrAmbiguousSelection
}

// Discoverer runs one discovery window.
type Discoverer interface {
	Discover(ctx context.Context, target string) ([]discovery.Announcement, error)
}

// Host is the endpoint chosen for an invocation.
type Host struct {
	// BaseURL is scheme://address:port without a trailing path.
	BaseURL string
	// Device is the announcement the host came from; nil for overrides.
	Device *discovery.Announcement
}

// Overridden reports whether the host was supplied by the operator.
func (h *Host) Overridden() bool { return h.Device == nil }

// Resolver applies the host selection policy.
type Resolver struct {
	discoverer Discoverer
	scheme     string
	logger     *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithScheme sets the URL scheme used for discovered devices.
func WithScheme(scheme string) Option {
	return func(r *Resolver) { r.scheme = scheme }
}

// New creates a Resolver backed by d.
func New(d Discoverer, logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{discoverer: d, scheme: "http", logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve picks the target host. A non-empty override is used verbatim
// and skips discovery. Otherwise a non-empty name scopes discovery to that
// device; with neither, exactly one device must be observed.
func (r *Resolver) Resolve(ctx context.Context, override, name string) (*Host, error) {
	if override != "" {
		r.logger.Debug("using host override", zap.String("host", override))
		return &Host{BaseURL: strings.TrimRight(override, "/")}, nil
	}

	devices, err := r.discoverer.Discover(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("discover lockboxes: %w", err)
	}

	if name != "" {
		for i := range devices {
			if devices[i].Name == name {
				return r.hostFor(devices[i]), nil
			}
		}
		r.logger.Debug("named device not observed",
			zap.String("device", name),
			zap.Int("candidates", len(devices)),
		)
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}

	switch len(devices) {
	case 0:
		return nil, ErrNoDeviceFound
	case 1:
		return r.hostFor(devices[0]), nil
	default:
		names := make([]string, len(devices))
		for i, d := range devices {
			names[i] = d.Name
		}
		return nil, &AmbiguousError{Candidates: names}
	}
}

func (r *Resolver) hostFor(a discovery.Announcement) *Host {
	h := &Host{BaseURL: a.URL(r.scheme), Device: &a}
	r.logger.Debug("resolved lockbox",
		zap.String("device", a.Name),
		zap.String("base_url", h.BaseURL),
	)
	return h
}
