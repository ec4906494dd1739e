package discovery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Default discovery window: Attempts polls, Interval apart.
const (
	DefaultInterval = time.Second
	DefaultAttempts = 5
)

// Browser streams announcements for a service type.
//
// Browse sends on out until ctx is done and then returns nil. It returns an
// error only when the listener cannot be opened. Implementations must stop
// sending once Browse returns.
type Browser interface {
	Browse(ctx context.Context, service string, out chan<- Announcement) error
}

// Options configures an Engine.
type Options struct {
	Service  string
	Interval time.Duration
	Attempts int
}

func (o Options) withDefaults() Options {
	if o.Service == "" {
		o.Service = Service
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	return o
}

// Engine runs bounded discovery windows against a Browser.
type Engine struct {
	browser Browser
	opts    Options
	logger  *zap.Logger
}

// NewEngine creates an Engine. Zero-valued options take the defaults.
func NewEngine(browser Browser, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		browser: browser,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// Budget returns the longest time Discover will listen.
func (e *Engine) Budget() time.Duration {
	return e.opts.Interval * time.Duration(e.opts.Attempts)
}

// Discover listens for announcements and returns the devices seen, sorted by
// name. With a target name it returns as soon as that name is announced;
// without one it returns at the first poll that has seen any device. When
// the window expires it returns whatever was seen, possibly nothing. An
// empty result only means no device was observed in this window.
func (e *Engine) Discover(ctx context.Context, target string) ([]Announcement, error) {
	s := e.open(ctx)
	defer s.close()

	e.logger.Debug("discovery started",
		zap.String("service", e.opts.Service),
		zap.String("target", target),
		zap.Duration("budget", e.Budget()),
	)

	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	for attempt := 1; ; {
		select {
		case a := <-s.entries:
			if !a.valid() {
				continue
			}
			s.add(a)
			e.logger.Debug("device announced",
				zap.String("device", a.Name),
				zap.String("address", a.URL("tcp")),
			)
			if target != "" && s.has(target) {
				return e.finish(s, "target found"), nil
			}

		case err := <-s.errc:
			s.browsing = false
			if err != nil {
				return nil, fmt.Errorf("browse %s: %w", e.opts.Service, err)
			}
			// Browser gave up early; keep waiting out the window so the
			// caller sees a consistent budget.
			s.errc = nil

		case <-ticker.C:
			if target == "" && len(s.devices) > 0 {
				return e.finish(s, "device found"), nil
			}
			if attempt >= e.opts.Attempts {
				return e.finish(s, "window expired"), nil
			}
			attempt++

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (e *Engine) finish(s *session, reason string) []Announcement {
	out := s.results()
	e.logger.Debug("discovery finished",
		zap.String("reason", reason),
		zap.Int("candidates", len(out)),
	)
	return out
}

// session is the state of one Discover call. It is created and torn down
// per call.
type session struct {
	cancel   context.CancelFunc
	entries  chan Announcement
	errc     chan error
	browsing bool
	devices  map[string]Announcement
}

func (e *Engine) open(ctx context.Context) *session {
	ctx, cancel := context.WithCancel(ctx)
	s := &session{
		cancel:   cancel,
		entries:  make(chan Announcement),
		errc:     make(chan error, 1),
		browsing: true,
		devices:  make(map[string]Announcement),
	}
	go func(errc chan<- error) {
		errc <- e.browser.Browse(ctx, e.opts.Service, s.entries)
	}(s.errc)
	return s
}

// close stops the browser and waits for it to return.
func (s *session) close() {
	s.cancel()
	if !s.browsing {
		return
	}
	for {
		select {
		case <-s.entries:
		case <-s.errc:
			s.browsing = false
			return
		}
	}
}

func (s *session) add(a Announcement) {
	s.devices[a.Name] = a
}

func (s *session) has(name string) bool {
	_, ok := s.devices[name]
	return ok
}

func (s *session) results() []Announcement {
	out := make([]Announcement, 0, len(s.devices))
	for _, a := range s.devices {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
