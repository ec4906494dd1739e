package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/HerbHall/lockboxctl/internal/discovery"
)

// Compile-time interface check.
var _ discovery.Browser = (*FakeBrowser)(nil)

// Scripted is an announcement delivered After the browse started.
type Scripted struct {
	After        time.Duration
	Announcement discovery.Announcement
}

// FakeBrowser replays a fixed script of announcements and records how it
// was used.
type FakeBrowser struct {
	Script []Scripted
	// Err is returned immediately from Browse when set.
	Err error

	mu       sync.Mutex
	calls    int
	running  int
	services []string
}

// Announce returns a FakeBrowser delivering each announcement immediately.
func Announce(as ...discovery.Announcement) *FakeBrowser {
	b := &FakeBrowser{}
	for _, a := range as {
		b.Script = append(b.Script, Scripted{Announcement: a})
	}
	return b
}

// Browse implements discovery.Browser.
func (b *FakeBrowser) Browse(ctx context.Context, service string, out chan<- discovery.Announcement) error {
	b.mu.Lock()
	b.calls++
	b.running++
	b.services = append(b.services, service)
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.running--
		b.mu.Unlock()
	}()

	if b.Err != nil {
		return b.Err
	}

	start := time.Now()
	for _, s := range b.Script {
		if wait := s.After - time.Since(start); wait > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
		}
		select {
		case out <- s.Announcement:
		case <-ctx.Done():
			return nil
		}
	}
	<-ctx.Done()
	return nil
}

// Calls returns how many times Browse was invoked.
func (b *FakeBrowser) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// Running returns the number of Browse calls that have not yet returned.
func (b *FakeBrowser) Running() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Services returns the service types browsed, in call order.
func (b *FakeBrowser) Services() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.services))
	copy(out, b.services)
	return out
}
