package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// MDNSBrowser browses the local network with multicast DNS queries. Each
// query listens for one Interval; queries repeat until the context ends.
type MDNSBrowser struct {
	Domain      string
	Interval    time.Duration
	Interface   *net.Interface
	DisableIPv6 bool

	// queryFunc runs one query; mdns.QueryContext unless replaced in tests.
	queryFunc func(context.Context, *mdns.QueryParam) error
	logger    *zap.Logger
}

// NewMDNSBrowser creates a browser for the local domain. ifaceName selects a
// network interface; empty means the system default.
func NewMDNSBrowser(ifaceName string, interval time.Duration, disableIPv6 bool, logger *zap.Logger) (*MDNSBrowser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	b := &MDNSBrowser{
		Domain:      Domain,
		Interval:    interval,
		DisableIPv6: disableIPv6,
		queryFunc:   mdns.QueryContext,
		logger:      logger,
	}
	if ifaceName != "" {
		iface, err := net.InterfaceByName(ifaceName)
		if err != nil {
			return nil, fmt.Errorf("mdns interface %q: %w", ifaceName, err)
		}
		b.Interface = iface
	}
	return b, nil
}

// Browse implements Browser.
func (b *MDNSBrowser) Browse(ctx context.Context, service string, out chan<- Announcement) error {
	stdLog, err := zap.NewStdLogAt(b.logger.Named("mdns"), zap.DebugLevel)
	if err != nil {
		return fmt.Errorf("mdns logger: %w", err)
	}

	for first := true; ctx.Err() == nil; first = false {
		if err := b.query(ctx, service, out, stdLog); err != nil {
			if first {
				return err
			}
			b.logger.Debug("mDNS query failed",
				zap.String("service", service),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
			case <-time.After(b.Interval):
			}
		}
	}
	return nil
}

func (b *MDNSBrowser) query(ctx context.Context, service string, out chan<- Announcement, stdLog *log.Logger) error {
	entries := make(chan *mdns.ServiceEntry, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			a, ok := announcementFromEntry(entry)
			if !ok {
				continue
			}
			select {
			case out <- a:
			case <-ctx.Done():
			}
		}
	}()

	params := mdns.DefaultParams(service)
	params.Domain = b.Domain
	params.Timeout = b.Interval
	params.Entries = entries
	params.Interface = b.Interface
	params.DisableIPv6 = b.DisableIPv6
	params.Logger = stdLog

	// The library waits out params.Timeout even after ctx is cancelled, so
	// the query runs in the background and cancellation returns at once.
	// Its sockets are closed on cancel and the consumer stops sending.
	errc := make(chan error, 1)
	go func() {
		err := b.queryFunc(ctx, params)
		close(entries)
		<-done
		errc <- err
	}()

	select {
	case err := <-errc:
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("mdns query %s: %w", service, err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

// announcementFromEntry converts a resolved mDNS entry. Entries without a
// usable address or port are skipped.
func announcementFromEntry(entry *mdns.ServiceEntry) (Announcement, bool) {
	if entry == nil {
		return Announcement{}, false
	}
	a := Announcement{
		Name: entry.Name,
		Host: strings.TrimSuffix(entry.Host, "."),
		Port: entry.Port,
		Info: entry.InfoFields,
	}
	a.Addr, a.Zone = entryAddr(entry)
	return a, a.valid()
}

// entryAddr returns the best address of an entry, preferring IPv4. IPv6
// addresses keep their zone.
func entryAddr(entry *mdns.ServiceEntry) (net.IP, string) {
	if entry.AddrV4 != nil && !entry.AddrV4.IsUnspecified() {
		return entry.AddrV4, ""
	}
	if v6 := entry.AddrV6IPAddr; v6 != nil && v6.IP != nil && !v6.IP.IsUnspecified() {
		return v6.IP, v6.Zone
	}
	return nil, ""
}
