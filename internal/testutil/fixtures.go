package testutil

import (
	"net"

	"github.com/HerbHall/lockboxctl/internal/discovery"
)

// NewAnnouncement returns an Announcement with sensible defaults, suitable
// for test fixtures. Override individual fields with options.
func NewAnnouncement(opts ...func(*discovery.Announcement)) discovery.Announcement {
	a := discovery.Announcement{
		Name: "lockbox_000000._ekilb._tcp.local.",
		Host: "lockbox-000000.local",
		Addr: net.ParseIP("192.168.1.10"),
		Port: 5000,
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// WithName sets the announced instance name.
func WithName(name string) func(*discovery.Announcement) {
	return func(a *discovery.Announcement) { a.Name = name }
}

// WithIP sets the announced address.
func WithIP(ip string) func(*discovery.Announcement) {
	return func(a *discovery.Announcement) { a.Addr = net.ParseIP(ip) }
}

// WithPort sets the announced port.
func WithPort(port int) func(*discovery.Announcement) {
	return func(a *discovery.Announcement) { a.Port = port }
}

// WithZone sets the IPv6 zone of the address.
func WithZone(zone string) func(*discovery.Announcement) {
	return func(a *discovery.Announcement) { a.Zone = zone }
}
