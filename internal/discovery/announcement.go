// Package discovery finds lockbox devices announcing themselves over
// mDNS/DNS-SD on the local network.
package discovery

import (
	"net"
	"strconv"
)

// Service is the DNS-SD service type lockboxes announce.
const Service = "_ekilb._tcp"

// Domain is the mDNS domain browsed for Service.
const Domain = "local"

// Announcement is one device observed during a discovery window.
type Announcement struct {
	// Name is the advertised service instance name, for example
	// "lockbox_000000._ekilb._tcp.local.".
	Name string `json:"name"`
	Host string `json:"host,omitempty"`
	Addr net.IP `json:"address"`
	// Zone is the IPv6 scope of a link-local Addr, e.g. "eth0".
	Zone string `json:"zone,omitempty"`
	Port int    `json:"port"`
	// Info holds the TXT record fields, if any.
	Info []string `json:"info,omitempty"`
}

// Address returns Addr with its zone, e.g. "fe80::1%eth0".
func (a Announcement) Address() string {
	if a.Zone == "" {
		return a.Addr.String()
	}
	return a.Addr.String() + "%" + a.Zone
}

// URL returns scheme://address:port for the announcement. A zone is
// percent-encoded as URLs require.
func (a Announcement) URL(scheme string) string {
	host := a.Addr.String()
	if a.Zone != "" {
		host += "%25" + a.Zone
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(a.Port))
}

func (a Announcement) valid() bool {
	return a.Name != "" && len(a.Addr) > 0 && !a.Addr.IsUnspecified() && a.Port > 0
}
