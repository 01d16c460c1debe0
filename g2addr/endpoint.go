// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package g2addr

import (
	"fmt"
	"net"
	"strconv"
)

// UnknownCountry is the sentinel ISO 3166-1 alpha-2 code used when the
// country of an endpoint has not been determined. A preferred-country query
// that specifies UnknownCountry matches every endpoint.
const UnknownCountry = "ZZ"

// Endpoint identifies a candidate Gnutella2 hub by network address.  It is an
// immutable value once constructed; callers that need a modified copy build a
// new Endpoint rather than mutating one in place, which keeps Endpoint safe to
// share across goroutines without synchronization.
type Endpoint struct {
	ip         net.IP
	port       uint16
	country    string
	firewalled bool
}

// New returns an Endpoint for the given IP and port.  The IP is canonicalized
// to its 4-byte form when it represents an IPv4 address so that Key and
// Equal behave consistently regardless of how the caller obtained the IP.
func New(ip net.IP, port uint16) Endpoint {
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}
	return Endpoint{ip: ip, port: port, country: UnknownCountry}
}

// Parse parses a "host:port" string into an Endpoint.  The host must be a
// literal IPv4 or IPv6 address; hostnames are rejected since the host cache
// never performs DNS resolution.
func Parse(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return Endpoint{}, fmt.Errorf("g2addr: %q is not a literal IP address", host)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("g2addr: invalid port %q: %w", portStr, err)
	}
	return New(ip, uint16(port)), nil
}

// IP returns the endpoint's IP address.
func (e Endpoint) IP() net.IP { return e.ip }

// Port returns the endpoint's port.
func (e Endpoint) Port() uint16 { return e.port }

// Country returns the endpoint's two letter ISO country code, or
// UnknownCountry if it has not been set.
func (e Endpoint) Country() string { return e.country }

// WithCountry returns a copy of the endpoint with its country code set.  An
// empty code is normalized to UnknownCountry.
func (e Endpoint) WithCountry(code string) Endpoint {
	if code == "" {
		code = UnknownCountry
	}
	e.country = code
	return e
}

// Firewalled reports whether the remote host is known to sit behind a
// firewall and therefore cannot accept inbound connections.  This is learned
// from the handshake layer, not derived from the address itself.
func (e Endpoint) Firewalled() bool { return e.firewalled }

// WithFirewalled returns a copy of the endpoint with its firewalled flag set.
func (e Endpoint) WithFirewalled(firewalled bool) Endpoint {
	e.firewalled = firewalled
	return e
}

// IsValid reports whether the endpoint carries a usable IP and a nonzero
// port.
func (e Endpoint) IsValid() bool {
	return len(e.ip) != 0 && !e.ip.IsUnspecified() && e.port != 0
}

// Key returns a string that uniquely identifies the endpoint by address and
// port, suitable for use as a map key.  It is the basis of address equality
// throughout the host cache.
func (e Endpoint) Key() string {
	return net.JoinHostPort(e.ip.String(), strconv.FormatUint(uint64(e.port), 10))
}

// String implements fmt.Stringer and is equivalent to Key.
func (e Endpoint) String() string { return e.Key() }

// Equal reports whether two endpoints refer to the same address and port.
// Country and firewalled metadata do not participate in equality.
func (e Endpoint) Equal(other Endpoint) bool {
	return e.port == other.port && e.ip.Equal(other.ip)
}

// IsZero reports whether the endpoint is the zero value.
func (e Endpoint) IsZero() bool {
	return len(e.ip) == 0 && e.port == 0
}
