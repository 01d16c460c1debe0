// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package g2addr

import "net"

// The reserved address blocks below mirror the ones consulted by the wider
// peer-to-peer ecosystem when deciding whether an address is publicly
// reachable. A Gnutella2 hub advertised from inside one of them can never be
// dialed by a remote peer and is therefore never worth caching.
var (
	rfc1918Nets = []net.IPNet{
		ipNet("10.0.0.0", 8, 32),
		ipNet("172.16.0.0", 12, 32),
		ipNet("192.168.0.0", 16, 32),
	}
	rfc2544Net  = ipNet("198.18.0.0", 15, 32)
	rfc3849Net  = ipNet("2001:DB8::", 32, 128)
	rfc3927Net  = ipNet("169.254.0.0", 16, 32)
	rfc4193Net  = ipNet("FC00::", 7, 128)
	rfc4843Net  = ipNet("2001:10::", 28, 128)
	rfc4862Net  = ipNet("FE80::", 64, 128)
	rfc5737Nets = []net.IPNet{
		ipNet("192.0.2.0", 24, 32),
		ipNet("198.51.100.0", 24, 32),
		ipNet("203.0.113.0", 24, 32),
	}
	rfc6598Net = ipNet("100.64.0.0", 10, 32)
	zero4Net   = ipNet("0.0.0.0", 8, 32)
)

func ipNet(ip string, ones, bits int) net.IPNet {
	return net.IPNet{IP: net.ParseIP(ip), Mask: net.CIDRMask(ones, bits)}
}

func isIPv4(ip net.IP) bool { return ip.To4() != nil }

func isLocal(ip net.IP) bool { return ip.IsLoopback() || zero4Net.Contains(ip) }

func inAny(ip net.IP, nets []net.IPNet) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func isValidAddress(ip net.IP) bool {
	return ip != nil && !(ip.IsUnspecified() || ip.Equal(net.IPv4bcast))
}

// IsRoutable reports whether ip is publicly reachable over the internet,
// i.e. it is a valid address and does not fall within any reserved,
// documentation-only, link-local, or private network range.
func IsRoutable(ip net.IP) bool {
	return isValidAddress(ip) && !(inAny(ip, rfc1918Nets) ||
		rfc2544Net.Contains(ip) || rfc3927Net.Contains(ip) ||
		rfc4862Net.Contains(ip) || rfc3849Net.Contains(ip) ||
		rfc4843Net.Contains(ip) || inAny(ip, rfc5737Nets) ||
		rfc6598Net.Contains(ip) || isLocal(ip) || rfc4193Net.Contains(ip))
}

// IsRoutable reports whether the endpoint's address is publicly reachable.
// It does not consider the Firewalled flag; combine with Firewalled() for a
// full connectability check.
func (e Endpoint) IsRoutable() bool {
	return IsRoutable(e.ip)
}

// GroupKey returns a string identifying the network group (roughly a /16 for
// IPv4 and a /32 for IPv6) that the endpoint's address belongs to.  It is not
// used by the host cache itself, but collaborators doing peer diversity
// bucketing over XTry-ingested hosts can use it the same way the wider
// ecosystem buckets addresses for new/tried tables.
func (e Endpoint) GroupKey() string {
	ip := e.ip
	if isLocal(ip) {
		return "local"
	}
	if !IsRoutable(ip) {
		return "unroutable"
	}
	if isIPv4(ip) {
		return ip.Mask(net.CIDRMask(16, 32)).String()
	}
	return ip.Mask(net.CIDRMask(32, 128)).String()
}
