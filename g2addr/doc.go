// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package g2addr implements the network address type shared by the Gnutella2
// host cache and its collaborators.
//
// An Endpoint identifies a candidate hub by IP and port and optionally carries
// a two letter ISO country code used for locality-aware hub selection.  The
// package also provides the routability and firewall heuristics the host
// cache relies on to reject addresses that could never be connected to.
package g2addr
