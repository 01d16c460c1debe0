// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package security implements the rule-based security oracle consulted by the
// host cache (and, in a full client, by every other component that accepts
// addresses from the network) before an address is allowed to take up
// residence anywhere persistent.
//
// The oracle keeps an ordered set of network rules, each either denying or
// allowing a CIDR block, along with an optional expiry.  Two read paths are
// exposed: a locking, single-shot IsDenied/IsNewlyDenied pair for casual
// callers, and an explicit RLock/RUnlock pair paired with the Locked variants
// for callers such as the host cache's sanity pass that need to hold a
// consistent view of the rule set across a bulk scan without re-acquiring the
// lock per address.
package security
