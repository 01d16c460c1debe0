// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hostcache

import "github.com/quazaa-development-team/g2hostcache/g2addr"

// The types below are the mailbox's message alphabet. Every mutating method
// on Cache builds one of these and sends it on Cache.requests; the actor
// goroutine running Cache.run is the only reader, and dispatches each by
// type switch in submission order. None of them carry a reply channel:
// per spec.md §7, producers observe effect only by later querying the
// cache, never synchronously.

type msgAdd struct {
	addr g2addr.Endpoint
	ts   uint32
}

type msgAddKey struct {
	addr    g2addr.Endpoint
	ts      uint32
	keyHost g2addr.Endpoint
	key     uint32
	now     uint32
}

type msgAddAck struct {
	addr g2addr.Endpoint
	ts   uint32
	ack  uint32
	now  uint32
}

type msgUpdateFailures struct {
	addr     g2addr.Endpoint
	failures uint8
}

type msgOnFailure struct {
	addr g2addr.Endpoint
}

type msgRemove struct {
	addr g2addr.Endpoint
}

type msgAddXTry struct {
	header string
}

type msgSanityCheck struct{}

type msgMaintain struct{}

type msgLocalAddressChanged struct {
	addr g2addr.Endpoint
}

type msgSetConfig struct {
	cfg Config
}
