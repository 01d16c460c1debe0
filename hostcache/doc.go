// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package hostcache implements the Gnutella2 host cache: an in-memory,
// persistent, thread-confined directory of candidate hubs ordered for
// connection attempts by failure count and then by recency.
//
// A Cache is an actor: after Start, a single goroutine owns every mutation
// and all mutating methods (Add, AddKey, AddAck, UpdateFailures, OnFailure,
// Remove, AddXTry) merely post a message to its mailbox and return. Get,
// Check and GetConnectable must be called with the cache's mutex held (see
// Lock); GetXTry and RequestHostInfo take it themselves. The actor also
// holds that mutex while mutating, so a returned handle stays valid for as
// long as the caller holds it.
//
// The cache keeps its hosts in one container/list.List partitioned into
// "failure buckets" by sentinel entries (see bucketList), is periodically
// pruned, size-capped, and persisted by a maintenance pass, and is cleansed
// against a security.Manager whenever that oracle reports newly denied
// addresses.
package hostcache
