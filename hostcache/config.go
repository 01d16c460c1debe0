// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hostcache

import "time"

// Config holds every setting the maintenance loop reads lazily on each
// pass. None of these take effect synchronously when changed with
// SetConfig; the next maintenance tick (at most maintenanceInterval later)
// observes them, per the host cache's external interface contract.
type Config struct {
	// FailureLimit is the highest failure count a host may carry (maxFailures
	// in spec.md). Entries exceeding it are evicted at the next maintenance
	// pass, and the sentinel array is reshaped to match.
	FailureLimit uint8

	// HostCacheSize caps the number of real entries. Zero disables the cap.
	// When exceeded, one maintenance pass evicts entries, worst first in
	// priority order, until at most HostCacheSize - HostCacheSize/4 remain.
	HostCacheSize uint32

	// HostExpire is the age, in seconds, beyond which an entry is pruned
	// regardless of failure count. Age pruning runs when the snapshot is
	// loaded at Start; the periodic maintenance pass does not prune by age.
	HostExpire uint32

	// QueryHostDeadline is the age, in seconds, beyond which
	// pruneByQueryAckLocked drops an entry with a nonzero Ack. The
	// maintenance pass does not call pruneByQueryAckLocked.
	QueryHostDeadline uint32

	// ConnectThrottle is the base number of seconds a just-failed or
	// never-connected host must wait before becoming connectable again.
	ConnectThrottle uint32

	// FailurePenalty is added to ConnectThrottle once per failure bucket
	// when recomputing Connectable during maintenance.
	FailurePenalty uint32

	// QueryThrottle is the minimum interval between queries sent to the
	// same host, consulted by HostEntry.canQuery.
	QueryThrottle uint32
}

// DefaultConfig returns the settings the original Quazaa client shipped,
// translated to Go types.
func DefaultConfig() Config {
	return Config{
		FailureLimit:      7,
		HostCacheSize:     4000,
		HostExpire:        uint32((6 * time.Hour) / time.Second),
		QueryHostDeadline: uint32((10 * time.Minute) / time.Second),
		ConnectThrottle:   uint32((2 * time.Minute) / time.Second),
		FailurePenalty:    uint32((30 * time.Second) / time.Second),
		QueryThrottle:     uint32((3 * time.Minute) / time.Second),
	}
}
