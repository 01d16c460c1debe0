// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package security

import (
	"net"
	"sync"
	"time"

	"github.com/decred/dcrd/container/apbf"
	"github.com/decred/dcrd/container/lru"

	"github.com/quazaa-development-team/g2hostcache/g2addr"
)

const (
	// allowCacheLimit bounds the number of confirmed-clean verdicts cached to
	// shortcut repeat lookups against a large rule set.
	allowCacheLimit = 4096

	// allowCacheTTL controls how long a confirmed-clean verdict may be reused
	// before the rule set is consulted again.
	allowCacheTTL = 5 * time.Minute

	// deniedFilterCapacity and deniedFilterFPRate size the approximate
	// membership filter used to fast-path repeat denied lookups.
	deniedFilterCapacity = 50000
	deniedFilterFPRate   = 0.0001
)

// Rule is a single network rule evaluated by the security oracle.  A Rule
// with Deny set to false is an allow rule that takes precedence over deny
// rules added earlier; in practice the oracle is used almost exclusively to
// accumulate deny rules, but the allow case exists to let an operator carve
// out an exception without removing the broader deny rule.
type Rule struct {
	Network net.IPNet
	Deny    bool
	Comment string
	Expires time.Time // zero means the rule never expires

	generation uint64
}

func (r *Rule) expired(now time.Time) bool {
	return !r.Expires.IsZero() && now.After(r.Expires)
}

// Manager is a concurrency-safe, rule-based security oracle.  The zero value
// is not usable; construct one with New.
type Manager struct {
	mtx sync.RWMutex

	rules      []Rule
	generation uint64

	// lastSanityGeneration is the rule generation as of the start of the most
	// recently completed sanity pass.  An address matching a deny rule with a
	// generation greater than this value, that did not match any deny rule at
	// or before this generation, is "newly" denied.
	lastSanityGeneration uint64

	// deniedFilter is an approximate membership filter consulted by
	// IsDenied. It does not shortcut a lookup: IsDenied scans the rule set
	// whether the filter reports a hit or a miss, and adds an address to the
	// filter only when a hit is confirmed denied by that scan.
	deniedFilter *apbf.Filter

	// allowCache short-circuits repeat lookups for addresses that were
	// recently confirmed clean. Ban clears it, since a new deny rule can
	// make any cached verdict stale.
	allowCache *lru.Map[string, struct{}]

	sanityCh chan struct{}
}

// New returns an initialized, empty security oracle.
func New() *Manager {
	return &Manager{
		deniedFilter: apbf.NewFilter(deniedFilterCapacity, deniedFilterFPRate),
		allowCache:   lru.NewMapWithDefaultTTL[string, struct{}](allowCacheLimit, allowCacheTTL),
		sanityCh:     make(chan struct{}, 1),
	}
}

// Ban adds a deny rule for the given network and wakes any pending sanity
// check listener. expires may be the zero Time for a rule that never
// expires.
func (m *Manager) Ban(network net.IPNet, comment string, expires time.Time) {
	m.mtx.Lock()
	m.generation++
	m.rules = append(m.rules, Rule{
		Network:    network,
		Deny:       true,
		Comment:    comment,
		Expires:    expires,
		generation: m.generation,
	})
	m.allowCache.Clear()
	m.mtx.Unlock()

	log.Infof("Added deny rule for %s (%s)", network.String(), comment)
	m.BeginSanityCheck()
}

// Allow adds an allow rule for the given network, carving an exception out of
// any broader deny rules added earlier.
func (m *Manager) Allow(network net.IPNet, comment string) {
	m.mtx.Lock()
	m.generation++
	m.rules = append(m.rules, Rule{
		Network:    network,
		Deny:       false,
		Comment:    comment,
		generation: m.generation,
	})
	m.mtx.Unlock()
}

// RLock acquires the oracle's read lock.  Callers performing a bulk scan
// (such as the host cache's sanity pass) must acquire this before acquiring
// any lock of their own, and must use the Locked query variants for the
// duration of the scan rather than the locking convenience methods.
func (m *Manager) RLock() { m.mtx.RLock() }

// RUnlock releases the oracle's read lock.
func (m *Manager) RUnlock() { m.mtx.RUnlock() }

// isDeniedAsOf reports whether addr matches a deny rule with a generation no
// greater than maxGeneration that is not overridden by a later allow rule at
// or before the same bound. The oracle's lock must be held by the caller.
func (m *Manager) isDeniedAsOf(ip net.IP, maxGeneration uint64) bool {
	now := time.Now()
	denied := false
	for i := range m.rules {
		r := &m.rules[i]
		if r.generation > maxGeneration || r.expired(now) {
			continue
		}
		if r.Network.Contains(ip) {
			denied = r.Deny
		}
	}
	return denied
}

// IsDeniedLocked reports whether addr is currently denied. The caller must
// already hold the oracle's read lock via RLock.
func (m *Manager) IsDeniedLocked(addr g2addr.Endpoint) bool {
	return m.isDeniedAsOf(addr.IP(), m.generation)
}

// IsNewlyDeniedLocked reports whether addr is denied now but was not denied
// as of the start of the last completed sanity pass. The caller must already
// hold the oracle's read lock via RLock.
func (m *Manager) IsNewlyDeniedLocked(addr g2addr.Endpoint) bool {
	return m.isDeniedAsOf(addr.IP(), m.generation) &&
		!m.isDeniedAsOf(addr.IP(), m.lastSanityGeneration)
}

// IsDenied reports whether addr currently matches a deny rule. It is safe to
// call without holding any lock.
func (m *Manager) IsDenied(addr g2addr.Endpoint) bool {
	key := addr.Key()
	if _, ok := m.allowCache.Get(key); ok {
		return false
	}
	if !m.deniedFilter.Contains([]byte(key)) {
		// A filter miss does not settle the verdict: a deny rule added
		// since the last lookup can match an address the filter has never
		// seen, so the rule set is scanned here as well.
		m.mtx.RLock()
		denied := m.isDeniedAsOf(addr.IP(), m.generation)
		m.mtx.RUnlock()
		if !denied {
			m.allowCache.Put(key, struct{}{})
		}
		return denied
	}

	m.mtx.RLock()
	denied := m.isDeniedAsOf(addr.IP(), m.generation)
	m.mtx.RUnlock()
	if denied {
		m.deniedFilter.Add([]byte(key))
	} else {
		m.allowCache.Put(key, struct{}{})
	}
	return denied
}

// IsNewlyDenied reports whether addr is denied now but was not denied as of
// the start of the last completed sanity pass. It is safe to call without
// holding any lock.
func (m *Manager) IsNewlyDenied(addr g2addr.Endpoint) bool {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.IsNewlyDeniedLocked(addr)
}

// BeginSanityCheck signals that a bulk revocation pass should run against
// every collaborator holding addresses that might now be denied. It never
// blocks: if a sanity check is already pending, the request is coalesced.
func (m *Manager) BeginSanityCheck() {
	select {
	case m.sanityCh <- struct{}{}:
	default:
	}
}

// SanityCheckRequests returns the channel collaborators should range over (or
// select on) to be notified when a sanity pass should run.
func (m *Manager) SanityCheckRequests() <-chan struct{} {
	return m.sanityCh
}

// SanityCheckPerformed must be called by every collaborator after it
// completes a sanity pass. Once all collaborators have reported in, the
// caller advances the oracle's notion of "as of the last pass", which is
// what IsNewlyDenied measures against; wiring that fan-in is left to the
// caller, so a single-collaborator setup (the common case) may call this
// directly after its own pass completes.
func (m *Manager) SanityCheckPerformed() {
	m.mtx.Lock()
	m.lastSanityGeneration = m.generation
	m.mtx.Unlock()
}
