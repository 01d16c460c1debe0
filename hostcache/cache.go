// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hostcache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/decred/dcrd/crypto/rand"

	"github.com/quazaa-development-team/g2hostcache/g2addr"
	"github.com/quazaa-development-team/g2hostcache/security"
)

// maintenanceInterval is how often the actor re-runs maintenance, matching
// spec.md §4.E.
const maintenanceInterval = 10 * time.Second

// saveInterval is how long may elapse between persistence passes before
// maintenance forces one, matching spec.md §4.E step 3.
const saveInterval = 600

// snapshotVersion is the single global constant persisted in every
// snapshot file's header. Changing the on-disk record layout requires
// bumping this, which makes every existing snapshot file be treated as
// absent rather than misread.
const snapshotVersion uint16 = 1

// Cache is the G2 host cache actor described by this repository's design:
// a single goroutine owns every mutation to the underlying bucketList,
// reached only through the mailbox methods below. The zero value is not
// usable; construct one with New.
type Cache struct {
	// mtx guards buckets, addrIndex, cfg's dereferenced snapshot, tLastSave,
	// and everything else the actor and synchronous inspectors touch
	// together. The actor holds it for the duration of every dispatched
	// message and every maintenance pass.
	mtx sync.Mutex

	buckets   *bucketList
	addrIndex map[string]*HostEntry

	tLastSave uint32

	nextID uint32 // atomic

	cfg atomic.Pointer[Config]

	lamtx     sync.Mutex
	localAddr g2addr.Endpoint

	security *security.Manager
	snapshot string

	// now returns the current UTC-seconds time. It is a field rather than a
	// bare call to time.Now so tests can inject a deterministic clock.
	now func() uint32

	requests chan interface{}
	quit     chan struct{}
	wg       sync.WaitGroup

	started  int32
	shutdown int32

	// hostInfo, if non-nil, is offered each real entry on every
	// RequestHostInfo call and each entry admitted by a mutation, by a
	// non-blocking send that drops the entry when the receiver is not
	// ready, mirroring the original's
	// hostInfo(entry) Qt signal used to populate a UI table model. Nil by
	// default: most callers, and every test, have no UI to feed.
	hostInfo chan<- *HostEntry
}

// realNow returns the current time as UTC seconds, clamped to fit uint32
// (valid until the year 2106).
func realNow() uint32 { return uint32(time.Now().Unix()) }

// New returns an unstarted Cache backed by the given security oracle and
// persisting its snapshot at snapshotPath. Call Start before using it.
func New(sec *security.Manager, snapshotPath string, cfg Config) *Cache {
	c := &Cache{
		buckets:   newBucketList(cfg.FailureLimit),
		addrIndex: make(map[string]*HostEntry),
		security:  sec,
		snapshot:  snapshotPath,
		now:       realNow,
		requests:  make(chan interface{}),
		quit:      make(chan struct{}),
	}
	c.cfg.Store(&cfg)
	return c
}

// config returns the currently active settings snapshot.
func (c *Cache) config() Config { return *c.cfg.Load() }

// SetConfig installs new settings. Per spec.md §4.I, nothing happens
// synchronously; the next maintenance pass observes the change.
func (c *Cache) SetConfig(cfg Config) {
	select {
	case c.requests <- msgSetConfig{cfg: cfg}:
	case <-c.quit:
	}
}

// SetHostInfoSink installs the channel RequestHostInfo and newly admitted
// entries are reported on. Must be called before Start.
func (c *Cache) SetHostInfoSink(ch chan<- *HostEntry) { c.hostInfo = ch }

// Maintain posts a request to run a maintenance pass immediately, without
// waiting for the next timer tick. Collaborators that just made a bulk
// change (a large AddXTry ingest, a SetConfig lowering the failure limit)
// can use this to see the effect reflected in GetConnectable right away.
func (c *Cache) Maintain() {
	select {
	case c.requests <- msgMaintain{}:
	case <-c.quit:
	}
}

// Start loads the persisted snapshot, runs one maintenance pass, and spawns
// the actor goroutine that services the mailbox and the maintenance timer
// thereafter. Calling Start more than once has no effect.
//
// This function is safe for concurrent access.
func (c *Cache) Start() {
	if atomic.AddInt32(&c.started, 1) != 1 {
		return
	}

	c.mtx.Lock()
	if err := c.load(); err != nil {
		log.Warnf("Failed to load host cache snapshot: %v", err)
	}
	c.maintainLocked()
	c.mtx.Unlock()

	c.wg.Add(1)
	go c.run()
}

// Stop drains the mailbox, performs a final save, and shuts the actor down.
// Calling Stop before Start, or more than once, has no effect beyond the
// first call.
//
// This function is safe for concurrent access.
func (c *Cache) Stop() error {
	if atomic.AddInt32(&c.shutdown, 1) != 1 {
		log.Warnf("Host cache is already shutting down")
		return nil
	}
	close(c.quit)
	c.wg.Wait()
	return nil
}

// run is the actor loop. It must be started as a goroutine.
func (c *Cache) run() {
	defer c.wg.Done()

	// Jitter the first tick so that many caches created in the same
	// process (or the same test run) don't all perform their first
	// maintenance pass in lockstep.
	initialDelay := rand.Duration(maintenanceInterval)
	timer := time.NewTimer(initialDelay)
	defer timer.Stop()

out:
	for {
		select {
		case req := <-c.requests:
			if _, ok := req.(msgSanityCheck); ok {
				// The security oracle's lock must be acquired before the
				// cache mutex (fixed order: oracle -> cache), so this
				// message bypasses dispatch's blanket Lock and takes
				// both itself, in that order.
				c.sanityCheckLocked()
			} else {
				c.dispatch(req)
			}

		case <-timer.C:
			c.mtx.Lock()
			c.maintainLocked()
			c.mtx.Unlock()
			timer.Reset(maintenanceInterval)

		case <-c.quit:
			break out
		}
	}

	c.mtx.Lock()
	c.save()
	c.mtx.Unlock()
}

// dispatch handles one mailbox message. It must only be called from run.
func (c *Cache) dispatch(req interface{}) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	switch msg := req.(type) {
	case msgAdd:
		c.addCore(msg.addr, msg.ts, c.now(), 0)

	case msgAddKey:
		if e := c.addCore(msg.addr, msg.ts, msg.now, 0); e != nil {
			e.setKey(msg.key, msg.now, msg.keyHost)
		}

	case msgAddAck:
		if e := c.addCore(msg.addr, msg.ts, msg.now, 0); e != nil {
			e.setAck(msg.ack)
		}

	case msgUpdateFailures:
		c.updateFailures(msg.addr, msg.failures)

	case msgOnFailure:
		c.onFailure(msg.addr)

	case msgRemove:
		c.removeAddr(msg.addr)

	case msgAddXTry:
		c.addXTry(msg.header, c.now())

	case msgMaintain:
		c.maintainLocked()

	case msgLocalAddressChanged:
		c.lamtx.Lock()
		c.localAddr = msg.addr
		c.lamtx.Unlock()

	case msgSetConfig:
		c.cfg.Store(&msg.cfg)

	default:
		log.Warnf("Host cache: unrecognized mailbox message %T", req)
	}
}

// localAddress returns the currently cached local address.
func (c *Cache) localAddress() g2addr.Endpoint {
	c.lamtx.Lock()
	defer c.lamtx.Unlock()
	return c.localAddr
}

// LocalAddressChanged notifies the cache that the network layer's local
// address has changed, so future insertions of that address are rejected.
func (c *Cache) LocalAddressChanged(addr g2addr.Endpoint) {
	select {
	case c.requests <- msgLocalAddressChanged{addr: addr}:
	case <-c.quit:
	}
}

// Count returns the number of real entries currently cached. It consults
// only the atomic size counter and never blocks.
func (c *Cache) Count() int { return int(c.buckets.Size()) }

// IsEmpty reports whether the cache currently holds no entries.
func (c *Cache) IsEmpty() bool { return c.buckets.Size() == 0 }

// nextEntryID assigns the next monotonic UI-correlation identifier.
func (c *Cache) nextEntryID() uint32 { return atomic.AddUint32(&c.nextID, 1) }

// emitHostInfo reports entry to the host info sink, if one is installed.
func (c *Cache) emitHostInfo(entry *HostEntry) {
	if c.hostInfo == nil {
		return
	}
	select {
	case c.hostInfo <- entry:
	default:
		// A slow or absent UI consumer must never stall the actor.
	}
}
