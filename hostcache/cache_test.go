// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hostcache

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/quazaa-development-team/g2hostcache/g2addr"
	"github.com/quazaa-development-team/g2hostcache/security"
)

// newTestCache returns an unstarted Cache with a fake, caller-controlled
// clock and no snapshot path, backed by a fresh security.Manager.
func newTestCache(cfg Config) (*Cache, *uint32) {
	var clock uint32 = 1_700_000_000
	c := New(security.New(), "", cfg)
	c.now = func() uint32 { return clock }
	return c, &clock
}

func mustEndpoint(t *testing.T, s string) g2addr.Endpoint {
	t.Helper()
	ep, err := g2addr.Parse(s)
	if err != nil {
		t.Fatalf("g2addr.Parse(%q): %v", s, err)
	}
	return ep
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FailureLimit = 3
	cfg.HostCacheSize = 0
	return cfg
}

// checkInvariants verifies the structural properties that must hold after
// every mutation: failure bounds, bucket placement, selfIter back-pointers,
// unique addresses, the size counter, the sentinel count, and AP[0] being
// first. It does not check timestamp order within a bucket.
func checkInvariants(t *testing.T, c *Cache) {
	t.Helper()

	maxFailures := c.buckets.maxFailures()
	seen := make(map[string]bool)
	var count int32
	bucket := -1

	for it := c.buckets.front(); it != nil; it = it.Next() {
		s := it.Value.(*slot)
		if s.host == nil {
			bucket++
			continue
		}
		count++
		if s.host.failures > maxFailures {
			t.Fatalf("entry %s has failures=%d exceeding maxFailures=%d",
				s.host.address, s.host.failures, maxFailures)
		}
		if int(s.host.failures) != bucket {
			t.Fatalf("entry %s has failures=%d but sits in bucket %d",
				s.host.address, s.host.failures, bucket)
		}
		if s.host.selfIter != it {
			t.Fatalf("entry %s's selfIter does not point back to its own position", s.host.address)
		}
		key := s.host.address.Key()
		if seen[key] {
			t.Fatalf("address %s appears more than once in the cache", key)
		}
		seen[key] = true
	}

	if got := c.buckets.Size(); got != count {
		t.Fatalf("bucket size counter = %d, want %d", got, count)
	}
	if got := len(c.buckets.aps); got != int(maxFailures)+2 {
		t.Fatalf("sentinel count = %d, want %d", got, int(maxFailures)+2)
	}
	if c.buckets.front() != c.buckets.aps[0] {
		t.Fatalf("AP[0] is not the first slot in the sequence")
	}
}

func TestAddThenGetConnectableAfterMaintenance(t *testing.T) {
	c, clock := newTestCache(testConfig())
	addr := mustEndpoint(t, "1.2.3.4:6346")

	c.mtx.Lock()
	c.addCore(addr, 100, *clock, 0)
	c.mtx.Unlock()

	if c.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", c.Count())
	}

	c.mtx.Lock()
	c.maintainLocked()
	got := c.GetConnectable(nil, "ZZ")
	c.mtx.Unlock()

	if got == nil {
		t.Fatal("GetConnectable returned nil after maintenance recomputed connectable")
	}
	if !got.address.Equal(addr) {
		t.Fatalf("GetConnectable returned %s, want %s", got.address, addr)
	}
	checkInvariants(t, c)
}

func TestDuplicateAddIsIdempotent(t *testing.T) {
	c, clock := newTestCache(testConfig())
	addr := mustEndpoint(t, "1.2.3.4:6346")

	c.mtx.Lock()
	c.addCore(addr, 100, *clock, 0)
	c.addCore(addr, 100, *clock, 0)
	c.mtx.Unlock()

	if c.Count() != 1 {
		t.Fatalf("Count() = %d after duplicate add, want 1", c.Count())
	}
	checkInvariants(t, c)
}

func TestXTryOrderingByRecency(t *testing.T) {
	c, clock := newTestCache(testConfig())
	older := mustEndpoint(t, "1.1.1.1:1")
	newer := mustEndpoint(t, "2.2.2.2:2")

	c.mtx.Lock()
	c.addCore(older, 300, *clock, 0)
	c.addCore(newer, 400, *clock, 0)
	c.mtx.Unlock()

	header := c.GetXTry()
	wantNewer := formatXTryEntry(newer, 400)
	wantOlder := formatXTryEntry(older, 300)
	want := "X-Try-Hubs: " + wantNewer + "," + wantOlder
	if header != want {
		t.Fatalf("GetXTry() = %q, want %q", header, want)
	}
	checkInvariants(t, c)
}

func TestOnFailureMovesBucketAndPreservesOrder(t *testing.T) {
	c, clock := newTestCache(testConfig())
	a := mustEndpoint(t, "9.9.9.9:1")
	b := mustEndpoint(t, "8.8.8.8:2")

	c.mtx.Lock()
	c.addCore(a, 100, *clock, 0)
	c.addCore(b, 200, *clock, 0)
	c.onFailure(a)
	c.onFailure(a)
	c.mtx.Unlock()

	entryA := c.addrIndex[a.Key()]
	if entryA.failures != 2 {
		t.Fatalf("entry A failures = %d, want 2", entryA.failures)
	}

	// Global order: bucket 0 (B) must precede bucket 2 (A).
	var order []string
	for it := c.buckets.front(); it != nil; it = it.Next() {
		if s := it.Value.(*slot); s.host != nil {
			order = append(order, s.host.address.Key())
		}
	}
	if len(order) != 2 || order[0] != b.Key() || order[1] != a.Key() {
		t.Fatalf("global order = %v, want [%s %s]", order, b.Key(), a.Key())
	}
	checkInvariants(t, c)
}

func TestOnFailureEvictsAtMaintenanceAfterCeiling(t *testing.T) {
	c, clock := newTestCache(testConfig())
	addr := mustEndpoint(t, "3.3.3.3:6346")

	c.mtx.Lock()
	c.addCore(addr, 100, *clock, 0)
	for i := 0; i < int(c.config().FailureLimit)+1; i++ {
		c.onFailure(addr)
	}
	if entry := c.addrIndex[addr.Key()]; entry == nil || entry.failures != c.config().FailureLimit {
		t.Fatalf("entry failures did not clamp at the ceiling")
	}

	// One maintenance pass with a lowered ceiling evicts it.
	cfg := c.config()
	cfg.FailureLimit = 1
	c.cfg.Store(&cfg)
	c.maintainLocked()
	c.mtx.Unlock()

	if _, ok := c.addrIndex[addr.Key()]; ok {
		t.Fatal("entry at the failure ceiling survived a ceiling reduction below it")
	}
	checkInvariants(t, c)
}

func TestUpdateFailuresOverLimitDrops(t *testing.T) {
	c, clock := newTestCache(testConfig())
	addr := mustEndpoint(t, "4.4.4.4:6346")

	c.mtx.Lock()
	c.addCore(addr, 100, *clock, 0)
	c.updateFailures(addr, c.config().FailureLimit+1)
	c.mtx.Unlock()

	if _, ok := c.addrIndex[addr.Key()]; ok {
		t.Fatal("updateFailures above the ceiling should drop the entry")
	}
}

func TestAddCoreClampsFutureTimestamp(t *testing.T) {
	c, clock := newTestCache(testConfig())
	addr := mustEndpoint(t, "5.5.5.5:6346")

	c.mtx.Lock()
	entry := c.addCore(addr, *clock+1000, *clock, 0)
	c.mtx.Unlock()

	if entry == nil {
		t.Fatal("addCore returned nil for a future timestamp; want clamped acceptance")
	}
	if entry.timestamp != *clock-60 {
		t.Fatalf("timestamp = %d, want %d", entry.timestamp, *clock-60)
	}
}

func TestAddCoreRejectsLocalAddress(t *testing.T) {
	c, clock := newTestCache(testConfig())
	addr := mustEndpoint(t, "6.6.6.6:6346")

	// LocalAddressChanged is a mailbox message normally serviced by the
	// actor goroutine; the actor isn't running in this test, so the local
	// address is set directly instead of going through the channel.
	c.mtx.Lock()
	c.lamtx.Lock()
	c.localAddr = addr
	c.lamtx.Unlock()
	entry := c.addCore(addr, 100, *clock, 0)
	c.mtx.Unlock()

	if entry != nil {
		t.Fatal("addCore admitted the cache's own local address")
	}
}

func TestAddCoreRejectsDeniedAddress(t *testing.T) {
	sec := security.New()
	addr := mustEndpoint(t, "7.7.7.7:6346")
	sec.Ban(net.IPNet{IP: net.ParseIP("7.7.7.7"), Mask: net.CIDRMask(32, 32)}, "test ban", time.Time{})

	c := New(sec, "", testConfig())
	var clock uint32 = 1_700_000_000
	c.now = func() uint32 { return clock }

	c.mtx.Lock()
	entry := c.addCore(addr, 100, clock, 0)
	c.mtx.Unlock()

	if entry != nil {
		t.Fatal("addCore admitted a denied address")
	}
}

func TestRemoveWorstOnEmptyCacheIsNoop(t *testing.T) {
	c, _ := newTestCache(testConfig())

	c.mtx.Lock()
	failure := c.buckets.maxFailures()
	removed := c.removeWorst(&failure)
	c.mtx.Unlock()

	if removed {
		t.Fatal("removeWorst on an empty cache reported a removal")
	}
	checkInvariants(t, c)
}

func TestSizeCapEvictsQuarter(t *testing.T) {
	cfg := testConfig()
	cfg.HostCacheSize = 8
	c, clock := newTestCache(cfg)

	c.mtx.Lock()
	for i := 0; i < 10; i++ {
		addr := mustEndpoint(t, ipFromIndex(i))
		c.addCore(addr, *clock-uint32(i), *clock, 0)
	}
	c.maintainLocked()
	c.mtx.Unlock()

	if got := c.Count(); got > 6 {
		t.Fatalf("Count() = %d after cap maintenance, want <= 6", got)
	}
	checkInvariants(t, c)
}

func TestReshapeShrinkEvictsOverflowBuckets(t *testing.T) {
	cfg := testConfig()
	cfg.FailureLimit = 5
	c, clock := newTestCache(cfg)

	addrs := make([]g2addr.Endpoint, 0)
	c.mtx.Lock()
	for f := uint8(0); f <= 5; f++ {
		addr := mustEndpoint(t, ipFromIndex(int(f)))
		c.addCore(addr, *clock, *clock, f)
		addrs = append(addrs, addr)
	}

	newCfg := c.config()
	newCfg.FailureLimit = 2
	c.cfg.Store(&newCfg)
	c.maintainLocked()
	c.mtx.Unlock()

	for _, addr := range addrs {
		entry, ok := c.addrIndex[addr.Key()]
		if !ok {
			continue
		}
		if entry.failures > 2 {
			t.Fatalf("entry %s with failures=%d survived a reshape to FailureLimit=2", addr, entry.failures)
		}
	}
	if got := c.buckets.maxFailures(); got != 2 {
		t.Fatalf("maxFailures after reshape = %d, want 2", got)
	}
	checkInvariants(t, c)
}

func TestXTryParsingSkipsMalformedTokens(t *testing.T) {
	c, clock := newTestCache(testConfig())

	header := "5.6.7.8:1 2010-02-23T16:17Z, bad 2010, 9.9.9.9:2"
	c.mtx.Lock()
	c.addXTry(header, *clock)
	c.mtx.Unlock()

	if got := c.Count(); got != 2 {
		t.Fatalf("Count() after addXTry = %d, want 2", got)
	}

	c.mtx.Lock()
	bare := c.findLocked(mustEndpoint(t, "9.9.9.9:2"))
	c.mtx.Unlock()
	if bare == nil {
		t.Fatalf("bare ip:port token with no timestamp was not admitted")
	}
	if bare.timestamp != *clock {
		t.Fatalf("bare token timestamp = %d, want now (%d)", bare.timestamp, *clock)
	}
	checkInvariants(t, c)
}

func ipFromIndex(i int) string {
	return fmt.Sprintf("10.0.0.%d:6346", i+1)
}
