// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hostcache

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quazaa-development-team/g2hostcache/security"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "hostcache.dat")

	cfg := testConfig()
	c1 := New(security.New(), snapshot, cfg)
	var clock uint32 = 1_700_000_000
	c1.now = func() uint32 { return clock }

	a := mustEndpoint(t, "11.0.0.1:6346")
	b := mustEndpoint(t, "12.0.0.2:6346")

	c1.mtx.Lock()
	entryA := c1.addCore(a, clock-1000, clock, 1)
	entryA.setLastConnect(clock - 500)
	c1.addCore(b, clock-2000, clock, 0)
	c1.save()
	c1.mtx.Unlock()

	if _, err := os.Stat(snapshot); err != nil {
		t.Fatalf("snapshot file missing after save: %v", err)
	}
	if _, err := os.Stat(snapshot + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind after a successful save: %v", err)
	}

	c2 := New(security.New(), snapshot, cfg)
	c2.now = func() uint32 { return clock }

	c2.mtx.Lock()
	if err := c2.load(); err != nil {
		t.Fatalf("load() returned an error: %v", err)
	}
	c2.mtx.Unlock()

	if got := c2.Count(); got != 2 {
		t.Fatalf("Count() after load = %d, want 2", got)
	}

	gotA, ok := c2.addrIndex[a.Key()]
	if !ok {
		t.Fatalf("entry %s missing after load", a)
	}
	if gotA.failures != 1 {
		t.Fatalf("loaded entry failures = %d, want 1", gotA.failures)
	}
	if gotA.timestamp != clock-1000 {
		t.Fatalf("loaded entry timestamp = %d, want %d", gotA.timestamp, clock-1000)
	}
	if gotA.lastConnect != clock-500 {
		t.Fatalf("loaded entry lastConnect = %d, want %d", gotA.lastConnect, clock-500)
	}
}

func TestLoadMissingFileIsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "does-not-exist.dat")

	c := New(security.New(), snapshot, testConfig())
	c.mtx.Lock()
	err := c.load()
	c.mtx.Unlock()

	if err != nil {
		t.Fatalf("load() of a missing file returned %v, want nil", err)
	}
	if c.Count() != 0 {
		t.Fatalf("Count() after loading a missing file = %d, want 0", c.Count())
	}
}

func TestLoadTruncatedFileIsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "truncated.dat")

	// A header claiming one record, with no record bytes behind it.
	var buf bytes.Buffer
	buf.Write([]byte{byte(snapshotVersion), 0})
	buf.Write([]byte{1, 0, 0, 0})
	if err := os.WriteFile(snapshot, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	c := New(security.New(), snapshot, testConfig())
	c.mtx.Lock()
	err := c.load()
	c.mtx.Unlock()

	if err != nil {
		t.Fatalf("load() of a truncated file returned %v, want nil", err)
	}
	if c.Count() != 0 {
		t.Fatalf("Count() after loading a truncated file = %d, want 0", c.Count())
	}
}

func TestLoadWrongVersionIsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "wrongversion.dat")

	if err := os.WriteFile(snapshot, []byte{0xff, 0xff, 0, 0, 0, 0}, 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	c := New(security.New(), snapshot, testConfig())
	c.mtx.Lock()
	err := c.load()
	c.mtx.Unlock()

	if err != nil {
		t.Fatalf("load() of a wrong-version file returned %v, want nil", err)
	}
	if c.Count() != 0 {
		t.Fatalf("Count() after loading a wrong-version file = %d, want 0", c.Count())
	}
}

func TestLoadSkipsDeniedAddresses(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "denied.dat")

	sec1 := security.New()
	c1 := New(sec1, snapshot, testConfig())
	var clock uint32 = 1_700_000_000
	c1.now = func() uint32 { return clock }

	clean := mustEndpoint(t, "13.0.0.1:6346")
	toBan := mustEndpoint(t, "14.0.0.2:6346")

	c1.mtx.Lock()
	c1.addCore(clean, clock, clock, 0)
	c1.addCore(toBan, clock, clock, 0)
	c1.save()
	c1.mtx.Unlock()

	sec2 := security.New()
	sec2.Ban(net.IPNet{IP: toBan.IP(), Mask: net.CIDRMask(32, 32)}, "test", time.Time{})

	c2 := New(sec2, snapshot, testConfig())
	c2.now = func() uint32 { return clock }
	c2.mtx.Lock()
	if err := c2.load(); err != nil {
		t.Fatalf("load() returned %v", err)
	}
	c2.mtx.Unlock()

	if _, ok := c2.addrIndex[toBan.Key()]; ok {
		t.Fatal("load admitted an address that is now denied")
	}
	if _, ok := c2.addrIndex[clean.Key()]; !ok {
		t.Fatal("load dropped an address that was never denied")
	}
}
