// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hostcache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quazaa-development-team/g2hostcache/g2addr"
)

// save serializes the cache to its snapshot path via a secured save: write
// to a sibling temp file, fsync, then atomically rename over the canonical
// path. On any error, the previous snapshot is left untouched and
// tLastSave is not advanced, so the next maintenance tick retries. The
// caller must hold c.mtx.
func (c *Cache) save() {
	if c.snapshot == "" {
		return
	}

	count, err := c.securedSave()
	if err != nil {
		log.Errorf("Failed to save host cache snapshot: %v", err)
		return
	}

	c.tLastSave = c.now()
	log.Debugf("Saved %d hosts", count)
}

// securedSave writes the current entry set to a temp file beside the
// snapshot path, fsyncs it, and renames it into place. It returns the
// number of entries written.
func (c *Cache) securedSave() (uint32, error) {
	tmp := c.snapshot + ".tmp"

	if err := os.MkdirAll(filepath.Dir(c.snapshot), 0o700); err != nil {
		return 0, fmt.Errorf("hostcache: creating snapshot directory: %w", err)
	}

	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("hostcache: opening temp file %s: %w", tmp, err)
	}

	count, writeErr := c.writeSnapshot(f)
	if writeErr != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("hostcache: writing snapshot: %w", writeErr)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("hostcache: syncing snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("hostcache: closing snapshot: %w", err)
	}
	if err := os.Rename(tmp, c.snapshot); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("hostcache: renaming snapshot into place: %w", err)
	}
	return count, nil
}

// writeSnapshot encodes every real entry to w in the format spec.md §4.F
// defines: a version, a count, then per-entry address/failures/timestamp/
// lastConnect records.
func (c *Cache) writeSnapshot(w io.Writer) (uint32, error) {
	count := uint32(c.buckets.Size())

	if err := binary.Write(w, binary.LittleEndian, snapshotVersion); err != nil {
		return 0, err
	}
	if err := binary.Write(w, binary.LittleEndian, count); err != nil {
		return 0, err
	}

	var written uint32
	for it := c.buckets.front(); it != nil; it = it.Next() {
		s := it.Value.(*slot)
		if s.host == nil {
			continue
		}
		if _, err := s.host.address.WriteTo(w); err != nil {
			return written, err
		}
		if err := binary.Write(w, binary.LittleEndian, s.host.failures); err != nil {
			return written, err
		}
		if err := binary.Write(w, binary.LittleEndian, s.host.timestamp); err != nil {
			return written, err
		}
		if err := binary.Write(w, binary.LittleEndian, s.host.lastConnect); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// load reads the persisted snapshot, if any, and admits every valid,
// non-denied entry via addCore, then immediately prunes expired entries.
// A missing file, a short read, or a version mismatch are all treated as
// an empty cache per spec.md §7; the caller must hold c.mtx.
func (c *Cache) load() error {
	if c.snapshot == "" {
		return nil
	}

	f, err := os.Open(c.snapshot)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("hostcache: opening snapshot %s: %w", c.snapshot, err)
	}
	defer f.Close()

	var version uint16
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		return fmt.Errorf("hostcache: reading snapshot header: %w", err)
	}
	if version != snapshotVersion {
		log.Warnf("Ignoring host cache snapshot with version %d (want %d)", version, snapshotVersion)
		return nil
	}

	var count uint32
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		return fmt.Errorf("hostcache: reading snapshot count: %w", err)
	}

	now := c.now()
	var loaded uint32
	var i uint32
	for ; i < count; i++ {
		addr, err := g2addr.ReadEndpoint(f)
		if err != nil {
			log.Warnf("Truncated host cache snapshot after %d of %d records", i, count)
			break
		}

		var failures uint8
		var timestamp, lastConnect uint32
		if err := binary.Read(f, binary.LittleEndian, &failures); err != nil {
			break
		}
		if err := binary.Read(f, binary.LittleEndian, &timestamp); err != nil {
			break
		}
		if err := binary.Read(f, binary.LittleEndian, &lastConnect); err != nil {
			break
		}

		if c.security != nil && c.security.IsDenied(addr) {
			continue
		}
		if timestamp > now {
			timestamp = now - 60
		}
		if lastConnect > now {
			lastConnect = now - 60
		}

		entry := c.addCore(addr, timestamp, now, failures)
		if entry != nil {
			entry.setLastConnect(lastConnect)
			loaded++
		}
	}
	if i < count {
		// A file cut short inside its records counts as empty.
		for _, e := range c.addrIndex {
			c.removeEntryLocked(e)
		}
		loaded = 0
	}

	c.pruneOldHostsLocked(now, c.config().HostExpire)
	log.Infof("Loaded %d hosts from %s", loaded, c.snapshot)
	return nil
}
