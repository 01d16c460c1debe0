// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hostcache

import (
	"container/list"
	"sync/atomic"
)

// slot is the payload of every bucketList element. A slot with a nil host
// is a sentinel (an access point) marking the start of a failure bucket; a
// slot with a non-nil host is a real cached entry.
type slot struct {
	host *HostEntry
}

// bucketList is the ordered sequence described by the host cache design: a
// single container/list.List holding every real entry, interleaved with
// maxFailures+2 sentinel slots that partition it into contiguous regions,
// one per failure count plus a tail. Walking the list from front to back
// yields entries in global priority order: ascending failure count, and
// within a failure count, descending timestamp.
//
// bucketList is not safe for concurrent use on its own; all mutating access
// goes through the cache's actor goroutine while the cache mutex is held.
// The size field is the one exception, maintained with atomic arithmetic so
// Cache.Count and Cache.IsEmpty can avoid taking the mutex entirely.
type bucketList struct {
	seq list.List
	aps []*list.Element // access points AP[0..maxFailures+1]

	size int32
}

// newBucketList returns a bucketList skeleton of maxFailures+2 sentinels
// and no real entries.
func newBucketList(maxFailures uint8) *bucketList {
	b := &bucketList{aps: make([]*list.Element, int(maxFailures)+2)}
	for i := range b.aps {
		b.aps[i] = b.seq.PushBack(&slot{})
	}
	return b
}

// Size returns the number of real entries currently held, safe to call
// without the cache mutex.
func (b *bucketList) Size() int32 { return atomic.LoadInt32(&b.size) }

// maxFailures returns the highest admissible failure count given the
// current sentinel count.
func (b *bucketList) maxFailures() uint8 { return uint8(len(b.aps) - 2) }

// insert locates AP[entry.failures], walks forward past every real entry
// with a strictly greater timestamp, and inserts entry immediately before
// the next slot. It records the new position on entry.selfIter.
func (b *bucketList) insert(entry *HostEntry) {
	it := b.aps[entry.failures]
	it = it.Next()
	for it != nil {
		if s := it.Value.(*slot); s.host != nil && s.host.timestamp > entry.timestamp {
			it = it.Next()
			continue
		}
		break
	}

	var elem *list.Element
	if it == nil {
		// Unreachable in a well-formed list: the tail sentinel always
		// terminates the walk first. Guarded defensively rather than
		// asserted, per this cache's release-mode error policy.
		elem = b.seq.PushBack(&slot{host: entry})
	} else {
		elem = b.seq.InsertBefore(&slot{host: entry}, it)
	}
	entry.selfIter = elem
	atomic.AddInt32(&b.size, 1)
}

// remove erases the real slot at pos, which must not be a sentinel, and
// returns the element that followed it.
func (b *bucketList) remove(pos *list.Element) *list.Element {
	next := pos.Next()
	b.seq.Remove(pos)
	atomic.AddInt32(&b.size, -1)
	return next
}

// front returns the first element in the sequence, always AP[0].
func (b *bucketList) front() *list.Element { return b.seq.Front() }

// back returns the last element in the sequence, always the tail sentinel.
func (b *bucketList) back() *list.Element { return b.seq.Back() }

// reshapeGrow extends the sentinel array from its current length to
// newMax+2, appending additional tail sentinels after the current last
// element (which is always the tail sentinel).
func (b *bucketList) reshapeGrow(newMax uint8) {
	old := len(b.aps)
	want := int(newMax) + 2
	if want <= old {
		return
	}
	grown := make([]*list.Element, want)
	copy(grown, b.aps)

	last := b.seq.Back()
	for i := old; i < want; i++ {
		last = b.seq.InsertAfter(&slot{}, last)
		grown[i] = last
	}
	b.aps = grown
}

// reshapeShrink drops the trailing sentinels above newMax. The caller must
// have already evicted every entry whose failure count exceeds newMax, so
// each dropped access point's bucket is empty and the access point itself
// is the only slot to remove.
func (b *bucketList) reshapeShrink(newMax uint8) {
	old := len(b.aps)
	want := int(newMax) + 2
	if want >= old {
		return
	}
	for i := want; i < old; i++ {
		b.seq.Remove(b.aps[i])
	}
	b.aps = b.aps[:want]
}
