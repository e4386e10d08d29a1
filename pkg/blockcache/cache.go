// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package blockcache mediates every access to a block device through a
// bounded pool of in-memory block copies.
//
// A Cache mirrors exactly one device block. Callers obtain one pinned with
// Manager.Get, access its bytes with Read or Modify, and release it with
// Manager.Put. Unpinned entries are evicted least recently used first and
// written back if dirty. Device errors are fatal and cause a panic.
//
// Lock ordering:
//
//	Cache.mu
//	  Manager.mu
//	    Cache.mu of an unpinned entry (write back on eviction)
//
// A goroutine inside Read or Modify of one block may access other blocks, but
// never the block it already holds.
package blockcache

import (
	"encoding/binary"
	"fmt"

	"gvisor.dev/easyfs/pkg/sync"
)

// Cache is the in-memory copy of one device block.
type Cache struct {
	// id is the device block id. Immutable.
	id uint32

	// mu protects data and dirty. It is held by the loader while the block
	// is read from the device.
	mu    sync.Mutex
	data  []byte
	dirty bool

	// The fields below are protected by Manager.mu.

	// pins counts callers holding the entry. Entries with pins > 0 are
	// never evicted.
	pins int

	// lastUse is the Manager tick at which the entry was last unpinned. It
	// orders the evictable set and must not change while the entry is in it.
	lastUse uint64

	// mgr owns the entry. Immutable.
	mgr *Manager
}

// ID returns the block id mirrored by c.
func (c *Cache) ID() uint32 {
	return c.id
}

// Read calls fn with the block content starting at offset. fn must not
// modify or retain the slice.
func (c *Cache) Read(offset int, fn func(b []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.data[offset:])
}

// Modify calls fn with the mutable block content starting at offset and
// marks the block dirty. fn must not retain the slice.
func (c *Cache) Modify(offset int, fn func(b []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = true
	fn(c.data[offset:])
}

// Dirty returns whether c holds changes not yet written to the device.
func (c *Cache) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Sync writes c back to the device if it is dirty.
func (c *Cache) Sync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncLocked()
}

// +checklocks:c.mu
func (c *Cache) syncLocked() {
	if !c.dirty {
		return
	}
	if err := c.mgr.dev.WriteBlock(c.id, c.data); err != nil {
		panic(fmt.Sprintf("blockcache: writing back block %d: %v", c.id, err))
	}
	c.dirty = false
	c.mgr.stats.writebacks.Add(1)
	writebacksMetric.Increment()
}

// IndirectBlock is a view of a block as an array of little-endian uint32
// block ids. It aliases the block content and does not copy.
type IndirectBlock []byte

// Len returns the number of slots in the block.
func (ib IndirectBlock) Len() int {
	return len(ib) / 4
}

// Get returns slot i.
func (ib IndirectBlock) Get(i int) uint32 {
	return binary.LittleEndian.Uint32(ib[i*4:])
}

// Set stores v in slot i.
func (ib IndirectBlock) Set(i int, v uint32) {
	binary.LittleEndian.PutUint32(ib[i*4:], v)
}
