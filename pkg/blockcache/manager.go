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

package blockcache

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/btree"
	"gvisor.dev/easyfs/pkg/blockdev"
	"gvisor.dev/easyfs/pkg/log"
	"gvisor.dev/easyfs/pkg/metric"
	"gvisor.dev/easyfs/pkg/sync"
)

// DefaultCapacity is the number of blocks kept in memory when no capacity is
// configured.
const DefaultCapacity = 16

// MinCapacity is the smallest supported pool. Filesystem operations pin at
// most a few blocks at a time.
const MinCapacity = 4

var (
	hitsMetric       = metric.MustCreateNewUint64Metric("/blockcache/hits", "Number of block lookups served from memory.")
	missesMetric     = metric.MustCreateNewUint64Metric("/blockcache/misses", "Number of block lookups that read the device.")
	evictionsMetric  = metric.MustCreateNewUint64Metric("/blockcache/evictions", "Number of blocks dropped from memory to make room.")
	writebacksMetric = metric.MustCreateNewUint64Metric("/blockcache/writebacks", "Number of dirty blocks written to the device.")
	waitsMetric      = metric.MustCreateNewUint64Metric("/blockcache/waits", "Number of lookups that waited for a block to be released.")
)

// Stats is a snapshot of the counters of one Manager.
type Stats struct {
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
	Waits      uint64
}

type stats struct {
	hits       atomic.Uint64
	misses     atomic.Uint64
	evictions  atomic.Uint64
	writebacks atomic.Uint64
	waits      atomic.Uint64
}

// Manager owns the bounded pool of Caches of one device.
type Manager struct {
	dev      blockdev.BlockDevice
	capacity int
	stats    stats
	waitLog  log.Logger

	// mu protects the fields below.
	mu sync.Mutex

	// released is signalled whenever an entry becomes evictable.
	released *sync.Cond

	// arena holds every resident entry, pinned or not.
	arena map[uint32]*Cache

	// lru holds the unpinned entries ordered by lastUse.
	lru *btree.BTreeG[*Cache]

	// tick is the logical clock for lastUse.
	tick uint64
}

func lessLastUse(a, b *Cache) bool {
	if a.lastUse != b.lastUse {
		return a.lastUse < b.lastUse
	}
	return a.id < b.id
}

// NewManager returns a Manager keeping at most capacity blocks of dev in
// memory. A capacity of zero selects DefaultCapacity.
func NewManager(dev blockdev.BlockDevice, capacity int) *Manager {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < MinCapacity {
		panic(fmt.Sprintf("blockcache: capacity %d below minimum %d", capacity, MinCapacity))
	}
	m := &Manager{
		dev:      dev,
		capacity: capacity,
		waitLog:  log.RateLimitedLogger(log.Log(), time.Second),
		arena:    make(map[uint32]*Cache, capacity),
		lru:      btree.NewG(2, lessLastUse),
	}
	m.released = sync.NewCond(&m.mu)
	return m
}

// BlockSize returns the block size of the underlying device.
func (m *Manager) BlockSize() int {
	return m.dev.BlockSize()
}

// NumBlocks returns the number of blocks on the device.
func (m *Manager) NumBlocks() uint32 {
	return m.dev.NumBlocks()
}

// Capacity returns the maximum number of resident blocks.
func (m *Manager) Capacity() int {
	return m.capacity
}

// Len returns the number of resident blocks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.arena)
}

// Stats returns the counters of m.
func (m *Manager) Stats() Stats {
	return Stats{
		Hits:       m.stats.hits.Load(),
		Misses:     m.stats.misses.Load(),
		Evictions:  m.stats.evictions.Load(),
		Writebacks: m.stats.writebacks.Load(),
		Waits:      m.stats.waits.Load(),
	}
}

// Get returns the pinned entry for block id, reading it from the device if
// it is not resident. The entry stays resident until the matching Put.
func (m *Manager) Get(id uint32) *Cache {
	m.mu.Lock()
	for {
		if c, ok := m.arena[id]; ok {
			if c.pins == 0 {
				m.lru.Delete(c)
			}
			c.pins++
			m.mu.Unlock()
			m.stats.hits.Add(1)
			hitsMetric.Increment()
			return c
		}
		if len(m.arena) < m.capacity {
			break
		}
		if victim, ok := m.lru.DeleteMin(); ok {
			m.evictLocked(victim)
			break
		}
		// Every resident block is pinned.
		m.stats.waits.Add(1)
		waitsMetric.Increment()
		m.waitLog.Warningf("Block cache exhausted: all %d blocks are in use, waiting to load block %d", m.capacity, id)
		m.released.Wait()
	}

	c := &Cache{
		id:   id,
		data: make([]byte, m.dev.BlockSize()),
		pins: 1,
		mgr:  m,
	}
	// Hold the entry lock across the load so concurrent users of the same
	// block wait for its content.
	c.mu.Lock()
	m.arena[id] = c
	m.mu.Unlock()

	m.stats.misses.Add(1)
	missesMetric.Increment()
	if err := m.dev.ReadBlock(id, c.data); err != nil {
		panic(fmt.Sprintf("blockcache: reading block %d: %v", id, err))
	}
	c.mu.Unlock()
	return c
}

// evictLocked drops c, which is unpinned and no longer in the lru, writing it
// back first if dirty. The write back happens under m.mu so that no reload of
// the same block can observe the stale device copy.
//
// +checklocks:m.mu
func (m *Manager) evictLocked(c *Cache) {
	c.Sync()
	delete(m.arena, c.id)
	m.stats.evictions.Add(1)
	evictionsMetric.Increment()
	if log.IsLogging(log.Debug) {
		log.Debugf("Evicted block %d", c.id)
	}
}

// Put releases an entry obtained with Get.
func (m *Manager) Put(c *Cache) {
	m.unpin(c, true)
}

// unpin drops one pin of c. If touch is set and c becomes evictable, it
// becomes the most recently used entry.
func (m *Manager) unpin(c *Cache, touch bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.pins <= 0 {
		panic(fmt.Sprintf("blockcache: Put of unpinned block %d", c.id))
	}
	c.pins--
	if c.pins == 0 {
		if touch {
			m.tick++
			c.lastUse = m.tick
		}
		m.lru.ReplaceOrInsert(c)
		m.released.Signal()
	}
}

// Read calls fn with the content of block id starting at offset. fn must not
// modify or retain the slice.
func (m *Manager) Read(id uint32, offset int, fn func(b []byte)) {
	c := m.Get(id)
	defer m.Put(c)
	c.Read(offset, fn)
}

// Modify calls fn with the mutable content of block id starting at offset
// and marks the block dirty.
func (m *Manager) Modify(id uint32, offset int, fn func(b []byte)) {
	c := m.Get(id)
	defer m.Put(c)
	c.Modify(offset, fn)
}

// SyncAll writes every dirty resident block back to the device, then syncs
// the device if it buffers writes.
//
// The caller must not be inside Read or Modify.
func (m *Manager) SyncAll() {
	m.mu.Lock()
	entries := make([]*Cache, 0, len(m.arena))
	for _, c := range m.arena {
		if c.pins == 0 {
			m.lru.Delete(c)
		}
		c.pins++
		entries = append(entries, c)
	}
	m.mu.Unlock()

	for _, c := range entries {
		c.Sync()
		m.unpin(c, false)
	}

	if s, ok := m.dev.(blockdev.Syncer); ok {
		if err := s.Sync(); err != nil {
			panic(fmt.Sprintf("blockcache: syncing device: %v", err))
		}
	}
}
