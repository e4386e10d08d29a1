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
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/easyfs/pkg/blockdev"
)

const testBlockSize = 64

func setUp(t *testing.T, blocks uint32, capacity int) (*blockdev.MemDevice, *Manager) {
	t.Helper()
	dev := blockdev.NewMemDevice(testBlockSize, blocks)
	return dev, NewManager(dev, capacity)
}

func deviceBlock(dev *blockdev.MemDevice, id uint32) []byte {
	return dev.Bytes()[int(id)*testBlockSize : int(id+1)*testBlockSize]
}

func TestModifyIsWrittenBackOnSync(t *testing.T) {
	dev, m := setUp(t, 8, 4)

	m.Modify(3, 10, func(b []byte) {
		copy(b, "hello")
	})
	if got := deviceBlock(dev, 3)[10:15]; bytes.Equal(got, []byte("hello")) {
		t.Fatalf("device updated before sync")
	}

	var got []byte
	m.Read(3, 10, func(b []byte) {
		got = append(got, b[:5]...)
	})
	if string(got) != "hello" {
		t.Errorf("Read after Modify = %q, want %q", got, "hello")
	}

	m.SyncAll()
	if got := deviceBlock(dev, 3)[10:15]; !bytes.Equal(got, []byte("hello")) {
		t.Errorf("device block 3 = %q after SyncAll, want %q", got, "hello")
	}

	// A second SyncAll has nothing to write.
	m.SyncAll()
	if diff := cmp.Diff(Stats{Hits: 1, Misses: 1, Writebacks: 1}, m.Stats()); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestEvictionOrder(t *testing.T) {
	_, m := setUp(t, 16, 4)
	read := func(id uint32) { m.Read(id, 0, func([]byte) {}) }

	for id := uint32(0); id < 4; id++ {
		read(id)
	}
	read(0) // 0 becomes most recently used.
	read(4) // Evicts 1.
	if diff := cmp.Diff(Stats{Hits: 1, Misses: 5, Evictions: 1}, m.Stats()); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}

	read(0) // Still resident.
	read(1) // Reloaded, evicting 2.
	read(3) // Still resident.
	if diff := cmp.Diff(Stats{Hits: 3, Misses: 6, Evictions: 2}, m.Stats()); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
	if got := m.Len(); got != 4 {
		t.Errorf("Len() = %d, want 4", got)
	}
}

func TestEvictionWritesBack(t *testing.T) {
	dev, m := setUp(t, 16, 4)

	m.Modify(0, 0, func(b []byte) {
		IndirectBlock(b).Set(0, 0xdeadbeef)
	})
	for id := uint32(1); id <= 4; id++ {
		m.Read(id, 0, func([]byte) {})
	}
	if got := binary.LittleEndian.Uint32(deviceBlock(dev, 0)); got != 0xdeadbeef {
		t.Errorf("evicted dirty block not written back: got %#x", got)
	}

	var got uint32
	m.Read(0, 0, func(b []byte) {
		got = IndirectBlock(b).Get(0)
	})
	if got != 0xdeadbeef {
		t.Errorf("reloaded block 0 slot 0 = %#x, want %#x", got, 0xdeadbeef)
	}
	if s := m.Stats(); s.Writebacks != 1 || s.Evictions != 2 {
		t.Errorf("Stats = %+v, want 1 writeback and 2 evictions", s)
	}
}

func TestPinnedEntriesAreNotEvicted(t *testing.T) {
	_, m := setUp(t, 16, 4)

	var pinned []*Cache
	for id := uint32(0); id < 4; id++ {
		pinned = append(pinned, m.Get(id))
	}

	done := make(chan *Cache)
	go func() {
		done <- m.Get(9)
	}()

	select {
	case <-done:
		t.Fatalf("Get returned while every block was pinned")
	case <-time.After(100 * time.Millisecond):
	}

	m.Put(pinned[2])
	var c *Cache
	select {
	case c = <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Get did not return after a block was released")
	}
	if got := c.ID(); got != 9 {
		t.Errorf("got block %d, want 9", got)
	}
	m.Put(c)
	for _, p := range []*Cache{pinned[0], pinned[1], pinned[3]} {
		m.Put(p)
	}

	if s := m.Stats(); s.Waits == 0 || s.Evictions != 1 {
		t.Errorf("Stats = %+v, want at least one wait and exactly one eviction", s)
	}

	// Block 2 was the only candidate.
	before := m.Stats().Misses
	m.Read(0, 0, func([]byte) {})
	m.Read(1, 0, func([]byte) {})
	m.Read(3, 0, func([]byte) {})
	if got := m.Stats().Misses; got != before {
		t.Errorf("pinned blocks were evicted: misses went from %d to %d", before, got)
	}
}

func TestIndirectBlock(t *testing.T) {
	dev, m := setUp(t, 4, 4)
	m.Modify(1, 0, func(b []byte) {
		ib := IndirectBlock(b)
		if got, want := ib.Len(), testBlockSize/4; got != want {
			t.Errorf("Len() = %d, want %d", got, want)
		}
		for i := 0; i < ib.Len(); i++ {
			ib.Set(i, uint32(i*3+1))
		}
	})
	m.SyncAll()

	raw := deviceBlock(dev, 1)
	for i := 0; i < testBlockSize/4; i++ {
		if got, want := binary.LittleEndian.Uint32(raw[i*4:]), uint32(i*3+1); got != want {
			t.Errorf("slot %d on device = %d, want %d", i, got, want)
		}
	}
}

func TestConcurrentModify(t *testing.T) {
	const (
		blocks     = 12
		goroutines = 8
		iterations = 200
	)
	dev, m := setUp(t, blocks, 4)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				id := uint32((g + i) % blocks)
				m.Modify(id, 4*g, func(b []byte) {
					ib := IndirectBlock(b)
					ib.Set(0, ib.Get(0)+1)
				})
			}
		}(g)
	}
	wg.Wait()
	m.SyncAll()

	for g := 0; g < goroutines; g++ {
		var total uint32
		for id := uint32(0); id < blocks; id++ {
			total += binary.LittleEndian.Uint32(deviceBlock(dev, id)[4*g:])
		}
		if total != iterations {
			t.Errorf("goroutine %d: counted %d increments, want %d", g, total, iterations)
		}
	}
}

func TestDeviceErrorPanics(t *testing.T) {
	_, m := setUp(t, 4, 4)
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("reading a block past the device did not panic")
		}
		if got := fmt.Sprint(r); !bytes.Contains([]byte(got), []byte("block 100")) {
			t.Errorf("panic %q does not name the block", got)
		}
	}()
	m.Read(100, 0, func([]byte) {})
}

func TestCapacity(t *testing.T) {
	dev := blockdev.NewMemDevice(testBlockSize, 4)
	if got := NewManager(dev, 0).Capacity(); got != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", got, DefaultCapacity)
	}
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("NewManager with capacity 1 did not panic")
		}
	}()
	NewManager(dev, 1)
}
