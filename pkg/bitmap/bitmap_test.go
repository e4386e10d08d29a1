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

package bitmap

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/easyfs/pkg/blockcache"
	"gvisor.dev/easyfs/pkg/blockdev"
	"gvisor.dev/easyfs/pkg/errors/linuxerr"
)

const testBlockSize = 64 // 512 bits per block.

func setUp(t *testing.T, blocks uint32) (*blockdev.MemDevice, *blockcache.Manager, Bitmap) {
	t.Helper()
	dev := blockdev.NewMemDevice(testBlockSize, 1+blocks)
	return dev, blockcache.NewManager(dev, 4), New(1, blocks)
}

func TestAllocFirstFit(t *testing.T) {
	_, m, b := setUp(t, 2)
	if got, want := b.Maximum(testBlockSize), uint32(1024); got != want {
		t.Fatalf("Maximum() = %d, want %d", got, want)
	}

	var got []uint32
	for i := 0; i < 5; i++ {
		id, err := b.Alloc(m)
		if err != nil {
			t.Fatalf("Alloc failed: %v", err)
		}
		got = append(got, id)
	}
	if diff := cmp.Diff([]uint32{0, 1, 2, 3, 4}, got); diff != "" {
		t.Errorf("allocation order mismatch (-want +got):\n%s", diff)
	}

	// Freed units are reused lowest first.
	b.Dealloc(m, 3)
	b.Dealloc(m, 1)
	for _, want := range []uint32{1, 3, 5} {
		id, err := b.Alloc(m)
		if err != nil {
			t.Fatalf("Alloc failed: %v", err)
		}
		if id != want {
			t.Errorf("Alloc() = %d, want %d", id, want)
		}
	}
	if got := b.Allocated(m); got != 6 {
		t.Errorf("Allocated() = %d, want 6", got)
	}
}

func TestAllocExhaustion(t *testing.T) {
	_, m, b := setUp(t, 2)
	limit := b.Maximum(testBlockSize)
	for i := uint32(0); i < limit; i++ {
		id, err := b.Alloc(m)
		if err != nil {
			t.Fatalf("Alloc #%d failed: %v", i, err)
		}
		if id != i {
			t.Fatalf("Alloc #%d = %d", i, id)
		}
	}
	if _, err := b.Alloc(m); !linuxerr.Equals(linuxerr.ENOSPC, err) {
		t.Fatalf("Alloc on a full bitmap: got err %v, want %v", err, linuxerr.ENOSPC)
	}

	// A unit in the second block becomes available again.
	b.Dealloc(m, 700)
	if id, err := b.Alloc(m); err != nil || id != 700 {
		t.Errorf("Alloc() = (%d, %v), want (700, nil)", id, err)
	}
}

func TestOnDiskLayout(t *testing.T) {
	dev, m, b := setUp(t, 2)
	for i := 0; i < 70; i++ {
		if _, err := b.Alloc(m); err != nil {
			t.Fatalf("Alloc failed: %v", err)
		}
	}
	b.Dealloc(m, 2)
	m.SyncAll()

	raw := dev.Bytes()[testBlockSize : 2*testBlockSize]
	if got, want := binary.LittleEndian.Uint64(raw), ^uint64(0)&^(1<<2); got != want {
		t.Errorf("word 0 = %#x, want %#x", got, want)
	}
	if got, want := binary.LittleEndian.Uint64(raw[8:]), uint64(1<<6-1); got != want {
		t.Errorf("word 1 = %#x, want %#x", got, want)
	}
	if b.IsSet(m, 2) || !b.IsSet(m, 69) || b.IsSet(m, 70) {
		t.Errorf("IsSet disagrees with allocations")
	}
}

func TestDeallocUnallocatedPanics(t *testing.T) {
	_, m, b := setUp(t, 1)
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Dealloc of a clear bit did not panic")
		}
	}()
	b.Dealloc(m, 9)
}
