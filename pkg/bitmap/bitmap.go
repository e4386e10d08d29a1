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

// Package bitmap implements the on-disk allocation bitmaps of easyfs.
//
// A bitmap occupies a contiguous run of blocks. Each block is an array of
// little-endian 64-bit words, and bit j of word w of block b tracks unit
// b*bitsPerBlock + w*64 + j. A set bit means the unit is allocated.
package bitmap

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"gvisor.dev/easyfs/pkg/blockcache"
	"gvisor.dev/easyfs/pkg/errors/linuxerr"
)

// Bitmap is an allocator over the blocks [start, start+blocks) of a device.
// It holds no state of its own; all bits live in the block cache. Callers
// serialize Alloc and Dealloc.
type Bitmap struct {
	start  uint32
	blocks uint32
}

// New returns the bitmap stored in blocks [start, start+blocks).
func New(start, blocks uint32) Bitmap {
	return Bitmap{start: start, blocks: blocks}
}

// Blocks returns the number of blocks holding the bitmap.
func (b Bitmap) Blocks() uint32 {
	return b.blocks
}

// Maximum returns the number of units the bitmap can track with the given
// block size.
func (b Bitmap) Maximum(blockSize int) uint32 {
	return b.blocks * uint32(blockSize*8)
}

// firstZero returns the index of the first clear bit in words, or -1.
func firstZero(words []byte) int {
	for w := 0; w+8 <= len(words); w += 8 {
		if v := binary.LittleEndian.Uint64(words[w:]); v != math.MaxUint64 {
			return w*8 + bits.TrailingZeros64(^v)
		}
	}
	return -1
}

// Alloc sets the first clear bit and returns its unit index. It returns
// ENOSPC if every bit is set.
func (b Bitmap) Alloc(m *blockcache.Manager) (uint32, error) {
	bitsPerBlock := uint32(m.BlockSize() * 8)
	for i := uint32(0); i < b.blocks; i++ {
		pos := -1
		m.Modify(b.start+i, 0, func(data []byte) {
			pos = firstZero(data)
			if pos >= 0 {
				word := data[pos/64*8:]
				binary.LittleEndian.PutUint64(word, binary.LittleEndian.Uint64(word)|1<<(pos%64))
			}
		})
		if pos >= 0 {
			return i*bitsPerBlock + uint32(pos), nil
		}
	}
	return 0, linuxerr.ENOSPC
}

// locate returns the block and the byte offset of the word holding bit, and
// the bit position inside that word.
func (b Bitmap) locate(bit uint32, blockSize int) (block uint32, off int, shift uint) {
	bitsPerBlock := uint32(blockSize * 8)
	if bit >= b.blocks*bitsPerBlock {
		panic(fmt.Sprintf("bitmap: unit %d out of range [0, %d)", bit, b.blocks*bitsPerBlock))
	}
	rem := bit % bitsPerBlock
	return b.start + bit/bitsPerBlock, int(rem/64) * 8, uint(rem % 64)
}

// Dealloc clears bit. Clearing a bit that is not set is a fatal inconsistency.
func (b Bitmap) Dealloc(m *blockcache.Manager, bit uint32) {
	block, off, shift := b.locate(bit, m.BlockSize())
	m.Modify(block, off, func(data []byte) {
		v := binary.LittleEndian.Uint64(data)
		if v&(1<<shift) == 0 {
			panic(fmt.Sprintf("bitmap: freeing unallocated unit %d", bit))
		}
		binary.LittleEndian.PutUint64(data, v&^(1<<shift))
	})
}

// IsSet returns whether bit is allocated.
func (b Bitmap) IsSet(m *blockcache.Manager, bit uint32) bool {
	block, off, shift := b.locate(bit, m.BlockSize())
	set := false
	m.Read(block, off, func(data []byte) {
		set = binary.LittleEndian.Uint64(data)&(1<<shift) != 0
	})
	return set
}

// Allocated returns the number of set bits.
func (b Bitmap) Allocated(m *blockcache.Manager) uint32 {
	var n int
	for i := uint32(0); i < b.blocks; i++ {
		m.Read(b.start+i, 0, func(data []byte) {
			for w := 0; w+8 <= len(data); w += 8 {
				n += bits.OnesCount64(binary.LittleEndian.Uint64(data[w:]))
			}
		})
	}
	return uint32(n)
}
