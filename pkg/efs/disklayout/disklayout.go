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

// Package disklayout provides the easyfs on-disk structures.
//
// All structures are little endian and are read and written in place in the
// block cache. Layout of a formatted device, in blocks:
//
//	| super block (1) | inode bitmap | inode area | data bitmap | data area |
//
// Addressing constants derive from the block size B: an index block holds
// P = B/4 block ids. A file addresses DirectCount blocks directly, P through
// Indirect1, P^2 through Indirect2 and P^3 through Indirect3.
package disklayout

import (
	"fmt"
	"math"
)

const (
	// DirectCount is the number of block ids held in the inode itself.
	DirectCount = 27

	// NameLengthLimit is the maximum length of a directory entry name.
	NameLengthLimit = 27
)

// Addressing holds the multi-level indexing bounds for one block size.
type Addressing struct {
	// BlockSize is B.
	BlockSize uint32

	// PerBlock is P, the number of ids in an index block.
	PerBlock uint32

	// Bound1, Bound2 and Bound3 are the first logical block indices that
	// are not addressed directly, through Indirect1 or through Indirect2.
	Bound1 uint32
	Bound2 uint32
	Bound3 uint32

	// MaxBlocks is the number of logical blocks addressable through
	// Indirect3.
	MaxBlocks uint32
}

// AddressingFor returns the addressing bounds for blocks of blockSize bytes.
func AddressingFor(blockSize int) Addressing {
	if blockSize < 16 || blockSize%8 != 0 {
		panic(fmt.Sprintf("disklayout: unsupported block size %d", blockSize))
	}
	p := uint32(blockSize / 4)
	a := Addressing{
		BlockSize: uint32(blockSize),
		PerBlock:  p,
		Bound1:    DirectCount,
	}
	a.Bound2 = a.Bound1 + p
	a.Bound3 = a.Bound2 + p*p
	a.MaxBlocks = a.Bound3 + p*p*p
	return a
}

// MaxFileSize returns the largest file size representable with a, limited by
// the 32-bit size field.
func (a Addressing) MaxFileSize() uint32 {
	n := uint64(a.MaxBlocks) * uint64(a.BlockSize)
	if n > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}

// DataBlocks returns the number of data blocks holding size bytes.
func (a Addressing) DataBlocks(size uint32) uint32 {
	return uint32((uint64(size) + uint64(a.BlockSize) - 1) / uint64(a.BlockSize))
}

// TotalBlocks returns the number of data and index blocks occupied by a file
// of size bytes.
func (a Addressing) TotalBlocks(size uint32) uint32 {
	p := a.PerBlock
	data := a.DataBlocks(size)
	total := data
	if data > a.Bound1 {
		total++
	}
	if data > a.Bound2 {
		total++
		total += min(ceilDiv(data-a.Bound2, p), p)
	}
	if data > a.Bound3 {
		rem := data - a.Bound3
		total += 1 + ceilDiv(rem, p*p) + ceilDiv(rem, p)
	}
	return total
}

func ceilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}

// level describes one indirect level: the first logical block it addresses,
// the number of blocks it can address and the depth of index blocks above the
// data blocks.
type level struct {
	base     uint32
	capacity uint32
	depth    int
}

func (a Addressing) levels() [3]level {
	p := a.PerBlock
	return [3]level{
		{base: a.Bound1, capacity: p, depth: 1},
		{base: a.Bound2, capacity: p * p, depth: 2},
		{base: a.Bound3, capacity: p * p * p, depth: 3},
	}
}

// span returns the number of data blocks below one slot of an index block of
// the given depth.
func (a Addressing) span(depth int) uint32 {
	s := uint32(1)
	for i := 1; i < depth; i++ {
		s *= a.PerBlock
	}
	return s
}
