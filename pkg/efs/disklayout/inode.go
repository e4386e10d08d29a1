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

package disklayout

import (
	"fmt"

	"gvisor.dev/easyfs/pkg/binary"
	"gvisor.dev/easyfs/pkg/blockcache"
)

// InodeSize is the on-disk size of DiskInode.
const InodeSize = 132

// InodesPerBlock returns how many inodes fit in a block of blockSize bytes.
// Inodes never straddle a block boundary.
func InodesPerBlock(blockSize int) uint32 {
	return uint32(blockSize / InodeSize)
}

// InodeType is the type of the file an inode describes.
type InodeType uint8

// Inode types.
const (
	File InodeType = iota
	Directory
)

// String implements fmt.Stringer.
func (t InodeType) String() string {
	switch t {
	case File:
		return "file"
	case Directory:
		return "directory"
	default:
		return fmt.Sprintf("InodeType(%d)", uint8(t))
	}
}

// DiskInode is the on-disk inode. Index blocks are allocated only when the
// size requires them, and a zero block id means unallocated.
type DiskInode struct {
	Size      uint32
	Direct    [DirectCount]uint32
	Indirect1 uint32
	Indirect2 uint32
	Indirect3 uint32
	Type      InodeType
	_         [3]byte
	Nlink     uint32
}

// Initialize resets d to an empty inode of type t with one link.
func (d *DiskInode) Initialize(t InodeType) {
	*d = DiskInode{Type: t, Nlink: 1}
}

// IsDir returns whether d is a directory.
func (d *DiskInode) IsDir() bool { return d.Type == Directory }

// IsFile returns whether d is a regular file.
func (d *DiskInode) IsFile() bool { return d.Type == File }

// Decode reads d from the front of b.
func (d *DiskInode) Decode(b []byte) {
	binary.Get(b, binary.LittleEndian, d)
}

// Encode writes d to the front of b.
func (d *DiskInode) Encode(b []byte) {
	binary.Put(b, binary.LittleEndian, d)
}

// indirect returns the root index block pointer of level i (0-based).
func (d *DiskInode) indirect(i int) *uint32 {
	switch i {
	case 0:
		return &d.Indirect1
	case 1:
		return &d.Indirect2
	default:
		return &d.Indirect3
	}
}

// DataBlocks returns the number of data blocks of d.
func (d *DiskInode) DataBlocks(m *blockcache.Manager) uint32 {
	return AddressingFor(m.BlockSize()).DataBlocks(d.Size)
}

// BlocksNeeded returns the number of blocks IncreaseSize consumes to grow d
// to newSize.
func (d *DiskInode) BlocksNeeded(newSize uint32, m *blockcache.Manager) uint32 {
	if newSize < d.Size {
		panic(fmt.Sprintf("disklayout: BlocksNeeded to shrink from %d to %d", d.Size, newSize))
	}
	a := AddressingFor(m.BlockSize())
	return a.TotalBlocks(newSize) - a.TotalBlocks(d.Size)
}

// BlockID returns the device block holding logical block i of d.
//
// Preconditions: i < d.DataBlocks(m).
func (d *DiskInode) BlockID(i uint32, m *blockcache.Manager) uint32 {
	if i < DirectCount {
		return d.Direct[i]
	}
	a := AddressingFor(m.BlockSize())
	for li, l := range a.levels() {
		if i >= l.base+l.capacity {
			continue
		}
		rel := i - l.base
		id := *d.indirect(li)
		for depth := l.depth; depth > 0; depth-- {
			span := a.span(depth)
			slot := int(rel / span)
			rel %= span
			m.Read(id, 0, func(b []byte) {
				id = blockcache.IndirectBlock(b).Get(slot)
			})
		}
		return id
	}
	panic(fmt.Sprintf("disklayout: logical block %d beyond maximum %d", i, a.MaxBlocks))
}

// IncreaseSize grows d to newSize, linking the blocks in ids. ids must hold
// exactly BlocksNeeded(newSize) blocks, all zeroed. They are consumed in
// level order: direct blocks, then for each indirect level its root index
// block (when the level first becomes used) followed by its index and data
// blocks in tree pre-order.
func (d *DiskInode) IncreaseSize(newSize uint32, ids []uint32, m *blockcache.Manager) {
	a := AddressingFor(m.BlockSize())
	if newSize < d.Size {
		panic(fmt.Sprintf("disklayout: IncreaseSize from %d to %d", d.Size, newSize))
	}
	if need := a.TotalBlocks(newSize) - a.TotalBlocks(d.Size); uint32(len(ids)) != need {
		panic(fmt.Sprintf("disklayout: growing from %d to %d needs %d blocks, got %d", d.Size, newSize, need, len(ids)))
	}
	next := func() uint32 {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	cur := a.DataBlocks(d.Size)
	total := a.DataBlocks(newSize)
	d.Size = newSize

	for i := cur; i < min(total, DirectCount); i++ {
		d.Direct[i] = next()
	}
	for li, l := range a.levels() {
		if total <= l.base {
			break
		}
		root := d.indirect(li)
		if cur <= l.base {
			*root = next()
		}
		from := max(cur, l.base) - l.base
		to := min(total-l.base, l.capacity)
		w := treeWalk{
			m:     m,
			a:     a,
			from:  from,
			to:    to,
			write: true,
			visit: func(ib blockcache.IndirectBlock, slot int) {
				ib.Set(slot, next())
			},
		}
		w.walk(*root, l.depth, 0)
	}
}

// ClearSize truncates d to zero and returns every data and index block it
// occupied, in the order IncreaseSize consumes them. The caller frees them.
func (d *DiskInode) ClearSize(m *blockcache.Manager) []uint32 {
	a := AddressingFor(m.BlockSize())
	total := a.DataBlocks(d.Size)
	freed := make([]uint32, 0, a.TotalBlocks(d.Size))

	for i := uint32(0); i < min(total, DirectCount); i++ {
		freed = append(freed, d.Direct[i])
		d.Direct[i] = 0
	}
	for li, l := range a.levels() {
		if total <= l.base {
			break
		}
		root := d.indirect(li)
		freed = append(freed, *root)
		freed = a.collect(m, *root, l.depth, 0, min(total-l.base, l.capacity), freed)
		*root = 0
	}
	d.Size = 0
	return freed
}

// DecreaseSize truncates d to newSize and returns the data and index blocks
// no longer needed. The caller frees them.
func (d *DiskInode) DecreaseSize(newSize uint32, m *blockcache.Manager) []uint32 {
	a := AddressingFor(m.BlockSize())
	if newSize > d.Size {
		panic(fmt.Sprintf("disklayout: DecreaseSize from %d to %d", d.Size, newSize))
	}
	cur := a.DataBlocks(d.Size)
	keep := a.DataBlocks(newSize)
	freed := make([]uint32, 0, a.TotalBlocks(d.Size)-a.TotalBlocks(newSize))

	for i := keep; i < min(cur, DirectCount); i++ {
		freed = append(freed, d.Direct[i])
		d.Direct[i] = 0
	}
	for li, l := range a.levels() {
		if cur <= l.base {
			break
		}
		root := d.indirect(li)
		from := max(keep, l.base) - l.base
		freed = a.collect(m, *root, l.depth, from, min(cur-l.base, l.capacity), freed)
		if keep <= l.base {
			freed = append(freed, *root)
			*root = 0
		}
	}
	d.Size = newSize
	return freed
}

// collect appends to out the blocks linked below index block root whose
// subtree lies entirely in the leaf range [from, to).
func (a Addressing) collect(m *blockcache.Manager, root uint32, depth int, from, to uint32, out []uint32) []uint32 {
	w := treeWalk{
		m:    m,
		a:    a,
		from: from,
		to:   to,
		visit: func(ib blockcache.IndirectBlock, slot int) {
			out = append(out, ib.Get(slot))
		},
	}
	w.walk(root, depth, 0)
	return out
}

// treeWalk is one traversal of an index tree over the leaf range [from, to).
type treeWalk struct {
	m        *blockcache.Manager
	a        Addressing
	from, to uint32

	// write selects Modify rather than Read access to index blocks.
	write bool

	// visit is called, with the index block locked, for every slot whose
	// first leaf lies in [from, to). It runs before the walk descends below
	// the slot.
	visit func(ib blockcache.IndirectBlock, slot int)
}

// walk visits the index block id of the given depth, whose first slot covers
// leaf first. Only one index block is held at a time.
func (w *treeWalk) walk(id uint32, depth int, first uint32) {
	span := w.a.span(depth)
	access := w.m.Read
	if w.write {
		access = w.m.Modify
	}
	for slot := 0; slot < int(w.a.PerBlock); slot++ {
		lo := first + uint32(slot)*span
		if lo >= w.to {
			return
		}
		if lo+span <= w.from {
			continue
		}
		var child uint32
		access(id, 0, func(b []byte) {
			ib := blockcache.IndirectBlock(b)
			if lo >= w.from {
				w.visit(ib, slot)
			}
			child = ib.Get(slot)
		})
		if depth > 1 {
			w.walk(child, depth-1, lo)
		}
	}
}

// ReadAt copies bytes of d starting at off into buf and returns how many were
// copied. Reads are clipped to the file size.
func (d *DiskInode) ReadAt(off int, buf []byte, m *blockcache.Manager) int {
	return d.transfer(off, buf, m, false)
}

// WriteAt copies buf into d starting at off and returns how many bytes were
// copied. It never grows d; the size must be adjusted first.
func (d *DiskInode) WriteAt(off int, buf []byte, m *blockcache.Manager) int {
	return d.transfer(off, buf, m, true)
}

func (d *DiskInode) transfer(off int, buf []byte, m *blockcache.Manager, write bool) int {
	end := min(off+len(buf), int(d.Size))
	if off < 0 || off >= end {
		return 0
	}
	bs := m.BlockSize()
	done := 0
	for pos := off; pos < end; {
		inBlock := pos % bs
		n := min(bs-inBlock, end-pos)
		id := d.BlockID(uint32(pos/bs), m)
		if write {
			m.Modify(id, inBlock, func(b []byte) {
				copy(b[:n], buf[done:done+n])
			})
		} else {
			m.Read(id, inBlock, func(b []byte) {
				copy(buf[done:done+n], b[:n])
			})
		}
		done += n
		pos += n
	}
	return done
}
