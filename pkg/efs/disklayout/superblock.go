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
)

const (
	// Magic identifies an easyfs super block.
	Magic = 0x3b800001

	// SuperBlockSize is the on-disk size of SuperBlock.
	SuperBlockSize = 24
)

// SuperBlock describes the geometry of a formatted device. It lives at the
// start of block 0 and is immutable once written.
type SuperBlock struct {
	Magic             uint32
	TotalBlocks       uint32
	InodeBitmapBlocks uint32
	InodeAreaBlocks   uint32
	DataBitmapBlocks  uint32
	DataAreaBlocks    uint32
}

// NewSuperBlock returns a valid super block with the given region sizes.
func NewSuperBlock(totalBlocks, inodeBitmapBlocks, inodeAreaBlocks, dataBitmapBlocks, dataAreaBlocks uint32) SuperBlock {
	return SuperBlock{
		Magic:             Magic,
		TotalBlocks:       totalBlocks,
		InodeBitmapBlocks: inodeBitmapBlocks,
		InodeAreaBlocks:   inodeAreaBlocks,
		DataBitmapBlocks:  dataBitmapBlocks,
		DataAreaBlocks:    dataAreaBlocks,
	}
}

// IsValid returns whether sb carries the easyfs magic.
func (sb SuperBlock) IsValid() bool {
	return sb.Magic == Magic
}

// InodeBitmapStart returns the first block of the inode bitmap.
func (sb SuperBlock) InodeBitmapStart() uint32 { return 1 }

// InodeAreaStart returns the first block of the inode area.
func (sb SuperBlock) InodeAreaStart() uint32 {
	return sb.InodeBitmapStart() + sb.InodeBitmapBlocks
}

// DataBitmapStart returns the first block of the data bitmap.
func (sb SuperBlock) DataBitmapStart() uint32 {
	return sb.InodeAreaStart() + sb.InodeAreaBlocks
}

// DataAreaStart returns the first block of the data area.
func (sb SuperBlock) DataAreaStart() uint32 {
	return sb.DataBitmapStart() + sb.DataBitmapBlocks
}

// String implements fmt.Stringer.
func (sb SuperBlock) String() string {
	return fmt.Sprintf("SuperBlock{total: %d, inode bitmap: %d, inode area: %d, data bitmap: %d, data area: %d}",
		sb.TotalBlocks, sb.InodeBitmapBlocks, sb.InodeAreaBlocks, sb.DataBitmapBlocks, sb.DataAreaBlocks)
}

// Decode reads sb from the front of b.
func (sb *SuperBlock) Decode(b []byte) {
	binary.Get(b, binary.LittleEndian, sb)
}

// Encode writes sb to the front of b.
func (sb *SuperBlock) Encode(b []byte) {
	binary.Put(b, binary.LittleEndian, sb)
}
