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

package blockdev

import (
	"fmt"

	"gvisor.dev/easyfs/pkg/sync"
)

// MemDevice is a BlockDevice backed by memory.
type MemDevice struct {
	blockSize int

	// mu protects the fields below.
	mu     sync.Mutex
	data   []byte
	reads  uint64
	writes uint64
}

// NewMemDevice returns a zeroed device of numBlocks blocks.
func NewMemDevice(blockSize int, numBlocks uint32) *MemDevice {
	if blockSize <= 0 || blockSize%8 != 0 {
		panic(fmt.Sprintf("invalid block size %d", blockSize))
	}
	return &MemDevice{
		blockSize: blockSize,
		data:      make([]byte, blockSize*int(numBlocks)),
	}
}

// BlockSize implements BlockDevice.BlockSize.
func (d *MemDevice) BlockSize() int {
	return d.blockSize
}

// NumBlocks returns the number of blocks of the device.
func (d *MemDevice) NumBlocks() uint32 {
	return uint32(len(d.data) / d.blockSize)
}

// ReadBlock implements BlockDevice.ReadBlock.
func (d *MemDevice) ReadBlock(id uint32, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := checkTransfer(id, buf, d.blockSize, d.NumBlocks()); err != nil {
		return err
	}
	off := int(id) * d.blockSize
	copy(buf, d.data[off:off+d.blockSize])
	d.reads++
	return nil
}

// WriteBlock implements BlockDevice.WriteBlock.
func (d *MemDevice) WriteBlock(id uint32, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := checkTransfer(id, buf, d.blockSize, d.NumBlocks()); err != nil {
		return err
	}
	off := int(id) * d.blockSize
	copy(d.data[off:off+d.blockSize], buf)
	d.writes++
	return nil
}

// Counts returns the number of block reads and writes served so far.
func (d *MemDevice) Counts() (reads, writes uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads, d.writes
}

// Bytes returns a copy of the whole device content.
func (d *MemDevice) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.data...)
}
