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

// Package blockdev defines the fixed-size block store underneath easyfs and
// provides in-memory and host-file implementations of it.
//
// Every transfer is exactly one block. Callers are expected to go through
// pkg/blockcache rather than use a BlockDevice directly.
package blockdev

import (
	"fmt"
)

// DefaultBlockSize is the block size of the easyfs on-disk format.
const DefaultBlockSize = 512

// BlockDevice is a random access store of fixed size blocks.
type BlockDevice interface {
	// BlockSize returns the size in bytes of every block.
	BlockSize() int

	// NumBlocks returns the number of blocks on the device.
	NumBlocks() uint32

	// ReadBlock fills buf with the content of block id. len(buf) must be
	// BlockSize().
	ReadBlock(id uint32, buf []byte) error

	// WriteBlock stores buf as the content of block id. len(buf) must be
	// BlockSize().
	WriteBlock(id uint32, buf []byte) error
}

// Syncer is implemented by devices that buffer writes.
type Syncer interface {
	// Sync flushes written blocks to stable storage.
	Sync() error
}

// checkTransfer validates a single block transfer against a device of
// numBlocks blocks of blockSize bytes.
func checkTransfer(id uint32, buf []byte, blockSize int, numBlocks uint32) error {
	if len(buf) != blockSize {
		return fmt.Errorf("block %d: buffer of %d bytes, want %d", id, len(buf), blockSize)
	}
	if id >= numBlocks {
		return fmt.Errorf("block %d out of range [0, %d)", id, numBlocks)
	}
	return nil
}
