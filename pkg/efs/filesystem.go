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

// Package efs implements easyfs, a small block-device-backed filesystem with
// files, directories and hard links.
//
// A FileSystem is created by formatting a device (Create) or mounting an
// existing one (Open). Files and directories are reached through Inode
// handles derived from the root. Every structural change is serialized by
// one mutex per FileSystem, and each public Inode operation that changes
// the filesystem flushes the block cache before returning.
//
// Lock order:
//
//	FileSystem.mu
//	  blockcache locks
package efs

import (
	"fmt"

	"gvisor.dev/easyfs/pkg/bitmap"
	"gvisor.dev/easyfs/pkg/blockcache"
	"gvisor.dev/easyfs/pkg/efs/disklayout"
	"gvisor.dev/easyfs/pkg/errors/linuxerr"
	"gvisor.dev/easyfs/pkg/log"
	"gvisor.dev/easyfs/pkg/metric"
	"gvisor.dev/easyfs/pkg/sync"
)

// RootIno is the inode number of the root directory.
const RootIno = 0

var (
	allocsMetric = metric.MustCreateNewUint64Metric("/efs/allocations", "Number of inodes and data blocks allocated.", metric.NewField("kind", "inode", "data"))
	freesMetric  = metric.MustCreateNewUint64Metric("/efs/frees", "Number of inodes and data blocks freed.", metric.NewField("kind", "inode", "data"))
	enospcMetric = metric.MustCreateNewUint64Metric("/efs/enospc", "Number of allocations that failed for lack of space.", metric.NewField("kind", "inode", "data"))
)

// FileSystem is a mounted easyfs device.
type FileSystem struct {
	// cache mediates every device access. Immutable.
	cache *blockcache.Manager

	// sb and addr describe the geometry. Immutable.
	sb   disklayout.SuperBlock
	addr disklayout.Addressing

	// inodesPerBlock is the number of inodes in one inode area block.
	// Immutable.
	inodesPerBlock uint32

	// mu serializes allocation and every change to inodes and directories.
	mu sync.Mutex

	// inodeBitmap and dataBitmap locate the allocation bitmaps. Their bits
	// are protected by mu.
	inodeBitmap bitmap.Bitmap
	dataBitmap  bitmap.Bitmap
}

func checkBlockSize(bs int) error {
	if bs < disklayout.InodeSize || bs < disklayout.DirEntrySize*2 || bs%8 != 0 {
		return fmt.Errorf("block size %d cannot hold easyfs structures: %w", bs, linuxerr.EINVAL)
	}
	return nil
}

// Create formats the device behind cache as an easyfs filesystem of
// totalBlocks blocks with inodeBitmapBlocks blocks of inode bitmap, and
// returns it mounted. The root directory is inode 0.
func Create(cache *blockcache.Manager, totalBlocks, inodeBitmapBlocks uint32) (*FileSystem, error) {
	bs := cache.BlockSize()
	if err := checkBlockSize(bs); err != nil {
		return nil, err
	}
	if n := cache.NumBlocks(); totalBlocks > n {
		return nil, fmt.Errorf("%d blocks requested on a device of %d: %w", totalBlocks, n, linuxerr.EINVAL)
	}
	if inodeBitmapBlocks == 0 {
		return nil, fmt.Errorf("inode bitmap needs at least one block: %w", linuxerr.EINVAL)
	}
	bitsPerBlock := uint32(bs * 8)
	perBlock := disklayout.InodesPerBlock(bs)

	inodeNum := inodeBitmapBlocks * bitsPerBlock
	inodeAreaBlocks := (inodeNum + perBlock - 1) / perBlock
	inodeTotal := inodeBitmapBlocks + inodeAreaBlocks
	if uint64(totalBlocks) < 1+uint64(inodeTotal)+2 {
		return nil, fmt.Errorf("%d blocks cannot hold a super block, %d inode blocks and any data: %w", totalBlocks, inodeTotal, linuxerr.EINVAL)
	}
	dataTotal := totalBlocks - 1 - inodeTotal
	// Each data bitmap block tracks bitsPerBlock data blocks, so it and its
	// blocks take bitsPerBlock+1 blocks.
	dataBitmapBlocks := (dataTotal + bitsPerBlock) / (bitsPerBlock + 1)
	dataAreaBlocks := dataTotal - dataBitmapBlocks

	fs := newFileSystem(cache, disklayout.NewSuperBlock(totalBlocks, inodeBitmapBlocks, inodeAreaBlocks, dataBitmapBlocks, dataAreaBlocks))

	for id := uint32(0); id < totalBlocks; id++ {
		cache.Modify(id, 0, zero)
	}
	cache.Modify(0, 0, func(b []byte) {
		fs.sb.Encode(b)
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()
	ino, err := fs.allocInodeLocked()
	if err != nil {
		return nil, err
	}
	if ino != RootIno {
		panic(fmt.Sprintf("root inode allocated as %d", ino))
	}
	if err := fs.initInodeLocked(ino, disklayout.Directory, ino); err != nil {
		return nil, err
	}
	cache.SyncAll()

	log.Infof("Formatted easyfs: %v", fs.sb)
	return fs, nil
}

// Open mounts the easyfs filesystem on the device behind cache.
func Open(cache *blockcache.Manager) (*FileSystem, error) {
	bs := cache.BlockSize()
	if err := checkBlockSize(bs); err != nil {
		return nil, err
	}
	var sb disklayout.SuperBlock
	cache.Read(0, 0, func(b []byte) {
		sb.Decode(b)
	})
	if !sb.IsValid() {
		return nil, fmt.Errorf("bad magic %#x: %w", sb.Magic, linuxerr.EINVAL)
	}
	if sb.DataAreaStart()+sb.DataAreaBlocks != sb.TotalBlocks {
		return nil, fmt.Errorf("inconsistent geometry %v: %w", sb, linuxerr.EINVAL)
	}
	if n := cache.NumBlocks(); sb.TotalBlocks > n {
		return nil, fmt.Errorf("%v does not fit a device of %d blocks: %w", sb, n, linuxerr.EINVAL)
	}
	fs := newFileSystem(cache, sb)
	log.Infof("Mounted easyfs: %v", sb)
	return fs, nil
}

func newFileSystem(cache *blockcache.Manager, sb disklayout.SuperBlock) *FileSystem {
	return &FileSystem{
		cache:          cache,
		sb:             sb,
		addr:           disklayout.AddressingFor(cache.BlockSize()),
		inodesPerBlock: disklayout.InodesPerBlock(cache.BlockSize()),
		inodeBitmap:    bitmap.New(sb.InodeBitmapStart(), sb.InodeBitmapBlocks),
		dataBitmap:     bitmap.New(sb.DataBitmapStart(), sb.DataBitmapBlocks),
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// SuperBlock returns the geometry of fs.
func (fs *FileSystem) SuperBlock() disklayout.SuperBlock {
	return fs.sb
}

// Cache returns the block cache of fs.
func (fs *FileSystem) Cache() *blockcache.Manager {
	return fs.cache
}

// MaxInodes returns the number of inodes fs can hold.
func (fs *FileSystem) MaxInodes() uint32 {
	return fs.inodeBitmap.Maximum(fs.cache.BlockSize())
}

// DiskInodePos returns the block and the byte offset in it of inode ino.
func (fs *FileSystem) DiskInodePos(ino uint32) (uint32, int) {
	return fs.sb.InodeAreaStart() + ino/fs.inodesPerBlock, int(ino%fs.inodesPerBlock) * disklayout.InodeSize
}

// Ino is the inverse of DiskInodePos.
func (fs *FileSystem) Ino(blockID uint32, offset int) uint32 {
	return (blockID-fs.sb.InodeAreaStart())*fs.inodesPerBlock + uint32(offset/disklayout.InodeSize)
}

// RootInode returns the root directory.
func (fs *FileSystem) RootInode() *Inode {
	return fs.inode(RootIno)
}

// AllocInode allocates an inode number.
func (fs *FileSystem) AllocInode() (uint32, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.allocInodeLocked()
}

// +checklocks:fs.mu
func (fs *FileSystem) allocInodeLocked() (uint32, error) {
	ino, err := fs.inodeBitmap.Alloc(fs.cache)
	if err == nil && ino >= fs.MaxInodes() {
		fs.inodeBitmap.Dealloc(fs.cache, ino)
		err = linuxerr.ENOSPC
	}
	if err != nil {
		enospcMetric.Increment("inode")
		log.Warningf("No free inodes left (%d in use)", fs.MaxInodes())
		return 0, err
	}
	allocsMetric.Increment("inode")
	return ino, nil
}

// DeallocInode frees inode ino. Its content must already be cleared.
func (fs *FileSystem) DeallocInode(ino uint32) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.deallocInodeLocked(ino)
}

// +checklocks:fs.mu
func (fs *FileSystem) deallocInodeLocked(ino uint32) {
	block, off := fs.DiskInodePos(ino)
	fs.cache.Modify(block, off, func(b []byte) {
		zero(b[:disklayout.InodeSize])
	})
	fs.inodeBitmap.Dealloc(fs.cache, ino)
	freesMetric.Increment("inode")
}

// AllocData allocates a zeroed data block and returns its device block id.
func (fs *FileSystem) AllocData() (uint32, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.allocDataLocked()
}

// +checklocks:fs.mu
func (fs *FileSystem) allocDataLocked() (uint32, error) {
	bit, err := fs.dataBitmap.Alloc(fs.cache)
	if err == nil && bit >= fs.sb.DataAreaBlocks {
		fs.dataBitmap.Dealloc(fs.cache, bit)
		err = linuxerr.ENOSPC
	}
	if err != nil {
		enospcMetric.Increment("data")
		log.Warningf("No free data blocks left (%d in the data area)", fs.sb.DataAreaBlocks)
		return 0, err
	}
	id := fs.sb.DataAreaStart() + bit
	fs.cache.Modify(id, 0, zero)
	allocsMetric.Increment("data")
	return id, nil
}

// allocDataBlocksLocked allocates n data blocks, or none on failure.
//
// +checklocks:fs.mu
func (fs *FileSystem) allocDataBlocksLocked(n uint32) ([]uint32, error) {
	ids := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		id, err := fs.allocDataLocked()
		if err != nil {
			fs.deallocDataBlocksLocked(ids)
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DeallocData frees data block id. The block content is left as is.
func (fs *FileSystem) DeallocData(id uint32) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.deallocDataLocked(id)
}

// +checklocks:fs.mu
func (fs *FileSystem) deallocDataLocked(id uint32) {
	if id < fs.sb.DataAreaStart() || id >= fs.sb.TotalBlocks {
		panic(fmt.Sprintf("freeing block %d outside the data area [%d, %d)", id, fs.sb.DataAreaStart(), fs.sb.TotalBlocks))
	}
	fs.dataBitmap.Dealloc(fs.cache, id-fs.sb.DataAreaStart())
	freesMetric.Increment("data")
}

// +checklocks:fs.mu
func (fs *FileSystem) deallocDataBlocksLocked(ids []uint32) {
	for _, id := range ids {
		fs.deallocDataLocked(id)
	}
}

// Usage reports allocated and total inodes and data blocks.
type Usage struct {
	InodesUsed  uint32
	InodesTotal uint32
	BlocksUsed  uint32
	BlocksTotal uint32
}

// Usage returns the current allocation counts of fs.
func (fs *FileSystem) Usage() Usage {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return Usage{
		InodesUsed:  fs.inodeBitmap.Allocated(fs.cache),
		InodesTotal: fs.MaxInodes(),
		BlocksUsed:  fs.dataBitmap.Allocated(fs.cache),
		BlocksTotal: fs.sb.DataAreaBlocks,
	}
}

// Sync flushes every dirty block to the device.
func (fs *FileSystem) Sync() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.cache.SyncAll()
}
