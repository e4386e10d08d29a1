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

package efs

import (
	"fmt"
	"io"

	"gvisor.dev/easyfs/pkg/efs/disklayout"
	"gvisor.dev/easyfs/pkg/errors/linuxerr"
	"gvisor.dev/easyfs/pkg/fspath"
)

// Inode is a handle on a file or directory of a FileSystem. Handles are
// cheap values; several may refer to the same inode. A handle stays usable
// only while its inode is linked somewhere.
type Inode struct {
	fs *FileSystem

	ino         uint32
	blockID     uint32
	blockOffset int
}

func (fs *FileSystem) inode(ino uint32) *Inode {
	block, off := fs.DiskInodePos(ino)
	return &Inode{
		fs:          fs,
		ino:         ino,
		blockID:     block,
		blockOffset: off,
	}
}

// Ino returns the inode number of i.
func (i *Inode) Ino() uint32 {
	return i.ino
}

// FileSystem returns the filesystem i belongs to.
func (i *Inode) FileSystem() *FileSystem {
	return i.fs
}

// diskLocked returns a copy of the on-disk inode. The copy must not be used
// to change index blocks.
//
// +checklocks:i.fs.mu
func (i *Inode) diskLocked() disklayout.DiskInode {
	var d disklayout.DiskInode
	i.fs.cache.Read(i.blockID, i.blockOffset, func(b []byte) {
		d.Decode(b)
	})
	return d
}

// modifyLocked calls fn with the on-disk inode and stores the result. fn may
// touch data and index blocks but no other inode.
//
// +checklocks:i.fs.mu
func (i *Inode) modifyLocked(fn func(d *disklayout.DiskInode)) {
	i.fs.cache.Modify(i.blockID, i.blockOffset, func(b []byte) {
		var d disklayout.DiskInode
		d.Decode(b)
		fn(&d)
		d.Encode(b)
	})
}

// initInodeLocked writes a fresh inode of type t at ino. A directory gets
// "." and ".." entries, the latter pointing at parent.
//
// +checklocks:fs.mu
func (fs *FileSystem) initInodeLocked(ino uint32, t disklayout.InodeType, parent uint32) error {
	var d disklayout.DiskInode
	d.Initialize(t)
	if t == disklayout.Directory {
		size := uint32(2 * disklayout.DirEntrySize)
		ids, err := fs.allocDataBlocksLocked(d.BlocksNeeded(size, fs.cache))
		if err != nil {
			return err
		}
		d.IncreaseSize(size, ids, fs.cache)
		dot := disklayout.NewDirEntry(".", ino)
		dotdot := disklayout.NewDirEntry("..", parent)
		d.WriteAt(0, dot.Bytes(), fs.cache)
		d.WriteAt(disklayout.DirEntrySize, dotdot.Bytes(), fs.cache)
	}
	block, off := fs.DiskInodePos(ino)
	fs.cache.Modify(block, off, func(b []byte) {
		d.Encode(b)
	})
	return nil
}

// growLocked extends d to newSize with freshly allocated blocks.
//
// +checklocks:fs.mu
func (fs *FileSystem) growLocked(d *disklayout.DiskInode, newSize uint32) error {
	if newSize <= d.Size {
		return nil
	}
	ids, err := fs.allocDataBlocksLocked(d.BlocksNeeded(newSize, fs.cache))
	if err != nil {
		return err
	}
	d.IncreaseSize(newSize, ids, fs.cache)
	return nil
}

// FileType returns the type of i.
func (i *Inode) FileType() disklayout.InodeType {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	d := i.diskLocked()
	return d.Type
}

// IsDir returns whether i is a directory.
func (i *Inode) IsDir() bool {
	return i.FileType() == disklayout.Directory
}

// IsFile returns whether i is a regular file.
func (i *Inode) IsFile() bool {
	return i.FileType() == disklayout.File
}

// Size returns the size of i in bytes.
func (i *Inode) Size() uint32 {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	d := i.diskLocked()
	return d.Size
}

// Nlink returns the number of directory entries referring to i, not
// counting "." and "..".
func (i *Inode) Nlink() uint32 {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	d := i.diskLocked()
	return d.Nlink
}

// ReadAt implements io.ReaderAt. Directories can't be read this way.
func (i *Inode) ReadAt(p []byte, off int64) (int, error) {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	d := i.diskLocked()
	if d.IsDir() {
		return 0, linuxerr.EISDIR
	}
	if off < 0 {
		return 0, linuxerr.EINVAL
	}
	if len(p) == 0 {
		return 0, nil
	}
	if off >= int64(d.Size) {
		return 0, io.EOF
	}
	n := d.ReadAt(int(off), p, i.fs.cache)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. The file grows as needed; a gap between
// the old end and off reads back as zeroes.
func (i *Inode) WriteAt(p []byte, off int64) (int, error) {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	if off < 0 {
		return 0, linuxerr.EINVAL
	}
	limit := int64(i.fs.addr.MaxFileSize())
	if off > limit || int64(len(p)) > limit-off {
		return 0, linuxerr.EFBIG
	}
	end := off + int64(len(p))
	var (
		n   int
		err error
	)
	i.modifyLocked(func(d *disklayout.DiskInode) {
		if d.IsDir() {
			err = linuxerr.EISDIR
			return
		}
		if len(p) == 0 {
			return
		}
		if err = i.fs.growLocked(d, uint32(end)); err != nil {
			return
		}
		n = d.WriteAt(int(off), p, i.fs.cache)
	})
	if err != nil {
		return 0, err
	}
	i.fs.cache.SyncAll()
	return n, nil
}

// Clear truncates i to zero bytes and frees every data and index block it
// held.
func (i *Inode) Clear() {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	i.clearLocked()
	i.fs.cache.SyncAll()
}

// +checklocks:i.fs.mu
func (i *Inode) clearLocked() {
	var freed []uint32
	i.modifyLocked(func(d *disklayout.DiskInode) {
		freed = d.ClearSize(i.fs.cache)
	})
	i.fs.deallocDataBlocksLocked(freed)
}

// StatMode is the file type part of a mode.
type StatMode uint32

// File types reported by Stat.
const (
	ModeDir  StatMode = 0o040000
	ModeFile StatMode = 0o100000
)

// String implements fmt.Stringer.
func (m StatMode) String() string {
	switch m {
	case ModeDir:
		return "directory"
	case ModeFile:
		return "regular file"
	default:
		return fmt.Sprintf("StatMode(%#o)", uint32(m))
	}
}

// Stat describes an inode.
type Stat struct {
	Dev   uint64
	Ino   uint64
	Mode  StatMode
	Nlink uint32
	Size  uint64
}

// Stat returns metadata about i.
func (i *Inode) Stat() Stat {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	d := i.diskLocked()
	mode := ModeFile
	if d.IsDir() {
		mode = ModeDir
	}
	return Stat{
		Ino:   uint64(i.ino),
		Mode:  mode,
		Nlink: d.Nlink,
		Size:  uint64(d.Size),
	}
}

// Path returns the absolute path of directory i, found by following ".."
// up to the root.
func (i *Inode) Path() (string, error) {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	var b fspath.Builder
	cur := i
	for depth := uint32(0); ; depth++ {
		if depth > i.fs.MaxInodes() {
			return "", fmt.Errorf("directory loop above inode %d: %w", i.ino, linuxerr.EIO)
		}
		d := cur.diskLocked()
		if !d.IsDir() {
			return "", linuxerr.ENOTDIR
		}
		parent, ok := cur.lookupLocked(&d, "..")
		if !ok {
			return "", fmt.Errorf("directory %d has no \"..\": %w", cur.ino, linuxerr.EIO)
		}
		if parent == cur.ino {
			break
		}
		p := i.fs.inode(parent)
		pd := p.diskLocked()
		name, ok := p.nameOfLocked(&pd, cur.ino)
		if !ok {
			return "", fmt.Errorf("directory %d is not listed in its parent %d: %w", cur.ino, parent, linuxerr.EIO)
		}
		b.PrependComponent(name)
		cur = p
	}
	b.PrependByte('/')
	return b.String(), nil
}
