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
	"strings"

	"gvisor.dev/easyfs/pkg/efs/disklayout"
	"gvisor.dev/easyfs/pkg/errors/linuxerr"
	"gvisor.dev/easyfs/pkg/fspath"
)

// entriesLocked returns every entry of directory d, "." and ".." included.
//
// +checklocks:i.fs.mu
func (i *Inode) entriesLocked(d *disklayout.DiskInode) []disklayout.DirEntry {
	buf := make([]byte, d.Size)
	d.ReadAt(0, buf, i.fs.cache)
	ents := make([]disklayout.DirEntry, len(buf)/disklayout.DirEntrySize)
	for k := range ents {
		ents[k].Decode(buf[k*disklayout.DirEntrySize:])
	}
	return ents
}

// +checklocks:i.fs.mu
func (i *Inode) lookupLocked(d *disklayout.DiskInode, name string) (uint32, bool) {
	for _, e := range i.entriesLocked(d) {
		if e.Name() == name {
			return e.Inode, true
		}
	}
	return 0, false
}

// nameOfLocked returns the name under which directory d lists ino.
//
// +checklocks:i.fs.mu
func (i *Inode) nameOfLocked(d *disklayout.DiskInode, ino uint32) (string, bool) {
	for _, e := range i.entriesLocked(d) {
		if name := e.Name(); e.Inode == ino && name != "." && name != ".." {
			return name, true
		}
	}
	return "", false
}

// checkName validates a new directory entry name.
func checkName(name string) error {
	switch {
	case name == "" || name == "." || name == ".." || strings.IndexByte(name, '/') >= 0:
		return fmt.Errorf("invalid name %q: %w", name, linuxerr.EINVAL)
	case len(name) > disklayout.NameLengthLimit:
		return linuxerr.ENAMETOOLONG
	}
	return nil
}

// Find resolves path relative to directory i. Empty components are ignored,
// so "" and "/" name i itself. A trailing separator requires a directory.
func (i *Inode) Find(path string) (*Inode, bool) {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	return i.findLocked(path)
}

// +checklocks:i.fs.mu
func (i *Inode) findLocked(path string) (*Inode, bool) {
	if path == "" {
		return i.fs.inode(i.ino), true
	}
	p, err := fspath.Parse(path)
	if err != nil {
		return nil, false
	}
	cur := i
	d := cur.diskLocked()
	for it := p.Begin; it.Ok(); it = it.Next() {
		if !d.IsDir() {
			return nil, false
		}
		ino, ok := cur.lookupLocked(&d, it.String())
		if !ok {
			return nil, false
		}
		cur = i.fs.inode(ino)
		d = cur.diskLocked()
	}
	if p.Dir && !d.IsDir() {
		return nil, false
	}
	if cur == i {
		return i.fs.inode(i.ino), true
	}
	return cur, true
}

// Ls returns the names in directory i in on-disk order, "." and ".."
// included. A file has no names.
func (i *Inode) Ls() []string {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	d := i.diskLocked()
	if !d.IsDir() {
		return nil
	}
	ents := i.entriesLocked(&d)
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		names = append(names, e.Name())
	}
	return names
}

// CreateFile creates an empty file called name in directory i.
func (i *Inode) CreateFile(name string) (*Inode, error) {
	return i.create(name, disklayout.File)
}

// CreateDir creates an empty directory called name in directory i.
func (i *Inode) CreateDir(name string) (*Inode, error) {
	return i.create(name, disklayout.Directory)
}

func (i *Inode) create(name string, t disklayout.InodeType) (*Inode, error) {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	if err := checkName(name); err != nil {
		return nil, err
	}
	d := i.diskLocked()
	if !d.IsDir() {
		return nil, linuxerr.ENOTDIR
	}
	if _, ok := i.lookupLocked(&d, name); ok {
		return nil, linuxerr.EEXIST
	}
	ino, err := i.fs.allocInodeLocked()
	if err != nil {
		return nil, err
	}
	child := i.fs.inode(ino)
	if err := i.fs.initInodeLocked(ino, t, i.ino); err != nil {
		i.fs.deallocInodeLocked(ino)
		return nil, err
	}
	if err := i.appendLocked(name, ino); err != nil {
		child.clearLocked()
		i.fs.deallocInodeLocked(ino)
		return nil, err
	}
	i.fs.cache.SyncAll()
	return child, nil
}

// appendLocked adds an entry at the end of directory i.
//
// +checklocks:i.fs.mu
func (i *Inode) appendLocked(name string, ino uint32) error {
	var err error
	i.modifyLocked(func(d *disklayout.DiskInode) {
		off := d.Size
		if err = i.fs.growLocked(d, off+disklayout.DirEntrySize); err != nil {
			return
		}
		e := disklayout.NewDirEntry(name, ino)
		d.WriteAt(int(off), e.Bytes(), i.fs.cache)
	})
	return err
}

// Linkat adds newName to directory i as another link to the file at
// oldPath, resolved relative to i. Directories can't be linked.
func (i *Inode) Linkat(oldPath, newName string) error {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	if err := checkName(newName); err != nil {
		return err
	}
	d := i.diskLocked()
	if !d.IsDir() {
		return linuxerr.ENOTDIR
	}
	target, ok := i.findLocked(oldPath)
	if !ok {
		return linuxerr.ENOENT
	}
	if td := target.diskLocked(); td.IsDir() {
		return linuxerr.EISDIR
	}
	if _, ok := i.lookupLocked(&d, newName); ok {
		return linuxerr.EEXIST
	}
	target.modifyLocked(func(td *disklayout.DiskInode) {
		td.Nlink++
	})
	if err := i.appendLocked(newName, target.ino); err != nil {
		target.modifyLocked(func(td *disklayout.DiskInode) {
			td.Nlink--
		})
		return err
	}
	i.fs.cache.SyncAll()
	return nil
}

// Unlinkat removes name from directory i. The inode and its blocks are
// freed with the last link. A directory must be empty.
func (i *Inode) Unlinkat(name string) error {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	if err := i.unlinkLocked(name); err != nil {
		return err
	}
	i.fs.cache.SyncAll()
	return nil
}

// +checklocks:i.fs.mu
func (i *Inode) unlinkLocked(name string) error {
	if name == "." || name == ".." {
		return fmt.Errorf("can't unlink %q: %w", name, linuxerr.EINVAL)
	}
	d := i.diskLocked()
	if !d.IsDir() {
		return linuxerr.ENOTDIR
	}
	ents := i.entriesLocked(&d)
	idx := -1
	for k, e := range ents {
		if e.Name() == name {
			idx = k
			break
		}
	}
	if idx < 0 {
		return linuxerr.ENOENT
	}
	target := i.fs.inode(ents[idx].Inode)
	if td := target.diskLocked(); td.IsDir() && td.Size > 2*disklayout.DirEntrySize {
		return linuxerr.ENOTEMPTY
	}

	var last bool
	target.modifyLocked(func(td *disklayout.DiskInode) {
		td.Nlink--
		last = td.Nlink == 0
	})
	if last {
		target.clearLocked()
		i.fs.deallocInodeLocked(target.ino)
	}

	var freed []uint32
	i.modifyLocked(func(d *disklayout.DiskInode) {
		for k := idx + 1; k < len(ents); k++ {
			d.WriteAt((k-1)*disklayout.DirEntrySize, ents[k].Bytes(), i.fs.cache)
		}
		freed = d.DecreaseSize(d.Size-disklayout.DirEntrySize, i.fs.cache)
	})
	i.fs.deallocDataBlocksLocked(freed)
	return nil
}

// RemoveAll removes name from directory i. If name is a directory, its
// whole subtree is removed first.
func (i *Inode) RemoveAll(name string) error {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	err := i.removeAllLocked(name)
	i.fs.cache.SyncAll()
	return err
}

// +checklocks:i.fs.mu
func (i *Inode) removeAllLocked(name string) error {
	if name == "." || name == ".." {
		return fmt.Errorf("can't remove %q: %w", name, linuxerr.EINVAL)
	}
	d := i.diskLocked()
	if !d.IsDir() {
		return linuxerr.ENOTDIR
	}
	ino, ok := i.lookupLocked(&d, name)
	if !ok {
		return linuxerr.ENOENT
	}
	child := i.fs.inode(ino)
	if cd := child.diskLocked(); cd.IsDir() {
		for _, e := range child.entriesLocked(&cd) {
			if n := e.Name(); n != "." && n != ".." {
				if err := child.removeAllLocked(n); err != nil {
					return err
				}
			}
		}
	}
	return i.unlinkLocked(name)
}
