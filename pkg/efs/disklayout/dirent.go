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
	"gvisor.dev/easyfs/pkg/binary"
)

// DirEntrySize is the on-disk size of DirEntry.
const DirEntrySize = 32

// DirEntry is one record of a directory's content: a NUL padded name and
// the inode number it refers to. A directory's content is a packed array of
// entries, "." and ".." included.
type DirEntry struct {
	NameRaw [NameLengthLimit + 1]byte
	Inode   uint32
}

// NewDirEntry returns an entry for name. name must be at most
// NameLengthLimit bytes long.
func NewDirEntry(name string, inode uint32) DirEntry {
	if len(name) > NameLengthLimit {
		panic("disklayout: directory entry name too long: " + name)
	}
	var d DirEntry
	copy(d.NameRaw[:], name)
	d.Inode = inode
	return d
}

// Name returns the entry name without padding.
func (d *DirEntry) Name() string {
	for i, c := range d.NameRaw {
		if c == 0 {
			return string(d.NameRaw[:i])
		}
	}
	return string(d.NameRaw[:])
}

// Decode reads d from the front of b.
func (d *DirEntry) Decode(b []byte) {
	binary.Get(b, binary.LittleEndian, d)
}

// Encode writes d to the front of b.
func (d *DirEntry) Encode(b []byte) {
	binary.Put(b, binary.LittleEndian, d)
}

// Bytes returns the on-disk representation of d.
func (d *DirEntry) Bytes() []byte {
	return binary.Marshal(make([]byte, 0, DirEntrySize), binary.LittleEndian, d)
}
