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

package fspath

// Builder assembles a pathname from the leaf upward, which is the order in
// which a walk over ".." entries discovers names. The zero value is empty.
type Builder struct {
	// parts holds prepended pieces in reverse order.
	parts   []string
	n       int
	needSep bool
}

// Reset empties b.
func (b *Builder) Reset() {
	b.parts = b.parts[:0]
	b.n = 0
	b.needSep = false
}

// Len returns the length of the pathname built so far.
func (b *Builder) Len() int {
	return b.n
}

// PrependComponent adds pc in front, separated from what follows by '/'.
func (b *Builder) PrependComponent(pc string) {
	if b.needSep {
		b.PrependByte(sep)
	}
	b.PrependString(pc)
	b.needSep = true
}

// PrependString adds s in front with no separator.
func (b *Builder) PrependString(s string) {
	b.parts = append(b.parts, s)
	b.n += len(s)
}

// PrependByte adds c in front.
func (b *Builder) PrependByte(c byte) {
	b.PrependString(string(c))
}

// String returns the pathname.
func (b *Builder) String() string {
	buf := make([]byte, 0, b.n)
	for i := len(b.parts) - 1; i >= 0; i-- {
		buf = append(buf, b.parts[i]...)
	}
	return string(buf)
}
