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

// Package fspath parses and builds the '/'-separated pathnames used by
// easy-fs.
package fspath

import (
	"strings"

	"gvisor.dev/easyfs/pkg/errors/linuxerr"
)

const sep = '/'

// Path is a parsed pathname. The zero value has no components.
type Path struct {
	// Begin points at the first component.
	Begin Iterator

	// Absolute is set if the pathname began with a separator.
	Absolute bool

	// Dir is set if the pathname ended with a separator, in which case the
	// final component must be a directory. "/" is both Absolute and Dir.
	Dir bool
}

// Parse splits pathname into components. Runs of separators count as one.
// The empty pathname is ENOENT.
func Parse(pathname string) (Path, error) {
	if pathname == "" {
		return Path{}, linuxerr.ENOENT
	}
	trimmed := strings.Trim(pathname, "/")
	p := Path{
		Absolute: pathname[0] == sep,
		Dir:      pathname[len(pathname)-1] == sep,
	}
	if trimmed != "" {
		p.Begin = newIterator(trimmed)
	}
	return p, nil
}

// HasComponents returns whether p names anything below its starting point.
func (p Path) HasComponents() bool {
	return p.Begin.Ok()
}

// Components returns the components of p in order, or nil if there are none.
func (p Path) Components() []string {
	var pcs []string
	for it := p.Begin; it.Ok(); it = it.Next() {
		pcs = append(pcs, it.String())
	}
	return pcs
}

// String returns p in canonical form: single separators, a leading one for
// absolute paths and a trailing one for Dir paths with components.
func (p Path) String() string {
	var b strings.Builder
	if p.Absolute {
		b.WriteByte(sep)
	}
	b.WriteString(strings.Join(p.Components(), "/"))
	if p.Dir && p.HasComponents() {
		b.WriteByte(sep)
	}
	return b.String()
}

// Iterator walks the components of a Path without allocating. The zero
// Iterator is terminal.
type Iterator struct {
	// rest starts at the current component and has no trailing separators.
	rest string
	// n is the length of the current component.
	n int
}

// rest must not start or end with a separator.
func newIterator(rest string) Iterator {
	n := strings.IndexByte(rest, sep)
	if n < 0 {
		n = len(rest)
	}
	return Iterator{rest: rest, n: n}
}

// Ok returns whether it refers to a component.
func (it Iterator) Ok() bool {
	return it.rest != ""
}

// String returns the current component.
//
// Preconditions: it.Ok().
func (it Iterator) String() string {
	return it.rest[:it.n]
}

// NextOk returns whether another component follows this one.
//
// Preconditions: it.Ok().
func (it Iterator) NextOk() bool {
	return it.n < len(it.rest)
}

// Next advances to the following component, or returns a terminal Iterator
// after the last one.
//
// Preconditions: it.Ok().
func (it Iterator) Next() Iterator {
	if !it.NextOk() {
		return Iterator{}
	}
	return newIterator(strings.TrimLeft(it.rest[it.n:], "/"))
}
