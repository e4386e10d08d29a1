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

// Package cleanup runs deferred undo steps unless the operation they guard
// succeeds.
package cleanup

// Cleanup is a stack of undo functions. Typical use:
//
//	cu := cleanup.Make(func() { dev.Close() })
//	defer cu.Clean()
//	fs, err := efs.Open(cache)
//	if err != nil {
//		return nil, err // dev is closed.
//	}
//	cu.Release()
//	return fs, nil
type Cleanup struct {
	cleaners []func()
}

// Make returns a Cleanup holding f. A nil f is skipped by Clean.
func Make(f func()) Cleanup {
	return Cleanup{cleaners: []func(){f}}
}

// Add pushes f; it runs before every function added earlier.
func (c *Cleanup) Add(f func()) {
	c.cleaners = append(c.cleaners, f)
}

// Clean runs the held functions, last added first, and empties c.
func (c *Cleanup) Clean() {
	clean(c.cleaners)
	c.cleaners = nil
}

// Release empties c and returns a function that runs what c held.
func (c *Cleanup) Release() func() {
	old := c.cleaners
	c.cleaners = nil
	return func() { clean(old) }
}

func clean(cleaners []func()) {
	for i := len(cleaners) - 1; i >= 0; i-- {
		if cleaners[i] != nil {
			cleaners[i]()
		}
	}
}
