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

package linuxerr

import (
	"fmt"
	"io"
	"testing"

	"golang.org/x/sys/unix"
)

func TestToUnix(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want unix.Errno
	}{
		{name: "nil", err: nil, want: 0},
		{name: "linuxerr", err: ENOENT, want: unix.ENOENT},
		{name: "wrapped", err: fmt.Errorf("open: %w", ENOSPC), want: unix.ENOSPC},
		{name: "errno", err: unix.EBUSY, want: unix.EBUSY},
		{name: "wrapped errno", err: fmt.Errorf("lock: %w", unix.EAGAIN), want: unix.EAGAIN},
		{name: "other", err: io.ErrUnexpectedEOF, want: unix.EIO},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := ToUnix(tc.err); got != tc.want {
				t.Errorf("ToUnix(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestEquals(t *testing.T) {
	if !Equals(EEXIST, EEXIST) {
		t.Errorf("Equals(EEXIST, EEXIST) = false")
	}
	if !Equals(EEXIST, fmt.Errorf("create: %w", EEXIST)) {
		t.Errorf("Equals(EEXIST, wrapped EEXIST) = false")
	}
	if !Equals(EISDIR, unix.EISDIR) {
		t.Errorf("Equals(EISDIR, unix.EISDIR) = false")
	}
	if Equals(ENOENT, EEXIST) {
		t.Errorf("Equals(ENOENT, EEXIST) = true")
	}
	if Equals(EIO, io.EOF) {
		t.Errorf("Equals(EIO, io.EOF) = true")
	}
	if Equals(ENOENT, nil) {
		t.Errorf("Equals(ENOENT, nil) = true")
	}
	if !Equals(nil, nil) {
		t.Errorf("Equals(nil, nil) = false")
	}
}
