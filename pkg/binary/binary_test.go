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

package binary

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// record resembles an on-disk entry: a name, a number and some padding.
type record struct {
	Name  [28]byte
	Inode uint32
	Kind  uint8
	_     [3]byte
	Links uint32
}

type signed struct {
	A int8
	B int16
	C int32
	D int64
}

func TestSize(t *testing.T) {
	for _, tc := range []struct {
		name string
		data any
		want int
	}{
		{name: "uint32", data: uint32(10), want: 4},
		{name: "array", data: [3]uint16{}, want: 6},
		{name: "record", data: record{}, want: 40},
		{name: "pointer", data: &record{}, want: 40},
		{name: "signed", data: signed{}, want: 15},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := Size(tc.data); got != tc.want {
				t.Errorf("Size(%T) = %d, want %d", tc.data, got, tc.want)
			}
		})
	}
}

func TestPanic(t *testing.T) {
	n := int32(5)
	for _, tc := range []struct {
		name string
		f    func()
		want string
	}{
		{name: "Size int", f: func() { Size(5) }, want: "invalid type: int"},
		{name: "Size slice", f: func() { Size([]uint8{1}) }, want: "invalid type: []uint8"},
		{name: "Marshal int", f: func() { Marshal(nil, LittleEndian, 5) }, want: "invalid type: int"},
		{name: "Get value", f: func() { Get(make([]byte, 4), LittleEndian, n) }, want: "invalid type: int32"},
		{name: "Put short buffer", f: func() { Put(make([]byte, 2), LittleEndian, &n) }, want: "buffer too short: have 2 bytes, need 4"},
		{name: "Get short buffer", f: func() { Get(make([]byte, 3), LittleEndian, &n) }, want: "buffer too short: have 3 bytes, need 4"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if got := fmt.Sprint(r); !strings.HasPrefix(got, tc.want) {
					t.Errorf("recover() = %q, want prefix %q", got, tc.want)
				}
			}()
			tc.f()
		})
	}
}

func TestMarshalLayout(t *testing.T) {
	in := record{Inode: 7, Kind: 1, Links: 2}
	copy(in.Name[:], "hello")

	buf := Marshal([]byte{0xaa}, LittleEndian, &in)
	if len(buf) != 41 {
		t.Fatalf("Marshal produced %d bytes, want 41", len(buf))
	}
	if buf[0] != 0xaa {
		t.Errorf("Marshal clobbered the existing prefix")
	}
	rec := buf[1:]
	if got := string(rec[:5]); got != "hello" {
		t.Errorf("name field = %q, want \"hello\"", got)
	}
	if got := LittleEndian.Uint32(rec[28:]); got != 7 {
		t.Errorf("inode field = %d, want 7", got)
	}
	if got := rec[32]; got != 1 {
		t.Errorf("kind field = %d, want 1", got)
	}
	if got := LittleEndian.Uint32(rec[36:]); got != 2 {
		t.Errorf("links field = %d, want 2", got)
	}

	var out record
	Get(rec, LittleEndian, &out)
	if diff := cmp.Diff(in, out, cmp.AllowUnexported(record{})); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestSigned(t *testing.T) {
	in := signed{A: -1, B: -300, C: -70000, D: -1 << 40}
	buf := Marshal(nil, LittleEndian, &in)
	var out signed
	Get(buf, LittleEndian, &out)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("signed mismatch (-want +got):\n%s", diff)
	}
}

func TestPutGetInPlace(t *testing.T) {
	block := make([]byte, 128)
	for i := range block {
		block[i] = 0xff
	}
	want := record{Inode: 0x01020304, Links: 9}
	copy(want.Name[:], "f1")

	Put(block[40:], LittleEndian, &want)

	// Neighbouring bytes are untouched.
	if block[39] != 0xff || block[80] != 0xff {
		t.Errorf("Put wrote outside its record: %x %x", block[39], block[80])
	}
	// Padding is zeroed.
	if diff := cmp.Diff([]byte{0, 0, 0}, block[40+33:40+36]); diff != "" {
		t.Errorf("padding mismatch (-want +got):\n%s", diff)
	}

	var got record
	Get(block[40:], LittleEndian, &got)
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(record{})); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func BenchmarkPutGet(b *testing.B) {
	b.ReportAllocs()

	buf := make([]byte, 40)
	in := record{Inode: 3}
	var out record
	for i := 0; i < b.N; i++ {
		Put(buf, LittleEndian, &in)
		Get(buf, LittleEndian, &out)
	}
}
