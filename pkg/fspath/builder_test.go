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

import (
	"strings"
	"testing"
)

func TestBuilder(t *testing.T) {
	for _, tc := range []struct {
		name string
		// leafFirst lists components in the order they are prepended.
		leafFirst []string
		abs       bool
		want      string
	}{
		{name: "empty"},
		{name: "root", abs: true, want: "/"},
		{name: "single", leafFirst: []string{"f1"}, want: "f1"},
		{name: "relative", leafFirst: []string{"f4", "d2", "d1"}, want: "d1/d2/f4"},
		{name: "absolute", leafFirst: []string{"f4", "d2", "d1"}, abs: true, want: "/d1/d2/f4"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var b Builder
			for _, pc := range tc.leafFirst {
				b.PrependComponent(pc)
			}
			if tc.abs {
				b.PrependByte('/')
			}
			if got := b.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
			if got := b.Len(); got != len(tc.want) {
				t.Errorf("Len() = %d, want %d", got, len(tc.want))
			}
		})
	}
}

func TestBuilderReset(t *testing.T) {
	var b Builder
	b.PrependComponent(strings.Repeat("a", 100))
	b.PrependComponent("x")
	if got, want := b.Len(), 102; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
	b.Reset()
	b.PrependComponent("d1")
	b.PrependByte('/')
	if got, want := b.String(), "/d1"; got != want {
		t.Errorf("String() after Reset = %q, want %q", got, want)
	}
}
