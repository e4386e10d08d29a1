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

package cleanup

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCleanRunsInReverse(t *testing.T) {
	var order []string
	func() {
		cu := Make(func() { order = append(order, "device") })
		cu.Add(func() { order = append(order, "cache") })
		cu.Add(func() { order = append(order, "lock") })
		defer cu.Clean()
	}()
	want := []string{"lock", "cache", "device"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("cleanup order (-want +got):\n%s", diff)
	}
}

func TestCleanTwice(t *testing.T) {
	calls := 0
	cu := Make(func() { calls++ })
	cu.Clean()
	cu.Clean()
	if calls != 1 {
		t.Errorf("cleaner ran %d times, want 1", calls)
	}
}

func TestRelease(t *testing.T) {
	var order []string
	var deferred func()
	func() {
		cu := Make(func() { order = append(order, "first") })
		cu.Add(func() { order = append(order, "second") })
		defer cu.Clean()
		deferred = cu.Release()
	}()
	if len(order) != 0 {
		t.Fatalf("released cleaners ran: %v", order)
	}
	deferred()
	want := []string{"second", "first"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("cleanup order (-want +got):\n%s", diff)
	}
}
