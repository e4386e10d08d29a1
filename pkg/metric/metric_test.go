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

package metric

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

func TestRegistration(t *testing.T) {
	if _, err := NewUint64Metric("/test/registration", "a counter"); err != nil {
		t.Fatalf("NewUint64Metric failed: %v", err)
	}
	if _, err := NewUint64Metric("/test/registration", "again"); !errors.Is(err, ErrNameInUse) {
		t.Errorf("duplicate registration: got err %v, want %v", err, ErrNameInUse)
	}
	for _, name := range []string{"", "/", "noslash", "/Upper", "/trailing/", "/dash-es"} {
		if _, err := NewUint64Metric(name, "bad"); !errors.Is(err, ErrInvalidMetricName) {
			t.Errorf("NewUint64Metric(%q): got err %v, want %v", name, err, ErrInvalidMetricName)
		}
	}
	if _, err := NewUint64Metric("/test/nofieldvalues", "bad", NewField("op")); err == nil {
		t.Errorf("NewUint64Metric with an empty field succeeded")
	}
}

func TestFields(t *testing.T) {
	m := MustCreateNewUint64Metric("/test/fields", "per op and result",
		NewField("op", "read", "write"),
		NewField("result", "hit", "miss", "error"))

	m.Increment("read", "hit")
	m.IncrementBy(5, "write", "error")
	m.Increment("write", "error")

	for _, tc := range []struct {
		op, result string
		want       uint64
	}{
		{"read", "hit", 1},
		{"read", "miss", 0},
		{"write", "error", 6},
		{"write", "hit", 0},
	} {
		if got := m.Value(tc.op, tc.result); got != tc.want {
			t.Errorf("Value(%q, %q) = %d, want %d", tc.op, tc.result, got, tc.want)
		}
	}

	for k := range m.values {
		if got := m.key(m.fieldValues(k)); got != k {
			t.Errorf("key(fieldValues(%d)) = %d", k, got)
		}
	}
}

func TestGauge(t *testing.T) {
	g := MustCreateNewUint64Gauge("/test/gauge", "resident things")
	g.Set(10)
	g.Increment()
	g.Decrement()
	g.Decrement()
	if got, want := g.Value(), uint64(9); got != want {
		t.Errorf("Value() = %d, want %d", got, want)
	}

	c := MustCreateNewUint64Metric("/test/notagauge", "counter")
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Decrement on a counter did not panic")
		}
	}()
	c.Decrement()
}

func TestWriteText(t *testing.T) {
	c := MustCreateNewUint64Metric("/test/export/ops", "operations", NewField("op", "read", "write"))
	g := MustCreateNewUint64Gauge("/test/export/resident", "resident blocks")
	c.IncrementBy(3, "write")
	g.Set(7)

	var buf bytes.Buffer
	n, err := WriteText(&buf)
	if err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	if n != buf.Len() {
		t.Errorf("WriteText returned %d, wrote %d bytes", n, buf.Len())
	}

	parsed, err := (&expfmt.TextParser{}).TextToMetricFamilies(&buf)
	if err != nil {
		t.Fatalf("cannot parse exported text: %v", err)
	}

	ops, ok := parsed["easyfs_test_export_ops"]
	if !ok {
		t.Fatalf("easyfs_test_export_ops not exported; got %v", parsed)
	}
	if got, want := ops.GetType(), dto.MetricType_COUNTER; got != want {
		t.Errorf("ops type = %v, want %v", got, want)
	}
	got := map[string]float64{}
	for _, pm := range ops.GetMetric() {
		got[pm.GetLabel()[0].GetValue()] = pm.GetCounter().GetValue()
	}
	if diff := cmp.Diff(map[string]float64{"read": 0, "write": 3}, got); diff != "" {
		t.Errorf("ops values mismatch (-want +got):\n%s", diff)
	}

	res, ok := parsed["easyfs_test_export_resident"]
	if !ok {
		t.Fatalf("easyfs_test_export_resident not exported")
	}
	if got, want := res.GetMetric()[0].GetGauge().GetValue(), 7.0; got != want {
		t.Errorf("resident = %v, want %v", got, want)
	}
}
