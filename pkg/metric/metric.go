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

// Package metric provides primitives for collecting metrics.
//
// Metrics are registered once, usually from package-level variables, and
// updated with atomic operations. A snapshot of every registered metric can
// be exported in the Prometheus text format with WriteText.
package metric

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"gvisor.dev/easyfs/pkg/log"
	"gvisor.dev/easyfs/pkg/sync"
)

var (
	// ErrNameInUse indicates that another metric is already defined for
	// the given name.
	ErrNameInUse = errors.New("metric name already in use")

	// ErrInvalidMetricName indicates a metric name is not of the form
	// /component/name.
	ErrInvalidMetricName = errors.New("metric name must start with '/' and contain only [a-z0-9_/]")

	// ErrTooManyFieldCombinations indicates that the fields of a metric
	// describe too many distinct values.
	ErrTooManyFieldCombinations = errors.New("metric has too many combinations of field values")
)

// maxFieldCombinations bounds the number of counters a single metric may
// allocate for its field values.
const maxFieldCombinations = 1024

// Field contains the field name and allowed values for the metric which is
// used in registration of the metric.
type Field struct {
	// name is the metric field name.
	name string

	// allowedValues is the list of allowed values for the field.
	allowedValues []string
}

// NewField defines a new Field that can be used to break down a metric.
func NewField(name string, allowedValues ...string) Field {
	return Field{name: name, allowedValues: allowedValues}
}

// Uint64Metric encapsulates a uint64 that represents some kind of metric to
// be monitored.
//
// Metrics are not saved across save/restore and thus reset to zero on
// restore.
type Uint64Metric struct {
	name        string
	description string
	cumulative  bool

	fields []Field

	// values holds one counter per combination of field values, indexed in
	// mixed radix with the first field most significant.
	values []atomic.Uint64
}

var (
	// registryMu protects registry.
	registryMu sync.Mutex

	// registry maps metric names to their definitions.
	registry = map[string]*Uint64Metric{}
)

func verifyName(name string) error {
	if len(name) < 2 || name[0] != '/' || strings.HasSuffix(name, "/") {
		return ErrInvalidMetricName
	}
	for _, c := range name[1:] {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_', c == '/':
		default:
			return ErrInvalidMetricName
		}
	}
	return nil
}

func newUint64Metric(name string, cumulative bool, description string, fields ...Field) (*Uint64Metric, error) {
	if err := verifyName(name); err != nil {
		return nil, fmt.Errorf("%q: %w", name, err)
	}
	n := 1
	for _, f := range fields {
		if len(f.allowedValues) == 0 {
			return nil, fmt.Errorf("%q: field %q has no allowed values", name, f.name)
		}
		n *= len(f.allowedValues)
		if n > maxFieldCombinations {
			return nil, fmt.Errorf("%q: %w", name, ErrTooManyFieldCombinations)
		}
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNameInUse)
	}
	m := &Uint64Metric{
		name:        name,
		description: description,
		cumulative:  cumulative,
		fields:      fields,
		values:      make([]atomic.Uint64, n),
	}
	registry[name] = m
	return m, nil
}

// NewUint64Metric creates and registers a new cumulative metric with the
// given name.
func NewUint64Metric(name string, description string, fields ...Field) (*Uint64Metric, error) {
	return newUint64Metric(name, true, description, fields...)
}

// MustCreateNewUint64Metric calls NewUint64Metric and panics if it returns
// an error.
func MustCreateNewUint64Metric(name string, description string, fields ...Field) *Uint64Metric {
	m, err := NewUint64Metric(name, description, fields...)
	if err != nil {
		panic(fmt.Sprintf("Unable to create metric %q: %s", name, err))
	}
	return m
}

// NewUint64Gauge creates and registers a new metric whose value may go down
// as well as up.
func NewUint64Gauge(name string, description string, fields ...Field) (*Uint64Metric, error) {
	return newUint64Metric(name, false, description, fields...)
}

// MustCreateNewUint64Gauge calls NewUint64Gauge and panics if it returns an
// error.
func MustCreateNewUint64Gauge(name string, description string, fields ...Field) *Uint64Metric {
	m, err := NewUint64Gauge(name, description, fields...)
	if err != nil {
		panic(fmt.Sprintf("Unable to create metric %q: %s", name, err))
	}
	return m
}

// key returns the index of the counter for the given field values. Unknown
// values are reported and counted against the first allowed value.
func (m *Uint64Metric) key(fieldValues []string) int {
	if len(fieldValues) != len(m.fields) {
		panic(fmt.Sprintf("metric %q: got %d field values, want %d", m.name, len(fieldValues), len(m.fields)))
	}
	k := 0
	for i, f := range m.fields {
		idx := -1
		for j, v := range f.allowedValues {
			if v == fieldValues[i] {
				idx = j
				break
			}
		}
		if idx < 0 {
			log.Warningf("metric %q: unknown value %q for field %q", m.name, fieldValues[i], f.name)
			idx = 0
		}
		k = k*len(f.allowedValues) + idx
	}
	return k
}

// fieldValues is the inverse of key.
func (m *Uint64Metric) fieldValues(k int) []string {
	vals := make([]string, len(m.fields))
	for i := len(m.fields) - 1; i >= 0; i-- {
		n := len(m.fields[i].allowedValues)
		vals[i] = m.fields[i].allowedValues[k%n]
		k /= n
	}
	return vals
}

// Value returns the current value of the metric for the given set of fields.
func (m *Uint64Metric) Value(fieldValues ...string) uint64 {
	return m.values[m.key(fieldValues)].Load()
}

// Increment increments the metric by 1.
func (m *Uint64Metric) Increment(fieldValues ...string) {
	m.values[m.key(fieldValues)].Add(1)
}

// IncrementBy increments the metric by v.
func (m *Uint64Metric) IncrementBy(v uint64, fieldValues ...string) {
	m.values[m.key(fieldValues)].Add(v)
}

// Decrement decrements a gauge by 1.
func (m *Uint64Metric) Decrement(fieldValues ...string) {
	if m.cumulative {
		panic(fmt.Sprintf("metric %q is cumulative and cannot be decremented", m.name))
	}
	m.values[m.key(fieldValues)].Add(^uint64(0))
}

// Set sets a gauge to v.
func (m *Uint64Metric) Set(v uint64, fieldValues ...string) {
	if m.cumulative {
		panic(fmt.Sprintf("metric %q is cumulative and cannot be set", m.name))
	}
	m.values[m.key(fieldValues)].Store(v)
}

// registered returns every registered metric, sorted by name.
func registered() []*Uint64Metric {
	registryMu.Lock()
	ms := make([]*Uint64Metric, 0, len(registry))
	for _, m := range registry {
		ms = append(ms, m)
	}
	registryMu.Unlock()
	sort.Slice(ms, func(i, j int) bool { return ms[i].name < ms[j].name })
	return ms
}
