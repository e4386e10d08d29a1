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
	"io"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// namespace prefixes every exported metric name.
const namespace = "easyfs"

// PrometheusName returns the Prometheus name of a metric registered as
// name, e.g. "/blockcache/hits" becomes "easyfs_blockcache_hits".
func PrometheusName(name string) string {
	return namespace + strings.ReplaceAll(name, "/", "_")
}

// family converts a snapshot of m to a Prometheus metric family.
func (m *Uint64Metric) family() *dto.MetricFamily {
	typ := dto.MetricType_GAUGE
	if m.cumulative {
		typ = dto.MetricType_COUNTER
	}
	mf := &dto.MetricFamily{
		Name: proto.String(PrometheusName(m.name)),
		Help: proto.String(m.description),
		Type: typ.Enum(),
	}
	for k := range m.values {
		v := float64(m.values[k].Load())
		pm := &dto.Metric{}
		for i, fv := range m.fieldValues(k) {
			pm.Label = append(pm.Label, &dto.LabelPair{
				Name:  proto.String(m.fields[i].name),
				Value: proto.String(fv),
			})
		}
		if m.cumulative {
			pm.Counter = &dto.Counter{Value: proto.Float64(v)}
		} else {
			pm.Gauge = &dto.Gauge{Value: proto.Float64(v)}
		}
		mf.Metric = append(mf.Metric, pm)
	}
	return mf
}

// WriteText writes a snapshot of every registered metric to w in the
// Prometheus text exposition format. It returns the number of bytes written.
func WriteText(w io.Writer) (int, error) {
	total := 0
	for _, m := range registered() {
		n, err := expfmt.MetricFamilyToText(w, m.family())
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
