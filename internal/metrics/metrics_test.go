// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaugeReadsAtScrape(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	value := 3.0
	m.Gauge("connections_active", "Active connections", func() float64 { return value })

	value = 5
	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "agrirouter_middleware_connections_active" {
			found = true
			assert.Equal(t, 5.0, f.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found, "gauge not gathered")
}

func TestCountersIndependentPerRegistry(t *testing.T) {
	a := NewNop()
	b := NewNop()
	a.ConnectionCacheMisses.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.ConnectionCacheMisses))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ConnectionCacheMisses))
}
