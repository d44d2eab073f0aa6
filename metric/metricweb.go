/*
 * Copyright 2026 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metric

import (
	"context"
	"expvar"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	dto "github.com/prometheus/client_model/go"
	mw "github.com/zserge/metric"

	"github.com/CovenantSQL/SecretLedger/utils/log"
)

const mb = 1 << 20

// SimpleMetricMap is map from metric name to MetricFamily.
type SimpleMetricMap map[string]*dto.MetricFamily

// Totals sums every sample of the counter and gauge families of
// SecretLedger, keyed by family name.
func (mm SimpleMetricMap) Totals() (totals map[string]float64) {
	totals = make(map[string]float64)
	for name, mf := range mm {
		if !strings.HasPrefix(name, Namespace+"_") {
			continue
		}
		var sum float64
		for _, m := range mf.GetMetric() {
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				sum += m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				sum += m.GetGauge().GetValue()
			}
		}
		totals[name] = sum
	}
	return
}

func gather() (mm SimpleMetricMap, err error) {
	mfs, err := Registry.Gather()
	if err != nil {
		err = errors.Wrap(err, "gathering metrics failed")
		return
	}
	mm = make(SimpleMetricMap, len(mfs))
	for _, mf := range mfs {
		mm[mf.GetName()] = mf
	}
	return
}

func expose(name string, frames ...string) mw.Metric {
	if val := expvar.Get(name); val != nil {
		if m, ok := val.(mw.Metric); ok {
			return m
		}
	}
	m := mw.NewGauge(frames...)
	expvar.Publish(name, m)
	return m
}

func collect() (err error) {
	mm, err := gather()
	if err != nil {
		return
	}
	for k, v := range mm.Totals() {
		expose(k, "1h1m").Add(v)
		log.Debugf("gathered metric %s: %v", k, v)
	}
	return
}

func sampleRuntime() {
	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)
	expose("go:numgoroutine", "1m1s", "5m5s", "1h1m").Add(float64(runtime.NumGoroutine()))
	expose("go:alloc", "1m1s", "5m5s", "1h1m").Add(float64(m.Alloc) / mb)
	expose("go:alloctotal", "1m1s", "5m5s", "1h1m").Add(float64(m.TotalAlloc) / mb)
}

// InitMetricWeb starts the expvar samplers and returns the /debug/metrics
// handler. The samplers stop when ctx is done.
func InitMetricWeb(ctx context.Context) (handler http.Handler, err error) {
	sampleRuntime()
	if err = collect(); err != nil {
		return
	}

	go func() {
		collectTicker := time.NewTicker(time.Minute)
		runtimeTicker := time.NewTicker(5 * time.Second)
		defer collectTicker.Stop()
		defer runtimeTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-collectTicker.C:
				_ = collect()
			case <-runtimeTicker.C:
				sampleRuntime()
			}
		}
	}()

	return mw.Handler(mw.Exposed), nil
}
