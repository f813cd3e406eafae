// Copyright 2025 The Meraki Dashboard Exporter Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics owns the Prometheus registry and the uniform write path.
// Every write stamps its (metric, label-tuple) pair; a reaper removes
// tuples whose last write is older than the TTL of the tier that produced
// them, so series for entities that disappeared upstream eventually leave
// the exposition.
package metrics

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var nameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// keySep joins a metric name and its label values into a series key. The
// unit separator cannot occur in sane label values.
const keySep = "\x1f"

type series struct {
	lastWrite time.Time
	tier      Tier
	drop      func() bool
}

// Registry wraps a prometheus.Registry with write tracking and TTL-based
// series expiration. It is the only write path collectors may use.
type Registry struct {
	logger        log.Logger
	reg           *prometheus.Registry
	intervals     Intervals
	ttlMultiplier float64
	now           func() time.Time

	mtx    sync.Mutex
	series map[string]series

	expiredTotal *prometheus.CounterVec
}

// New wraps reg. ttlMultiplier scales each tier interval into the series
// TTL; the 2.5 default forgives one missed collection without retaining
// series for entities that are truly gone.
func New(logger log.Logger, reg *prometheus.Registry, intervals Intervals, ttlMultiplier float64) *Registry {
	if ttlMultiplier <= 0 {
		ttlMultiplier = 2.5
	}
	r := &Registry{
		logger:        logger,
		reg:           reg,
		intervals:     intervals,
		ttlMultiplier: ttlMultiplier,
		now:           time.Now,
		series:        map[string]series{},
		expiredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meraki_exporter_metric_series_expired_total",
				Help: "Tracked series removed because their TTL elapsed.",
			},
			[]string{"tier"},
		),
	}
	reg.MustRegister(r.expiredTotal)
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "meraki_exporter_metric_series_tracked",
			Help: "Number of live tracked series.",
		},
		func() float64 {
			r.mtx.Lock()
			defer r.mtx.Unlock()
			return float64(len(r.series))
		},
	))
	return r
}

// Gather implements prometheus.Gatherer for the HTTP exposition.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.reg.Gather()
}

// Registerer exposes the underlying registerer for self-instrumentation
// (collector health, client metrics). Domain metrics must go through the
// tracked handle constructors instead.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

func mustValidNames(name string, labels []string) {
	if !nameRe.MatchString(name) {
		panic(fmt.Sprintf("metrics: invalid metric name %q", name))
	}
	for _, l := range labels {
		if !nameRe.MatchString(l) {
			panic(fmt.Sprintf("metrics: invalid label name %q on %s", l, name))
		}
	}
}

// touch stamps a series as freshly written and remembers how to drop it.
func (r *Registry) touch(name string, tier Tier, labelValues []string, drop func() bool) {
	key := name + keySep + strings.Join(labelValues, keySep)
	r.mtx.Lock()
	r.series[key] = series{lastWrite: r.now(), tier: tier, drop: drop}
	r.mtx.Unlock()
}

// Sweep removes every tracked series whose last write is older than
// ttlMultiplier times its owning tier's interval.
func (r *Registry) Sweep() {
	now := r.now()
	r.mtx.Lock()
	defer r.mtx.Unlock()
	for key, s := range r.series {
		ttl := time.Duration(r.ttlMultiplier * float64(r.intervals.For(s.tier)))
		if now.Sub(s.lastWrite) <= ttl {
			continue
		}
		s.drop()
		delete(r.series, key)
		r.expiredTotal.WithLabelValues(s.tier.String()).Inc()
	}
}

// Run reaps expired series until ctx is cancelled. The reap period is the
// FAST interval so even fast-tier series never outlive their TTL by much.
func (r *Registry) Run(ctx context.Context) error {
	tick := time.NewTicker(r.intervals.Fast)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			start := r.now()
			r.Sweep()
			level.Debug(r.logger).Log("msg", "series expiration sweep completed", "took", time.Since(start))
		}
	}
}

// Gauge is a tracked gauge vector handle.
type Gauge struct {
	r    *Registry
	name string
	vec  *prometheus.GaugeVec
}

// NewGauge declares a tracked gauge. It panics on invalid names or
// duplicate registration, mirroring MustRegister.
func (r *Registry) NewGauge(name, help string, labels ...string) *Gauge {
	mustValidNames(name, labels)
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
	r.reg.MustRegister(vec)
	return &Gauge{r: r, name: name, vec: vec}
}

// Set writes the gauge value for the label tuple on behalf of tier.
func (g *Gauge) Set(tier Tier, value float64, labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Set(value)
	g.r.touch(g.name, tier, labelValues, func() bool { return g.vec.DeleteLabelValues(labelValues...) })
}

// Counter is a tracked counter vector handle.
type Counter struct {
	r    *Registry
	name string
	vec  *prometheus.CounterVec
}

// NewCounter declares a tracked counter.
func (r *Registry) NewCounter(name, help string, labels ...string) *Counter {
	mustValidNames(name, labels)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	r.reg.MustRegister(vec)
	return &Counter{r: r, name: name, vec: vec}
}

// Add increments the counter for the label tuple on behalf of tier.
func (c *Counter) Add(tier Tier, value float64, labelValues ...string) {
	c.vec.WithLabelValues(labelValues...).Add(value)
	c.r.touch(c.name, tier, labelValues, func() bool { return c.vec.DeleteLabelValues(labelValues...) })
}

// Histogram is a tracked histogram vector handle.
type Histogram struct {
	r    *Registry
	name string
	vec  *prometheus.HistogramVec
}

// NewHistogram declares a tracked histogram.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labels ...string) *Histogram {
	mustValidNames(name, labels)
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
	r.reg.MustRegister(vec)
	return &Histogram{r: r, name: name, vec: vec}
}

// Observe records a sample for the label tuple on behalf of tier.
func (h *Histogram) Observe(tier Tier, value float64, labelValues ...string) {
	h.vec.WithLabelValues(labelValues...).Observe(value)
	h.r.touch(h.name, tier, labelValues, func() bool { return h.vec.DeleteLabelValues(labelValues...) })
}

// Info is a tracked info metric: a gauge that always carries value 1 and
// only semantic labels.
type Info struct {
	g *Gauge
}

// NewInfo declares a tracked info metric.
func (r *Registry) NewInfo(name, help string, labels ...string) *Info {
	return &Info{g: r.NewGauge(name, help, labels...)}
}

// Set marks the label tuple as current.
func (i *Info) Set(tier Tier, labelValues ...string) {
	i.g.Set(tier, 1, labelValues...)
}
