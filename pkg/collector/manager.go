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

package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
	"github.com/merakiops/meraki-dashboard-exporter/pkg/metrics"
)

// managerCollector is the label value used for errors that belong to the
// scheduler rather than any one collector.
const managerCollector = "_manager_"

// Health is the per-collector run record the manager maintains.
type Health struct {
	Name                string
	Tier                metrics.Tier
	LastSuccess         time.Time
	ConsecutiveFailures int
	LastDuration        time.Duration
}

// Manager owns the three cadences. Each tier has its own ticker; a tier
// run never overlaps its previous run, and tiers never serialize against
// each other.
type Manager struct {
	deps    Deps
	self    *SelfMetrics
	timeout time.Duration
	now     func() time.Time

	collectors map[metrics.Tier][]Collector
	running    map[metrics.Tier]*atomic.Bool

	mtx    sync.Mutex
	health map[string]*Health
}

// NewManager discovers registered collectors, applies the enable/disable
// filters and initializes every surviving collector's metrics. The filter
// set is immutable afterwards.
func NewManager(deps Deps, enabled, disabled []string) (*Manager, error) {
	if deps.Self == nil {
		deps.Self = NewSelfMetrics(deps.Metrics.Registerer())
	}
	m := &Manager{
		deps:       deps,
		self:       deps.Self,
		timeout:    deps.Settings.CollectorTimeout,
		now:        time.Now,
		collectors: map[metrics.Tier][]Collector{},
		running:    map[metrics.Tier]*atomic.Bool{},
		health:     map[string]*Health{},
	}
	if m.timeout <= 0 {
		m.timeout = 120 * time.Second
	}
	for _, t := range metrics.Tiers {
		m.running[t] = &atomic.Bool{}
	}

	allow := map[string]bool{}
	for _, name := range enabled {
		allow[name] = true
	}
	deny := map[string]bool{}
	for _, name := range disabled {
		deny[name] = true
	}

	known := map[string]bool{}
	for _, reg := range sortedRegistrations() {
		known[reg.name] = true
		if deny[reg.name] {
			continue
		}
		if len(allow) > 0 && !allow[reg.name] {
			continue
		}
		c := reg.factory(deps)
		c.InitMetrics()
		m.collectors[reg.tier] = append(m.collectors[reg.tier], c)
		m.health[reg.name] = &Health{Name: reg.name, Tier: reg.tier}
	}
	for name := range allow {
		if !known[name] {
			return nil, fmt.Errorf("collector: unknown collector %q in enabled_collectors", name)
		}
	}
	for name := range deny {
		if !known[name] {
			return nil, fmt.Errorf("collector: unknown collector %q in disabled_collectors", name)
		}
	}
	return m, nil
}

// Collectors returns the enabled collectors of one tier.
func (m *Manager) Collectors(tier metrics.Tier) []Collector {
	return m.collectors[tier]
}

// HealthSnapshot returns a copy of all per-collector run records.
func (m *Manager) HealthSnapshot() []Health {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	out := make([]Health, 0, len(m.health))
	for _, h := range m.health {
		out = append(out, *h)
	}
	return out
}

// SucceededWithin reports whether at least one collector completed
// successfully within the window. The /health endpoint gates on it.
func (m *Manager) SucceededWithin(window time.Duration) bool {
	now := m.now()
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for _, h := range m.health {
		if !h.LastSuccess.IsZero() && now.Sub(h.LastSuccess) <= window {
			return true
		}
	}
	return false
}

// Run drives all tier loops until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, tier := range metrics.Tiers {
		if len(m.collectors[tier]) == 0 {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.runTier(ctx, tier)
		}()
	}
	wg.Wait()
	return nil
}

// runTier ticks at the tier interval from process start. A tick that
// arrives while the previous run is still in flight is dropped and
// recorded against the manager.
func (m *Manager) runTier(ctx context.Context, tier metrics.Tier) {
	interval := m.deps.Settings.Intervals.For(tier)
	level.Info(m.deps.Logger).Log("msg", "starting tier scheduler", "tier", tier, "interval", interval, "collectors", len(m.collectors[tier]))

	m.launchTierRun(ctx, tier)
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			m.launchTierRun(ctx, tier)
		}
	}
}

func (m *Manager) launchTierRun(ctx context.Context, tier metrics.Tier) {
	if !m.running[tier].CompareAndSwap(false, true) {
		m.self.CollectionErrors.WithLabelValues(managerCollector, tier.String(), "overrun").Inc()
		level.Warn(m.deps.Logger).Log("msg", "tier run still in flight, dropping tick", "tier", tier)
		return
	}
	go func() {
		defer m.running[tier].Store(false)
		m.collectTier(ctx, tier)
	}()
}

// collectTier runs every enabled collector of the tier as its own task,
// bounded by the configured concurrency limit.
func (m *Manager) collectTier(ctx context.Context, tier metrics.Tier) {
	limit := m.deps.Settings.ConcurrencyLimit
	if limit <= 0 {
		limit = 3
	}
	g := &errgroup.Group{}
	g.SetLimit(limit)
	queued := m.now()
	for _, c := range m.collectors[tier] {
		g.Go(func() error {
			m.self.OrgWaitTime.Observe(m.now().Sub(queued).Seconds())
			m.runCollector(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
}

// runCollector wraps one Collect invocation with timing, timeout, panic
// capture, error classification and health bookkeeping.
func (m *Manager) runCollector(ctx context.Context, c Collector) {
	name, tier := c.Name(), c.Tier().String()
	runCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := m.now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return c.Collect(runCtx)
	}()
	duration := m.now().Sub(start)
	m.self.Duration.WithLabelValues(name, tier).Observe(duration.Seconds())

	m.mtx.Lock()
	h := m.health[name]
	h.LastDuration = duration
	if err != nil {
		h.ConsecutiveFailures++
	} else {
		h.ConsecutiveFailures = 0
		h.LastSuccess = m.now()
	}
	streak := h.ConsecutiveFailures
	lastSuccess := h.LastSuccess
	m.mtx.Unlock()

	m.self.FailureStreak.WithLabelValues(name, tier).Set(float64(streak))
	if !lastSuccess.IsZero() {
		m.self.LastSuccess.WithLabelValues(name, tier).Set(float64(lastSuccess.Unix()))
		m.self.LastSuccessAge.WithLabelValues(name, tier).Set(m.now().Sub(lastSuccess).Seconds())
	}

	if err != nil {
		// A run cut short by process shutdown is not a collection failure.
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			level.Debug(m.deps.Logger).Log("msg", "collector run cancelled", "collector", name, "tier", tier, "duration", duration)
			return
		}
		errType := errorType(runCtx, err)
		m.self.CollectionErrors.WithLabelValues(name, tier, errType).Inc()
		level.Error(m.deps.Logger).Log("msg", "collector run failed", "collector", name, "tier", tier, "error_type", errType, "duration", duration, "err", err)
		return
	}
	level.Debug(m.deps.Logger).Log("msg", "collector run completed", "collector", name, "tier", tier, "duration", duration)
}

// errorType folds a run error into the taxonomy, distinguishing the
// collector-level timeout and cancellation from upstream categories.
func errorType(runCtx context.Context, err error) string {
	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return string(meraki.CategoryOf(err))
}
