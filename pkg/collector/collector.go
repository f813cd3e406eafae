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

// Package collector contains the collection engine: the collector
// contract, the tier scheduler and the catalog of collectors that turn
// dashboard API responses into Prometheus metrics.
package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
	"github.com/merakiops/meraki-dashboard-exporter/pkg/metrics"
)

// API is the dashboard surface the catalog consumes, implemented by
// *meraki.Client and by fakes in tests.
type API interface {
	DeviceAvailabilities(ctx context.Context, orgID string) ([]meraki.DeviceAvailability, error)
	DeviceStatusOverview(ctx context.Context, orgID string) (*meraki.DeviceStatusOverview, error)
	APIRequestsOverview(ctx context.Context, orgID string, timespan time.Duration) (*meraki.APIRequestsOverview, error)
	Licenses(ctx context.Context, orgID string) ([]meraki.License, error)
	LicensesOverview(ctx context.Context, orgID string) (*meraki.LicensesOverview, error)
	ClientOverview(ctx context.Context, orgID string, timespan time.Duration) (*meraki.ClientOverview, error)
	TopApplicationsByUsage(ctx context.Context, orgID string, timespan time.Duration) ([]meraki.ApplicationUsage, error)
	AssuranceAlerts(ctx context.Context, orgID string) ([]meraki.AssuranceAlert, error)
	SensorReadingsLatest(ctx context.Context, orgID string) ([]meraki.SensorReadings, error)
	ChannelUtilization(ctx context.Context, networkID string, timespan time.Duration) ([]meraki.ChannelUtilization, error)
	ConnectionStats(ctx context.Context, networkID string, timespan time.Duration) (*meraki.ConnectionStats, error)
	DataRateHistory(ctx context.Context, networkID string, timespan time.Duration) ([]meraki.DataRateSample, error)
	BluetoothClients(ctx context.Context, networkID string, timespan time.Duration) ([]meraki.BluetoothClient, error)
	NetworkClients(ctx context.Context, networkID string, timespan time.Duration, maxClients int) ([]meraki.NetworkClient, error)
	WirelessSignalQuality(ctx context.Context, networkID, clientID string, timespan time.Duration) ([]meraki.SignalQualitySample, error)
	MemoryUsageHistory(ctx context.Context, orgID string) ([]meraki.MemoryUsageHistory, error)
	WirelessClientsOverview(ctx context.Context, orgID string) ([]meraki.WirelessClientsOverview, error)
	WirelessCPULoad(ctx context.Context, orgID string) ([]meraki.WirelessCPULoad, error)
	WirelessStatus(ctx context.Context, serial string) (*meraki.WirelessStatus, error)
	SwitchPortStatuses(ctx context.Context, serial string, timespan time.Duration) ([]meraki.SwitchPortStatus, error)
	UplinkStatuses(ctx context.Context, orgID string) ([]meraki.UplinkStatus, error)
	LoginSecurity(ctx context.Context, orgID string) (*meraki.LoginSecurity, error)
	ConfigurationChanges(ctx context.Context, orgID string, timespan time.Duration) ([]meraki.ConfigurationChange, error)
}

// Inventory is the cached listing surface, implemented by *inventory.Cache.
type Inventory interface {
	GetOrganizations(ctx context.Context) ([]meraki.Organization, error)
	GetNetworks(ctx context.Context, orgID string) ([]meraki.Network, error)
	GetDevices(ctx context.Context, orgID, networkID string) ([]meraki.Device, error)
}

// Settings carries the configuration slice the catalog needs. It is
// immutable after startup.
type Settings struct {
	Intervals        metrics.Intervals
	BatchSize        int
	BatchDelay       time.Duration
	ConcurrencyLimit int
	CollectorTimeout time.Duration

	LicenseExpirationWarningDays int

	ClientsEnabled       bool
	MaxClientsPerNetwork int
	DNSServer            string
	DNSTimeout           time.Duration
	DNSCacheTTL          time.Duration
}

// Deps is the dependency graph handed to every collector factory.
type Deps struct {
	Logger    log.Logger
	API       API
	Inventory Inventory
	Metrics   *metrics.Registry
	Settings  Settings
	Self      *SelfMetrics
}

// Collector is the unit the manager schedules. Coordinators fan out to
// sub-collectors; sub-collectors are owned by their coordinator and never
// registered with the manager directly.
type Collector interface {
	Name() string
	Tier() metrics.Tier
	// InitMetrics declares metric handles. Called exactly once, before
	// any Collect invocation.
	InitMetrics()
	Collect(ctx context.Context) error
}

// Factory builds one collector instance from the dependency graph.
type Factory func(deps Deps) Collector

type registration struct {
	name    string
	tier    metrics.Tier
	factory Factory
}

var (
	registryMtx   sync.Mutex
	registrations = map[string]registration{}
)

// Register announces a main collector. Each collector file registers
// itself from init() so the manager discovers the catalog without a
// hand-maintained list.
func Register(name string, tier metrics.Tier, factory Factory) {
	registryMtx.Lock()
	defer registryMtx.Unlock()
	if _, ok := registrations[name]; ok {
		panic(fmt.Sprintf("collector: duplicate registration of %q", name))
	}
	registrations[name] = registration{name: name, tier: tier, factory: factory}
}

func sortedRegistrations() []registration {
	registryMtx.Lock()
	defer registryMtx.Unlock()
	out := make([]registration, 0, len(registrations))
	for _, r := range registrations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// SelfMetrics is the shared self-instrumentation of the engine. These
// series describe the exporter itself and live for the process lifetime,
// so they bypass TTL tracking.
type SelfMetrics struct {
	Duration         *prometheus.HistogramVec
	CollectorErrors  *prometheus.CounterVec
	CollectionErrors *prometheus.CounterVec
	APICalls         *prometheus.CounterVec
	LastSuccess      *prometheus.GaugeVec
	LastSuccessAge   *prometheus.GaugeVec
	FailureStreak    *prometheus.GaugeVec
	OrgWaitTime      prometheus.Histogram
}

// NewSelfMetrics registers the engine self-instrumentation on reg.
func NewSelfMetrics(reg prometheus.Registerer) *SelfMetrics {
	s := &SelfMetrics{
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meraki_exporter_collector_duration_seconds",
				Help:    "Wall-clock duration of collector runs.",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"collector", "tier"},
		),
		CollectorErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meraki_exporter_collector_errors_total",
				Help: "Classified errors recorded inside collector sub-steps.",
			},
			[]string{"collector", "tier", "error_type"},
		),
		CollectionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meraki_exporter_collection_errors_total",
				Help: "Failed collector runs and dropped ticks, by error type.",
			},
			[]string{"collector", "tier", "error_type"},
		),
		APICalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meraki_exporter_collector_api_calls_total",
				Help: "Dashboard API calls attributed to collectors.",
			},
			[]string{"collector", "tier", "endpoint"},
		),
		LastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meraki_exporter_collector_last_success_timestamp_seconds",
				Help: "Unix time of the last fully successful run.",
			},
			[]string{"collector", "tier"},
		),
		LastSuccessAge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meraki_exporter_collector_last_success_age_seconds",
				Help: "Seconds since the last fully successful run.",
			},
			[]string{"collector", "tier"},
		),
		FailureStreak: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meraki_exporter_collector_failure_streak",
				Help: "Consecutive failed runs; resets to zero on success.",
			},
			[]string{"collector", "tier"},
		),
		OrgWaitTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "meraki_exporter_org_collection_wait_time_seconds",
				Help:    "Time collector tasks queue behind the per-tier concurrency bound.",
				Buckets: []float64{.001, .01, .1, .5, 1, 5, 15, 60},
			},
		),
	}
	reg.MustRegister(
		s.Duration,
		s.CollectorErrors,
		s.CollectionErrors,
		s.APICalls,
		s.LastSuccess,
		s.LastSuccessAge,
		s.FailureStreak,
		s.OrgWaitTime,
	)
	return s
}

// Base provides the shared lifecycle helpers every collector embeds.
type Base struct {
	name string
	tier metrics.Tier
	deps Deps
}

// NewBase wires a collector identity into the dependency graph.
func NewBase(name string, tier metrics.Tier, deps Deps) Base {
	return Base{name: name, tier: tier, deps: deps}
}

func (b *Base) Name() string       { return b.name }
func (b *Base) Tier() metrics.Tier { return b.tier }

// Logger returns the collector-scoped logger.
func (b *Base) Logger() log.Logger {
	return log.With(b.deps.Logger, "collector", b.name)
}

// TrackAPICall attributes one dashboard API call to this collector.
func (b *Base) TrackAPICall(endpoint string) {
	b.deps.Self.APICalls.WithLabelValues(b.name, b.tier.String(), endpoint).Inc()
	level.Debug(b.Logger()).Log("msg", "API call", "endpoint", endpoint)
}

// RunSubStep executes one sub-collector unit with continue-on-error
// semantics: classified errors are counted but never abort the
// coordinator. An endpoint that is not offered to the organization is
// recovered silently at debug level.
func (b *Base) RunSubStep(ctx context.Context, step string, fn func(context.Context) error) {
	err := fn(ctx)
	if err == nil {
		return
	}
	if meraki.IsNotAvailable(err) {
		level.Debug(b.Logger()).Log("msg", "endpoint not available", "step", step, "err", err)
		return
	}
	category := meraki.CategoryOf(err)
	b.deps.Self.CollectorErrors.WithLabelValues(b.name, b.tier.String(), string(category)).Inc()
	level.Warn(b.Logger()).Log("msg", "sub-step failed", "step", step, "error_type", category, "err", err)
}

// forEachBatch partitions items into batches, runs at most limit units
// concurrently within a batch, and sleeps delay between batches. fn is
// expected to handle its own errors (via RunSubStep); a non-nil return
// only propagates context cancellation.
func forEachBatch[T any](ctx context.Context, items []T, batchSize int, delay time.Duration, limit int, fn func(context.Context, T) error) error {
	if batchSize <= 0 {
		batchSize = 10
	}
	if limit <= 0 {
		limit = 1
	}
	for start := 0; start < len(items); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(items))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for _, item := range items[start:end] {
			g.Go(func() error { return fn(gctx, item) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if end < len(items) && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil
}
