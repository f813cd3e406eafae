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

// Package config declares the exporter's flag and environment surface.
// Every flag carries an environment binding with double-underscore
// section nesting, so container deployments can run flagless.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
)

// Config is the full, immutable runtime configuration.
type Config struct {
	Meraki     Meraki
	API        API
	Intervals  Intervals
	Collectors Collectors
	Monitoring Monitoring
	Clients    Clients
	Server     Server
	LogLevel   string
}

// Meraki identifies the dashboard account to scrape.
type Meraki struct {
	APIKey     string
	OrgIDs     []string
	APIBaseURL string
}

// API tunes the upstream HTTP client.
type API struct {
	Timeout            time.Duration
	MaxRetries         int
	ConcurrencyLimit   int
	BatchSize          int
	BatchDelay         time.Duration
	RateLimitRetryWait time.Duration
	RequestsPerSecond  float64
}

// Intervals are the three collection cadences.
type Intervals struct {
	Fast   time.Duration
	Medium time.Duration
	Slow   time.Duration
}

// Collectors filters and bounds the collector catalog.
type Collectors struct {
	Enabled  []string
	Disabled []string
	Timeout  time.Duration
}

// Monitoring tunes metric lifecycle and derived alerting inputs.
type Monitoring struct {
	TTLMultiplier                float64
	HistogramBuckets             []float64
	LicenseExpirationWarningDays int
}

// Clients configures the default-disabled per-client collector.
type Clients struct {
	Enabled              bool
	CacheTTL             time.Duration
	DNSServer            string
	DNSTimeout           time.Duration
	DNSCacheTTL          time.Duration
	MaxClientsPerNetwork int
}

// Server is the HTTP exposition surface.
type Server struct {
	Host              string
	Port              int
	PathPrefix        string
	EnableHealthCheck bool
}

type bucketsValue struct {
	buckets *[]float64
}

func (b *bucketsValue) String() string {
	parts := make([]string, 0, len(*b.buckets))
	for _, v := range *b.buckets {
		parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return strings.Join(parts, ",")
}

func (b *bucketsValue) Set(s string) error {
	var out []float64
	last := 0.0
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return fmt.Errorf("invalid histogram bucket %q: %w", part, err)
		}
		if len(out) > 0 && v <= last {
			return fmt.Errorf("histogram buckets must be strictly increasing, got %q", s)
		}
		out = append(out, v)
		last = v
	}
	*b.buckets = out
	return nil
}

// DefaultHistogramBuckets cover typical dashboard API latencies.
var DefaultHistogramBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// RegisterFlags binds every option onto the kingpin application and
// returns the Config the parsed values land in.
func RegisterFlags(a *kingpin.Application) *Config {
	cfg := &Config{}

	a.Flag("meraki.api-key", "Dashboard API key.").
		Envar("MERAKI__API_KEY").Required().StringVar(&cfg.Meraki.APIKey)
	a.Flag("meraki.org-id", "Restrict collection to these organization IDs. Repeat or comma-separate; empty means every accessible org.").
		Envar("MERAKI__ORG_ID").StringsVar(&cfg.Meraki.OrgIDs)
	a.Flag("meraki.api-base-url", "Dashboard API base URL; override for regional endpoints.").
		Envar("MERAKI__API_BASE_URL").Default("https://api.meraki.com/api/v1").StringVar(&cfg.Meraki.APIBaseURL)

	a.Flag("api.timeout", "Per-request timeout for upstream calls.").
		Envar("API__TIMEOUT").Default("30s").DurationVar(&cfg.API.Timeout)
	a.Flag("api.max-retries", "Retry budget per upstream request.").
		Envar("API__MAX_RETRIES").Default("3").IntVar(&cfg.API.MaxRetries)
	a.Flag("api.concurrency-limit", "Maximum upstream requests in flight.").
		Envar("API__CONCURRENCY_LIMIT").Default("5").IntVar(&cfg.API.ConcurrencyLimit)
	a.Flag("api.batch-size", "Devices or networks fanned out per batch.").
		Envar("API__BATCH_SIZE").Default("10").IntVar(&cfg.API.BatchSize)
	a.Flag("api.batch-delay", "Pause between fan-out batches.").
		Envar("API__BATCH_DELAY").Default("0s").DurationVar(&cfg.API.BatchDelay)
	a.Flag("api.rate-limit-retry-wait", "Base wait before retrying a rate-limited request without a Retry-After header.").
		Envar("API__RATE_LIMIT_RETRY_WAIT").Default("5s").DurationVar(&cfg.API.RateLimitRetryWait)
	a.Flag("api.requests-per-second", "Client-side pacing of upstream calls.").
		Envar("API__REQUESTS_PER_SECOND").Default("8").Float64Var(&cfg.API.RequestsPerSecond)

	a.Flag("update-intervals.fast", "Cadence of the fast tier (sensors).").
		Envar("UPDATE_INTERVALS__FAST").Default("60s").DurationVar(&cfg.Intervals.Fast)
	a.Flag("update-intervals.medium", "Cadence of the medium tier (device and org health).").
		Envar("UPDATE_INTERVALS__MEDIUM").Default("300s").DurationVar(&cfg.Intervals.Medium)
	a.Flag("update-intervals.slow", "Cadence of the slow tier (configuration surfaces).").
		Envar("UPDATE_INTERVALS__SLOW").Default("900s").DurationVar(&cfg.Intervals.Slow)

	a.Flag("collectors.enabled-collectors", "Allow-list of collectors; empty enables the default set.").
		Envar("COLLECTORS__ENABLED_COLLECTORS").StringsVar(&cfg.Collectors.Enabled)
	a.Flag("collectors.disable-collectors", "Deny-list of collectors.").
		Envar("COLLECTORS__DISABLE_COLLECTORS").StringsVar(&cfg.Collectors.Disabled)
	a.Flag("collectors.collector-timeout", "Hard ceiling on one collector run.").
		Envar("COLLECTORS__COLLECTOR_TIMEOUT").Default("120s").DurationVar(&cfg.Collectors.Timeout)

	a.Flag("monitoring.metric-ttl-multiplier", "Metric series expire after this multiple of their tier interval without a write.").
		Envar("MONITORING__METRIC_TTL_MULTIPLIER").Default("2.5").Float64Var(&cfg.Monitoring.TTLMultiplier)
	cfg.Monitoring.HistogramBuckets = append([]float64(nil), DefaultHistogramBuckets...)
	a.Flag("monitoring.histogram-buckets", "Comma-separated upper bounds for request duration histograms.").
		Envar("MONITORING__HISTOGRAM_BUCKETS").SetValue(&bucketsValue{buckets: &cfg.Monitoring.HistogramBuckets})
	a.Flag("monitoring.license-expiration-warning-days", "Licenses expiring within this many days count as expiring.").
		Envar("MONITORING__LICENSE_EXPIRATION_WARNING_DAYS").Default("30").IntVar(&cfg.Monitoring.LicenseExpirationWarningDays)

	a.Flag("clients.enabled", "Collect per-client metrics. High cardinality; off by default.").
		Envar("CLIENTS__ENABLED").Default("false").BoolVar(&cfg.Clients.Enabled)
	a.Flag("clients.cache-ttl", "Inventory cache TTL override for client collection.").
		Envar("CLIENTS__CACHE_TTL").Default("0s").DurationVar(&cfg.Clients.CacheTTL)
	a.Flag("clients.dns-server", "Resolver for reverse client lookups; empty uses the system resolver.").
		Envar("CLIENTS__DNS_SERVER").StringVar(&cfg.Clients.DNSServer)
	a.Flag("clients.dns-timeout", "Timeout for one reverse lookup.").
		Envar("CLIENTS__DNS_TIMEOUT").Default("2s").DurationVar(&cfg.Clients.DNSTimeout)
	a.Flag("clients.dns-cache-ttl", "Lifetime of cached reverse lookups.").
		Envar("CLIENTS__DNS_CACHE_TTL").Default("30m").DurationVar(&cfg.Clients.DNSCacheTTL)
	a.Flag("clients.max-clients-per-network", "Cap on clients listed per network.").
		Envar("CLIENTS__MAX_CLIENTS_PER_NETWORK").Default("1000").IntVar(&cfg.Clients.MaxClientsPerNetwork)

	a.Flag("server.host", "Listen address.").
		Envar("SERVER__HOST").Default("0.0.0.0").StringVar(&cfg.Server.Host)
	a.Flag("server.port", "Listen port.").
		Envar("SERVER__PORT").Default("9099").IntVar(&cfg.Server.Port)
	a.Flag("server.path-prefix", "Prefix for all HTTP routes.").
		Envar("SERVER__PATH_PREFIX").Default("").StringVar(&cfg.Server.PathPrefix)
	a.Flag("server.enable-health-check", "Serve the /health endpoint.").
		Envar("SERVER__ENABLE_HEALTH_CHECK").Default("true").BoolVar(&cfg.Server.EnableHealthCheck)

	a.Flag("log.level", "Log verbosity: debug, info, warn, error.").
		Envar("LOGGING__LEVEL").Default("info").EnumVar(&cfg.LogLevel, "debug", "info", "warn", "error")

	return cfg
}

// Validate enforces cross-field constraints kingpin cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Meraki.APIKey) == "" {
		return fmt.Errorf("config: MERAKI__API_KEY must not be empty")
	}
	if c.Intervals.Fast <= 0 || c.Intervals.Medium <= 0 || c.Intervals.Slow <= 0 {
		return fmt.Errorf("config: update intervals must be positive")
	}
	if c.Intervals.Fast > c.Intervals.Medium || c.Intervals.Medium > c.Intervals.Slow {
		return fmt.Errorf("config: update intervals must satisfy fast <= medium <= slow, got %s/%s/%s",
			c.Intervals.Fast, c.Intervals.Medium, c.Intervals.Slow)
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("config: API__MAX_RETRIES must not be negative")
	}
	if c.API.ConcurrencyLimit < 1 {
		return fmt.Errorf("config: API__CONCURRENCY_LIMIT must be at least 1")
	}
	if c.Monitoring.TTLMultiplier < 1 {
		return fmt.Errorf("config: MONITORING__METRIC_TTL_MULTIPLIER must be at least 1")
	}
	if len(c.Monitoring.HistogramBuckets) == 0 {
		return fmt.Errorf("config: MONITORING__HISTOGRAM_BUCKETS must not be empty")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: SERVER__PORT out of range: %d", c.Server.Port)
	}
	return nil
}

// OrgAllowList flattens comma-separated and repeated org flags into one
// list.
func (c *Config) OrgAllowList() []string {
	var out []string
	for _, raw := range c.Meraki.OrgIDs {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

// CollectorList splits a possibly comma-separated collector filter.
func CollectorList(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, name := range strings.Split(entry, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}
