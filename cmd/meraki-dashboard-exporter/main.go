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

// The meraki-dashboard-exporter polls the Meraki Dashboard API on tiered
// schedules and serves the results as Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/common/version"

	"github.com/merakiops/meraki-dashboard-exporter/pkg/collector"
	"github.com/merakiops/meraki-dashboard-exporter/pkg/config"
	"github.com/merakiops/meraki-dashboard-exporter/pkg/inventory"
	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
	"github.com/merakiops/meraki-dashboard-exporter/pkg/metrics"
	"github.com/merakiops/meraki-dashboard-exporter/pkg/web"
)

func main() {
	app := kingpin.New("meraki-dashboard-exporter", "Prometheus exporter for the Meraki Dashboard API.")
	app.Version(version.Print("meraki-dashboard-exporter"))
	app.HelpFlag.Short('h')
	cfg := config.RegisterFlags(app)

	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "parsing flags:", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		level.Error(logger).Log("msg", "invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := runExporter(logger, cfg); err != nil {
		level.Error(logger).Log("msg", "exporter terminated", "err", err)
		os.Exit(1)
	}
	level.Info(logger).Log("msg", "exporter stopped")
}

func newLogger(lvl string) log.Logger {
	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
	levels := map[string]level.Option{
		"debug": level.AllowDebug(),
		"info":  level.AllowInfo(),
		"warn":  level.AllowWarn(),
		"error": level.AllowError(),
	}
	opt, ok := levels[lvl]
	if !ok {
		opt = level.AllowInfo()
	}
	logger = level.NewFilter(logger, opt)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
}

func runExporter(logger log.Logger, cfg *config.Config) error {
	level.Info(logger).Log("msg", "starting meraki-dashboard-exporter", "version", version.Info())

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		versioncollector.NewCollector("meraki_exporter"),
	)

	intervals := metrics.Intervals{
		Fast:   cfg.Intervals.Fast,
		Medium: cfg.Intervals.Medium,
		Slow:   cfg.Intervals.Slow,
	}
	tracked := metrics.New(logger, promRegistry, intervals, cfg.Monitoring.TTLMultiplier)

	client, err := meraki.New(logger, tracked.Registerer(), meraki.Options{
		APIKey:             cfg.Meraki.APIKey,
		BaseURL:            cfg.Meraki.APIBaseURL,
		Timeout:            cfg.API.Timeout,
		MaxRetries:         cfg.API.MaxRetries,
		ConcurrencyLimit:   int64(cfg.API.ConcurrencyLimit),
		RateLimitRetryWait: cfg.API.RateLimitRetryWait,
		RequestsPerSecond:  cfg.API.RequestsPerSecond,
		HistogramBuckets:   cfg.Monitoring.HistogramBuckets,
		UserAgent:          "meraki-dashboard-exporter/" + version.Version,
	})
	if err != nil {
		return fmt.Errorf("building API client: %w", err)
	}

	// Inventory entries stay valid for one medium window so every tier of
	// one cycle sees the same topology.
	cacheTTL := cfg.Intervals.Medium
	if cfg.Clients.CacheTTL > 0 {
		cacheTTL = cfg.Clients.CacheTTL
	}
	cache := inventory.New(logger, client, cacheTTL, cfg.OrgAllowList())

	deps := collector.Deps{
		Logger:    logger,
		API:       client,
		Inventory: cache,
		Metrics:   tracked,
		Settings: collector.Settings{
			Intervals:                    intervals,
			BatchSize:                    cfg.API.BatchSize,
			BatchDelay:                   cfg.API.BatchDelay,
			ConcurrencyLimit:             cfg.API.ConcurrencyLimit,
			CollectorTimeout:             cfg.Collectors.Timeout,
			LicenseExpirationWarningDays: cfg.Monitoring.LicenseExpirationWarningDays,
			ClientsEnabled:               cfg.Clients.Enabled,
			MaxClientsPerNetwork:         cfg.Clients.MaxClientsPerNetwork,
			DNSServer:                    cfg.Clients.DNSServer,
			DNSTimeout:                   cfg.Clients.DNSTimeout,
			DNSCacheTTL:                  cfg.Clients.DNSCacheTTL,
		},
	}

	enabled := config.CollectorList(cfg.Collectors.Enabled)
	disabled := config.CollectorList(cfg.Collectors.Disabled)
	if !cfg.Clients.Enabled && len(enabled) == 0 {
		disabled = append(disabled, "clients")
	}
	manager, err := collector.NewManager(deps, enabled, disabled)
	if err != nil {
		return err
	}

	handler := web.New(logger, tracked, manager, web.Options{
		PathPrefix:        cfg.Server.PathPrefix,
		EnableHealthCheck: cfg.Server.EnableHealthCheck,
		UnhealthyAfter:    3 * cfg.Intervals.Medium,
	})
	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler: handler,
	}

	var g run.Group
	g.Add(run.SignalHandler(context.Background(), os.Interrupt))
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return manager.Run(ctx)
		}, func(error) {
			cancel()
		})
	}
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return tracked.Run(ctx)
		}, func(error) {
			cancel()
		})
	}
	{
		g.Add(func() error {
			level.Info(logger).Log("msg", "listening", "addr", srv.Addr)
			return srv.ListenAndServe()
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		})
	}

	err = g.Run()
	if _, ok := err.(run.SignalError); ok {
		level.Info(logger).Log("msg", "received signal, shutting down", "signal", err)
		return nil
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
