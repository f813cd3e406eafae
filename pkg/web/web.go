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

// Package web serves the exporter's HTTP surface: the Prometheus text
// exposition, the health gate and a small landing page.
package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthReporter is the slice of the collection manager the health gate
// needs.
type HealthReporter interface {
	SucceededWithin(window time.Duration) bool
}

// Options configures the HTTP surface.
type Options struct {
	// PathPrefix is prepended to every route, normalized to a leading
	// slash and no trailing slash. Empty serves at the root.
	PathPrefix string
	// EnableHealthCheck controls whether /health is served at all.
	EnableHealthCheck bool
	// UnhealthyAfter is the staleness window: /health reports 503 when
	// no collector has succeeded within it.
	UnhealthyAfter time.Duration
}

// New builds the exporter's HTTP handler.
func New(logger log.Logger, gatherer prometheus.Gatherer, health HealthReporter, opts Options) http.Handler {
	prefix := normalizePrefix(opts.PathPrefix)
	mux := http.NewServeMux()

	mux.Handle(prefix+"/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog:      promErrorLogger{logger: logger},
		ErrorHandling: promhttp.ContinueOnError,
	}))

	if opts.EnableHealthCheck {
		mux.HandleFunc(prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if health.SucceededWithin(opts.UnhealthyAfter) {
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
				return
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
		})
	}

	landing := prefix + "/"
	if prefix == "" {
		landing = "/"
	}
	mux.HandleFunc(landing, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != landing {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html>
<head><title>Meraki Dashboard Exporter</title></head>
<body>
<h1>Meraki Dashboard Exporter</h1>
<p><a href="` + prefix + `/metrics">Metrics</a></p>
</body>
</html>
`))
	})

	return mux
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}

// promErrorLogger adapts the structured logger to promhttp's interface.
type promErrorLogger struct {
	logger log.Logger
}

func (l promErrorLogger) Println(v ...interface{}) {
	level.Error(l.logger).Log("msg", "metrics handler error", "err", v)
}
