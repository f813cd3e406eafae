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

package meraki

import "github.com/prometheus/client_golang/prometheus"

// clientMetrics is the client's self-instrumentation. Every outbound
// attempt (including retries) counts as one request.
type clientMetrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	retryAttemptsTotal *prometheus.CounterVec
	rateLimitRemaining *prometheus.GaugeVec
	rateLimitTotal     *prometheus.GaugeVec
}

func newClientMetrics(reg prometheus.Registerer, buckets []float64) *clientMetrics {
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	m := &clientMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meraki_exporter_api_requests_total",
				Help: "Dashboard API requests by endpoint, method and status code.",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meraki_exporter_api_request_duration_seconds",
				Help:    "Dashboard API request latency.",
				Buckets: buckets,
			},
			[]string{"endpoint", "method", "status_code"},
		),
		retryAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meraki_exporter_api_retry_attempts_total",
				Help: "Dashboard API retries by endpoint and reason.",
			},
			[]string{"endpoint", "retry_reason"},
		),
		rateLimitRemaining: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meraki_exporter_api_rate_limit_remaining",
				Help: "Remaining request budget reported by the dashboard.",
			},
			[]string{"org_id"},
		),
		rateLimitTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meraki_exporter_api_rate_limit_total",
				Help: "Total request budget reported by the dashboard.",
			},
			[]string{"org_id"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.requestsTotal,
			m.requestDuration,
			m.retryAttemptsTotal,
			m.rateLimitRemaining,
			m.rateLimitTotal,
		)
	}
	return m
}
