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

package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
)

type staticHealth bool

func (h staticHealth) SucceededWithin(time.Duration) bool { return bool(h) }

func testGatherer(t *testing.T) prometheus.Gatherer {
	t.Helper()
	reg := prometheus.NewRegistry()
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "meraki_device_up", Help: "up"})
	g.Set(1)
	reg.MustRegister(g)
	return reg
}

func TestMetricsEndpoint(t *testing.T) {
	h := New(log.NewNopLogger(), testGatherer(t), staticHealth(true), Options{EnableHealthCheck: true, UnhealthyAfter: time.Minute})
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "meraki_device_up 1") {
		t.Fatalf("exposition missing expected series:\n%s", body)
	}
}

func TestHealthEndpoint(t *testing.T) {
	for _, tc := range []struct {
		healthy    bool
		wantCode   int
		wantStatus string
	}{
		{true, http.StatusOK, "ok"},
		{false, http.StatusServiceUnavailable, "unhealthy"},
	} {
		h := New(log.NewNopLogger(), testGatherer(t), staticHealth(tc.healthy), Options{EnableHealthCheck: true, UnhealthyAfter: time.Minute})
		srv := httptest.NewServer(h)
		resp, err := http.Get(srv.URL + "/health")
		if err != nil {
			t.Fatalf("GET /health: %v", err)
		}
		if resp.StatusCode != tc.wantCode {
			t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantCode)
		}
		var body map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		resp.Body.Close()
		srv.Close()
		if body["status"] != tc.wantStatus {
			t.Fatalf("status body = %q, want %q", body["status"], tc.wantStatus)
		}
	}
}

func TestHealthCheckDisabled(t *testing.T) {
	h := New(log.NewNopLogger(), testGatherer(t), staticHealth(true), Options{EnableHealthCheck: false})
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestPathPrefix(t *testing.T) {
	h := New(log.NewNopLogger(), testGatherer(t), staticHealth(true), Options{PathPrefix: "meraki", EnableHealthCheck: true, UnhealthyAfter: time.Minute})
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/meraki/metrics")
	if err != nil {
		t.Fatalf("GET /meraki/metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("prefixed metrics status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unprefixed metrics status = %d, want 404", resp.StatusCode)
	}
}

func TestLandingPage(t *testing.T) {
	h := New(log.NewNopLogger(), testGatherer(t), staticHealth(true), Options{})
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("landing status = %d, want 200", resp.StatusCode)
	}
}
