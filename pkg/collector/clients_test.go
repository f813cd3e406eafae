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
	"net/http"
	"testing"
	"time"

	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
)

func clientsTestInventory() *fakeInventory {
	return &fakeInventory{
		orgs:     []meraki.Organization{{ID: "O1", Name: "acme"}},
		networks: map[string][]meraki.Network{"O1": {{ID: "N1", Name: "hq"}}},
	}
}

func testNetworkClients() []meraki.NetworkClient {
	laptop := meraki.NetworkClient{
		ID: "c1", MAC: "aa:bb:cc:00:00:01", Description: "laptop",
		SSID: "corp", VLAN: "10", Status: "Online",
	}
	laptop.Usage.Sent = 120
	laptop.Usage.Recv = 4800
	printer := meraki.NetworkClient{
		ID: "c2", MAC: "aa:bb:cc:00:00:02", Description: "printer",
		VLAN: "20", Status: "Offline",
	}
	phone := meraki.NetworkClient{
		ID: "c3", MAC: "aa:bb:cc:00:00:03", Description: "phone",
		SSID: "corp", VLAN: "10", Status: "Online",
	}
	return []meraki.NetworkClient{laptop, printer, phone}
}

func floatPtr(v float64) *float64 { return &v }

func TestClientsPerClientAndGroupCounts(t *testing.T) {
	api := &fakeAPI{
		networkClients: func(context.Context, string, time.Duration, int) ([]meraki.NetworkClient, error) {
			return testNetworkClients(), nil
		},
		signalQuality: func(_ context.Context, _, clientID string, _ time.Duration) ([]meraki.SignalQualitySample, error) {
			if clientID != "c1" {
				return nil, nil
			}
			return []meraki.SignalQualitySample{
				{StartTS: "2026-08-26T09:00:00Z", RSSI: floatPtr(-70), SNR: floatPtr(38)},
				{StartTS: "2026-08-26T09:05:00Z", RSSI: floatPtr(-64), SNR: floatPtr(41)},
				{StartTS: "2026-08-26T09:10:00Z"},
			}, nil
		},
	}
	deps := newTestDeps(t, api, clientsTestInventory())
	c := NewClientsCollector(deps)
	c.InitMetrics()

	if err := c.Collect(context.Background()); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	for _, tc := range []struct {
		metric string
		labels map[string]string
		want   float64
	}{
		{"meraki_client_online", map[string]string{"client_id": "c1", "ssid": "corp"}, 1},
		{"meraki_client_online", map[string]string{"client_id": "c2"}, 0},
		{"meraki_client_usage_kb", map[string]string{"client_id": "c1", "direction": "sent"}, 120},
		{"meraki_client_usage_kb", map[string]string{"client_id": "c1", "direction": "recv"}, 4800},
		{"meraki_network_clients_total", map[string]string{"network_id": "N1", "status": "online"}, 2},
		{"meraki_network_clients_total", map[string]string{"network_id": "N1", "status": "offline"}, 1},
		{"meraki_network_clients_by_ssid", map[string]string{"network_id": "N1", "ssid": "corp"}, 2},
		{"meraki_network_clients_by_vlan", map[string]string{"network_id": "N1", "vlan": "10"}, 2},
		{"meraki_network_clients_by_vlan", map[string]string{"network_id": "N1", "vlan": "20"}, 1},
		// The newest sample with actual values wins; the trailing null
		// interval is skipped.
		{"meraki_client_rssi_dbm", map[string]string{"client_id": "c1", "hostname": "laptop"}, -64},
		{"meraki_client_snr_db", map[string]string{"client_id": "c1", "hostname": "laptop"}, 41},
	} {
		got, ok := gaugeValue(t, deps.Metrics, tc.metric, tc.labels)
		if !ok || got != tc.want {
			t.Errorf("%s%v = %v (present=%v), want %v", tc.metric, tc.labels, got, ok, tc.want)
		}
	}

	// The wired printer never gets a signal-quality probe.
	if _, ok := gaugeValue(t, deps.Metrics, "meraki_client_rssi_dbm", map[string]string{"client_id": "c2"}); ok {
		t.Fatal("wired client must not get an RSSI series")
	}
}

func TestClientsSignalQualityNotOffered(t *testing.T) {
	probes := 0
	api := &fakeAPI{
		networkClients: func(context.Context, string, time.Duration, int) ([]meraki.NetworkClient, error) {
			return testNetworkClients(), nil
		},
		signalQuality: func(context.Context, string, string, time.Duration) ([]meraki.SignalQualitySample, error) {
			probes++
			return nil, &meraki.APIError{
				Endpoint:   "getNetworkWirelessSignalQualityHistory",
				StatusCode: http.StatusNotFound,
				Category:   meraki.CategoryNotAvailable,
			}
		},
	}
	deps := newTestDeps(t, api, clientsTestInventory())
	c := NewClientsCollector(deps)
	c.InitMetrics()

	if err := c.Collect(context.Background()); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if probes != 1 {
		t.Fatalf("an unavailable history endpoint must stop probing, got %d probes", probes)
	}
	// The listing-derived series still exist.
	if _, ok := gaugeValue(t, deps.Metrics, "meraki_network_clients_by_ssid", map[string]string{"ssid": "corp"}); !ok {
		t.Fatal("SSID counts missing when signal quality is unavailable")
	}
}
