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
	"testing"
	"time"

	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
)

func TestDeviceUpMapping(t *testing.T) {
	api := &fakeAPI{
		deviceAvailabilities: func(context.Context, string) ([]meraki.DeviceAvailability, error) {
			return []meraki.DeviceAvailability{
				{Serial: "Q2MS-0001", Status: "online"},
				{Serial: "Q2MR-0001", Status: "alerting"},
				{Serial: "Q2MX-0001", Status: "offline"},
				{Serial: "GONE-0001", Status: "online"},
			}, nil
		},
	}
	deps := newTestDeps(t, api, orgTestInventory())
	c := NewDeviceCollector(deps)
	c.InitMetrics()

	if err := c.Collect(context.Background()); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	for serial, want := range map[string]float64{
		"Q2MS-0001": 1,
		"Q2MR-0001": 1, // alerting devices are reachable
		"Q2MX-0001": 0,
	} {
		got, ok := gaugeValue(t, deps.Metrics, "meraki_device_up", map[string]string{"serial": serial})
		if !ok || got != want {
			t.Errorf("device_up{%s} = %v (present=%v), want %v", serial, got, ok, want)
		}
	}
	// Devices that left the inventory between calls are skipped.
	if _, ok := gaugeValue(t, deps.Metrics, "meraki_device_up", map[string]string{"serial": "GONE-0001"}); ok {
		t.Error("unknown serial must not produce a series")
	}
}

func TestSwitchPortMetrics(t *testing.T) {
	api := &fakeAPI{
		switchPortStatuses: func(_ context.Context, serial string, _ time.Duration) ([]meraki.SwitchPortStatus, error) {
			if serial != "Q2MS-0001" {
				t.Errorf("unexpected serial %q", serial)
			}
			connected := meraki.SwitchPortStatus{PortID: "1", Enabled: true, Status: "Connected", Speed: "1 Gbps", PowerUsageInWh: 3.2}
			connected.TrafficInKbps.Sent = 120
			connected.TrafficInKbps.Recv = 80
			down := meraki.SwitchPortStatus{PortID: "2", Enabled: true, Status: "Disconnected", Errors: []string{"Port disconnected"}}
			return []meraki.SwitchPortStatus{connected, down}, nil
		},
	}
	deps := newTestDeps(t, api, orgTestInventory())
	c := NewDeviceCollector(deps)
	c.InitMetrics()

	if err := c.Collect(context.Background()); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if got, ok := gaugeValue(t, deps.Metrics, "meraki_ms_port_status", map[string]string{"serial": "Q2MS-0001", "port_id": "1"}); !ok || got != 1 {
		t.Fatalf("port 1 status = %v (present=%v), want 1", got, ok)
	}
	if got, ok := gaugeValue(t, deps.Metrics, "meraki_ms_port_speed_mbps", map[string]string{"port_id": "1"}); !ok || got != 1000 {
		t.Fatalf("port 1 speed = %v (present=%v), want 1000", got, ok)
	}
	if got, ok := gaugeValue(t, deps.Metrics, "meraki_ms_port_errors", map[string]string{"port_id": "2"}); !ok || got != 1 {
		t.Fatalf("port 2 errors = %v (present=%v), want 1", got, ok)
	}
	if got, ok := gaugeValue(t, deps.Metrics, "meraki_ms_poe_power_wh", map[string]string{"serial": "Q2MS-0001"}); !ok || got != 3.2 {
		t.Fatalf("poe total = %v (present=%v), want 3.2", got, ok)
	}
	// Disconnected ports report no negotiated speed.
	if _, ok := gaugeValue(t, deps.Metrics, "meraki_ms_port_speed_mbps", map[string]string{"port_id": "2"}); ok {
		t.Fatal("disconnected port must not report a speed")
	}
}

func TestUplinkMetrics(t *testing.T) {
	api := &fakeAPI{
		uplinkStatuses: func(context.Context, string) ([]meraki.UplinkStatus, error) {
			mx := meraki.UplinkStatus{
				Serial: "Q2MX-0001", Model: "MX85", NetworkID: "N2",
				Uplinks: []meraki.Uplink{
					{Interface: "wan1", Status: "active"},
					{Interface: "wan2", Status: "failed"},
					{Interface: "cellular", Status: "ready", SignalStat: &meraki.SignalStat{RSRP: "-98", RSRQ: "-11"}},
				},
			}
			return []meraki.UplinkStatus{mx}, nil
		},
	}
	deps := newTestDeps(t, api, orgTestInventory())
	c := NewDeviceCollector(deps)
	c.InitMetrics()

	if err := c.Collect(context.Background()); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	for iface, want := range map[string]float64{"wan1": 1, "wan2": 0, "cellular": 1} {
		got, ok := gaugeValue(t, deps.Metrics, "meraki_uplink_up", map[string]string{"interface": iface})
		if !ok || got != want {
			t.Errorf("uplink_up{%s} = %v (present=%v), want %v", iface, got, ok, want)
		}
	}
	if got, ok := gaugeValue(t, deps.Metrics, "meraki_cellular_rsrp_dbm", map[string]string{"interface": "cellular"}); !ok || got != -98 {
		t.Fatalf("rsrp = %v (present=%v), want -98", got, ok)
	}
}

func TestParsePortSpeed(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1 Gbps", 1000, true},
		{"100 Mbps", 100, true},
		{"2.5 Gbps", 2500, true},
		{"", 0, false},
		{"Auto", 0, false},
	} {
		got, ok := parsePortSpeed(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("parsePortSpeed(%q) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
