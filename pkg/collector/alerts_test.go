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

	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
)

func assuranceAlert(alertType, category, severity, deviceType, networkID, networkName string) meraki.AssuranceAlert {
	a := meraki.AssuranceAlert{
		Type:         alertType,
		CategoryType: category,
		Severity:     severity,
		DeviceType:   deviceType,
	}
	a.Network.ID = networkID
	a.Network.Name = networkName
	return a
}

func TestAlertsGrouping(t *testing.T) {
	api := &fakeAPI{
		assuranceAlerts: func(context.Context, string) ([]meraki.AssuranceAlert, error) {
			return []meraki.AssuranceAlert{
				assuranceAlert("device_down", "connectivity", "critical", "switch", "N1", "hq"),
				assuranceAlert("device_down", "connectivity", "critical", "switch", "N1", "hq"),
				assuranceAlert("water_detected", "sensor", "warning", "sensor", "N2", "warehouse"),
				assuranceAlert("door_open", "sensor", "informational", "sensor", "N2", "warehouse"),
			}, nil
		},
	}
	deps := newTestDeps(t, api, &fakeInventory{orgs: []meraki.Organization{{ID: "O1", Name: "acme"}}})
	c := NewAlertsCollector(deps)
	c.InitMetrics()

	if err := c.Collect(context.Background()); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	for _, tc := range []struct {
		metric string
		labels map[string]string
		want   float64
	}{
		{"meraki_alerts_active", map[string]string{"alert_type": "device_down", "severity": "critical", "device_type": "switch"}, 2},
		{"meraki_alerts_active_by_network", map[string]string{"network_id": "N1", "severity": "critical"}, 2},
		{"meraki_alerts_active_by_network", map[string]string{"network_id": "N2", "severity": "warning"}, 1},
		{"meraki_sensor_alerts_total", map[string]string{"org_id": "O1", "alert_type": "water_detected"}, 1},
		{"meraki_sensor_alerts_total", map[string]string{"org_id": "O1", "alert_type": "door_open"}, 1},
	} {
		got, ok := gaugeValue(t, deps.Metrics, tc.metric, tc.labels)
		if !ok || got != tc.want {
			t.Errorf("%s%v = %v (present=%v), want %v", tc.metric, tc.labels, got, ok, tc.want)
		}
	}

	// Non-sensor alerts stay out of the sensor count.
	if _, ok := gaugeValue(t, deps.Metrics, "meraki_sensor_alerts_total", map[string]string{"alert_type": "device_down"}); ok {
		t.Fatal("switch alert counted as sensor alert")
	}
}
