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

	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
	"github.com/merakiops/meraki-dashboard-exporter/pkg/metrics"
)

func init() {
	Register("alerts", metrics.TierMedium, func(deps Deps) Collector {
		return NewAlertsCollector(deps)
	})
}

// AlertsCollector groups active assurance alerts per organization. The
// alerts API is not offered on every license tier; organizations without
// it are skipped quietly.
type AlertsCollector struct {
	Base

	active    *metrics.Gauge
	byNetwork *metrics.Gauge
	sensor    *metrics.Gauge
}

// NewAlertsCollector builds the collector.
func NewAlertsCollector(deps Deps) *AlertsCollector {
	return &AlertsCollector{Base: NewBase("alerts", metrics.TierMedium, deps)}
}

func (c *AlertsCollector) InitMetrics() {
	r := c.deps.Metrics
	c.active = r.NewGauge("meraki_alerts_active", "Active assurance alerts, by type, category, severity and device type.", "org_id", "org_name", "alert_type", "category", "severity", "device_type")
	c.byNetwork = r.NewGauge("meraki_alerts_active_by_network", "Active assurance alerts per network, by severity.", "org_id", "network_id", "network_name", "severity")
	c.sensor = r.NewGauge("meraki_sensor_alerts_total", "Active alerts raised by MT sensors, by alert type.", "org_id", "org_name", "alert_type")
}

func (c *AlertsCollector) Collect(ctx context.Context) error {
	orgs, err := c.deps.Inventory.GetOrganizations(ctx)
	if err != nil {
		return err
	}
	for _, org := range orgs {
		c.RunSubStep(ctx, "assurance_alerts/"+org.ID, func(ctx context.Context) error {
			return c.collectOrg(ctx, org)
		})
	}
	return ctx.Err()
}

func (c *AlertsCollector) collectOrg(ctx context.Context, org meraki.Organization) error {
	c.TrackAPICall("getOrganizationAssuranceAlerts")
	alerts, err := c.deps.API.AssuranceAlerts(ctx, org.ID)
	if err != nil {
		return err
	}

	type alertKey struct{ alertType, category, severity, deviceType string }
	type networkKey struct{ id, name, severity string }
	byAlert := map[alertKey]int{}
	byNetwork := map[networkKey]int{}
	bySensor := map[string]int{}
	for _, a := range alerts {
		byAlert[alertKey{a.Type, a.CategoryType, a.Severity, a.DeviceType}]++
		if a.Network.ID != "" {
			byNetwork[networkKey{a.Network.ID, a.Network.Name, a.Severity}]++
		}
		if a.DeviceType == "sensor" || a.CategoryType == "sensor" {
			bySensor[a.Type]++
		}
	}
	for k, n := range byAlert {
		c.active.Set(c.tier, float64(n), org.ID, org.Name, k.alertType, k.category, k.severity, k.deviceType)
	}
	for k, n := range byNetwork {
		c.byNetwork.Set(c.tier, float64(n), org.ID, k.id, k.name, k.severity)
	}
	for alertType, n := range bySensor {
		c.sensor.Set(c.tier, float64(n), org.ID, org.Name, alertType)
	}
	return nil
}
