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
	Register("device", metrics.TierMedium, func(deps Deps) Collector {
		return NewDeviceCollector(deps)
	})
}

// DeviceCollector emits per-device health for every organization and
// fans out to the product-specific children (switch ports, wireless
// radios, appliance uplinks).
type DeviceCollector struct {
	Base

	up     *metrics.Gauge
	status *metrics.Info
	memory *metrics.Gauge

	switchPorts *switchPortCollector
	wireless    *wirelessDeviceCollector
	uplinks     *uplinkCollector
}

// NewDeviceCollector builds the coordinator and its children.
func NewDeviceCollector(deps Deps) *DeviceCollector {
	base := NewBase("device", metrics.TierMedium, deps)
	return &DeviceCollector{
		Base:        base,
		switchPorts: &switchPortCollector{Base: base},
		wireless:    &wirelessDeviceCollector{Base: base},
		uplinks:     &uplinkCollector{Base: base},
	}
}

func (c *DeviceCollector) InitMetrics() {
	r := c.deps.Metrics
	c.up = r.NewGauge("meraki_device_up", "Whether the device is online (1) or not (0).", "serial", "name", "model", "network_id", "product_type")
	c.status = r.NewInfo("meraki_device_status_info", "Raw availability status of the device.", "serial", "status")
	c.memory = r.NewGauge("meraki_device_memory_usage_percent", "Peak memory utilization over the most recent interval.", "serial", "name", "model", "network_id")

	c.switchPorts.initMetrics(r)
	c.wireless.initMetrics(r)
	c.uplinks.initMetrics(r)
}

func (c *DeviceCollector) Collect(ctx context.Context) error {
	orgs, err := c.deps.Inventory.GetOrganizations(ctx)
	if err != nil {
		return err
	}
	for _, org := range orgs {
		c.collectOrg(ctx, org)
	}
	return ctx.Err()
}

func (c *DeviceCollector) collectOrg(ctx context.Context, org meraki.Organization) {
	devices, err := c.deps.Inventory.GetDevices(ctx, org.ID, "")
	if err != nil {
		c.RunSubStep(ctx, "devices/"+org.ID, func(context.Context) error { return err })
		return
	}
	bySerial := map[string]meraki.Device{}
	for _, d := range devices {
		bySerial[d.Serial] = d
	}

	c.RunSubStep(ctx, "availability/"+org.ID, func(ctx context.Context) error {
		return c.collectAvailability(ctx, org, bySerial)
	})
	c.RunSubStep(ctx, "memory/"+org.ID, func(ctx context.Context) error {
		return c.collectMemory(ctx, org, bySerial)
	})
	c.RunSubStep(ctx, "uplinks/"+org.ID, func(ctx context.Context) error {
		return c.uplinks.collect(ctx, org)
	})
	c.wireless.collectOrg(ctx, org, devices)
	c.switchPorts.collectOrg(ctx, org, devices)
}

func (c *DeviceCollector) collectAvailability(ctx context.Context, org meraki.Organization, bySerial map[string]meraki.Device) error {
	c.TrackAPICall("getOrganizationDevicesAvailabilities")
	availabilities, err := c.deps.API.DeviceAvailabilities(ctx, org.ID)
	if err != nil {
		return err
	}
	for _, a := range availabilities {
		d, known := bySerial[a.Serial]
		if !known {
			// Availability rows can mention devices removed between the
			// inventory refresh and this call.
			continue
		}
		up := 0.0
		if a.Status == "online" || a.Status == "alerting" {
			up = 1
		}
		c.up.Set(c.tier, up, a.Serial, d.Name, d.Model, d.NetworkID, d.ProductType())
		c.status.Set(c.tier, a.Serial, a.Status)
	}
	return nil
}

func (c *DeviceCollector) collectMemory(ctx context.Context, org meraki.Organization, bySerial map[string]meraki.Device) error {
	c.TrackAPICall("getOrganizationDevicesSystemMemoryUsageHistoryByInterval")
	histories, err := c.deps.API.MemoryUsageHistory(ctx, org.ID)
	if err != nil {
		return err
	}
	for _, h := range histories {
		if len(h.Intervals) == 0 {
			continue
		}
		networkID := h.Network.ID
		if networkID == "" {
			networkID = bySerial[h.Serial].NetworkID
		}
		// Intervals arrive newest first.
		latest := h.Intervals[0]
		c.memory.Set(c.tier, latest.Memory.Used.Percentages.Maximum, h.Serial, h.Name, h.Model, networkID)
	}
	return nil
}
