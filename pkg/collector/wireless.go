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
	"strconv"

	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
	"github.com/merakiops/meraki-dashboard-exporter/pkg/metrics"
)

// wirelessDeviceCollector covers the MR-specific surfaces: connected
// client counts and CPU load come from two org-wide calls, SSID radio
// state from one call per access point. Owned by the device coordinator.
type wirelessDeviceCollector struct {
	Base

	clients      *metrics.Gauge
	cpuLoad      *metrics.Gauge
	broadcasting *metrics.Gauge
	channel      *metrics.Gauge
	channelWidth *metrics.Gauge
}

func (c *wirelessDeviceCollector) initMetrics(r *metrics.Registry) {
	c.clients = r.NewGauge("meraki_mr_clients_connected", "Clients currently connected to the access point.", "serial", "name", "network_id")
	c.cpuLoad = r.NewGauge("meraki_mr_cpu_load_percent", "Five-minute CPU load of the access point, normalized by core count.", "serial", "name", "network_id")
	c.broadcasting = r.NewGauge("meraki_mr_radio_broadcasting", "Whether the SSID is broadcast on the band (1 = broadcasting).", "serial", "network_id", "ssid_name", "band")
	c.channel = r.NewGauge("meraki_mr_radio_channel", "Operating channel of the radio.", "serial", "network_id", "ssid_name", "band")
	c.channelWidth = r.NewGauge("meraki_mr_radio_channel_width_mhz", "Channel width in MHz.", "serial", "network_id", "ssid_name", "band")
}

func (c *wirelessDeviceCollector) collectOrg(ctx context.Context, org meraki.Organization, devices []meraki.Device) {
	var aps []meraki.Device
	bySerial := map[string]meraki.Device{}
	for _, d := range devices {
		if d.ProductType() == meraki.ProductMR {
			aps = append(aps, d)
			bySerial[d.Serial] = d
		}
	}
	if len(aps) == 0 {
		return
	}

	c.RunSubStep(ctx, "wireless_clients/"+org.ID, func(ctx context.Context) error {
		c.TrackAPICall("getOrganizationWirelessClientsOverviewByDevice")
		overviews, err := c.deps.API.WirelessClientsOverview(ctx, org.ID)
		if err != nil {
			return err
		}
		for _, o := range overviews {
			d, ok := bySerial[o.Serial]
			if !ok {
				continue
			}
			c.clients.Set(c.tier, o.Counts.ByStatus.Online, o.Serial, d.Name, d.NetworkID)
		}
		return nil
	})

	c.RunSubStep(ctx, "wireless_cpu/"+org.ID, func(ctx context.Context) error {
		c.TrackAPICall("getOrganizationWirelessDevicesSystemCpuLoadHistory")
		loads, err := c.deps.API.WirelessCPULoad(ctx, org.ID)
		if err != nil {
			return err
		}
		for _, l := range loads {
			d, ok := bySerial[l.Serial]
			if !ok || len(l.Series) == 0 {
				continue
			}
			// avgLoad5Min is summed across cores; normalize by core count.
			latest := l.Series[0]
			cores := latest.CPUCount
			if cores <= 0 {
				cores = 1
			}
			c.cpuLoad.Set(c.tier, latest.AvgLoad5Min/cores, l.Serial, d.Name, d.NetworkID)
		}
		return nil
	})

	s := c.deps.Settings
	_ = forEachBatch(ctx, aps, s.BatchSize, s.BatchDelay, s.ConcurrencyLimit, func(ctx context.Context, ap meraki.Device) error {
		c.RunSubStep(ctx, "wireless_status/"+ap.Serial, func(ctx context.Context) error {
			return c.collectRadioStatus(ctx, ap)
		})
		return ctx.Err()
	})
}

func (c *wirelessDeviceCollector) collectRadioStatus(ctx context.Context, ap meraki.Device) error {
	c.TrackAPICall("getDeviceWirelessStatus")
	status, err := c.deps.API.WirelessStatus(ctx, ap.Serial)
	if err != nil {
		return err
	}
	for _, bss := range status.BasicServiceSets {
		if !bss.Enabled {
			continue
		}
		lvs := []string{ap.Serial, ap.NetworkID, bss.SSIDName, bss.Band}
		c.broadcasting.Set(c.tier, boolToFloat(bss.BroadcastingAP), lvs...)
		c.channel.Set(c.tier, float64(bss.Channel), lvs...)
		if width, err := strconv.ParseFloat(bss.ChannelWidth, 64); err == nil {
			c.channelWidth.Set(c.tier, width, lvs...)
		}
	}
	return nil
}
