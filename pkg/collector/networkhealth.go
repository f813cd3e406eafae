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
	"time"

	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
	"github.com/merakiops/meraki-dashboard-exporter/pkg/metrics"
)

func init() {
	Register("network_health", metrics.TierMedium, func(deps Deps) Collector {
		return NewNetworkHealthCollector(deps)
	})
}

// NetworkHealthCollector reads RF health per wireless network: channel
// utilization, connection outcomes, aggregate data rates and observed
// Bluetooth clients. Networks without a wireless product are skipped
// without an API call.
type NetworkHealthCollector struct {
	Base

	utilization     *metrics.Gauge
	connectionStats *metrics.Gauge
	dataRate        *metrics.Gauge
	bluetooth       *metrics.Gauge
}

var networkLabels = []string{"network_id", "network_name"}

// NewNetworkHealthCollector builds the collector.
func NewNetworkHealthCollector(deps Deps) *NetworkHealthCollector {
	return &NetworkHealthCollector{Base: NewBase("network_health", metrics.TierMedium, deps)}
}

func (c *NetworkHealthCollector) InitMetrics() {
	r := c.deps.Metrics
	c.utilization = r.NewGauge("meraki_network_channel_utilization_percent", "Mean RF channel utilization across the network's access points, by band and utilization kind.", append(networkLabels, "band", "kind")...)
	c.connectionStats = r.NewGauge("meraki_network_wireless_connection_stats", "Wireless connection attempts over the last half hour, by outcome.", append(networkLabels, "outcome")...)
	c.dataRate = r.NewGauge("meraki_network_wireless_data_rate_kbps", "Most recent network-wide wireless throughput, by direction.", append(networkLabels, "direction")...)
	c.bluetooth = r.NewGauge("meraki_network_bluetooth_clients_total", "Bluetooth clients observed in the network during the last day.", networkLabels...)
}

func (c *NetworkHealthCollector) Collect(ctx context.Context) error {
	orgs, err := c.deps.Inventory.GetOrganizations(ctx)
	if err != nil {
		return err
	}
	for _, org := range orgs {
		networks, err := c.deps.Inventory.GetNetworks(ctx, org.ID)
		if err != nil {
			c.RunSubStep(ctx, "networks/"+org.ID, func(context.Context) error { return err })
			continue
		}
		var wireless []meraki.Network
		for _, n := range networks {
			if n.HasProductType("wireless") {
				wireless = append(wireless, n)
			}
		}
		s := c.deps.Settings
		err = forEachBatch(ctx, wireless, s.BatchSize, s.BatchDelay, s.ConcurrencyLimit, func(ctx context.Context, n meraki.Network) error {
			c.collectNetwork(ctx, n)
			return ctx.Err()
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *NetworkHealthCollector) collectNetwork(ctx context.Context, n meraki.Network) {
	c.RunSubStep(ctx, "channel_utilization/"+n.ID, func(ctx context.Context) error {
		return c.collectUtilization(ctx, n)
	})
	c.RunSubStep(ctx, "connection_stats/"+n.ID, func(ctx context.Context) error {
		return c.collectConnectionStats(ctx, n)
	})
	c.RunSubStep(ctx, "data_rates/"+n.ID, func(ctx context.Context) error {
		return c.collectDataRates(ctx, n)
	})
	c.RunSubStep(ctx, "bluetooth_clients/"+n.ID, func(ctx context.Context) error {
		return c.collectBluetooth(ctx, n)
	})
}

func (c *NetworkHealthCollector) collectUtilization(ctx context.Context, n meraki.Network) error {
	c.TrackAPICall("getNetworkNetworkHealthChannelUtilization")
	utilization, err := c.deps.API.ChannelUtilization(ctx, n.ID, 30*time.Minute)
	if err != nil {
		return err
	}
	type agg struct {
		wifi, non, total float64
		samples          int
	}
	bands := map[string]*agg{"2.4": {}, "5": {}}
	for _, device := range utilization {
		for band, samples := range map[string][]meraki.ChannelUtilizationSample{
			"2.4": device.WiFi0,
			"5":   device.WiFi1,
		} {
			if len(samples) == 0 {
				continue
			}
			// The newest sample leads the slice.
			a := bands[band]
			a.wifi += samples[0].Utilization80211
			a.non += samples[0].UtilizationNon80211
			a.total += samples[0].Utilization
			a.samples++
		}
	}
	for band, a := range bands {
		if a.samples == 0 {
			continue
		}
		div := float64(a.samples)
		c.utilization.Set(c.tier, a.wifi/div, n.ID, n.Name, band, "wifi")
		c.utilization.Set(c.tier, a.non/div, n.ID, n.Name, band, "non_wifi")
		c.utilization.Set(c.tier, a.total/div, n.ID, n.Name, band, "total")
	}
	return nil
}

func (c *NetworkHealthCollector) collectConnectionStats(ctx context.Context, n meraki.Network) error {
	c.TrackAPICall("getNetworkWirelessConnectionStats")
	stats, err := c.deps.API.ConnectionStats(ctx, n.ID, 30*time.Minute)
	if err != nil {
		return err
	}
	c.connectionStats.Set(c.tier, stats.Assoc, n.ID, n.Name, "assoc")
	c.connectionStats.Set(c.tier, stats.Auth, n.ID, n.Name, "auth")
	c.connectionStats.Set(c.tier, stats.DHCP, n.ID, n.Name, "dhcp")
	c.connectionStats.Set(c.tier, stats.DNS, n.ID, n.Name, "dns")
	c.connectionStats.Set(c.tier, stats.Success, n.ID, n.Name, "success")
	return nil
}

func (c *NetworkHealthCollector) collectDataRates(ctx context.Context, n meraki.Network) error {
	c.TrackAPICall("getNetworkWirelessDataRateHistory")
	samples, err := c.deps.API.DataRateHistory(ctx, n.ID, 30*time.Minute)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}
	latest := samples[len(samples)-1]
	c.dataRate.Set(c.tier, latest.DownloadKbps, n.ID, n.Name, "download")
	c.dataRate.Set(c.tier, latest.UploadKbps, n.ID, n.Name, "upload")
	return nil
}

func (c *NetworkHealthCollector) collectBluetooth(ctx context.Context, n meraki.Network) error {
	c.TrackAPICall("getNetworkBluetoothClients")
	clients, err := c.deps.API.BluetoothClients(ctx, n.ID, 24*time.Hour)
	if err != nil {
		return err
	}
	c.bluetooth.Set(c.tier, float64(len(clients)), n.ID, n.Name)
	return nil
}
