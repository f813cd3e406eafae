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
	"strings"
	"time"

	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
	"github.com/merakiops/meraki-dashboard-exporter/pkg/metrics"
)

// switchPortCollector reads live MS port state per switch. It is owned
// by the device coordinator and never scheduled on its own.
type switchPortCollector struct {
	Base

	portStatus  *metrics.Gauge
	portSpeed   *metrics.Gauge
	portTraffic *metrics.Gauge
	portUsage   *metrics.Gauge
	portErrors  *metrics.Gauge
	portPower   *metrics.Gauge
	poeTotal    *metrics.Gauge
}

var portLabels = []string{"serial", "name", "network_id", "port_id"}

func (c *switchPortCollector) initMetrics(r *metrics.Registry) {
	c.portStatus = r.NewGauge("meraki_ms_port_status", "Port connectivity (1 = connected).", portLabels...)
	c.portSpeed = r.NewGauge("meraki_ms_port_speed_mbps", "Negotiated port speed in Mbps.", portLabels...)
	c.portTraffic = r.NewGauge("meraki_ms_port_traffic_kbps", "Mean port throughput in Kbps, by direction.", append(portLabels, "direction")...)
	c.portUsage = r.NewGauge("meraki_ms_port_usage_kb", "Port data volume in KB over the sample window, by direction.", append(portLabels, "direction")...)
	c.portErrors = r.NewGauge("meraki_ms_port_errors", "Active error conditions on the port.", portLabels...)
	c.portPower = r.NewGauge("meraki_ms_port_power_wh", "PoE energy delivered by the port in Wh.", portLabels...)
	c.poeTotal = r.NewGauge("meraki_ms_poe_power_wh", "PoE energy delivered by the whole switch in Wh.", "serial", "name", "network_id")
}

func (c *switchPortCollector) collectOrg(ctx context.Context, org meraki.Organization, devices []meraki.Device) {
	var switches []meraki.Device
	for _, d := range devices {
		if d.ProductType() == meraki.ProductMS {
			switches = append(switches, d)
		}
	}
	if len(switches) == 0 {
		return
	}
	s := c.deps.Settings
	_ = forEachBatch(ctx, switches, s.BatchSize, s.BatchDelay, s.ConcurrencyLimit, func(ctx context.Context, sw meraki.Device) error {
		c.RunSubStep(ctx, "switch_ports/"+sw.Serial, func(ctx context.Context) error {
			return c.collectSwitch(ctx, sw)
		})
		return ctx.Err()
	})
}

func (c *switchPortCollector) collectSwitch(ctx context.Context, sw meraki.Device) error {
	c.TrackAPICall("getDeviceSwitchPortsStatuses")
	ports, err := c.deps.API.SwitchPortStatuses(ctx, sw.Serial, time.Hour)
	if err != nil {
		return err
	}
	var poe float64
	for _, p := range ports {
		lvs := []string{sw.Serial, sw.Name, sw.NetworkID, p.PortID}
		connected := 0.0
		if strings.EqualFold(p.Status, "Connected") {
			connected = 1
		}
		c.portStatus.Set(c.tier, connected, lvs...)
		if mbps, ok := parsePortSpeed(p.Speed); ok {
			c.portSpeed.Set(c.tier, mbps, lvs...)
		}
		c.portTraffic.Set(c.tier, p.TrafficInKbps.Sent, append(lvs, "sent")...)
		c.portTraffic.Set(c.tier, p.TrafficInKbps.Recv, append(lvs, "recv")...)
		c.portUsage.Set(c.tier, p.UsageInKb.Sent, append(lvs, "sent")...)
		c.portUsage.Set(c.tier, p.UsageInKb.Recv, append(lvs, "recv")...)
		c.portErrors.Set(c.tier, float64(len(p.Errors)), lvs...)
		c.portPower.Set(c.tier, p.PowerUsageInWh, lvs...)
		poe += p.PowerUsageInWh
	}
	c.poeTotal.Set(c.tier, poe, sw.Serial, sw.Name, sw.NetworkID)
	return nil
}

// parsePortSpeed converts the dashboard's human-readable speed strings
// ("1 Gbps", "100 Mbps") to Mbps. Disconnected ports report an empty
// string.
func parsePortSpeed(s string) (float64, bool) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, false
	}
	n, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(fields[1]) {
	case "gbps":
		return n * 1000, true
	case "mbps":
		return n, true
	}
	return 0, false
}
