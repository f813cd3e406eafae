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

// uplinkCollector reads WAN uplink state for MX appliances and MG
// cellular gateways from one org-wide call. Owned by the device
// coordinator.
type uplinkCollector struct {
	Base

	up     *metrics.Gauge
	status *metrics.Info
	rsrp   *metrics.Gauge
	rsrq   *metrics.Gauge
}

var uplinkLabels = []string{"serial", "model", "network_id", "interface"}

func (c *uplinkCollector) initMetrics(r *metrics.Registry) {
	c.up = r.NewGauge("meraki_uplink_up", "Whether the uplink is active (1) or not (0).", uplinkLabels...)
	c.status = r.NewInfo("meraki_uplink_status_info", "Raw uplink status as reported by the dashboard.", "serial", "interface", "status")
	c.rsrp = r.NewGauge("meraki_cellular_rsrp_dbm", "Cellular reference signal received power.", uplinkLabels...)
	c.rsrq = r.NewGauge("meraki_cellular_rsrq_db", "Cellular reference signal received quality.", uplinkLabels...)
}

func (c *uplinkCollector) collect(ctx context.Context, org meraki.Organization) error {
	c.TrackAPICall("getOrganizationUplinksStatuses")
	statuses, err := c.deps.API.UplinkStatuses(ctx, org.ID)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		for _, u := range s.Uplinks {
			lvs := []string{s.Serial, s.Model, s.NetworkID, u.Interface}
			up := 0.0
			if u.Status == "active" || u.Status == "ready" {
				up = 1
			}
			c.up.Set(c.tier, up, lvs...)
			c.status.Set(c.tier, s.Serial, u.Interface, u.Status)
			if u.SignalStat == nil {
				continue
			}
			if v, err := strconv.ParseFloat(u.SignalStat.RSRP, 64); err == nil {
				c.rsrp.Set(c.tier, v, lvs...)
			}
			if v, err := strconv.ParseFloat(u.SignalStat.RSRQ, 64); err == nil {
				c.rsrq.Set(c.tier, v, lvs...)
			}
		}
	}
	return nil
}
