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

package meraki

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// Organizations lists every organization the API key can access.
func (c *Client) Organizations(ctx context.Context) ([]Organization, error) {
	items, err := c.getAllPages(ctx, epOrganizations, nil, "")
	if err != nil {
		return nil, err
	}
	return decodeItems[Organization](epOrganizations, items)
}

// Networks lists all networks of an organization.
func (c *Client) Networks(ctx context.Context, orgID string) ([]Network, error) {
	if err := requireID(epNetworks, "organization id", orgID); err != nil {
		return nil, err
	}
	items, err := c.getAllPages(ctx, epNetworks, nil, orgID, orgID)
	if err != nil {
		return nil, err
	}
	nets, err := decodeItems[Network](epNetworks, items)
	if err != nil {
		return nil, err
	}
	for i := range nets {
		nets[i].OrganizationID = orgID
	}
	return nets, nil
}

// Devices lists all devices claimed into an organization.
func (c *Client) Devices(ctx context.Context, orgID string) ([]Device, error) {
	if err := requireID(epDevices, "organization id", orgID); err != nil {
		return nil, err
	}
	items, err := c.getAllPages(ctx, epDevices, nil, orgID, orgID)
	if err != nil {
		return nil, err
	}
	devs, err := decodeItems[Device](epDevices, items)
	if err != nil {
		return nil, err
	}
	for i := range devs {
		devs[i].OrganizationID = orgID
	}
	return devs, nil
}

// DeviceAvailabilities returns upstream-reported liveness per device.
func (c *Client) DeviceAvailabilities(ctx context.Context, orgID string) ([]DeviceAvailability, error) {
	if err := requireID(epDeviceAvailabilities, "organization id", orgID); err != nil {
		return nil, err
	}
	items, err := c.getAllPages(ctx, epDeviceAvailabilities, nil, orgID, orgID)
	if err != nil {
		return nil, err
	}
	return decodeItems[DeviceAvailability](epDeviceAvailabilities, items)
}

// DeviceStatusOverview is the aggregated fallback for organizations that
// don't expose per-device availabilities.
func (c *Client) DeviceStatusOverview(ctx context.Context, orgID string) (*DeviceStatusOverview, error) {
	if err := requireID(epDeviceStatusOverview, "organization id", orgID); err != nil {
		return nil, err
	}
	var out DeviceStatusOverview
	if err := c.getJSON(ctx, epDeviceStatusOverview, nil, orgID, &out, orgID); err != nil {
		return nil, err
	}
	return &out, nil
}

// APIRequestsOverview summarizes dashboard API usage over the timespan.
func (c *Client) APIRequestsOverview(ctx context.Context, orgID string, timespan time.Duration) (*APIRequestsOverview, error) {
	if err := requireID(epAPIRequestsOverview, "organization id", orgID); err != nil {
		return nil, err
	}
	q, err := timespanQuery(timespan)
	if err != nil {
		return nil, err
	}
	var out APIRequestsOverview
	if err := c.getJSON(ctx, epAPIRequestsOverview, q, orgID, &out, orgID); err != nil {
		return nil, err
	}
	return &out, nil
}

// Licenses lists per-device licenses. Organizations on co-termination
// licensing 404 here; the caller falls back to LicensesOverview.
func (c *Client) Licenses(ctx context.Context, orgID string) ([]License, error) {
	if err := requireID(epLicenses, "organization id", orgID); err != nil {
		return nil, err
	}
	items, err := c.getAllPages(ctx, epLicenses, nil, orgID, orgID)
	if err != nil {
		return nil, err
	}
	return decodeItems[License](epLicenses, items)
}

// LicensesOverview returns the co-termination licensing summary.
func (c *Client) LicensesOverview(ctx context.Context, orgID string) (*LicensesOverview, error) {
	if err := requireID(epLicensesOverview, "organization id", orgID); err != nil {
		return nil, err
	}
	var out LicensesOverview
	if err := c.getJSON(ctx, epLicensesOverview, nil, orgID, &out, orgID); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClientOverview returns org-wide client counts and usage for the timespan.
func (c *Client) ClientOverview(ctx context.Context, orgID string, timespan time.Duration) (*ClientOverview, error) {
	if err := requireID(epClientOverview, "organization id", orgID); err != nil {
		return nil, err
	}
	q, err := timespanQuery(timespan)
	if err != nil {
		return nil, err
	}
	var out ClientOverview
	if err := c.getJSON(ctx, epClientOverview, q, orgID, &out, orgID); err != nil {
		return nil, err
	}
	return &out, nil
}

// TopApplicationsByUsage returns application usage grouped by category.
func (c *Client) TopApplicationsByUsage(ctx context.Context, orgID string, timespan time.Duration) ([]ApplicationUsage, error) {
	if err := requireID(epTopApplications, "organization id", orgID); err != nil {
		return nil, err
	}
	q, err := timespanQuery(timespan)
	if err != nil {
		return nil, err
	}
	items, err := c.getList(ctx, epTopApplications, q, orgID, orgID)
	if err != nil {
		return nil, err
	}
	return decodeItems[ApplicationUsage](epTopApplications, items)
}

// AssuranceAlerts lists active alerts from dashboard proactive monitoring.
// Not every organization has the endpoint enabled; absence surfaces as
// CategoryNotAvailable.
func (c *Client) AssuranceAlerts(ctx context.Context, orgID string) ([]AssuranceAlert, error) {
	if err := requireID(epAssuranceAlerts, "organization id", orgID); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("active", "true")
	items, err := c.getAllPages(ctx, epAssuranceAlerts, q, orgID, orgID)
	if err != nil {
		return nil, err
	}
	return decodeItems[AssuranceAlert](epAssuranceAlerts, items)
}

// SensorReadingsLatest fetches the most recent reading batch of every MT
// sensor in the organization in one call.
func (c *Client) SensorReadingsLatest(ctx context.Context, orgID string) ([]SensorReadings, error) {
	if err := requireID(epSensorReadings, "organization id", orgID); err != nil {
		return nil, err
	}
	items, err := c.getAllPages(ctx, epSensorReadings, nil, orgID, orgID)
	if err != nil {
		return nil, err
	}
	return decodeItems[SensorReadings](epSensorReadings, items)
}

// ChannelUtilization returns per-AP RF utilization for a wireless network.
func (c *Client) ChannelUtilization(ctx context.Context, networkID string, timespan time.Duration) ([]ChannelUtilization, error) {
	if err := requireID(epChannelUtilization, "network id", networkID); err != nil {
		return nil, err
	}
	q, err := timespanQuery(timespan)
	if err != nil {
		return nil, err
	}
	items, err := c.getList(ctx, epChannelUtilization, q, "", networkID)
	if err != nil {
		return nil, err
	}
	return decodeItems[ChannelUtilization](epChannelUtilization, items)
}

// ConnectionStats aggregates wireless connection attempts for a network.
func (c *Client) ConnectionStats(ctx context.Context, networkID string, timespan time.Duration) (*ConnectionStats, error) {
	if err := requireID(epConnectionStats, "network id", networkID); err != nil {
		return nil, err
	}
	q, err := timespanQuery(timespan)
	if err != nil {
		return nil, err
	}
	var out ConnectionStats
	if err := c.getJSON(ctx, epConnectionStats, q, "", &out, networkID); err != nil {
		return nil, err
	}
	return &out, nil
}

// DataRateHistory returns network-wide wireless throughput samples.
func (c *Client) DataRateHistory(ctx context.Context, networkID string, timespan time.Duration) ([]DataRateSample, error) {
	if err := requireID(epDataRateHistory, "network id", networkID); err != nil {
		return nil, err
	}
	q, err := timespanQuery(timespan)
	if err != nil {
		return nil, err
	}
	items, err := c.getList(ctx, epDataRateHistory, q, "", networkID)
	if err != nil {
		return nil, err
	}
	return decodeItems[DataRateSample](epDataRateHistory, items)
}

// BluetoothClients lists BLE clients seen by a network.
func (c *Client) BluetoothClients(ctx context.Context, networkID string, timespan time.Duration) ([]BluetoothClient, error) {
	if err := requireID(epBluetoothClients, "network id", networkID); err != nil {
		return nil, err
	}
	q, err := timespanQuery(timespan)
	if err != nil {
		return nil, err
	}
	items, err := c.getList(ctx, epBluetoothClients, q, "", networkID)
	if err != nil {
		return nil, err
	}
	return decodeItems[BluetoothClient](epBluetoothClients, items)
}

// NetworkClients lists clients of a network, capped at maxClients. The cap
// keeps high-density networks from exploding series cardinality.
func (c *Client) NetworkClients(ctx context.Context, networkID string, timespan time.Duration, maxClients int) ([]NetworkClient, error) {
	if err := requireID(epNetworkClients, "network id", networkID); err != nil {
		return nil, err
	}
	q, err := timespanQuery(timespan)
	if err != nil {
		return nil, err
	}
	perPage := maxClients
	if perPage <= 0 || perPage > defaultPerPage {
		perPage = defaultPerPage
	}
	q.Set("perPage", strconv.Itoa(perPage))
	items, err := c.getList(ctx, epNetworkClients, q, "", networkID)
	if err != nil {
		return nil, err
	}
	clients, err := decodeItems[NetworkClient](epNetworkClients, items)
	if err != nil {
		return nil, err
	}
	if maxClients > 0 && len(clients) > maxClients {
		clients = clients[:maxClients]
	}
	return clients, nil
}

// WirelessSignalQuality returns recent RSSI/SNR samples of one wireless
// client in a network.
func (c *Client) WirelessSignalQuality(ctx context.Context, networkID, clientID string, timespan time.Duration) ([]SignalQualitySample, error) {
	if err := requireID(epWirelessSignalQuality, "network id", networkID); err != nil {
		return nil, err
	}
	if err := requireID(epWirelessSignalQuality, "client id", clientID); err != nil {
		return nil, err
	}
	q, err := timespanQuery(timespan)
	if err != nil {
		return nil, err
	}
	q.Set("clientId", clientID)
	items, err := c.getList(ctx, epWirelessSignalQuality, q, "", networkID)
	if err != nil {
		return nil, err
	}
	return decodeItems[SignalQualitySample](epWirelessSignalQuality, items)
}

// MemoryUsageHistory returns recent per-device memory utilization.
func (c *Client) MemoryUsageHistory(ctx context.Context, orgID string) ([]MemoryUsageHistory, error) {
	if err := requireID(epMemoryHistory, "organization id", orgID); err != nil {
		return nil, err
	}
	items, err := c.getAllPages(ctx, epMemoryHistory, nil, orgID, orgID)
	if err != nil {
		return nil, err
	}
	return decodeItems[MemoryUsageHistory](epMemoryHistory, items)
}

// WirelessClientsOverview returns connected client counts per AP.
func (c *Client) WirelessClientsOverview(ctx context.Context, orgID string) ([]WirelessClientsOverview, error) {
	if err := requireID(epWirelessClientsBy, "organization id", orgID); err != nil {
		return nil, err
	}
	items, err := c.getAllPages(ctx, epWirelessClientsBy, nil, orgID, orgID)
	if err != nil {
		return nil, err
	}
	return decodeItems[WirelessClientsOverview](epWirelessClientsBy, items)
}

// WirelessCPULoad returns recent CPU load per AP.
func (c *Client) WirelessCPULoad(ctx context.Context, orgID string) ([]WirelessCPULoad, error) {
	if err := requireID(epWirelessCPULoad, "organization id", orgID); err != nil {
		return nil, err
	}
	items, err := c.getAllPages(ctx, epWirelessCPULoad, nil, orgID, orgID)
	if err != nil {
		return nil, err
	}
	return decodeItems[WirelessCPULoad](epWirelessCPULoad, items)
}

// WirelessStatus returns the SSID broadcast state of one AP.
func (c *Client) WirelessStatus(ctx context.Context, serial string) (*WirelessStatus, error) {
	if err := requireID(epWirelessStatus, "device serial", serial); err != nil {
		return nil, err
	}
	var out WirelessStatus
	if err := c.getJSON(ctx, epWirelessStatus, nil, "", &out, serial); err != nil {
		return nil, err
	}
	return &out, nil
}

// SwitchPortStatuses returns live port state for one MS switch.
func (c *Client) SwitchPortStatuses(ctx context.Context, serial string, timespan time.Duration) ([]SwitchPortStatus, error) {
	if err := requireID(epSwitchPortStatus, "device serial", serial); err != nil {
		return nil, err
	}
	q, err := timespanQuery(timespan)
	if err != nil {
		return nil, err
	}
	items, err := c.getList(ctx, epSwitchPortStatus, q, "", serial)
	if err != nil {
		return nil, err
	}
	return decodeItems[SwitchPortStatus](epSwitchPortStatus, items)
}

// UplinkStatuses returns WAN uplink state for all MX and MG devices of an
// organization, including cellular signal where applicable.
func (c *Client) UplinkStatuses(ctx context.Context, orgID string) ([]UplinkStatus, error) {
	if err := requireID(epUplinkStatuses, "organization id", orgID); err != nil {
		return nil, err
	}
	items, err := c.getAllPages(ctx, epUplinkStatuses, nil, orgID, orgID)
	if err != nil {
		return nil, err
	}
	return decodeItems[UplinkStatus](epUplinkStatuses, items)
}

// LoginSecurity returns the organization login policy.
func (c *Client) LoginSecurity(ctx context.Context, orgID string) (*LoginSecurity, error) {
	if err := requireID(epLoginSecurity, "organization id", orgID); err != nil {
		return nil, err
	}
	var out LoginSecurity
	if err := c.getJSON(ctx, epLoginSecurity, nil, orgID, &out, orgID); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfigurationChanges lists audit-log entries within the timespan.
func (c *Client) ConfigurationChanges(ctx context.Context, orgID string, timespan time.Duration) ([]ConfigurationChange, error) {
	if err := requireID(epConfigurationChanges, "organization id", orgID); err != nil {
		return nil, err
	}
	q, err := timespanQuery(timespan)
	if err != nil {
		return nil, err
	}
	items, err := c.getAllPages(ctx, epConfigurationChanges, q, orgID, orgID)
	if err != nil {
		return nil, err
	}
	return decodeItems[ConfigurationChange](epConfigurationChanges, items)
}
