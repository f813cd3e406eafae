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

import "fmt"

// endpoint describes one dashboard API read. ID is the stable identifier
// used on metric labels; Path is a fmt pattern filled with opaque resource
// identifiers. Optional endpoints turn a 404 into CategoryNotAvailable
// instead of a client error; everything else defaults to required.
type endpoint struct {
	ID       string
	Path     string
	Optional bool
}

func (e endpoint) path(args ...any) string {
	return fmt.Sprintf(e.Path, args...)
}

var (
	epOrganizations = endpoint{ID: "getOrganizations", Path: "/organizations"}
	epNetworks      = endpoint{ID: "getOrganizationNetworks", Path: "/organizations/%s/networks"}
	epDevices       = endpoint{ID: "getOrganizationDevices", Path: "/organizations/%s/devices"}

	// Availabilities have a designed fallback to the status overview, so
	// a 404 is an expected outcome rather than a client error.
	epDeviceAvailabilities = endpoint{ID: "getOrganizationDevicesAvailabilities", Path: "/organizations/%s/devices/availabilities", Optional: true}
	epDeviceStatusOverview = endpoint{ID: "getOrganizationDevicesStatusesOverview", Path: "/organizations/%s/devices/statuses/overview"}

	epAPIRequestsOverview = endpoint{ID: "getOrganizationApiRequestsOverview", Path: "/organizations/%s/apiRequests/overview"}
	epLicenses            = endpoint{ID: "getOrganizationLicenses", Path: "/organizations/%s/licenses", Optional: true}
	epLicensesOverview    = endpoint{ID: "getOrganizationLicensesOverview", Path: "/organizations/%s/licenses/overview", Optional: true}
	epClientOverview      = endpoint{ID: "getOrganizationClientsOverview", Path: "/organizations/%s/clients/overview"}
	epTopApplications     = endpoint{ID: "getOrganizationSummaryTopApplicationsByUsage", Path: "/organizations/%s/summary/top/applications/byUsage", Optional: true}

	epAssuranceAlerts = endpoint{ID: "getOrganizationAssuranceAlerts", Path: "/organizations/%s/assurance/alerts", Optional: true}

	epSensorReadings = endpoint{ID: "getOrganizationSensorReadingsLatest", Path: "/organizations/%s/sensor/readings/latest", Optional: true}

	epChannelUtilization = endpoint{ID: "getNetworkNetworkHealthChannelUtilization", Path: "/networks/%s/networkHealth/channelUtilization", Optional: true}
	epConnectionStats    = endpoint{ID: "getNetworkWirelessConnectionStats", Path: "/networks/%s/wireless/connectionStats", Optional: true}
	epDataRateHistory    = endpoint{ID: "getNetworkWirelessDataRateHistory", Path: "/networks/%s/wireless/dataRateHistory", Optional: true}
	epBluetoothClients   = endpoint{ID: "getNetworkBluetoothClients", Path: "/networks/%s/bluetoothClients", Optional: true}

	epNetworkClients        = endpoint{ID: "getNetworkClients", Path: "/networks/%s/clients", Optional: true}
	epWirelessSignalQuality = endpoint{ID: "getNetworkWirelessSignalQualityHistory", Path: "/networks/%s/wireless/signalQualityHistory", Optional: true}

	epMemoryHistory     = endpoint{ID: "getOrganizationDevicesSystemMemoryUsageHistoryByInterval", Path: "/organizations/%s/devices/system/memory/usage/history/byInterval", Optional: true}
	epWirelessClientsBy = endpoint{ID: "getOrganizationWirelessClientsOverviewByDevice", Path: "/organizations/%s/wireless/clients/overview/byDevice", Optional: true}
	epWirelessCPULoad   = endpoint{ID: "getOrganizationWirelessDevicesSystemCpuLoadHistory", Path: "/organizations/%s/wireless/devices/system/cpu/load/history", Optional: true}
	epWirelessStatus    = endpoint{ID: "getDeviceWirelessStatus", Path: "/devices/%s/wireless/status", Optional: true}
	epSwitchPortStatus  = endpoint{ID: "getDeviceSwitchPortsStatuses", Path: "/devices/%s/switch/ports/statuses"}
	epUplinkStatuses    = endpoint{ID: "getOrganizationUplinksStatuses", Path: "/organizations/%s/uplinks/statuses", Optional: true}

	epLoginSecurity        = endpoint{ID: "getOrganizationLoginSecurity", Path: "/organizations/%s/loginSecurity"}
	epConfigurationChanges = endpoint{ID: "getOrganizationConfigurationChanges", Path: "/organizations/%s/configurationChanges"}
)
