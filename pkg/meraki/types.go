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

import "strings"

// Organization is a dashboard organization the API key can access.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Network belongs to exactly one organization. ProductTypes gates
// product-specific endpoints (a wired-only network has no wireless stats).
type Network struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	OrganizationID string   `json:"organizationId"`
	ProductTypes   []string `json:"productTypes"`
}

// HasProductType reports whether the network carries the given product
// type ("wireless", "switch", "appliance", "camera", "sensor",
// "cellularGateway").
func (n Network) HasProductType(pt string) bool {
	for _, t := range n.ProductTypes {
		if t == pt {
			return true
		}
	}
	return false
}

// Device is a piece of hardware claimed into a network.
type Device struct {
	Serial         string `json:"serial"`
	Name           string `json:"name"`
	Model          string `json:"model"`
	MAC            string `json:"mac,omitempty"`
	NetworkID      string `json:"networkId"`
	OrganizationID string `json:"-"`
	Firmware       string `json:"firmware,omitempty"`
	RawProductType string `json:"productType,omitempty"`
}

// Device family letter groups.
const (
	ProductMR = "MR" // wireless access point
	ProductMS = "MS" // switch
	ProductMX = "MX" // security appliance
	ProductMT = "MT" // sensor
	ProductMV = "MV" // camera
	ProductMG = "MG" // cellular gateway
)

var productTypeByName = map[string]string{
	"wireless":        ProductMR,
	"switch":          ProductMS,
	"appliance":       ProductMX,
	"sensor":          ProductMT,
	"camera":          ProductMV,
	"cellularGateway": ProductMG,
}

// ProductType resolves the device family from the model prefix, falling
// back to the upstream productType field for models that don't follow the
// two-letter convention (e.g. CW wireless APs, Z-series teleworkers).
func (d Device) ProductType() string {
	for _, p := range []string{ProductMR, ProductMS, ProductMX, ProductMT, ProductMV, ProductMG} {
		if strings.HasPrefix(d.Model, p) {
			return p
		}
	}
	if pt, ok := productTypeByName[d.RawProductType]; ok {
		return pt
	}
	return ""
}

// DeviceAvailability is the upstream-reported liveness of a device:
// online, offline, alerting or dormant.
type DeviceAvailability struct {
	Serial      string `json:"serial"`
	Name        string `json:"name"`
	ProductType string `json:"productType"`
	Status      string `json:"status"`
	Network     struct {
		ID string `json:"id"`
	} `json:"network"`
}

// AvailabilityStatuses enumerates every status value the dashboard emits.
var AvailabilityStatuses = []string{"online", "offline", "alerting", "dormant"}

// DeviceStatusOverview is the aggregated fallback when the availabilities
// endpoint is not offered to an organization.
type DeviceStatusOverview struct {
	Counts struct {
		ByStatus map[string]int `json:"byStatus"`
	} `json:"counts"`
}

// APIRequestsOverview summarizes dashboard API usage for an organization.
type APIRequestsOverview struct {
	ResponseCodeCounts map[string]float64 `json:"responseCodeCounts"`
}

// License is one entry of the per-device licensing model.
type License struct {
	ID             string `json:"id"`
	LicenseType    string `json:"licenseType"`
	State          string `json:"state"`
	ExpirationDate string `json:"expirationDate"`
}

// LicensesOverview is the co-termination licensing model response. Orgs on
// per-device licensing return a different shape; callers detect which model
// applies from the fields that are populated.
type LicensesOverview struct {
	Status               string         `json:"status"`
	ExpirationDate       string         `json:"expirationDate"`
	LicensedDeviceCounts map[string]int `json:"licensedDeviceCounts"`
}

// ClientOverview carries org-wide client counts and usage for a time window.
type ClientOverview struct {
	Counts struct {
		Total float64 `json:"total"`
	} `json:"counts"`
	Usage struct {
		Overall struct {
			Total      float64 `json:"total"`
			Downstream float64 `json:"downstream"`
			Upstream   float64 `json:"upstream"`
		} `json:"overall"`
		Average float64 `json:"average"`
	} `json:"usage"`
}

// ApplicationUsage is one row of the top-applications-by-usage summary.
// Values are MB over the requested timespan.
type ApplicationUsage struct {
	Application string  `json:"application"`
	Category    string  `json:"category"`
	Total       float64 `json:"total"`
	Downstream  float64 `json:"downstream"`
	Upstream    float64 `json:"upstream"`
}

// AssuranceAlert is one active alert from dashboard proactive monitoring.
type AssuranceAlert struct {
	ID           string `json:"id"`
	CategoryType string `json:"categoryType"`
	Type         string `json:"type"`
	Severity     string `json:"severity"`
	DeviceType   string `json:"deviceType"`
	Network      struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"network"`
}

// SensorReadings is the latest batch of readings for one MT sensor.
type SensorReadings struct {
	Serial  string `json:"serial"`
	Network struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"network"`
	Readings []SensorReading `json:"readings"`
}

// SensorReading is a single measurement. Exactly one of the metric payloads
// is populated, matching the Metric discriminator.
type SensorReading struct {
	TS     string `json:"ts"`
	Metric string `json:"metric"`

	Temperature *struct {
		Celsius float64 `json:"celsius"`
	} `json:"temperature,omitempty"`
	RawTemperature *struct {
		Celsius float64 `json:"celsius"`
	} `json:"rawTemperature,omitempty"`
	Humidity *struct {
		RelativePercentage float64 `json:"relativePercentage"`
	} `json:"humidity,omitempty"`
	Door *struct {
		Open bool `json:"open"`
	} `json:"door,omitempty"`
	Water *struct {
		Present bool `json:"present"`
	} `json:"water,omitempty"`
	CO2 *struct {
		Concentration float64 `json:"concentration"`
	} `json:"co2,omitempty"`
	TVOC *struct {
		Concentration float64 `json:"concentration"`
	} `json:"tvoc,omitempty"`
	PM25 *struct {
		Concentration float64 `json:"concentration"`
	} `json:"pm25,omitempty"`
	Noise *struct {
		Ambient struct {
			Level float64 `json:"level"`
		} `json:"ambient"`
	} `json:"noise,omitempty"`
	Battery *struct {
		Percentage float64 `json:"percentage"`
	} `json:"battery,omitempty"`
	IndoorAirQuality *struct {
		Score float64 `json:"score"`
	} `json:"indoorAirQuality,omitempty"`
	Voltage *struct {
		Level float64 `json:"level"`
	} `json:"voltage,omitempty"`
	Current *struct {
		Draw float64 `json:"draw"`
	} `json:"current,omitempty"`
	RealPower *struct {
		Draw float64 `json:"draw"`
	} `json:"realPower,omitempty"`
	ApparentPower *struct {
		Draw float64 `json:"draw"`
	} `json:"apparentPower,omitempty"`
	PowerFactor *struct {
		Percentage float64 `json:"percentage"`
	} `json:"powerFactor,omitempty"`
	Frequency *struct {
		Level float64 `json:"level"`
	} `json:"frequency,omitempty"`
	DownstreamPower *struct {
		Enabled bool `json:"enabled"`
	} `json:"downstreamPower,omitempty"`
	RemoteLockoutSwitch *struct {
		Locked bool `json:"locked"`
	} `json:"remoteLockoutSwitch,omitempty"`
}

// ChannelUtilization reports per-AP RF utilization on both bands.
type ChannelUtilization struct {
	Serial string                     `json:"serial"`
	Model  string                     `json:"model"`
	WiFi0  []ChannelUtilizationSample `json:"wifi0"`
	WiFi1  []ChannelUtilizationSample `json:"wifi1"`
}

// ChannelUtilizationSample is one measurement interval.
type ChannelUtilizationSample struct {
	Utilization80211    float64 `json:"utilization80211"`
	UtilizationNon80211 float64 `json:"utilizationNon80211"`
	Utilization         float64 `json:"utilization"`
}

// ConnectionStats aggregates wireless connection attempts for a network.
type ConnectionStats struct {
	Assoc   float64 `json:"assoc"`
	Auth    float64 `json:"auth"`
	DHCP    float64 `json:"dhcp"`
	DNS     float64 `json:"dns"`
	Success float64 `json:"success"`
}

// DataRateSample is one interval of network-wide wireless throughput.
type DataRateSample struct {
	StartTS      string  `json:"startTs"`
	EndTS        string  `json:"endTs"`
	DownloadKbps float64 `json:"downloadKbps"`
	UploadKbps   float64 `json:"uploadKbps"`
}

// BluetoothClient is a BLE client observed by the network.
type BluetoothClient struct {
	ID   string `json:"id"`
	MAC  string `json:"mac"`
	Name string `json:"name"`
}

// NetworkClient is one client of a network, wired or wireless.
type NetworkClient struct {
	ID          string `json:"id"`
	MAC         string `json:"mac"`
	Description string `json:"description"`
	IP          string `json:"ip"`
	SSID        string `json:"ssid"`
	VLAN        string `json:"vlan"`
	Status      string `json:"status"`
	Usage       struct {
		Sent float64 `json:"sent"`
		Recv float64 `json:"recv"`
	} `json:"usage"`
}

// SignalQualitySample is one RSSI/SNR measurement of a wireless client.
// Values are pointers because the dashboard reports null for intervals
// without traffic.
type SignalQualitySample struct {
	StartTS string   `json:"startTs"`
	EndTS   string   `json:"endTs"`
	RSSI    *float64 `json:"rssi"`
	SNR     *float64 `json:"snr"`
}

// MemoryUsageHistory is per-device memory utilization over recent intervals.
type MemoryUsageHistory struct {
	Serial  string `json:"serial"`
	Model   string `json:"model"`
	Name    string `json:"name"`
	Network struct {
		ID string `json:"id"`
	} `json:"network"`
	Provisioned float64 `json:"provisioned"`
	Intervals   []struct {
		StartTS string `json:"startTs"`
		Memory  struct {
			Used struct {
				Minimum     float64 `json:"minimum"`
				Maximum     float64 `json:"maximum"`
				Percentages struct {
					Maximum float64 `json:"maximum"`
				} `json:"percentages"`
			} `json:"used"`
			Free struct {
				Minimum float64 `json:"minimum"`
				Maximum float64 `json:"maximum"`
			} `json:"free"`
		} `json:"memory"`
	} `json:"intervals"`
}

// WirelessClientsOverview is the per-AP connected client count.
type WirelessClientsOverview struct {
	Serial string `json:"serial"`
	Counts struct {
		ByStatus struct {
			Online float64 `json:"online"`
		} `json:"byStatus"`
	} `json:"counts"`
}

// WirelessCPULoad is the most recent CPU load series for one AP.
type WirelessCPULoad struct {
	Serial string `json:"serial"`
	Model  string `json:"model"`
	Series []struct {
		CPUCount    float64 `json:"cpuCount"`
		AvgLoad5Min float64 `json:"avgLoad5Min"`
	} `json:"series"`
}

// WirelessStatus lists the basic service sets of one AP.
type WirelessStatus struct {
	BasicServiceSets []struct {
		SSIDName       string `json:"ssidName"`
		SSIDNumber     int    `json:"ssidNumber"`
		Enabled        bool   `json:"enabled"`
		Band           string `json:"band"`
		Channel        int    `json:"channel"`
		ChannelWidth   string `json:"channelWidth"`
		Power          string `json:"power"`
		Visible        bool   `json:"visible"`
		BroadcastingAP bool   `json:"broadcasting"`
	} `json:"basicServiceSets"`
}

// SwitchPortStatus is the live state of one MS port.
type SwitchPortStatus struct {
	PortID    string   `json:"portId"`
	Enabled   bool     `json:"enabled"`
	Status    string   `json:"status"`
	Speed     string   `json:"speed"`
	Duplex    string   `json:"duplex"`
	Errors    []string `json:"errors"`
	Warnings  []string `json:"warnings"`
	UsageInKb struct {
		Total float64 `json:"total"`
		Sent  float64 `json:"sent"`
		Recv  float64 `json:"recv"`
	} `json:"usageInKb"`
	TrafficInKbps struct {
		Total float64 `json:"total"`
		Sent  float64 `json:"sent"`
		Recv  float64 `json:"recv"`
	} `json:"trafficInKbps"`
	PowerUsageInWh float64 `json:"powerUsageInWh"`
	SpanningTree   struct {
		Statuses []string `json:"statuses"`
	} `json:"spanningTree"`
	IsUplink bool `json:"isUplink"`
}

// UplinkStatus reports WAN uplink state for MX and MG devices.
type UplinkStatus struct {
	Serial    string   `json:"serial"`
	Model     string   `json:"model"`
	NetworkID string   `json:"networkId"`
	Uplinks   []Uplink `json:"uplinks"`
}

// Uplink is one WAN interface of an appliance or gateway. SignalStat is
// only populated for cellular uplinks.
type Uplink struct {
	Interface  string      `json:"interface"`
	Status     string      `json:"status"`
	IP         string      `json:"ip"`
	SignalStat *SignalStat `json:"signalStat,omitempty"`
}

// SignalStat carries cellular signal strength as decimal strings.
type SignalStat struct {
	RSRP string `json:"rsrp"`
	RSRQ string `json:"rsrq"`
}

// LoginSecurity is the org-wide login policy.
type LoginSecurity struct {
	EnforcePasswordExpiration bool    `json:"enforcePasswordExpiration"`
	PasswordExpirationDays    float64 `json:"passwordExpirationDays"`
	EnforceStrongPasswords    bool    `json:"enforceStrongPasswords"`
	MinimumPasswordLength     float64 `json:"minimumPasswordLength"`
	EnforceDifferentPasswords bool    `json:"enforceDifferentPasswords"`
	NumDifferentPasswords     float64 `json:"numDifferentPasswords"`
	EnforceAccountLockout     bool    `json:"enforceAccountLockout"`
	AccountLockoutAttempts    float64 `json:"accountLockoutAttempts"`
	EnforceIdleTimeout        bool    `json:"enforceIdleTimeout"`
	IdleTimeoutMinutes        float64 `json:"idleTimeoutMinutes"`
	EnforceTwoFactorAuth      bool    `json:"enforceTwoFactorAuth"`
	EnforceLoginIPRanges      bool    `json:"enforceLoginIpRanges"`
	APIAuthentication         struct {
		IPRestrictionsForKeys struct {
			Enabled bool `json:"enabled"`
		} `json:"ipRestrictionsForKeys"`
	} `json:"apiAuthentication"`
}

// ConfigurationChange is one audit-log entry.
type ConfigurationChange struct {
	TS        string `json:"ts"`
	AdminName string `json:"adminName"`
	Label     string `json:"label"`
}
