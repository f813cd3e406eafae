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
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
	"github.com/merakiops/meraki-dashboard-exporter/pkg/metrics"
)

// fakeAPI implements API with per-method hooks. Unset hooks return empty
// responses so collectors under test only wire what they exercise.
type fakeAPI struct {
	deviceAvailabilities func(ctx context.Context, orgID string) ([]meraki.DeviceAvailability, error)
	deviceStatusOverview func(ctx context.Context, orgID string) (*meraki.DeviceStatusOverview, error)
	apiRequestsOverview  func(ctx context.Context, orgID string, timespan time.Duration) (*meraki.APIRequestsOverview, error)
	licenses             func(ctx context.Context, orgID string) ([]meraki.License, error)
	licensesOverview     func(ctx context.Context, orgID string) (*meraki.LicensesOverview, error)
	clientOverview       func(ctx context.Context, orgID string, timespan time.Duration) (*meraki.ClientOverview, error)
	topApplications      func(ctx context.Context, orgID string, timespan time.Duration) ([]meraki.ApplicationUsage, error)
	assuranceAlerts      func(ctx context.Context, orgID string) ([]meraki.AssuranceAlert, error)
	sensorReadings       func(ctx context.Context, orgID string) ([]meraki.SensorReadings, error)
	channelUtilization   func(ctx context.Context, networkID string, timespan time.Duration) ([]meraki.ChannelUtilization, error)
	connectionStats      func(ctx context.Context, networkID string, timespan time.Duration) (*meraki.ConnectionStats, error)
	dataRateHistory      func(ctx context.Context, networkID string, timespan time.Duration) ([]meraki.DataRateSample, error)
	bluetoothClients     func(ctx context.Context, networkID string, timespan time.Duration) ([]meraki.BluetoothClient, error)
	networkClients       func(ctx context.Context, networkID string, timespan time.Duration, maxClients int) ([]meraki.NetworkClient, error)
	signalQuality        func(ctx context.Context, networkID, clientID string, timespan time.Duration) ([]meraki.SignalQualitySample, error)
	memoryUsageHistory   func(ctx context.Context, orgID string) ([]meraki.MemoryUsageHistory, error)
	wirelessClients      func(ctx context.Context, orgID string) ([]meraki.WirelessClientsOverview, error)
	wirelessCPULoad      func(ctx context.Context, orgID string) ([]meraki.WirelessCPULoad, error)
	wirelessStatus       func(ctx context.Context, serial string) (*meraki.WirelessStatus, error)
	switchPortStatuses   func(ctx context.Context, serial string, timespan time.Duration) ([]meraki.SwitchPortStatus, error)
	uplinkStatuses       func(ctx context.Context, orgID string) ([]meraki.UplinkStatus, error)
	loginSecurity        func(ctx context.Context, orgID string) (*meraki.LoginSecurity, error)
	configurationChanges func(ctx context.Context, orgID string, timespan time.Duration) ([]meraki.ConfigurationChange, error)
}

func (f *fakeAPI) DeviceAvailabilities(ctx context.Context, orgID string) ([]meraki.DeviceAvailability, error) {
	if f.deviceAvailabilities != nil {
		return f.deviceAvailabilities(ctx, orgID)
	}
	return nil, nil
}

func (f *fakeAPI) DeviceStatusOverview(ctx context.Context, orgID string) (*meraki.DeviceStatusOverview, error) {
	if f.deviceStatusOverview != nil {
		return f.deviceStatusOverview(ctx, orgID)
	}
	return &meraki.DeviceStatusOverview{}, nil
}

func (f *fakeAPI) APIRequestsOverview(ctx context.Context, orgID string, timespan time.Duration) (*meraki.APIRequestsOverview, error) {
	if f.apiRequestsOverview != nil {
		return f.apiRequestsOverview(ctx, orgID, timespan)
	}
	return &meraki.APIRequestsOverview{}, nil
}

func (f *fakeAPI) Licenses(ctx context.Context, orgID string) ([]meraki.License, error) {
	if f.licenses != nil {
		return f.licenses(ctx, orgID)
	}
	return nil, nil
}

func (f *fakeAPI) LicensesOverview(ctx context.Context, orgID string) (*meraki.LicensesOverview, error) {
	if f.licensesOverview != nil {
		return f.licensesOverview(ctx, orgID)
	}
	return &meraki.LicensesOverview{}, nil
}

func (f *fakeAPI) ClientOverview(ctx context.Context, orgID string, timespan time.Duration) (*meraki.ClientOverview, error) {
	if f.clientOverview != nil {
		return f.clientOverview(ctx, orgID, timespan)
	}
	return &meraki.ClientOverview{}, nil
}

func (f *fakeAPI) TopApplicationsByUsage(ctx context.Context, orgID string, timespan time.Duration) ([]meraki.ApplicationUsage, error) {
	if f.topApplications != nil {
		return f.topApplications(ctx, orgID, timespan)
	}
	return nil, nil
}

func (f *fakeAPI) AssuranceAlerts(ctx context.Context, orgID string) ([]meraki.AssuranceAlert, error) {
	if f.assuranceAlerts != nil {
		return f.assuranceAlerts(ctx, orgID)
	}
	return nil, nil
}

func (f *fakeAPI) SensorReadingsLatest(ctx context.Context, orgID string) ([]meraki.SensorReadings, error) {
	if f.sensorReadings != nil {
		return f.sensorReadings(ctx, orgID)
	}
	return nil, nil
}

func (f *fakeAPI) ChannelUtilization(ctx context.Context, networkID string, timespan time.Duration) ([]meraki.ChannelUtilization, error) {
	if f.channelUtilization != nil {
		return f.channelUtilization(ctx, networkID, timespan)
	}
	return nil, nil
}

func (f *fakeAPI) ConnectionStats(ctx context.Context, networkID string, timespan time.Duration) (*meraki.ConnectionStats, error) {
	if f.connectionStats != nil {
		return f.connectionStats(ctx, networkID, timespan)
	}
	return &meraki.ConnectionStats{}, nil
}

func (f *fakeAPI) DataRateHistory(ctx context.Context, networkID string, timespan time.Duration) ([]meraki.DataRateSample, error) {
	if f.dataRateHistory != nil {
		return f.dataRateHistory(ctx, networkID, timespan)
	}
	return nil, nil
}

func (f *fakeAPI) BluetoothClients(ctx context.Context, networkID string, timespan time.Duration) ([]meraki.BluetoothClient, error) {
	if f.bluetoothClients != nil {
		return f.bluetoothClients(ctx, networkID, timespan)
	}
	return nil, nil
}

func (f *fakeAPI) NetworkClients(ctx context.Context, networkID string, timespan time.Duration, maxClients int) ([]meraki.NetworkClient, error) {
	if f.networkClients != nil {
		return f.networkClients(ctx, networkID, timespan, maxClients)
	}
	return nil, nil
}

func (f *fakeAPI) WirelessSignalQuality(ctx context.Context, networkID, clientID string, timespan time.Duration) ([]meraki.SignalQualitySample, error) {
	if f.signalQuality != nil {
		return f.signalQuality(ctx, networkID, clientID, timespan)
	}
	return nil, nil
}

func (f *fakeAPI) MemoryUsageHistory(ctx context.Context, orgID string) ([]meraki.MemoryUsageHistory, error) {
	if f.memoryUsageHistory != nil {
		return f.memoryUsageHistory(ctx, orgID)
	}
	return nil, nil
}

func (f *fakeAPI) WirelessClientsOverview(ctx context.Context, orgID string) ([]meraki.WirelessClientsOverview, error) {
	if f.wirelessClients != nil {
		return f.wirelessClients(ctx, orgID)
	}
	return nil, nil
}

func (f *fakeAPI) WirelessCPULoad(ctx context.Context, orgID string) ([]meraki.WirelessCPULoad, error) {
	if f.wirelessCPULoad != nil {
		return f.wirelessCPULoad(ctx, orgID)
	}
	return nil, nil
}

func (f *fakeAPI) WirelessStatus(ctx context.Context, serial string) (*meraki.WirelessStatus, error) {
	if f.wirelessStatus != nil {
		return f.wirelessStatus(ctx, serial)
	}
	return &meraki.WirelessStatus{}, nil
}

func (f *fakeAPI) SwitchPortStatuses(ctx context.Context, serial string, timespan time.Duration) ([]meraki.SwitchPortStatus, error) {
	if f.switchPortStatuses != nil {
		return f.switchPortStatuses(ctx, serial, timespan)
	}
	return nil, nil
}

func (f *fakeAPI) UplinkStatuses(ctx context.Context, orgID string) ([]meraki.UplinkStatus, error) {
	if f.uplinkStatuses != nil {
		return f.uplinkStatuses(ctx, orgID)
	}
	return nil, nil
}

func (f *fakeAPI) LoginSecurity(ctx context.Context, orgID string) (*meraki.LoginSecurity, error) {
	if f.loginSecurity != nil {
		return f.loginSecurity(ctx, orgID)
	}
	return &meraki.LoginSecurity{}, nil
}

func (f *fakeAPI) ConfigurationChanges(ctx context.Context, orgID string, timespan time.Duration) ([]meraki.ConfigurationChange, error) {
	if f.configurationChanges != nil {
		return f.configurationChanges(ctx, orgID, timespan)
	}
	return nil, nil
}

// fakeInventory returns a fixed topology.
type fakeInventory struct {
	orgs     []meraki.Organization
	networks map[string][]meraki.Network
	devices  map[string][]meraki.Device
}

func (f *fakeInventory) GetOrganizations(context.Context) ([]meraki.Organization, error) {
	return f.orgs, nil
}

func (f *fakeInventory) GetNetworks(_ context.Context, orgID string) ([]meraki.Network, error) {
	return f.networks[orgID], nil
}

func (f *fakeInventory) GetDevices(_ context.Context, orgID, networkID string) ([]meraki.Device, error) {
	devices := f.devices[orgID]
	if networkID == "" {
		return devices, nil
	}
	var out []meraki.Device
	for _, d := range devices {
		if d.NetworkID == networkID {
			out = append(out, d)
		}
	}
	return out, nil
}

var testSettings = Settings{
	Intervals: metrics.Intervals{
		Fast:   60 * time.Second,
		Medium: 300 * time.Second,
		Slow:   900 * time.Second,
	},
	BatchSize:                    10,
	ConcurrencyLimit:             3,
	CollectorTimeout:             30 * time.Second,
	LicenseExpirationWarningDays: 30,
	MaxClientsPerNetwork:         1000,
}

func newTestDeps(t *testing.T, api API, inv Inventory) Deps {
	t.Helper()
	registry := metrics.New(log.NewNopLogger(), prometheus.NewRegistry(), testSettings.Intervals, 2.5)
	return Deps{
		Logger:    log.NewNopLogger(),
		API:       api,
		Inventory: inv,
		Metrics:   registry,
		Settings:  testSettings,
		Self:      NewSelfMetrics(registry.Registerer()),
	}
}

// gaugeValue extracts one series value from the tracked registry.
func gaugeValue(t *testing.T, g prometheus.Gatherer, metric string, labels map[string]string) (float64, bool) {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != metric {
			continue
		}
	next:
		for _, m := range fam.GetMetric() {
			have := map[string]string{}
			for _, l := range m.GetLabel() {
				have[l.GetName()] = l.GetValue()
			}
			for k, v := range labels {
				if have[k] != v {
					continue next
				}
			}
			switch {
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue(), true
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue(), true
			}
		}
	}
	return 0, false
}
