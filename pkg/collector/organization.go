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
	"sync"
	"time"

	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
	"github.com/merakiops/meraki-dashboard-exporter/pkg/metrics"
)

func init() {
	Register("organization", metrics.TierMedium, func(deps Deps) Collector {
		return NewOrganizationCollector(deps)
	})
}

// OrganizationCollector fans out per-organization work to its
// sub-collectors and emits the org-level inventory counts itself.
type OrganizationCollector struct {
	Base

	info            *metrics.Info
	networksTotal   *metrics.Gauge
	devicesTotal    *metrics.Gauge
	devicesByModel  *metrics.Gauge
	devicesByStatus *metrics.Gauge

	apiUsage       *apiUsageCollector
	licenses       *licenseCollector
	clientOverview *clientOverviewCollector
	appUsage       *applicationUsageCollector
}

// NewOrganizationCollector builds the coordinator and its children.
func NewOrganizationCollector(deps Deps) *OrganizationCollector {
	base := NewBase("organization", metrics.TierMedium, deps)
	return &OrganizationCollector{
		Base:           base,
		apiUsage:       &apiUsageCollector{Base: base},
		licenses:       &licenseCollector{Base: base},
		clientOverview: &clientOverviewCollector{Base: base},
		appUsage:       &applicationUsageCollector{Base: base},
	}
}

func (c *OrganizationCollector) InitMetrics() {
	r := c.deps.Metrics
	c.info = r.NewInfo("meraki_org_info", "Organization identity.", "org_id", "org_name")
	c.networksTotal = r.NewGauge("meraki_org_networks_total", "Networks in the organization.", "org_id", "org_name")
	c.devicesTotal = r.NewGauge("meraki_org_devices_total", "Devices by product type.", "org_id", "org_name", "product_type")
	c.devicesByModel = r.NewGauge("meraki_org_devices_by_model_total", "Devices by hardware model.", "org_id", "org_name", "model")
	c.devicesByStatus = r.NewGauge("meraki_org_devices_availability_total", "Devices by availability status and product type.", "org_id", "org_name", "status", "product_type")

	c.apiUsage.initMetrics(r)
	c.licenses.initMetrics(r)
	c.clientOverview.initMetrics(r)
	c.appUsage.initMetrics(r)
}

func (c *OrganizationCollector) Collect(ctx context.Context) error {
	orgs, err := c.deps.Inventory.GetOrganizations(ctx)
	if err != nil {
		return err
	}
	return forEachBatch(ctx, orgs, c.deps.Settings.BatchSize, c.deps.Settings.BatchDelay, c.deps.Settings.ConcurrencyLimit, func(ctx context.Context, org meraki.Organization) error {
		c.collectOrg(ctx, org)
		return ctx.Err()
	})
}

func (c *OrganizationCollector) collectOrg(ctx context.Context, org meraki.Organization) {
	c.info.Set(c.tier, org.ID, org.Name)

	c.RunSubStep(ctx, "networks/"+org.ID, func(ctx context.Context) error {
		networks, err := c.deps.Inventory.GetNetworks(ctx, org.ID)
		if err != nil {
			return err
		}
		c.networksTotal.Set(c.tier, float64(len(networks)), org.ID, org.Name)
		return nil
	})

	c.RunSubStep(ctx, "devices/"+org.ID, func(ctx context.Context) error {
		devices, err := c.deps.Inventory.GetDevices(ctx, org.ID, "")
		if err != nil {
			return err
		}
		byType := map[string]int{}
		byModel := map[string]int{}
		for _, d := range devices {
			if pt := d.ProductType(); pt != "" {
				byType[pt]++
			}
			byModel[d.Model]++
		}
		for pt, n := range byType {
			c.devicesTotal.Set(c.tier, float64(n), org.ID, org.Name, pt)
		}
		for model, n := range byModel {
			c.devicesByModel.Set(c.tier, float64(n), org.ID, org.Name, model)
		}
		return nil
	})

	c.RunSubStep(ctx, "availabilities/"+org.ID, func(ctx context.Context) error {
		return c.collectAvailability(ctx, org)
	})
	c.RunSubStep(ctx, "api_usage/"+org.ID, func(ctx context.Context) error {
		return c.apiUsage.collect(ctx, org)
	})
	c.RunSubStep(ctx, "licenses/"+org.ID, func(ctx context.Context) error {
		return c.licenses.collect(ctx, org)
	})
	c.RunSubStep(ctx, "client_overview/"+org.ID, func(ctx context.Context) error {
		return c.clientOverview.collect(ctx, org)
	})
	c.RunSubStep(ctx, "application_usage/"+org.ID, func(ctx context.Context) error {
		return c.appUsage.collect(ctx, org)
	})
}

// collectAvailability prefers per-device availabilities and falls back to
// the status overview for organizations that don't expose them.
func (c *OrganizationCollector) collectAvailability(ctx context.Context, org meraki.Organization) error {
	c.TrackAPICall("getOrganizationDevicesAvailabilities")
	availabilities, err := c.deps.API.DeviceAvailabilities(ctx, org.ID)
	if err != nil {
		if !meraki.IsNotAvailable(err) {
			return err
		}
		c.TrackAPICall("getOrganizationDevicesStatusesOverview")
		overview, err := c.deps.API.DeviceStatusOverview(ctx, org.ID)
		if err != nil {
			return err
		}
		for status, n := range overview.Counts.ByStatus {
			c.devicesByStatus.Set(c.tier, float64(n), org.ID, org.Name, status, "all")
		}
		return nil
	}

	counts := map[[2]string]int{}
	productTypes := map[string]bool{}
	for _, a := range availabilities {
		counts[[2]string{a.Status, a.ProductType}]++
		productTypes[a.ProductType] = true
	}
	// Zero-fill so a status that empties out reads 0 instead of going stale.
	for pt := range productTypes {
		for _, status := range meraki.AvailabilityStatuses {
			c.devicesByStatus.Set(c.tier, float64(counts[[2]string{status, pt}]), org.ID, org.Name, status, pt)
		}
	}
	return nil
}

// apiUsageCollector reports dashboard API usage by response code.
type apiUsageCollector struct {
	Base
	requestsByCode *metrics.Gauge
}

func (c *apiUsageCollector) initMetrics(r *metrics.Registry) {
	c.requestsByCode = r.NewGauge("meraki_org_api_requests_total", "Dashboard API requests made by all clients of the org in the last hour, by response code.", "org_id", "org_name", "status_code")
}

func (c *apiUsageCollector) collect(ctx context.Context, org meraki.Organization) error {
	c.TrackAPICall("getOrganizationApiRequestsOverview")
	overview, err := c.deps.API.APIRequestsOverview(ctx, org.ID, time.Hour)
	if err != nil {
		return err
	}
	for code, n := range overview.ResponseCodeCounts {
		c.requestsByCode.Set(c.tier, n, org.ID, org.Name, code)
	}
	return nil
}

// licenseModel is which licensing scheme the org turned out to use.
type licenseModel int

const (
	licenseModelUnknown licenseModel = iota
	licenseModelPerDevice
	licenseModelCoterm
)

// licenseCollector emits the same metric shape for both upstream
// licensing models. The model is detected from the shape of the first
// successful response and remembered; when neither shape is ever seen,
// no license metrics are emitted.
type licenseCollector struct {
	Base

	mtx   sync.Mutex
	model map[string]licenseModel

	total    *metrics.Gauge
	expiring *metrics.Gauge
}

func (c *licenseCollector) initMetrics(r *metrics.Registry) {
	c.model = map[string]licenseModel{}
	c.total = r.NewGauge("meraki_org_licenses_total", "Licenses by status and type.", "org_id", "org_name", "status", "license_type")
	c.expiring = r.NewGauge("meraki_org_licenses_expiring", "Licenses expiring within the warning window.", "org_id", "org_name", "license_type")
}

func (c *licenseCollector) detectedModel(orgID string) licenseModel {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.model[orgID]
}

func (c *licenseCollector) rememberModel(orgID string, m licenseModel) {
	c.mtx.Lock()
	c.model[orgID] = m
	c.mtx.Unlock()
}

func (c *licenseCollector) collect(ctx context.Context, org meraki.Organization) error {
	model := c.detectedModel(org.ID)
	if model != licenseModelCoterm {
		c.TrackAPICall("getOrganizationLicenses")
		licenses, err := c.deps.API.Licenses(ctx, org.ID)
		switch {
		case err == nil:
			c.rememberModel(org.ID, licenseModelPerDevice)
			c.recordPerDevice(org, licenses)
			return nil
		case meraki.IsNotAvailable(err) || meraki.CategoryOf(err) == meraki.CategoryClientError:
			// Per-device listing is not offered on co-term orgs; fall through.
		default:
			return err
		}
	}

	c.TrackAPICall("getOrganizationLicensesOverview")
	overview, err := c.deps.API.LicensesOverview(ctx, org.ID)
	if err != nil {
		return err
	}
	if overview.Status == "" && overview.ExpirationDate == "" {
		// Neither licensing shape was seen; emit nothing rather than guess.
		return nil
	}
	c.rememberModel(org.ID, licenseModelCoterm)
	c.recordCoterm(org, overview)
	return nil
}

func (c *licenseCollector) recordPerDevice(org meraki.Organization, licenses []meraki.License) {
	warn := time.Duration(c.deps.Settings.LicenseExpirationWarningDays) * 24 * time.Hour
	type key struct{ status, licenseType string }
	counts := map[key]int{}
	expiring := map[string]int{}
	for _, l := range licenses {
		counts[key{l.State, l.LicenseType}]++
		if exp, ok := parseLicenseExpiration(l.ExpirationDate); ok {
			if until := time.Until(exp); until > 0 && until <= warn {
				expiring[l.LicenseType]++
			}
		}
	}
	for k, n := range counts {
		c.total.Set(c.tier, float64(n), org.ID, org.Name, k.status, k.licenseType)
	}
	for lt, n := range expiring {
		c.expiring.Set(c.tier, float64(n), org.ID, org.Name, lt)
	}
}

func (c *licenseCollector) recordCoterm(org meraki.Organization, overview *meraki.LicensesOverview) {
	warn := time.Duration(c.deps.Settings.LicenseExpirationWarningDays) * 24 * time.Hour
	expiringSoon := false
	if exp, ok := parseLicenseExpiration(overview.ExpirationDate); ok {
		if until := time.Until(exp); until > 0 && until <= warn {
			expiringSoon = true
		}
	}
	for deviceType, n := range overview.LicensedDeviceCounts {
		c.total.Set(c.tier, float64(n), org.ID, org.Name, overview.Status, deviceType)
		if expiringSoon {
			c.expiring.Set(c.tier, float64(n), org.ID, org.Name, deviceType)
		}
	}
}

// parseLicenseExpiration accepts both upstream date formats: RFC 3339 on
// per-device licenses and "Mar 2, 2026 UTC" on co-termination summaries.
func parseLicenseExpiration(s string) (time.Time, bool) {
	if s == "" || s == "N/A" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, true
	}
	if ts, err := time.Parse("Jan 2, 2006 MST", s); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// clientOverviewCollector emits org-wide client counts and usage.
type clientOverviewCollector struct {
	Base
	clientsTotal *metrics.Gauge
	usage        *metrics.Gauge
}

func (c *clientOverviewCollector) initMetrics(r *metrics.Registry) {
	c.clientsTotal = r.NewGauge("meraki_org_clients_total", "Clients seen in the org during the last day.", "org_id", "org_name")
	c.usage = r.NewGauge("meraki_org_usage_kb", "Client data usage in KB over the last day, by direction.", "org_id", "org_name", "direction")
}

func (c *clientOverviewCollector) collect(ctx context.Context, org meraki.Organization) error {
	c.TrackAPICall("getOrganizationClientsOverview")
	overview, err := c.deps.API.ClientOverview(ctx, org.ID, 24*time.Hour)
	if err != nil {
		return err
	}
	c.clientsTotal.Set(c.tier, overview.Counts.Total, org.ID, org.Name)
	c.usage.Set(c.tier, overview.Usage.Overall.Total, org.ID, org.Name, "total")
	c.usage.Set(c.tier, overview.Usage.Overall.Downstream, org.ID, org.Name, "downstream")
	c.usage.Set(c.tier, overview.Usage.Overall.Upstream, org.ID, org.Name, "upstream")
	return nil
}

// applicationUsageCollector groups the top-applications summary by
// category.
type applicationUsageCollector struct {
	Base
	usage *metrics.Gauge
}

func (c *applicationUsageCollector) initMetrics(r *metrics.Registry) {
	c.usage = r.NewGauge("meraki_org_application_usage_mb", "Application usage in MB over the last day, by category and direction.", "org_id", "org_name", "category", "direction")
}

func (c *applicationUsageCollector) collect(ctx context.Context, org meraki.Organization) error {
	c.TrackAPICall("getOrganizationSummaryTopApplicationsByUsage")
	apps, err := c.deps.API.TopApplicationsByUsage(ctx, org.ID, 24*time.Hour)
	if err != nil {
		return err
	}
	type totals struct{ total, down, up float64 }
	byCategory := map[string]*totals{}
	for _, app := range apps {
		cat := app.Category
		if cat == "" {
			cat = app.Application
		}
		t, ok := byCategory[cat]
		if !ok {
			t = &totals{}
			byCategory[cat] = t
		}
		t.total += app.Total
		t.down += app.Downstream
		t.up += app.Upstream
	}
	for cat, t := range byCategory {
		c.usage.Set(c.tier, t.total, org.ID, org.Name, cat, "total")
		c.usage.Set(c.tier, t.down, org.ID, org.Name, cat, "downstream")
		c.usage.Set(c.tier, t.up, org.ID, org.Name, cat, "upstream")
	}
	return nil
}
