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
	Register("config", metrics.TierSlow, func(deps Deps) Collector {
		return NewConfigCollector(deps)
	})
}

// ConfigCollector watches slow-moving organization settings: the login
// security policy and the volume of recent configuration changes.
type ConfigCollector struct {
	Base

	loginPolicy   *metrics.Gauge
	configChanges *metrics.Gauge
}

// NewConfigCollector builds the collector.
func NewConfigCollector(deps Deps) *ConfigCollector {
	return &ConfigCollector{Base: NewBase("config", metrics.TierSlow, deps)}
}

func (c *ConfigCollector) InitMetrics() {
	r := c.deps.Metrics
	c.loginPolicy = r.NewGauge("meraki_org_login_security", "Login security policy settings. Toggles are 0/1, numeric settings carry their configured value.", "org_id", "org_name", "setting")
	c.configChanges = r.NewGauge("meraki_org_configuration_changes_total", "Configuration changes recorded in the audit log over the last day.", "org_id", "org_name")
}

func (c *ConfigCollector) Collect(ctx context.Context) error {
	orgs, err := c.deps.Inventory.GetOrganizations(ctx)
	if err != nil {
		return err
	}
	for _, org := range orgs {
		c.RunSubStep(ctx, "login_security/"+org.ID, func(ctx context.Context) error {
			return c.collectLoginSecurity(ctx, org)
		})
		c.RunSubStep(ctx, "configuration_changes/"+org.ID, func(ctx context.Context) error {
			return c.collectConfigChanges(ctx, org)
		})
	}
	return ctx.Err()
}

func (c *ConfigCollector) collectLoginSecurity(ctx context.Context, org meraki.Organization) error {
	c.TrackAPICall("getOrganizationLoginSecurity")
	policy, err := c.deps.API.LoginSecurity(ctx, org.ID)
	if err != nil {
		return err
	}
	settings := map[string]float64{
		"enforce_password_expiration": boolToFloat(policy.EnforcePasswordExpiration),
		"password_expiration_days":    policy.PasswordExpirationDays,
		"enforce_strong_passwords":    boolToFloat(policy.EnforceStrongPasswords),
		"minimum_password_length":     policy.MinimumPasswordLength,
		"enforce_different_passwords": boolToFloat(policy.EnforceDifferentPasswords),
		"num_different_passwords":     policy.NumDifferentPasswords,
		"enforce_account_lockout":     boolToFloat(policy.EnforceAccountLockout),
		"account_lockout_attempts":    policy.AccountLockoutAttempts,
		"enforce_idle_timeout":        boolToFloat(policy.EnforceIdleTimeout),
		"idle_timeout_minutes":        policy.IdleTimeoutMinutes,
		"enforce_two_factor_auth":     boolToFloat(policy.EnforceTwoFactorAuth),
		"enforce_login_ip_ranges":     boolToFloat(policy.EnforceLoginIPRanges),
		"api_key_ip_restrictions":     boolToFloat(policy.APIAuthentication.IPRestrictionsForKeys.Enabled),
	}
	for setting, value := range settings {
		c.loginPolicy.Set(c.tier, value, org.ID, org.Name, setting)
	}
	return nil
}

func (c *ConfigCollector) collectConfigChanges(ctx context.Context, org meraki.Organization) error {
	c.TrackAPICall("getOrganizationConfigurationChanges")
	changes, err := c.deps.API.ConfigurationChanges(ctx, org.ID, 24*time.Hour)
	if err != nil {
		return err
	}
	c.configChanges.Set(c.tier, float64(len(changes)), org.ID, org.Name)
	return nil
}
