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

	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
	"github.com/merakiops/meraki-dashboard-exporter/pkg/metrics"
)

func init() {
	Register("sensor", metrics.TierFast, func(deps Deps) Collector {
		return &SensorCollector{Base: NewBase("sensor", metrics.TierFast, deps)}
	})
}

// SensorCollector reads the latest MT sensor measurements for every
// organization in a single call per org and dispatches each reading by
// its metric type. Temperatures are Celsius as reported upstream.
type SensorCollector struct {
	Base

	temperature     *metrics.Gauge
	humidity        *metrics.Gauge
	door            *metrics.Gauge
	water           *metrics.Gauge
	co2             *metrics.Gauge
	tvoc            *metrics.Gauge
	pm25            *metrics.Gauge
	noise           *metrics.Gauge
	battery         *metrics.Gauge
	airQuality      *metrics.Gauge
	voltage         *metrics.Gauge
	current         *metrics.Gauge
	realPower       *metrics.Gauge
	apparentPower   *metrics.Gauge
	powerFactor     *metrics.Gauge
	frequency       *metrics.Gauge
	downstreamPower *metrics.Gauge
	remoteLockout   *metrics.Gauge
}

var sensorLabels = []string{"serial", "network_id", "network_name"}

func (c *SensorCollector) InitMetrics() {
	r := c.deps.Metrics
	c.temperature = r.NewGauge("meraki_mt_temperature_celsius", "Sensor temperature in Celsius.", sensorLabels...)
	c.humidity = r.NewGauge("meraki_mt_humidity_percent", "Relative humidity.", sensorLabels...)
	c.door = r.NewGauge("meraki_mt_door_status", "Door sensor state (1 = open).", sensorLabels...)
	c.water = r.NewGauge("meraki_mt_water_detected", "Water sensor state (1 = water present).", sensorLabels...)
	c.co2 = r.NewGauge("meraki_mt_co2_ppm", "CO2 concentration in ppm.", sensorLabels...)
	c.tvoc = r.NewGauge("meraki_mt_tvoc_ppb", "Total volatile organic compounds in ppb.", sensorLabels...)
	c.pm25 = r.NewGauge("meraki_mt_pm25_ugm3", "PM2.5 concentration in micrograms per cubic meter.", sensorLabels...)
	c.noise = r.NewGauge("meraki_mt_noise_db", "Ambient noise level in dB.", sensorLabels...)
	c.battery = r.NewGauge("meraki_mt_battery_percent", "Battery charge of the sensor.", sensorLabels...)
	c.airQuality = r.NewGauge("meraki_mt_indoor_air_quality_score", "Indoor air quality score (0-100).", sensorLabels...)
	c.voltage = r.NewGauge("meraki_mt_voltage_volts", "Measured voltage.", sensorLabels...)
	c.current = r.NewGauge("meraki_mt_current_amps", "Measured current draw.", sensorLabels...)
	c.realPower = r.NewGauge("meraki_mt_real_power_watts", "Real power draw.", sensorLabels...)
	c.apparentPower = r.NewGauge("meraki_mt_apparent_power_voltamps", "Apparent power draw.", sensorLabels...)
	c.powerFactor = r.NewGauge("meraki_mt_power_factor_percent", "Power factor.", sensorLabels...)
	c.frequency = r.NewGauge("meraki_mt_frequency_hz", "AC frequency.", sensorLabels...)
	c.downstreamPower = r.NewGauge("meraki_mt_downstream_power_enabled", "Downstream power state (1 = enabled).", sensorLabels...)
	c.remoteLockout = r.NewGauge("meraki_mt_remote_lockout_enabled", "Remote lockout switch state (1 = locked).", sensorLabels...)
}

func (c *SensorCollector) Collect(ctx context.Context) error {
	orgs, err := c.deps.Inventory.GetOrganizations(ctx)
	if err != nil {
		return err
	}
	for _, org := range orgs {
		c.RunSubStep(ctx, "sensor_readings/"+org.ID, func(ctx context.Context) error {
			c.TrackAPICall("getOrganizationSensorReadingsLatest")
			sensors, err := c.deps.API.SensorReadingsLatest(ctx, org.ID)
			if err != nil {
				return err
			}
			for _, sensor := range sensors {
				c.recordSensor(sensor)
			}
			return nil
		})
	}
	return nil
}

func (c *SensorCollector) recordSensor(sensor meraki.SensorReadings) {
	lvs := []string{sensor.Serial, sensor.Network.ID, sensor.Network.Name}

	// When both temperature and rawTemperature are reported for the same
	// sample window, only the compensated temperature is kept.
	hasTemperature := false
	for _, reading := range sensor.Readings {
		if reading.Metric == "temperature" && reading.Temperature != nil {
			hasTemperature = true
			break
		}
	}

	for _, reading := range sensor.Readings {
		switch {
		case reading.Temperature != nil:
			c.temperature.Set(c.tier, reading.Temperature.Celsius, lvs...)
		case reading.RawTemperature != nil:
			if !hasTemperature {
				c.temperature.Set(c.tier, reading.RawTemperature.Celsius, lvs...)
			}
		case reading.Humidity != nil:
			c.humidity.Set(c.tier, reading.Humidity.RelativePercentage, lvs...)
		case reading.Door != nil:
			c.door.Set(c.tier, boolToFloat(reading.Door.Open), lvs...)
		case reading.Water != nil:
			c.water.Set(c.tier, boolToFloat(reading.Water.Present), lvs...)
		case reading.CO2 != nil:
			c.co2.Set(c.tier, reading.CO2.Concentration, lvs...)
		case reading.TVOC != nil:
			c.tvoc.Set(c.tier, reading.TVOC.Concentration, lvs...)
		case reading.PM25 != nil:
			c.pm25.Set(c.tier, reading.PM25.Concentration, lvs...)
		case reading.Noise != nil:
			c.noise.Set(c.tier, reading.Noise.Ambient.Level, lvs...)
		case reading.Battery != nil:
			c.battery.Set(c.tier, reading.Battery.Percentage, lvs...)
		case reading.IndoorAirQuality != nil:
			c.airQuality.Set(c.tier, reading.IndoorAirQuality.Score, lvs...)
		case reading.Voltage != nil:
			c.voltage.Set(c.tier, reading.Voltage.Level, lvs...)
		case reading.Current != nil:
			c.current.Set(c.tier, reading.Current.Draw, lvs...)
		case reading.RealPower != nil:
			c.realPower.Set(c.tier, reading.RealPower.Draw, lvs...)
		case reading.ApparentPower != nil:
			c.apparentPower.Set(c.tier, reading.ApparentPower.Draw, lvs...)
		case reading.PowerFactor != nil:
			c.powerFactor.Set(c.tier, reading.PowerFactor.Percentage, lvs...)
		case reading.Frequency != nil:
			c.frequency.Set(c.tier, reading.Frequency.Level, lvs...)
		case reading.DownstreamPower != nil:
			c.downstreamPower.Set(c.tier, boolToFloat(reading.DownstreamPower.Enabled), lvs...)
		case reading.RemoteLockoutSwitch != nil:
			c.remoteLockout.Set(c.tier, boolToFloat(reading.RemoteLockoutSwitch.Locked), lvs...)
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
