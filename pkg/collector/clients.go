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
	"net"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
	"github.com/merakiops/meraki-dashboard-exporter/pkg/metrics"
)

func init() {
	Register("clients", metrics.TierMedium, func(deps Deps) Collector {
		return NewClientsCollector(deps)
	})
}

// ClientsCollector lists the clients of every network and attributes
// usage per client. It is disabled by default: client listings are by
// far the largest responses the dashboard serves and the resulting
// cardinality scales with the client population, not the fleet.
type ClientsCollector struct {
	Base

	dns *dnsCache

	clientStatus *metrics.Gauge
	clientUsage  *metrics.Gauge
	clientRSSI   *metrics.Gauge
	clientSNR    *metrics.Gauge
	clientsTotal *metrics.Gauge
	bySSID       *metrics.Gauge
	byVLAN       *metrics.Gauge
}

// NewClientsCollector builds the collector and its DNS cache.
func NewClientsCollector(deps Deps) *ClientsCollector {
	return &ClientsCollector{
		Base: NewBase("clients", metrics.TierMedium, deps),
		dns:  newDNSCache(deps),
	}
}

func (c *ClientsCollector) InitMetrics() {
	r := c.deps.Metrics
	c.clientStatus = r.NewGauge("meraki_client_online", "Whether the client is currently online (1) or recently seen (0).", "network_id", "client_id", "mac", "hostname", "ssid", "vlan")
	c.clientUsage = r.NewGauge("meraki_client_usage_kb", "Client data usage in KB over the last hour, by direction.", "network_id", "client_id", "hostname", "direction")
	c.clientRSSI = r.NewGauge("meraki_client_rssi_dbm", "Most recent received signal strength of the wireless client in dBm.", "network_id", "client_id", "hostname")
	c.clientSNR = r.NewGauge("meraki_client_snr_db", "Most recent signal-to-noise ratio of the wireless client in dB.", "network_id", "client_id", "hostname")
	c.clientsTotal = r.NewGauge("meraki_network_clients_total", "Clients seen in the network during the last hour, by status.", "network_id", "network_name", "status")
	c.bySSID = r.NewGauge("meraki_network_clients_by_ssid", "Clients seen in the network during the last hour, by SSID.", "network_id", "network_name", "ssid")
	c.byVLAN = r.NewGauge("meraki_network_clients_by_vlan", "Clients seen in the network during the last hour, by VLAN.", "network_id", "network_name", "vlan")
}

func (c *ClientsCollector) Collect(ctx context.Context) error {
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
		s := c.deps.Settings
		err = forEachBatch(ctx, networks, s.BatchSize, s.BatchDelay, s.ConcurrencyLimit, func(ctx context.Context, n meraki.Network) error {
			c.RunSubStep(ctx, "network_clients/"+n.ID, func(ctx context.Context) error {
				return c.collectNetwork(ctx, n)
			})
			return ctx.Err()
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *ClientsCollector) collectNetwork(ctx context.Context, n meraki.Network) error {
	c.TrackAPICall("getNetworkClients")
	clients, err := c.deps.API.NetworkClients(ctx, n.ID, time.Hour, c.deps.Settings.MaxClientsPerNetwork)
	if err != nil {
		return err
	}

	byStatus := map[string]int{}
	bySSID := map[string]int{}
	byVLAN := map[string]int{}
	hostnames := make(map[string]string, len(clients))
	for _, client := range clients {
		byStatus[strings.ToLower(client.Status)]++
		if client.SSID != "" {
			bySSID[client.SSID]++
		}
		if client.VLAN != "" {
			byVLAN[client.VLAN]++
		}

		hostname := client.Description
		if hostname == "" {
			hostname = c.dns.lookup(ctx, client.IP)
		}
		if hostname == "" {
			hostname = client.MAC
		}
		hostnames[client.ID] = hostname

		online := 0.0
		if strings.EqualFold(client.Status, "Online") {
			online = 1
		}
		c.clientStatus.Set(c.tier, online, n.ID, client.ID, client.MAC, hostname, client.SSID, client.VLAN)
		c.clientUsage.Set(c.tier, client.Usage.Sent, n.ID, client.ID, hostname, "sent")
		c.clientUsage.Set(c.tier, client.Usage.Recv, n.ID, client.ID, hostname, "recv")
	}
	for status, count := range byStatus {
		c.clientsTotal.Set(c.tier, float64(count), n.ID, n.Name, status)
	}
	for ssid, count := range bySSID {
		c.bySSID.Set(c.tier, float64(count), n.ID, n.Name, ssid)
	}
	for vlan, count := range byVLAN {
		c.byVLAN.Set(c.tier, float64(count), n.ID, n.Name, vlan)
	}
	return c.collectSignalQuality(ctx, n, clients, hostnames)
}

// collectSignalQuality attributes RSSI/SNR to each wireless client. The
// history endpoint answers one client per request, so one unavailable
// response skips the network instead of probing every client.
func (c *ClientsCollector) collectSignalQuality(ctx context.Context, n meraki.Network, clients []meraki.NetworkClient, hostnames map[string]string) error {
	for _, client := range clients {
		if client.SSID == "" {
			continue
		}
		c.TrackAPICall("getNetworkWirelessSignalQualityHistory")
		samples, err := c.deps.API.WirelessSignalQuality(ctx, n.ID, client.ID, time.Hour)
		if err != nil {
			if meraki.IsNotAvailable(err) {
				return nil
			}
			return err
		}
		rssi, snr, ok := latestSignal(samples)
		if !ok {
			continue
		}
		c.clientRSSI.Set(c.tier, rssi, n.ID, client.ID, hostnames[client.ID])
		c.clientSNR.Set(c.tier, snr, n.ID, client.ID, hostnames[client.ID])
	}
	return nil
}

// latestSignal picks the newest sample that actually carries values;
// intervals without traffic report null RSSI and SNR.
func latestSignal(samples []meraki.SignalQualitySample) (rssi, snr float64, ok bool) {
	for i := len(samples) - 1; i >= 0; i-- {
		s := samples[i]
		if s.RSSI == nil || s.SNR == nil {
			continue
		}
		return *s.RSSI, *s.SNR, true
	}
	return 0, 0, false
}

// dnsCache memoizes reverse lookups so a stable client population costs
// one query per address per TTL window, not per scrape.
type dnsCache struct {
	resolver *net.Resolver
	timeout  time.Duration
	ttl      time.Duration
	now      func() time.Time

	mtx     sync.Mutex
	entries map[string]dnsEntry

	hits    prometheus.Counter
	misses  prometheus.Counter
	expired prometheus.Counter
}

type dnsEntry struct {
	hostname string
	fetched  time.Time
}

func newDNSCache(deps Deps) *dnsCache {
	d := &dnsCache{
		resolver: &net.Resolver{},
		timeout:  deps.Settings.DNSTimeout,
		ttl:      deps.Settings.DNSCacheTTL,
		now:      time.Now,
		entries:  map[string]dnsEntry{},
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meraki_exporter_dns_cache_hits_total",
			Help: "Reverse DNS lookups answered from the cache.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meraki_exporter_dns_cache_misses_total",
			Help: "Reverse DNS lookups that went to the resolver.",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meraki_exporter_dns_cache_expired_total",
			Help: "Cache entries refreshed because their TTL elapsed.",
		}),
	}
	if d.timeout <= 0 {
		d.timeout = 2 * time.Second
	}
	if d.ttl <= 0 {
		d.ttl = 30 * time.Minute
	}
	if server := deps.Settings.DNSServer; server != "" {
		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}
		dialer := &net.Dialer{}
		d.resolver = &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, server)
			},
		}
	}
	deps.Metrics.Registerer().MustRegister(d.hits, d.misses, d.expired)
	return d
}

func (d *dnsCache) lookup(ctx context.Context, ip string) string {
	if ip == "" {
		return ""
	}
	now := d.now()

	d.mtx.Lock()
	entry, ok := d.entries[ip]
	d.mtx.Unlock()
	if ok {
		if now.Sub(entry.fetched) <= d.ttl {
			d.hits.Inc()
			return entry.hostname
		}
		d.expired.Inc()
	}
	d.misses.Inc()

	lookupCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	hostname := ""
	if names, err := d.resolver.LookupAddr(lookupCtx, ip); err == nil && len(names) > 0 {
		hostname = strings.TrimSuffix(names[0], ".")
	}
	// Negative results are cached too; a missing PTR record should not
	// be retried every scrape.
	d.mtx.Lock()
	d.entries[ip] = dnsEntry{hostname: hostname, fetched: now}
	d.mtx.Unlock()
	return hostname
}
