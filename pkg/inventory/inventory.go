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

// Package inventory caches organization, network and device listings with
// TTL and single-flight semantics. Many collectors need the same listings
// within one tier window; without the cache the API cost would multiply by
// the number of collectors.
package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/singleflight"

	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
)

// Lister is the subset of the API client the cache depends on.
type Lister interface {
	Organizations(ctx context.Context) ([]meraki.Organization, error)
	Networks(ctx context.Context, orgID string) ([]meraki.Network, error)
	Devices(ctx context.Context, orgID string) ([]meraki.Device, error)
}

type entry struct {
	value   any
	fetched time.Time
}

// Cache serves at most one in-flight upstream fetch per key at any instant.
// Expired entries are never served; readers block on the in-flight fetch.
// Errors are not cached, so the next reader retries.
type Cache struct {
	logger log.Logger
	lister Lister
	ttl    time.Duration
	now    func() time.Time

	// AllowedOrgs restricts GetOrganizations to an operator allow-list;
	// empty means every accessible organization.
	allowedOrgs map[string]bool

	mtx     sync.Mutex
	entries map[string]entry
	group   singleflight.Group
}

// New returns a cache whose entries live for ttl.
func New(logger log.Logger, lister Lister, ttl time.Duration, allowedOrgs []string) *Cache {
	allowed := make(map[string]bool, len(allowedOrgs))
	for _, id := range allowedOrgs {
		allowed[id] = true
	}
	return &Cache{
		logger:      logger,
		lister:      lister,
		ttl:         ttl,
		now:         time.Now,
		allowedOrgs: allowed,
		entries:     map[string]entry{},
	}
}

func (c *Cache) get(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	c.mtx.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.fetched) < c.ttl {
		c.mtx.Unlock()
		return e.value, nil
	}
	c.mtx.Unlock()

	v, err, shared := c.group.Do(key, func() (any, error) {
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mtx.Lock()
		c.entries[key] = entry{value: value, fetched: c.now()}
		c.mtx.Unlock()
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		level.Debug(c.logger).Log("msg", "inventory fetch shared across readers", "key", key)
	}
	return v, nil
}

// GetOrganizations returns the cached organization list, filtered by the
// allow-list when one is configured.
func (c *Cache) GetOrganizations(ctx context.Context) ([]meraki.Organization, error) {
	v, err := c.get(ctx, "orgs", func(ctx context.Context) (any, error) {
		orgs, err := c.lister.Organizations(ctx)
		if err != nil {
			return nil, err
		}
		if len(c.allowedOrgs) == 0 {
			return orgs, nil
		}
		filtered := make([]meraki.Organization, 0, len(orgs))
		for _, o := range orgs {
			if c.allowedOrgs[o.ID] {
				filtered = append(filtered, o)
			}
		}
		return filtered, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]meraki.Organization), nil
}

// GetNetworks returns the cached network list of one organization.
func (c *Cache) GetNetworks(ctx context.Context, orgID string) ([]meraki.Network, error) {
	v, err := c.get(ctx, "networks/"+orgID, func(ctx context.Context) (any, error) {
		return c.lister.Networks(ctx, orgID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]meraki.Network), nil
}

// GetDevices returns the cached device list of one organization. When
// networkID is non-empty the result is filtered client-side.
func (c *Cache) GetDevices(ctx context.Context, orgID, networkID string) ([]meraki.Device, error) {
	v, err := c.get(ctx, "devices/"+orgID, func(ctx context.Context) (any, error) {
		return c.lister.Devices(ctx, orgID)
	})
	if err != nil {
		return nil, err
	}
	devices := v.([]meraki.Device)
	if networkID == "" {
		return devices, nil
	}
	filtered := make([]meraki.Device, 0, len(devices))
	for _, d := range devices {
		if d.NetworkID == networkID {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}
