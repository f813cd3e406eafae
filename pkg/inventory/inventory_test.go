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

package inventory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/google/go-cmp/cmp"

	"github.com/merakiops/meraki-dashboard-exporter/pkg/meraki"
)

type fakeLister struct {
	orgCalls     atomic.Int32
	networkCalls atomic.Int32
	deviceCalls  atomic.Int32

	orgErr error
	block  chan struct{}
}

func (f *fakeLister) Organizations(_ context.Context) ([]meraki.Organization, error) {
	f.orgCalls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.orgErr != nil {
		return nil, f.orgErr
	}
	return []meraki.Organization{{ID: "O1", Name: "Acme"}, {ID: "O2", Name: "Globex"}}, nil
}

func (f *fakeLister) Networks(_ context.Context, orgID string) ([]meraki.Network, error) {
	f.networkCalls.Add(1)
	return []meraki.Network{{ID: "N1", OrganizationID: orgID, ProductTypes: []string{"wireless"}}}, nil
}

func (f *fakeLister) Devices(_ context.Context, orgID string) ([]meraki.Device, error) {
	f.deviceCalls.Add(1)
	return []meraki.Device{
		{Serial: "Q2AA-0001", NetworkID: "N1", OrganizationID: orgID},
		{Serial: "Q2AA-0002", NetworkID: "N2", OrganizationID: orgID},
	}, nil
}

func TestSingleFlight(t *testing.T) {
	lister := &fakeLister{block: make(chan struct{})}
	c := New(log.NewNopLogger(), lister, time.Minute, nil)

	var wg sync.WaitGroup
	results := make([][]meraki.Organization, 3)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			orgs, err := c.GetOrganizations(context.Background())
			if err != nil {
				t.Errorf("GetOrganizations: %v", err)
			}
			results[i] = orgs
		}()
	}
	// Let all three readers pile up on the one in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(lister.block)
	wg.Wait()

	if got := lister.orgCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one upstream fetch, got %d", got)
	}
	for i := 1; i < len(results); i++ {
		if diff := cmp.Diff(results[0], results[i]); diff != "" {
			t.Fatalf("reader %d observed a different list:\n%s", i, diff)
		}
	}
}

func TestTTLExpiryRefetches(t *testing.T) {
	lister := &fakeLister{}
	c := New(log.NewNopLogger(), lister, time.Minute, nil)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	for range 3 {
		if _, err := c.GetOrganizations(context.Background()); err != nil {
			t.Fatalf("GetOrganizations: %v", err)
		}
	}
	if got := lister.orgCalls.Load(); got != 1 {
		t.Fatalf("expected one fetch within TTL, got %d", got)
	}

	now = now.Add(2 * time.Minute)
	if _, err := c.GetOrganizations(context.Background()); err != nil {
		t.Fatalf("GetOrganizations: %v", err)
	}
	if got := lister.orgCalls.Load(); got != 2 {
		t.Fatalf("expected refetch after TTL, got %d fetches", got)
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	lister := &fakeLister{orgErr: errors.New("boom")}
	c := New(log.NewNopLogger(), lister, time.Minute, nil)

	if _, err := c.GetOrganizations(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	lister.orgErr = nil
	orgs, err := c.GetOrganizations(context.Background())
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(orgs) != 2 {
		t.Fatalf("unexpected orgs %+v", orgs)
	}
	if got := lister.orgCalls.Load(); got != 2 {
		t.Fatalf("expected 2 fetches, got %d", got)
	}
}

func TestOrgAllowList(t *testing.T) {
	lister := &fakeLister{}
	c := New(log.NewNopLogger(), lister, time.Minute, []string{"O2"})

	orgs, err := c.GetOrganizations(context.Background())
	if err != nil {
		t.Fatalf("GetOrganizations: %v", err)
	}
	if len(orgs) != 1 || orgs[0].ID != "O2" {
		t.Fatalf("allow-list not applied, got %+v", orgs)
	}
}

func TestDeviceNetworkFilter(t *testing.T) {
	lister := &fakeLister{}
	c := New(log.NewNopLogger(), lister, time.Minute, nil)

	devices, err := c.GetDevices(context.Background(), "O1", "N2")
	if err != nil {
		t.Fatalf("GetDevices: %v", err)
	}
	if len(devices) != 1 || devices[0].Serial != "Q2AA-0002" {
		t.Fatalf("network filter not applied, got %+v", devices)
	}
	// The filtered read must not trigger a second upstream fetch.
	if _, err := c.GetDevices(context.Background(), "O1", ""); err != nil {
		t.Fatalf("GetDevices: %v", err)
	}
	if got := lister.deviceCalls.Load(); got != 1 {
		t.Fatalf("expected one device fetch, got %d", got)
	}
}
