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

package metrics

import "time"

// Tier is a collection cadence. Every collector belongs to exactly one
// tier and every tracked series remembers the tier of its last writer.
type Tier int

const (
	TierFast Tier = iota
	TierMedium
	TierSlow
)

func (t Tier) String() string {
	switch t {
	case TierFast:
		return "fast"
	case TierMedium:
		return "medium"
	case TierSlow:
		return "slow"
	}
	return "unknown"
}

// Tiers lists all cadences in scheduling order.
var Tiers = []Tier{TierFast, TierMedium, TierSlow}

// Intervals holds the configured interval per tier.
type Intervals struct {
	Fast   time.Duration
	Medium time.Duration
	Slow   time.Duration
}

// For returns the interval of the given tier.
func (i Intervals) For(t Tier) time.Duration {
	switch t {
	case TierFast:
		return i.Fast
	case TierMedium:
		return i.Medium
	case TierSlow:
		return i.Slow
	}
	return i.Medium
}
