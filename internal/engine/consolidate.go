// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package engine composes the pure consolidation passes: duplicate
// merging, trip grouping, and alert generation. Everything here is a
// deterministic transform over in-memory values; collaborators (mailbox,
// extraction, persistence) live elsewhere.
package engine

import (
	"time"

	"github.com/blueharbor/tripsync/internal/engine/alerts"
	"github.com/blueharbor/tripsync/internal/engine/grouping"
	"github.com/blueharbor/tripsync/internal/engine/merge"
	"github.com/blueharbor/tripsync/internal/models"
)

// Logf receives human-readable run log lines.
type Logf func(format string, args ...any)

// Input is one consolidation pass's worth of state.
type Input struct {
	// Pool is the union of previously persisted segments and newly
	// normalised ones, persisted first: when duplicates fuse, the earlier
	// entry keeps its identity, so persisted IDs win over fresh ones.
	Pool []models.Segment

	// PriorTrips is the persisted active trip set, consulted for ID
	// stability, dismissed alerts and archive flags.
	PriorTrips []models.Trip

	// KnownTripIDs holds every trip ID ever issued, including archived
	// trips.
	KnownTripIDs map[string]bool

	Settings models.Settings

	// Now anchors check-in reminder computation.
	Now time.Time

	// NewSuffix overrides slug suffix generation in tests.
	NewSuffix func() string
}

// Consolidate runs merge, grouping and alert generation over the pool and
// returns the finalised trip set. Running it twice over identical input
// yields identical trip, segment and alert IDs.
func Consolidate(in Input, logf Logf) []models.Trip {
	merged := merge.Segments(in.Pool, merge.Logf(logf))

	trips := grouping.Group(merged, in.PriorTrips, grouping.Options{
		KnownTripIDs: in.KnownTripIDs,
		NewSuffix:    in.NewSuffix,
	}, grouping.Logf(logf))

	cfg := alerts.Config{
		LodgingGap:  time.Duration(in.Settings.LodgingGapHours) * time.Hour,
		CheckInLead: time.Duration(in.Settings.CheckInLeadTimeHours) * time.Hour,
	}
	for i := range trips {
		trips[i].Alerts = alerts.Generate(trips[i], cfg, in.Now)
	}

	return trips
}
