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

// Package grouping clusters merged segments into trips by chronological
// and geographic proximity, and assigns trip IDs under stability rules so
// that user-facing state keyed on a trip ID (dismissed alerts, archive
// flags) survives re-syncs. Segment IDs are never regenerated here; only
// the tripId back-references change.
package grouping

import (
	"sort"
	"time"

	"github.com/blueharbor/tripsync/internal/models"
)

// DefaultLogicalGap is the time discontinuity between one segment's end
// and the next segment's start that splits two trips. It is deliberately
// much larger than any lodging-gap alert threshold: an alert flags a hole
// inside a trip, this splits separate journeys.
const DefaultLogicalGap = 14 * 24 * time.Hour

// Logf receives human-readable run log lines.
type Logf func(format string, args ...any)

// Options tunes a grouping pass.
type Options struct {
	// LogicalGap overrides DefaultLogicalGap when non-zero.
	LogicalGap time.Duration

	// KnownTripIDs holds every trip ID ever issued for this user,
	// including archived trips, so synthesized IDs never collide with a
	// retired one.
	KnownTripIDs map[string]bool

	// NewSuffix overrides the random slug suffix source. Tests use this
	// for determinism.
	NewSuffix func() string
}

// cluster is a working trip under construction.
type cluster struct {
	active   []models.Segment
	archived []models.Segment
	tokens   map[string]bool
	start    time.Time
	end      time.Time
	id       string
}

// Group partitions the segments into trips. Every input segment lands in
// exactly one output trip: active segments are clustered by proximity,
// archived segments follow their prior trip, and orphaned archived
// segments get a trip of their own rather than being dropped.
func Group(segments []models.Segment, prior []models.Trip, opts Options, logf Logf) []models.Trip {
	gap := opts.LogicalGap
	if gap == 0 {
		gap = DefaultLogicalGap
	}
	suffix := opts.NewSuffix
	if suffix == nil {
		suffix = randomSuffix
	}

	priorByID := make(map[string]models.Trip, len(prior))
	for _, t := range prior {
		priorByID[t.ID] = t
	}

	var active, archived []models.Segment
	for _, s := range segments {
		if s.Archived {
			archived = append(archived, s)
		} else {
			active = append(active, s)
		}
	}
	sortSegments(active)

	// --- Cluster active segments chronologically ---
	var clusters []*cluster
	for _, s := range active {
		toks := segmentTokens(s)
		cur := lastCluster(clusters)
		if cur == nil || s.StartTime.Sub(cur.end) > gap || !related(cur.tokens, toks) {
			cur = &cluster{tokens: make(map[string]bool), start: s.StartTime, end: s.EndTime}
			clusters = append(clusters, cur)
		}
		cur.active = append(cur.active, s)
		if s.EndTime.After(cur.end) {
			cur.end = s.EndTime
		}
		for t := range toks {
			cur.tokens[t] = true
		}
	}

	// --- Assign stable trip IDs ---
	known := make(map[string]bool, len(opts.KnownTripIDs))
	for id := range opts.KnownTripIDs {
		known[id] = true
	}
	redirect := assignIDs(clusters, priorByID, logf)
	for _, c := range clusters {
		if c.id == "" {
			c.id = uniqueSlug(tripName(primaryDestination(c.active)), known, suffix)
			if logf != nil {
				logf("Created new trip %s", c.id)
			}
		}
		known[c.id] = true
	}

	// --- Attach archived segments ---
	// An archived segment follows the cluster that absorbed its prior
	// trip's active segments; if no cluster did, its prior trip survives
	// as an archived-only trip so nothing is ever dropped.
	orphans := make(map[string][]models.Segment)
	var orphanIDs []string
	var loners []models.Segment
	for _, s := range archived {
		if s.TripID != "" {
			if c, ok := redirect[s.TripID]; ok {
				c.archived = append(c.archived, s)
				continue
			}
			if _, ok := orphans[s.TripID]; !ok {
				orphanIDs = append(orphanIDs, s.TripID)
			}
			orphans[s.TripID] = append(orphans[s.TripID], s)
			continue
		}
		loners = append(loners, s)
	}
	sort.Strings(orphanIDs)

	// --- Build trips ---
	trips := make([]models.Trip, 0, len(clusters)+len(orphanIDs)+len(loners))
	for _, c := range clusters {
		trips = append(trips, buildTrip(c.id, c.active, c.archived, priorByID))
	}
	for _, id := range orphanIDs {
		trips = append(trips, buildTrip(id, nil, orphans[id], priorByID))
	}
	for _, s := range loners {
		id := uniqueSlug(tripName(locationCity(s.Location)), known, suffix)
		known[id] = true
		trips = append(trips, buildTrip(id, nil, []models.Segment{s}, priorByID))
	}

	sort.SliceStable(trips, func(i, j int) bool {
		if !trips[i].StartDate.Equal(trips[j].StartDate) {
			return trips[i].StartDate.Before(trips[j].StartDate)
		}
		return trips[i].ID < trips[j].ID
	})
	return trips
}

// assignIDs reuses prior trip IDs per the stability rules: a cluster whose
// segments predominantly carry one prior tripId keeps that ID; when several
// clusters carry pieces of the same prior trip, the cluster with the most
// such segments keeps it (tie: earliest cluster). Within a cluster, vote
// ties break toward the prior trip with the earliest start date.
//
// The returned map points every contested prior trip ID at the cluster
// that won it, which is also where that trip's archived segments belong.
func assignIDs(clusters []*cluster, priorByID map[string]models.Trip, logf Logf) map[string]*cluster {
	// votes[i][id] = how many of cluster i's segments came from prior trip id.
	votes := make([]map[string]int, len(clusters))
	for i, c := range clusters {
		votes[i] = make(map[string]int)
		for _, s := range c.active {
			if s.TripID != "" {
				votes[i][s.TripID]++
			}
		}
	}

	// Resolve which cluster owns each prior ID.
	redirect := make(map[string]*cluster)
	owner := make(map[string]int)
	for id := range priorByID {
		best, bestVotes := -1, 0
		for i := range clusters {
			if v := votes[i][id]; v > bestVotes {
				best, bestVotes = i, v
			}
		}
		if best >= 0 {
			owner[id] = best
			redirect[id] = clusters[best]
		}
	}
	// Prior IDs seen on segments but absent from the persisted trip list
	// (e.g. the trip document was deleted) still deserve stability.
	for i := range clusters {
		for id := range votes[i] {
			if _, ok := redirect[id]; !ok {
				owner[id] = i
				redirect[id] = clusters[i]
			}
		}
	}

	for i, c := range clusters {
		var bestID string
		bestVotes := 0
		for id, v := range votes[i] {
			if owner[id] != i {
				continue
			}
			if v > bestVotes || (v == bestVotes && earlierPrior(priorByID, id, bestID)) {
				bestID, bestVotes = id, v
			}
		}
		if bestID != "" {
			c.id = bestID
			if logf != nil && len(votes[i]) > 1 {
				logf("Trip %s absorbed segments from %d prior trip(s)", bestID, len(votes[i]))
			}
		}
	}

	return redirect
}

// earlierPrior reports whether prior trip a started before prior trip b,
// the tie-break for ID reuse. An unknown ID never wins against a known one.
func earlierPrior(priorByID map[string]models.Trip, a, b string) bool {
	if b == "" {
		return true
	}
	ta, okA := priorByID[a]
	tb, okB := priorByID[b]
	if !okA || !okB {
		return okA
	}
	if !ta.StartDate.Equal(tb.StartDate) {
		return ta.StartDate.Before(tb.StartDate)
	}
	return a < b
}

func lastCluster(clusters []*cluster) *cluster {
	if len(clusters) == 0 {
		return nil
	}
	return clusters[len(clusters)-1]
}

// related reports whether a segment's locations share any city/region
// token with the cluster so far. Missing location data never splits a
// cluster; the time gap rule is the primary separator.
func related(clusterTokens, segTokens map[string]bool) bool {
	if len(clusterTokens) == 0 || len(segTokens) == 0 {
		return true
	}
	for t := range segTokens {
		if clusterTokens[t] {
			return true
		}
	}
	return false
}

// sortSegments orders segments chronologically, breaking timestamp ties
// by ID so output is deterministic run over run.
func sortSegments(segs []models.Segment) {
	sort.SliceStable(segs, func(i, j int) bool {
		if !segs[i].StartTime.Equal(segs[j].StartTime) {
			return segs[i].StartTime.Before(segs[j].StartTime)
		}
		return segs[i].ID < segs[j].ID
	})
}
