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

package grouping

import (
	"fmt"
	"strings"
	"time"

	"github.com/blueharbor/tripsync/internal/models"
)

// coverageHole is the fixed hole size used by the planning-progress score
// for judging gap-free coverage. It is intentionally independent of the
// user's lodging-gap alert threshold.
const coverageHole = 24 * time.Hour

// buildTrip materialises one trip from its clustered segments and the
// prior version of the same trip ID, recomputing every derived field and
// carrying the user-controlled ones forward.
func buildTrip(id string, active, archived []models.Segment, priorByID map[string]models.Trip) models.Trip {
	all := make([]models.Segment, 0, len(active)+len(archived))
	all = append(all, active...)
	all = append(all, archived...)
	sortSegments(all)
	for i := range all {
		all[i].TripID = id
	}

	// Dates derive from active segments; an archived-only trip falls back
	// to everything it holds so the dates stay meaningful.
	dateSource := active
	if len(dateSource) == 0 {
		dateSource = all
	}
	var start, end time.Time
	for _, s := range dateSource {
		if start.IsZero() || s.StartTime.Before(start) {
			start = s.StartTime
		}
		if s.EndTime.After(end) {
			end = s.EndTime
		}
	}
	startDate := start.Truncate(24 * time.Hour)
	endDate := end.Truncate(24 * time.Hour)

	var travelers []string
	seenTraveler := make(map[string]bool)
	for _, s := range active {
		for _, name := range s.Travelers() {
			if !seenTraveler[name] {
				seenTraveler[name] = true
				travelers = append(travelers, name)
			}
		}
	}
	if travelers == nil {
		travelers = []string{}
	}

	dest := primaryDestination(dateSource)

	trip := models.Trip{
		ID:                 id,
		Name:               tripName(dest),
		PrimaryDestination: dest,
		Icon:               tripIcon(dateSource),
		StartDate:          startDate,
		EndDate:            endDate,
		Travelers:          travelers,
		PlanningProgress:   planningProgress(active),
		Segments:           all,
		Alerts:             []models.Alert{},
		DismissedAlertIDs:  []string{},
	}
	trip.Summary = tripSummary(trip, len(active))

	if prev, ok := priorByID[id]; ok {
		if len(prev.DismissedAlertIDs) > 0 {
			trip.DismissedAlertIDs = append([]string(nil), prev.DismissedAlertIDs...)
		}
		if len(active) == 0 {
			// Nothing active regrouped here, so the user's archive choice
			// stands.
			trip.Archived = prev.Archived
			trip.ArchivedAt = prev.ArchivedAt
		}
	}

	return trip
}

// planningProgress scores how completely a trip is booked: transport
// present (40), round trip (further 20), lodging present (20), lodging and
// transport forming a gap-free chain (further 20). Only a round trip with
// gap-free coverage reaches 100.
func planningProgress(active []models.Segment) int {
	if len(active) == 0 {
		return 0
	}

	transports := 0
	lodging := false
	for _, s := range active {
		if s.Kind.IsTransport() {
			transports++
		}
		if s.Kind == models.SegmentHotel {
			lodging = true
		}
	}

	score := 0
	if transports >= 1 {
		score += 40
	}
	if transports >= 2 {
		score += 20
	}
	if lodging {
		score += 20
		if gapFree(active) {
			score += 20
		}
	}
	return score
}

// gapFree reports whether consecutive active segments chain together with
// no hole longer than coverageHole.
func gapFree(active []models.Segment) bool {
	segs := append([]models.Segment(nil), active...)
	sortSegments(segs)
	covered := segs[0].EndTime
	for _, s := range segs[1:] {
		if s.StartTime.Sub(covered) > coverageHole {
			return false
		}
		if s.EndTime.After(covered) {
			covered = s.EndTime
		}
	}
	return true
}

// primaryDestination picks the city the trip is "about": the most common
// lodging city, else the last arrival city of a transport leg, else the
// first segment's city.
func primaryDestination(segs []models.Segment) string {
	counts := make(map[string]int)
	bestHotel, bestCount := "", 0
	for _, s := range segs {
		if s.Kind != models.SegmentHotel {
			continue
		}
		city := locationCity(s.Location)
		if city == "" {
			continue
		}
		counts[city]++
		if counts[city] > bestCount {
			bestHotel, bestCount = city, counts[city]
		}
	}
	if bestHotel != "" {
		return bestHotel
	}

	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i].Kind.IsTransport() {
			if city := locationCity(firstNonEmpty(segs[i].Location, segs[i].Details.To)); city != "" {
				return city
			}
		}
	}

	for _, s := range segs {
		if city := locationCity(s.Location); city != "" {
			return city
		}
	}
	return ""
}

func tripName(dest string) string {
	if dest == "" {
		return "Trip"
	}
	return "Trip to " + dest
}

func tripSummary(t models.Trip, activeCount int) string {
	dest := t.PrimaryDestination
	if dest == "" {
		dest = "an unknown destination"
	}
	if activeCount == 0 {
		return fmt.Sprintf("Archived bookings for %s.", dest)
	}
	return fmt.Sprintf("%d booking(s) centred on %s, %s to %s.",
		activeCount, dest,
		t.StartDate.Format("Jan 2, 2006"), t.EndDate.Format("Jan 2, 2006"))
}

// tripIcon maps the trip's dominant booking kind to a display keyword the
// dashboard knows how to render.
func tripIcon(segs []models.Segment) string {
	counts := make(map[models.SegmentKind]int)
	var best models.SegmentKind
	for _, s := range segs {
		counts[s.Kind]++
		if best == "" || counts[s.Kind] > counts[best] {
			best = s.Kind
		}
	}
	switch best {
	case models.SegmentFlight:
		return "plane"
	case models.SegmentHotel:
		return "bed"
	case models.SegmentTrain:
		return "train"
	case models.SegmentCar:
		return "car"
	}
	return ""
}

// segmentTokens extracts the lowercase city/region tokens a segment
// touches, used for the geographic-overlap half of the clustering rule.
func segmentTokens(s models.Segment) map[string]bool {
	tokens := make(map[string]bool)
	for _, raw := range []string{s.Location, s.Details.From, s.Details.To} {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				tokens[part] = true
			}
		}
	}
	return tokens
}

// locationCity reduces "Paris, France" to "Paris".
func locationCity(location string) string {
	city, _, _ := strings.Cut(location, ",")
	return strings.TrimSpace(city)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
