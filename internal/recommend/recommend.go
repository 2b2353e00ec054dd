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

// Package recommend builds point-of-interest recommendation requests
// from a trip and the user's traveler profile. It only assembles the
// input value; issuing the request is the caller's concern.
package recommend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/blueharbor/tripsync/internal/models"
)

// Request is the input to a POI recommendation call.
type Request struct {
	Destination     string   `json:"destination"`
	StartDate       string   `json:"startDate"` // YYYY-MM-DD
	EndDate         string   `json:"endDate"`   // YYYY-MM-DD
	TravelerProfile string   `json:"travelerProfile,omitempty"`
	Stays           []string `json:"stays,omitempty"`    // hotel locations, most nights first
	Booked          []string `json:"booked,omitempty"`   // one line per existing segment
	FreeDays        int      `json:"freeDays,omitempty"` // days without any segment
}

// Build assembles a recommendation request for the trip. It returns an
// error when the trip has no destination or no active segments to anchor
// recommendations on.
func Build(trip models.Trip, settings models.Settings) (Request, error) {
	active := trip.ActiveSegments()
	if len(active) == 0 {
		return Request{}, fmt.Errorf("trip %s has no active segments", trip.ID)
	}
	if trip.PrimaryDestination == "" {
		return Request{}, fmt.Errorf("trip %s has no destination", trip.ID)
	}

	req := Request{
		Destination:     trip.PrimaryDestination,
		StartDate:       trip.StartDate.Format("2006-01-02"),
		EndDate:         trip.EndDate.Format("2006-01-02"),
		TravelerProfile: strings.TrimSpace(settings.TravelerProfile),
		Stays:           stays(active),
		Booked:          booked(active),
		FreeDays:        freeDays(trip, active),
	}
	return req, nil
}

// stays lists hotel locations ordered by nights spent, longest first.
func stays(segments []models.Segment) []string {
	nights := make(map[string]int)
	for _, s := range segments {
		if s.Kind != models.SegmentHotel || s.Location == "" {
			continue
		}
		n := int(s.EndTime.Sub(s.StartTime).Hours() / 24)
		if n < 1 {
			n = 1
		}
		nights[s.Location] += n
	}

	out := make([]string, 0, len(nights))
	for loc := range nights {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool {
		if nights[out[i]] != nights[out[j]] {
			return nights[out[i]] > nights[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// booked summarises each segment in one line so the recommender avoids
// suggesting what is already planned.
func booked(segments []models.Segment) []string {
	lines := make([]string, 0, len(segments))
	for _, s := range segments {
		desc := s.Description
		if desc == "" {
			desc = s.Details.Provider
		}
		lines = append(lines, fmt.Sprintf("%s: %s (%s)",
			strings.ToLower(string(s.Kind)), desc, s.StartTime.Format("Jan 2")))
	}
	return lines
}

// freeDays counts trip days with no segment starting or in progress.
func freeDays(trip models.Trip, segments []models.Segment) int {
	if trip.EndDate.Before(trip.StartDate) {
		return 0
	}
	free := 0
	for d := trip.StartDate; !d.After(trip.EndDate); d = d.AddDate(0, 0, 1) {
		dayEnd := d.AddDate(0, 0, 1)
		occupied := false
		for _, s := range segments {
			if s.StartTime.Before(dayEnd) && !s.EndTime.Before(d) {
				occupied = true
				break
			}
		}
		if !occupied {
			free++
		}
	}
	return free
}
