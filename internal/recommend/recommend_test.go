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

package recommend

import (
	"testing"
	"time"

	"github.com/blueharbor/tripsync/internal/models"
)

func parisTrip() models.Trip {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return models.Trip{
		ID:                 "trip-to-paris-ab12cd",
		PrimaryDestination: "Paris",
		StartDate:          start,
		EndDate:            start.AddDate(0, 0, 6),
		Segments: []models.Segment{
			{
				ID: "f1", Kind: models.SegmentFlight, Description: "Flight to Paris",
				StartTime: start.Add(9 * time.Hour), EndTime: start.Add(11 * time.Hour),
			},
			{
				ID: "h1", Kind: models.SegmentHotel, Description: "Hotel du Nord",
				Location:  "Paris, France",
				StartTime: start.Add(15 * time.Hour), EndTime: start.AddDate(0, 0, 3),
			},
		},
	}
}

func TestBuild_Basic(t *testing.T) {
	req, err := Build(parisTrip(), models.Settings{TravelerProfile: "vegetarian, loves museums"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Destination != "Paris" {
		t.Errorf("Destination = %q, want Paris", req.Destination)
	}
	if req.StartDate != "2026-06-01" || req.EndDate != "2026-06-07" {
		t.Errorf("dates = %s..%s", req.StartDate, req.EndDate)
	}
	if req.TravelerProfile != "vegetarian, loves museums" {
		t.Errorf("TravelerProfile = %q", req.TravelerProfile)
	}
	if len(req.Stays) != 1 || req.Stays[0] != "Paris, France" {
		t.Errorf("Stays = %v", req.Stays)
	}
	if len(req.Booked) != 2 {
		t.Errorf("Booked = %v, want one line per segment", req.Booked)
	}
}

// TestBuild_FreeDays verifies days after the hotel checkout count as free.
func TestBuild_FreeDays(t *testing.T) {
	req, err := Build(parisTrip(), models.Settings{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Trip runs Jun 1-7, segments cover Jun 1-4: Jun 5, 6, 7 are free.
	if req.FreeDays != 3 {
		t.Errorf("FreeDays = %d, want 3", req.FreeDays)
	}
}

func TestBuild_RejectsEmptyTrips(t *testing.T) {
	if _, err := Build(models.Trip{ID: "trip-x"}, models.Settings{}); err == nil {
		t.Error("expected error for trip without segments")
	}

	trip := parisTrip()
	trip.PrimaryDestination = ""
	if _, err := Build(trip, models.Settings{}); err == nil {
		t.Error("expected error for trip without destination")
	}

	trip = parisTrip()
	for i := range trip.Segments {
		trip.Segments[i].Archived = true
	}
	if _, err := Build(trip, models.Settings{}); err == nil {
		t.Error("expected error when every segment is archived")
	}
}

// TestBuild_StaysOrderedByNights verifies the longest stay leads.
func TestBuild_StaysOrderedByNights(t *testing.T) {
	trip := parisTrip()
	start := trip.StartDate
	trip.Segments = append(trip.Segments, models.Segment{
		ID: "h2", Kind: models.SegmentHotel, Description: "Chateau stay",
		Location:  "Versailles, France",
		StartTime: start.AddDate(0, 0, 3), EndTime: start.AddDate(0, 0, 8),
	})

	req, err := Build(trip, models.Settings{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Stays) != 2 || req.Stays[0] != "Versailles, France" {
		t.Errorf("Stays = %v, want the 5-night stay first", req.Stays)
	}
}
