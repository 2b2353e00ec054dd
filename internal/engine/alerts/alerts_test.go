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

package alerts

import (
	"testing"
	"time"

	"github.com/blueharbor/tripsync/internal/models"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func tripWith(segs ...models.Segment) models.Trip {
	return models.Trip{ID: "trip-to-paris-ab12cd", Segments: segs}
}

// TestGenerate_LodgingGap verifies a gap beyond the threshold raises one
// alert with the content-addressed ID.
func TestGenerate_LodgingGap(t *testing.T) {
	arrive := now.AddDate(0, 0, 10)
	flight := models.Segment{
		ID: "f1", Kind: models.SegmentFlight, Description: "Flight to Paris",
		StartTime: arrive, EndTime: arrive.Add(2 * time.Hour),
	}
	hotel := models.Segment{
		ID: "h1", Kind: models.SegmentHotel, Description: "Hotel du Nord",
		StartTime: flight.EndTime.Add(30 * time.Hour), EndTime: flight.EndTime.Add(4 * 24 * time.Hour),
	}

	got := Generate(tripWith(flight, hotel), Config{LodgingGap: 24 * time.Hour}, now)

	if len(got) != 1 {
		t.Fatalf("got %d alerts, want 1", len(got))
	}
	if got[0].ID != "gap-f1-h1" {
		t.Errorf("alert ID = %q, want %q", got[0].ID, "gap-f1-h1")
	}
}

// TestGenerate_GapAtThresholdIsQuiet verifies a gap equal to the threshold
// does not alert.
func TestGenerate_GapAtThresholdIsQuiet(t *testing.T) {
	arrive := now.AddDate(0, 0, 10)
	flight := models.Segment{
		ID: "f1", Kind: models.SegmentFlight,
		StartTime: arrive, EndTime: arrive.Add(2 * time.Hour),
	}
	hotel := models.Segment{
		ID: "h1", Kind: models.SegmentHotel,
		StartTime: flight.EndTime.Add(24 * time.Hour), EndTime: flight.EndTime.Add(4 * 24 * time.Hour),
	}

	got := Generate(tripWith(flight, hotel), Config{LodgingGap: 24 * time.Hour}, now)
	if len(got) != 0 {
		t.Fatalf("got %d alerts, want 0", len(got))
	}
}

// TestGenerate_CheckInWindow covers the check-in reminder boundary cases.
func TestGenerate_CheckInWindow(t *testing.T) {
	tests := []struct {
		name      string
		departure time.Time
		lead      time.Duration
		want      int
	}{
		{"inside window", now.Add(12 * time.Hour), 24 * time.Hour, 1},
		{"outside window", now.Add(48 * time.Hour), 24 * time.Hour, 0},
		{"already departed", now.Add(-2 * time.Hour), 24 * time.Hour, 0},
		{"lead zero disables", now.Add(12 * time.Hour), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flight := models.Segment{
				ID: "f1", Kind: models.SegmentFlight, Description: "Flight BA 117",
				StartTime: tt.departure, EndTime: tt.departure.Add(2 * time.Hour),
			}
			got := Generate(tripWith(flight), Config{CheckInLead: tt.lead}, now)
			if len(got) != tt.want {
				t.Fatalf("got %d alerts, want %d", len(got), tt.want)
			}
			if tt.want == 1 && got[0].ID != "checkin-f1" {
				t.Errorf("alert ID = %q, want %q", got[0].ID, "checkin-f1")
			}
		})
	}
}

// TestGenerate_ArchivedSegmentsExcluded verifies archived segments neither
// trigger nor suppress alerts.
func TestGenerate_ArchivedSegmentsExcluded(t *testing.T) {
	arrive := now.AddDate(0, 0, 10)
	flight := models.Segment{
		ID: "f1", Kind: models.SegmentFlight,
		StartTime: arrive, EndTime: arrive.Add(2 * time.Hour),
	}
	// This hotel would bridge the gap, but it is archived.
	bridge := models.Segment{
		ID: "h1", Kind: models.SegmentHotel, Archived: true,
		StartTime: flight.EndTime.Add(2 * time.Hour), EndTime: flight.EndTime.Add(40 * time.Hour),
	}
	later := models.Segment{
		ID: "h2", Kind: models.SegmentHotel,
		StartTime: flight.EndTime.Add(48 * time.Hour), EndTime: flight.EndTime.Add(96 * time.Hour),
	}

	got := Generate(tripWith(flight, bridge, later), Config{LodgingGap: 24 * time.Hour}, now)
	if len(got) != 1 {
		t.Fatalf("got %d alerts, want 1 (archived bridge ignored)", len(got))
	}
	if got[0].ID != "gap-f1-h2" {
		t.Errorf("alert ID = %q, want %q", got[0].ID, "gap-f1-h2")
	}
}

// TestGenerate_DeterministicIDs verifies identical input yields identical
// alert IDs run over run, which is what dismissals depend on.
func TestGenerate_DeterministicIDs(t *testing.T) {
	arrive := now.AddDate(0, 0, 10)
	flight := models.Segment{
		ID: "f1", Kind: models.SegmentFlight,
		StartTime: arrive, EndTime: arrive.Add(2 * time.Hour),
	}
	hotel := models.Segment{
		ID: "h1", Kind: models.SegmentHotel,
		StartTime: flight.EndTime.Add(30 * time.Hour), EndTime: flight.EndTime.Add(96 * time.Hour),
	}
	cfg := Config{LodgingGap: 24 * time.Hour}

	first := Generate(tripWith(flight, hotel), cfg, now)
	second := Generate(tripWith(hotel, flight), cfg, now) // order shuffled

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("got %d and %d alerts, want 1 each", len(first), len(second))
	}
	if first[0].ID != second[0].ID {
		t.Errorf("IDs differ across runs: %q vs %q", first[0].ID, second[0].ID)
	}
}

// TestGenerate_EmptyTripReturnsNonNil verifies callers can always range
// and marshal the result.
func TestGenerate_EmptyTripReturnsNonNil(t *testing.T) {
	got := Generate(models.Trip{}, Config{LodgingGap: 24 * time.Hour, CheckInLead: 24 * time.Hour}, now)
	if got == nil {
		t.Fatal("Generate returned nil, want empty slice")
	}
	if len(got) != 0 {
		t.Fatalf("got %d alerts, want 0", len(got))
	}
}
