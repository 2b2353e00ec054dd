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

// Package normalize converts raw extracted booking records into canonical
// segments: it assigns the stable segment ID, parses timestamps, and folds
// the per-booking confirmation fields into the confirmations list. It is
// pure and performs no I/O.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blueharbor/tripsync/internal/models"
)

// Logf receives human-readable run log lines.
type Logf func(format string, args ...any)

// timeLayouts are tried in order when parsing extracted timestamps. The
// extraction model is prompted for ISO 8601 without a zone, but emails
// occasionally yield date-only or zoned values.
var timeLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02",
}

// Segment converts one extracted record into a canonical Segment. The
// returned segment has a freshly assigned ID, which from this point on is
// never regenerated. Records with an unknown kind or an unparseable start
// time are rejected; a start after the end is tolerated but flagged in the
// run log, never fatal.
func Segment(raw models.ExtractedSegment, emailID string, logf Logf) (models.Segment, error) {
	switch raw.Kind {
	case models.SegmentFlight, models.SegmentHotel, models.SegmentTrain, models.SegmentCar:
	default:
		return models.Segment{}, fmt.Errorf("unknown segment kind %q", raw.Kind)
	}

	start, err := ParseTime(raw.StartDate)
	if err != nil {
		return models.Segment{}, fmt.Errorf("parse start date %q: %w", raw.StartDate, err)
	}

	end, err := ParseTime(raw.EndDate)
	if err != nil {
		// A missing end is common for open-ended bookings; fall back to
		// the start so downstream sorting and gap maths stay defined.
		end = start
	}

	if end.Before(start) {
		if logf != nil {
			logf("WARNING: segment %q ends before it starts (%s > %s)",
				raw.Description, raw.StartDate, raw.EndDate)
		}
	}

	return models.Segment{
		ID:          NewID(),
		Kind:        raw.Kind,
		Description: raw.Description,
		Location:    raw.Location,
		StartTime:   start,
		EndTime:     end,
		Status:      raw.Status,
		Confirmations: []models.Confirmation{{
			Number:          raw.Details.ConfirmationNumber,
			TravelerName:    raw.TravelerName,
			BoardingPassRef: raw.Details.BoardingPassRef,
		}},
		Details: models.SegmentDetails{
			Provider:     raw.Details.Provider,
			BookingAgent: raw.Details.BookingAgent,
			From:         raw.Details.From,
			To:           raw.Details.To,
			FlightNumber: raw.Details.FlightNumber,
			AirlineCode:  raw.Details.AirlineCode,
			PhoneNumber:  raw.Details.PhoneNumber,
		},
		SourceEmailID: emailID,
		Archived:      false,
	}, nil
}

// NewID returns a fresh 16-character hex segment ID.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

// ParseTime parses an extracted timestamp, trying the known layouts in
// order.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp format")
}
