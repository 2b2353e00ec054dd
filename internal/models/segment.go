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

// Package models defines the data structures shared across the sync service.
package models

import "time"

// SegmentKind classifies a booking segment.
type SegmentKind string

const (
	SegmentFlight SegmentKind = "FLIGHT"
	SegmentHotel  SegmentKind = "HOTEL"
	SegmentTrain  SegmentKind = "TRAIN"
	SegmentCar    SegmentKind = "CAR"
)

// IsTransport reports whether the kind moves the traveler between places.
// Car rentals are local to a destination and count as neither transport
// nor lodging.
func (k SegmentKind) IsTransport() bool {
	return k == SegmentFlight || k == SegmentTrain
}

// Confirmation is one original booking record folded into a segment.
// A freshly extracted segment carries exactly one; merged segments carry
// one per contributing booking.
type Confirmation struct {
	Number          string `json:"number,omitempty" firestore:"number,omitempty"`
	TravelerName    string `json:"travelerName,omitempty" firestore:"travelerName,omitempty"`
	BoardingPassRef string `json:"boardingPassRef,omitempty" firestore:"boardingPassRef,omitempty"`
}

// SegmentDetails holds kind-specific booking fields. All fields are
// optional; merging unions them with the first non-empty value winning.
type SegmentDetails struct {
	Provider     string `json:"provider,omitempty" firestore:"provider,omitempty"`
	BookingAgent string `json:"bookingAgent,omitempty" firestore:"bookingAgent,omitempty"`
	From         string `json:"from,omitempty" firestore:"from,omitempty"`
	To           string `json:"to,omitempty" firestore:"to,omitempty"`
	FlightNumber string `json:"flightNumber,omitempty" firestore:"flightNumber,omitempty"`
	AirlineCode  string `json:"airlineCode,omitempty" firestore:"airlineCode,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty" firestore:"phoneNumber,omitempty"`
}

// Segment is a single booking event. Its ID is assigned once at first
// normalisation and never reassigned; all relationships (trip membership,
// alert provenance) refer to segments by ID.
type Segment struct {
	ID            string         `json:"id" firestore:"id"`
	Kind          SegmentKind    `json:"kind" firestore:"kind"`
	Description   string         `json:"description" firestore:"description"`
	Location      string         `json:"location" firestore:"location"`
	StartTime     time.Time      `json:"startTime" firestore:"startTime"`
	EndTime       time.Time      `json:"endTime" firestore:"endTime"`
	Status        string         `json:"status,omitempty" firestore:"status,omitempty"`
	Confirmations []Confirmation `json:"confirmations" firestore:"confirmations"`
	Details       SegmentDetails `json:"details" firestore:"details"`

	// SourceEmailID links back to the originating mailbox message. For a
	// merged segment this is the first contributor's message ID.
	SourceEmailID string `json:"sourceEmailId,omitempty" firestore:"sourceEmailId,omitempty"`

	// TripID is a weak back-reference; the Trip is the authoritative owner.
	TripID string `json:"tripId,omitempty" firestore:"tripId,omitempty"`

	// Archived segments are excluded from grouping and alerts but never
	// dropped, so the user can restore them.
	Archived bool `json:"archived" firestore:"archived"`
}

// Travelers returns the traveler names on this segment's confirmations,
// deduplicated, in order of first appearance.
func (s Segment) Travelers() []string {
	var names []string
	seen := make(map[string]bool)
	for _, c := range s.Confirmations {
		if c.TravelerName == "" || seen[c.TravelerName] {
			continue
		}
		seen[c.TravelerName] = true
		names = append(names, c.TravelerName)
	}
	return names
}

// ExtractedSegment is a candidate segment as produced by the generative
// extraction collaborator for one email, before normalisation. Dates are
// strings because the model emits ISO 8601 text.
type ExtractedSegment struct {
	Kind         SegmentKind      `json:"type"`
	Description  string           `json:"description"`
	StartDate    string           `json:"startDate"`
	EndDate      string           `json:"endDate"`
	Location     string           `json:"location"`
	Status       string           `json:"status,omitempty"`
	TravelerName string           `json:"travelerName,omitempty"`
	Details      ExtractedDetails `json:"details"`
}

// ExtractedDetails mirrors SegmentDetails plus the per-booking fields that
// normalisation folds into the first Confirmation.
type ExtractedDetails struct {
	ConfirmationNumber string `json:"confirmationNumber,omitempty"`
	Provider           string `json:"provider,omitempty"`
	BookingAgent       string `json:"bookingAgent,omitempty"`
	From               string `json:"from,omitempty"`
	To                 string `json:"to,omitempty"`
	FlightNumber       string `json:"flightNumber,omitempty"`
	AirlineCode        string `json:"airlineCode,omitempty"`
	PhoneNumber        string `json:"phoneNumber,omitempty"`
	BoardingPassRef    string `json:"boardingPassRef,omitempty"`
}
