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

// Package extract turns one email's text and images into candidate
// booking records using Gemini. The model is asked for strict JSON; its
// output is parsed into ExtractedSegment values that the normalizer then
// canonicalises. Each call covers a single email so that one bad email
// fails alone inside the chunked processor.
package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/blueharbor/tripsync/internal/models"
)

// Extractor is what the sync orchestrator needs from the extraction
// collaborator. Satisfied by *GeminiExtractor; tests substitute fakes.
type Extractor interface {
	Extract(ctx context.Context, email models.Email) ([]models.ExtractedSegment, error)
}

// DefaultModel is the Gemini model used for extraction.
const DefaultModel = "gemini-2.0-flash"

const extractionPrompt = `You are a travel assistant. Analyze the email text and image attachments below and extract every travel booking (flight, hotel, train ticket, car rental) into JSON.

Rules:
1. Dates/times in strict ISO 8601 format (YYYY-MM-DDTHH:mm:ss).
2. "description" is a rich one-sentence summary of the booking.
3. "location" is the main city and country, e.g. "Paris, France".
4. Distinguish the service provider (e.g. "Delta Airlines") from the booking agent (e.g. "Expedia"); leave "bookingAgent" empty for direct bookings.
5. For flights, always fill "flightNumber" and "airlineCode" (IATA), inferring them if needed. For hotels, always fill "phoneNumber", inferring from the hotel name and city if absent.
6. If the traveler's name appears, fill "travelerName".
7. If a boarding pass QR code image is present, reference it via "boardingPassRef" inside "details".
8. One object per distinct booking; an email with a flight and a car rental yields two objects.
9. If the email contains no travel booking, return [].

Return ONLY a JSON array of objects with this shape:
[{"type":"FLIGHT|HOTEL|TRAIN|CAR","description":"...","startDate":"...","endDate":"...","location":"...","status":"...","travelerName":"...","details":{"confirmationNumber":"...","provider":"...","bookingAgent":"...","from":"...","to":"...","flightNumber":"...","airlineCode":"...","phoneNumber":"...","boardingPassRef":"..."}}]

EMAIL TEXT:
`

// GeminiExtractor calls the Gemini API.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

// NewGemini creates an extractor. Close it when the service shuts down.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiExtractor{client: client, model: model}, nil
}

// Close releases the underlying client.
func (g *GeminiExtractor) Close() error {
	return g.client.Close()
}

// Extract returns the candidate segments found in one email. An empty
// slice means the email held no travel content; an error means this
// email's extraction failed.
func (g *GeminiExtractor) Extract(ctx context.Context, email models.Email) ([]models.ExtractedSegment, error) {
	m := g.client.GenerativeModel(g.model)
	m.SetTemperature(0.1)
	m.ResponseMIMEType = "application/json"

	parts := []genai.Part{genai.Text(extractionPrompt + email.Body)}
	for _, att := range email.Attachments {
		format, raw, err := decodeDataURI(att.DataURI)
		if err != nil {
			// A broken attachment shouldn't sink the email text.
			continue
		}
		parts = append(parts, genai.Text("\nATTACHMENT "+att.Filename+":"), genai.ImageData(format, raw))
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini extraction for email %s: %w", email.ID, err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("gemini returned no content for email %s", email.ID)
	}

	var segments []models.ExtractedSegment
	if err := json.Unmarshal([]byte(text), &segments); err != nil {
		return nil, fmt.Errorf("parse extraction output for email %s: %w", email.ID, err)
	}
	return segments, nil
}

// responseText concatenates the text parts of the first candidate,
// stripping any markdown fence the model wrapped around the JSON.
func responseText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	text := strings.TrimSpace(b.String())
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// decodeDataURI splits "data:image/png;base64,..." into the genai image
// format ("png") and raw bytes.
func decodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:image/")
	if !ok {
		return "", nil, fmt.Errorf("not an image data URI")
	}
	format, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return "", nil, fmt.Errorf("data URI is not base64")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URI: %w", err)
	}
	return format, raw, nil
}
