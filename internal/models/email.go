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

package models

import "time"

// ImageAttachment is an image pulled from an email, carried as a data URI
// so the extraction collaborator can inspect it (boarding pass QR codes
// usually arrive this way).
type ImageAttachment struct {
	Filename string `json:"filename" firestore:"filename"`
	MimeType string `json:"mimeType" firestore:"mimeType"`
	DataURI  string `json:"dataUri" firestore:"dataUri"`
}

// Email is a candidate travel email fetched from the shared mailbox,
// reduced to what extraction needs.
type Email struct {
	ID          string            `json:"id" firestore:"id"`
	Snippet     string            `json:"snippet,omitempty" firestore:"snippet,omitempty"`
	Body        string            `json:"body" firestore:"body"`
	Attachments []ImageAttachment `json:"imageAttachments" firestore:"imageAttachments"`
	ReceivedAt  time.Time         `json:"receivedAt,omitempty" firestore:"receivedAt,omitempty"`
}

// Processing outcome statuses for a single email.
const (
	EmailProcessed     = "processed_success"
	EmailProcessFailed = "processed_error"
	EmailSkippedNoBody = "skipped_no_content"
)

// ProcessedEmail records the outcome of extracting one email, persisted so
// later runs skip it.
type ProcessedEmail struct {
	ID            string    `json:"id" firestore:"id"`
	Status        string    `json:"status" firestore:"status"`
	FoundSegments int       `json:"foundSegments" firestore:"foundSegments"`
	ProcessedAt   time.Time `json:"processedAt" firestore:"processedAt"`
}
