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

package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/blueharbor/tripsync/internal/models"
)

// extractParts walks a message's MIME tree collecting the plain-text body
// and any image attachments. Attachment bodies live behind a second API
// call; a failed attachment fetch is logged and skipped so one broken
// image never loses the email.
func (c *Client) extractParts(ctx context.Context, messageID string, payload *gmail.MessagePart) (string, []models.ImageAttachment) {
	var body strings.Builder
	var attachments []models.ImageAttachment

	// Single-part messages carry the body directly on the payload.
	if len(payload.Parts) == 0 && payload.MimeType == "text/plain" && payload.Body != nil {
		if text, err := decodeWeb(payload.Body.Data); err == nil {
			body.WriteString(text)
		}
	}

	queue := append([]*gmail.MessagePart(nil), payload.Parts...)
	for len(queue) > 0 {
		part := queue[0]
		queue = queue[1:]
		if part == nil {
			continue
		}

		switch {
		case part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "":
			text, err := decodeWeb(part.Body.Data)
			if err != nil {
				slog.Warn("undecodable text part", "message_id", messageID, "error", err)
				continue
			}
			body.WriteString(text)
			body.WriteString("\n\n")

		case strings.HasPrefix(part.MimeType, "image/") && part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "":
			att, err := c.svc.Users.Messages.Attachments.Get("me", messageID, part.Body.AttachmentId).Context(ctx).Do()
			if err != nil {
				slog.Error("failed to fetch attachment",
					"message_id", messageID,
					"attachment_id", part.Body.AttachmentId,
					"error", err,
				)
				continue
			}
			if att.Data == "" {
				continue
			}
			attachments = append(attachments, models.ImageAttachment{
				Filename: part.Filename,
				MimeType: part.MimeType,
				DataURI:  dataURI(part.MimeType, att.Data),
			})

		case strings.HasPrefix(part.MimeType, "multipart/"):
			queue = append(queue, part.Parts...)
		}
	}

	return body.String(), attachments
}

// dataURI packs base64url attachment data into a standard-base64 data URI
// for the extraction collaborator.
func dataURI(mimeType, b64url string) string {
	raw, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(b64url, "="))
	if err != nil {
		// Pass through as-is rather than dropping the attachment.
		return fmt.Sprintf("data:%s;base64,%s", mimeType, b64url)
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(raw))
}

// decodeWeb decodes the base64url payloads the Gmail API uses, with or
// without padding.
func decodeWeb(data string) (string, error) {
	raw, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", fmt.Errorf("decode body part: %w", err)
	}
	return string(raw), nil
}
