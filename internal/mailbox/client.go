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

// Package mailbox reads candidate travel emails from the shared Gmail
// inbox. It lists unread messages matching the travel query, pulls the
// plain-text body and image attachments for each, and marks consumed
// messages as read.
//
// Authentication failure (an expired or revoked refresh token) is fatal
// for the whole sync run and is surfaced as *AuthError so the caller can
// distinguish it from a single message failing to download.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/blueharbor/tripsync/internal/models"
)

// DefaultQuery matches the booking-confirmation emails the service cares
// about.
const DefaultQuery = `is:unread subject:("your reservation" OR "your booking" OR "your flight" OR "e-ticket" OR "itinerary" OR "confirmation")`

// AuthError wraps a credential failure against the Gmail API.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("gmail authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// Credentials holds the OAuth2 client and refresh token for the shared
// mailbox.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Client reads the shared mailbox over the Gmail API.
type Client struct {
	svc        *gmail.Service
	query      string
	maxResults int64
}

// NewClient builds a Gmail client from a stored refresh token.
func NewClient(ctx context.Context, creds Credentials, query string, maxResults int64) (*Client, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, fmt.Errorf("gmail credentials missing — client ID, client secret and refresh token are all required")
	}
	if query == "" {
		query = DefaultQuery
	}
	if maxResults <= 0 {
		maxResults = 25
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailModifyScope},
	}
	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})

	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	return &Client{svc: svc, query: query, maxResults: maxResults}, nil
}

// ListTravelEmails returns the candidate emails currently in the inbox.
// A failure to list is fatal (usually credentials); a failure to download
// one message is logged and that message skipped.
func (c *Client) ListTravelEmails(ctx context.Context) ([]models.Email, error) {
	list, err := c.svc.Users.Messages.List("me").
		Q(c.query).
		MaxResults(c.maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(err)
	}

	var emails []models.Email
	for _, ref := range list.Messages {
		msg, err := c.svc.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			if isAuthFailure(err) {
				return nil, &AuthError{Err: err}
			}
			slog.Error("failed to fetch message", "message_id", ref.Id, "error", err)
			continue
		}
		if msg.Payload == nil {
			continue
		}

		body, attachments := c.extractParts(ctx, ref.Id, msg.Payload)
		if body == "" && len(attachments) == 0 {
			continue
		}

		emails = append(emails, models.Email{
			ID:          ref.Id,
			Snippet:     msg.Snippet,
			Body:        body,
			Attachments: attachments,
			ReceivedAt:  time.UnixMilli(msg.InternalDate).UTC(),
		})
	}

	return emails, nil
}

// MarkRead removes the UNREAD label from a consumed message.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	_, err := c.svc.Users.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("mark message %s read: %w", messageID, err)
	}
	return nil
}

// classify wraps a top-level Gmail error, promoting credential problems
// to AuthError.
func classify(err error) error {
	if isAuthFailure(err) {
		return &AuthError{Err: err}
	}
	return fmt.Errorf("list messages: %w", err)
}

// isAuthFailure detects expired or revoked credentials: a 401 from the
// API, or a token refresh rejected with invalid_grant.
func isAuthFailure(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == 401 || gerr.Code == 403) {
		return true
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return true
	}
	return strings.Contains(err.Error(), "invalid_grant")
}
