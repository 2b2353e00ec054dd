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

// Package dedup provides a Redis-backed seen-message filter with TTL.
// It is a fast path in front of the document store's processed-email set:
// a message skipped here was already consumed by a recent sync run, so we
// avoid re-fetching its body and attachments from the mailbox.
//
// Marking is deliberately separate from checking. A run only marks
// messages after its commit succeeds; a run that fails fatally leaves the
// filter untouched so nothing is silently skipped next time.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long we remember a consumed message ID. The
	// document store remains authoritative; this only has to outlive the
	// window in which the mailbox query keeps returning the message.
	DefaultTTL = 7 * 24 * time.Hour

	// keyPrefix namespaces filter keys in Redis.
	keyPrefix = "tripsync:seen:"
)

// Filter tracks which mailbox message IDs have already been consumed.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFilter creates a seen-message filter backed by Redis.
func NewFilter(rdb *redis.Client) *Filter {
	return &Filter{
		rdb: rdb,
		ttl: DefaultTTL,
	}
}

// Seen reports whether the message ID was consumed by an earlier run.
func (f *Filter) Seen(ctx context.Context, userID, messageID string) (bool, error) {
	n, err := f.rdb.Exists(ctx, f.key(userID, messageID)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup EXISTS: %w", err)
	}
	return n > 0, nil
}

// MarkSeen records a consumed message ID. Called only after the run's
// commit succeeds.
func (f *Filter) MarkSeen(ctx context.Context, userID, messageID string) error {
	if err := f.rdb.Set(ctx, f.key(userID, messageID), 1, f.ttl).Err(); err != nil {
		return fmt.Errorf("dedup SET: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection.
func (f *Filter) Ping(ctx context.Context) error {
	return f.rdb.Ping(ctx).Err()
}

func (f *Filter) key(userID, messageID string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, userID, messageID)
}
