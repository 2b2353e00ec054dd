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
	"sync"
)

// ClientCache builds one Gmail client per account and reuses it across
// sync runs. Manual syncs and the periodic loop resolve mailboxes
// through it concurrently, so access is mutexed.
type ClientCache struct {
	build func(ctx context.Context, user string) (*Client, error)

	mu      sync.Mutex
	clients map[string]*Client
}

// NewClientCache creates a cache around the given client constructor.
func NewClientCache(build func(ctx context.Context, user string) (*Client, error)) *ClientCache {
	return &ClientCache{
		build:   build,
		clients: make(map[string]*Client),
	}
}

// Get returns the cached client for the user, building it on first use.
// A failed build is not cached; the next Get retries it.
func (cc *ClientCache) Get(ctx context.Context, user string) (*Client, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if c, ok := cc.clients[user]; ok {
		return c, nil
	}
	c, err := cc.build(ctx, user)
	if err != nil {
		return nil, err
	}
	cc.clients[user] = c
	return c, nil
}
