// Copyright 2025 Nhat-Nguyen Nguyen
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

package ratelimit

import (
	"context"
	"sync"
	"time"

	"storyline/modules/clock"
)

// CounterStore is the storage abstraction ratelimit uses.
type CounterStore interface {
	// Incr increments a counter at key and returns the new value.
	// TTL tells the store how long to keep the key alive (at least).
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the current value of a counter, or 0 if missing.
	Get(ctx context.Context, key string) (int64, error)
}

var _ CounterStore = (*MemoryCounter)(nil)

// MemoryCounter is a process-local CounterStore used when Redis is not
// configured. Counters are only shared between requests hitting the same
// instance.
type MemoryCounter struct {
	clock clock.Clock

	mu       sync.Mutex
	counters map[string]memoryCount
	lastGC   time.Time
}

type memoryCount struct {
	value     int64
	expiresAt time.Time
}

func NewMemoryCounter(c clock.Clock) *MemoryCounter {
	return &MemoryCounter{
		clock:    c,
		counters: make(map[string]memoryCount),
	}
}

// Incr implements CounterStore. The TTL is set on creation only, like the
// Redis counter does.
func (m *MemoryCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.gcLocked(now, ttl)

	c, ok := m.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		c = memoryCount{expiresAt: now.Add(ttl)}
	}
	c.value++
	m.counters[key] = c
	return c.value, nil
}

// Get implements CounterStore.
func (m *MemoryCounter) Get(_ context.Context, key string) (int64, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		return 0, nil
	}
	return c.value, nil
}

// gcLocked drops expired keys at most once per ttl.
func (m *MemoryCounter) gcLocked(now time.Time, ttl time.Duration) {
	if now.Sub(m.lastGC) < ttl {
		return
	}
	for k, c := range m.counters {
		if !now.Before(c.expiresAt) {
			delete(m.counters, k)
		}
	}
	m.lastGC = now
}
