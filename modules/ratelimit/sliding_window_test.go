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
	"testing"
	"time"

	"storyline/modules/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// windowStart sits on a minute boundary, so window indexes are whole minutes.
var windowStart = time.Unix(600, 0)

func TestSlidingWindow_LimitWithinWindow(t *testing.T) {
	c := clock.NewManualClock(windowStart)
	limiter := NewSlidingWindowRateLimiter(c, NewMemoryCounter(c), "test", 3, time.Minute)
	ctx := context.Background()

	for i, remaining := range []int64{2, 1, 0} {
		res, err := limiter.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, remaining, res.Remaining)
		assert.Equal(t, int64(3), res.Limit)
		assert.Zero(t, res.RetryAfter)
	}

	res, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Minute, res.RetryAfter)
	assert.Equal(t, int64(60), res.RetryAfterSeconds())

	// other keys have their own budget
	res, err = limiter.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestSlidingWindow_PreviousWindowWeight(t *testing.T) {
	c := clock.NewManualClock(windowStart)
	limiter := NewSlidingWindowRateLimiter(c, NewMemoryCounter(c), "test", 2, time.Minute)
	ctx := context.Background()

	for range 2 {
		_, err := limiter.Allow(ctx, "k")
		require.NoError(t, err)
	}

	// the previous window still fully overlaps: 2 + 1 > 2
	c.Advance(time.Minute)
	res, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	// two windows later nothing overlaps anymore
	c.Advance(2 * time.Minute)
	res, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Remaining)
}

func TestSlidingWindow_RejectsNonPositiveWindow(t *testing.T) {
	c := clock.NewManualClock(windowStart)
	assert.Panics(t, func() {
		NewSlidingWindowRateLimiter(c, NewMemoryCounter(c), "test", 1, 0)
	})
}

func TestSlidingWindowFactory(t *testing.T) {
	c := clock.NewManualClock(windowStart)
	counter := NewMemoryCounter(c)
	factory := SlidingWindowFactory(c, counter, "p")

	limiter := factory(1, time.Second)
	res, err := limiter.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, time.Second, res.Window)

	n, err := counter.Get(context.Background(), "p:k:600")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestU128(t *testing.T) {
	max64 := ^uint64(0)
	big := mul(max64, 2)
	assert.Equal(t, u128{hi: 1, lo: max64 - 1}, big)
	assert.Equal(t, u128{hi: 2, lo: 0}, big.add(u128{lo: 2}))
	assert.True(t, mul(3, 4).lte(mul(2, 6)))
	assert.False(t, mul(3, 5).lte(mul(2, 6)))

	assert.Equal(t, uint64(4), mul(7, 1).ceilDiv(2))
	assert.Equal(t, uint64(3), mul(6, 1).ceilDiv(2))
	assert.Equal(t, max64, big.ceilDiv(1), "saturates")
}
