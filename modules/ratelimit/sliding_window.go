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
	"fmt"
	"math/bits"
	"time"

	"storyline/modules/clock"
)

var _ RateLimiter = (*SlidingWindowRateLimiter)(nil)

// SlidingWindowRateLimiter approximates a sliding window with two adjacent
// fixed windows (current + previous), weighting the previous count by how
// much of it still overlaps the sliding window.
type SlidingWindowRateLimiter struct {
	clock     clock.Clock
	counter   CounterStore
	keyPrefix string

	limit  uint64
	window time.Duration
}

func SlidingWindowFactory(c clock.Clock, counter CounterStore, keyPrefix string) LimiterFactory {
	return func(l int64, w time.Duration) RateLimiter {
		return NewSlidingWindowRateLimiter(c, counter, keyPrefix, l, w)
	}
}

// NewSlidingWindowRateLimiter panics on a non-positive window, which would
// otherwise divide by zero on the first request.
func NewSlidingWindowRateLimiter(c clock.Clock, counter CounterStore, keyPrefix string, limit int64, window time.Duration) *SlidingWindowRateLimiter {
	if window <= 0 {
		panic("ratelimit: window must be positive")
	}
	return &SlidingWindowRateLimiter{
		clock:     c,
		counter:   counter,
		keyPrefix: keyPrefix,
		limit:     uint64(max(limit, 0)),
		window:    window,
	}
}

// Allow counts the request in the current fixed window, then admits it when
// current + overlap(previous) stays within limit.
func (s *SlidingWindowRateLimiter) Allow(ctx context.Context, key Key) (Result, error) {
	winNs := s.window.Nanoseconds()
	nowNs := s.clock.Now().UnixNano()
	idx := nowNs / winNs

	cur, err := s.counter.Incr(ctx, s.windowKey(key, idx), 2*s.window)
	if err != nil {
		return Result{}, err
	}
	prev, err := s.counter.Get(ctx, s.windowKey(key, idx-1))
	if err != nil {
		return Result{}, err
	}

	elapsed := min(max(nowNs-idx*winNs, 0), winNs)
	resetIn := max(s.window-time.Duration(elapsed), 0)

	// everything is scaled by the window length to stay in integers
	usage := mul(uint64(max(cur, 0)), uint64(winNs)).
		add(mul(uint64(max(prev, 0)), uint64(winNs-elapsed)))
	allowed := usage.lte(mul(s.limit, uint64(winNs)))

	var remaining uint64
	if used := usage.ceilDiv(uint64(winNs)); used < s.limit {
		remaining = s.limit - used
	}

	res := Result{
		Allowed:       allowed,
		Remaining:     int64(remaining),
		Limit:         int64(s.limit),
		Window:        s.window,
		WindowResetIn: resetIn,
	}
	if !allowed {
		res.RetryAfter = resetIn
	}
	return res, nil
}

func (s *SlidingWindowRateLimiter) windowKey(key Key, idx int64) string {
	return fmt.Sprintf("%s:%s:%d", s.keyPrefix, key, idx)
}

// u128 keeps count*window products from overflowing for long windows.
type u128 struct{ hi, lo uint64 }

func mul(a, b uint64) u128 {
	hi, lo := bits.Mul64(a, b)
	return u128{hi, lo}
}

func (x u128) add(y u128) u128 {
	lo, carry := bits.Add64(x.lo, y.lo, 0)
	hi, _ := bits.Add64(x.hi, y.hi, carry)
	return u128{hi, lo}
}

func (x u128) lte(y u128) bool {
	return x.hi < y.hi || (x.hi == y.hi && x.lo <= y.lo)
}

// ceilDiv saturates at MaxUint64 when the quotient does not fit.
func (x u128) ceilDiv(d uint64) uint64 {
	if x.hi >= d {
		return ^uint64(0)
	}
	q, r := bits.Div64(x.hi, x.lo, d)
	if r != 0 && q != ^uint64(0) {
		q++
	}
	return q
}
