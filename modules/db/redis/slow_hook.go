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

package redis

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/rueidishook"
)

var _ rueidishook.Hook = (*SlowCommandHook)(nil)

// SlowCommandHook logs request/response commands that take longer than
// Threshold. Pub/sub and streaming calls pass through untimed.
type SlowCommandHook struct {
	// nil; only reached by hook methods this type does not override
	rueidishook.Hook

	Threshold time.Duration
	now       func() time.Time
}

func (h *SlowCommandHook) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *SlowCommandHook) observe(ctx context.Context, start time.Time, names []string) bool {
	took := h.clock().Sub(start)
	if took < h.Threshold {
		return false
	}
	slog.WarnContext(ctx, "slow redis command",
		slog.String("command", strings.Join(names, " | ")),
		slog.Duration("took", took),
	)
	return true
}

// first token only, arguments may carry keys or values
func commandName(cmd []string) string {
	if len(cmd) == 0 {
		return ""
	}
	return cmd[0]
}

func (h *SlowCommandHook) Do(client rueidis.Client, ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	start := h.clock()
	resp := client.Do(ctx, cmd)
	h.observe(ctx, start, []string{commandName(cmd.Commands())})
	return resp
}

func (h *SlowCommandHook) DoMulti(client rueidis.Client, ctx context.Context, multi ...rueidis.Completed) []rueidis.RedisResult {
	start := h.clock()
	resps := client.DoMulti(ctx, multi...)
	names := make([]string, len(multi))
	for i, c := range multi {
		names[i] = commandName(c.Commands())
	}
	h.observe(ctx, start, names)
	return resps
}

func (h *SlowCommandHook) DoCache(client rueidis.Client, ctx context.Context, cmd rueidis.Cacheable, ttl time.Duration) rueidis.RedisResult {
	return client.DoCache(ctx, cmd, ttl)
}

func (h *SlowCommandHook) DoMultiCache(client rueidis.Client, ctx context.Context, multi ...rueidis.CacheableTTL) []rueidis.RedisResult {
	return client.DoMultiCache(ctx, multi...)
}

func (h *SlowCommandHook) Receive(client rueidis.Client, ctx context.Context, subscribe rueidis.Completed, fn func(msg rueidis.PubSubMessage)) error {
	return client.Receive(ctx, subscribe, fn)
}

func (h *SlowCommandHook) DoStream(client rueidis.Client, ctx context.Context, cmd rueidis.Completed) rueidis.RedisResultStream {
	return client.DoStream(ctx, cmd)
}

func (h *SlowCommandHook) DoMultiStream(client rueidis.Client, ctx context.Context, multi ...rueidis.Completed) rueidis.MultiRedisResultStream {
	return client.DoMultiStream(ctx, multi...)
}
