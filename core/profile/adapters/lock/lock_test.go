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

package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storyline/core/profile/domain"
	"storyline/modules/db/redis/locking"

	"github.com/redis/rueidis/rueidislock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_BusyName(t *testing.T) {
	l := NewLocalLocker(20 * time.Millisecond)
	ctx := context.Background()

	entered := make(chan struct{})
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Go(func() {
		_ = l.WithLock(ctx, "profile:Alice", func(context.Context) error {
			close(entered)
			<-done
			return nil
		})
	})
	<-entered

	err := l.WithLock(ctx, "profile:Alice", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, domain.ErrProfileLocked)

	err = l.WithLock(ctx, "profile:Bob", func(context.Context) error { return nil })
	assert.NoError(t, err)

	close(done)
	wg.Wait()

	require.NoError(t, l.WithLock(ctx, "profile:Alice", func(context.Context) error { return nil }))
}

func TestLocalLocker_TaskErrorPassesThrough(t *testing.T) {
	l := NewLocalLocker(0)
	boom := errors.New("boom")

	err := l.WithLock(context.Background(), "profile:Alice", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrProfileLocked)
}

type heldLocker struct{}

func (heldLocker) WithContext(ctx context.Context, _ string) (context.Context, context.CancelFunc, error) {
	<-ctx.Done()
	return nil, nil, ctx.Err()
}

func (heldLocker) TryWithContext(context.Context, string) (context.Context, context.CancelFunc, error) {
	return nil, nil, rueidislock.ErrNotLocked
}

type freeLocker struct{}

func (freeLocker) WithContext(ctx context.Context, _ string) (context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	return ctx, cancel, nil
}

func (f freeLocker) TryWithContext(ctx context.Context, name string) (context.Context, context.CancelFunc, error) {
	return f.WithContext(ctx, name)
}

func TestRedisLocker(t *testing.T) {
	t.Run("held elsewhere", func(t *testing.T) {
		exec := locking.NewLockingTaskExecutor(heldLocker{}, locking.WithWaitForLock(true), locking.WithAcquireTimeout(10*time.Millisecond))
		l := NewRedisLocker(exec, time.Second)

		err := l.WithLock(context.Background(), "profile:Alice", func(context.Context) error { return nil })
		assert.ErrorIs(t, err, domain.ErrProfileLocked)
	})

	t.Run("runs task with deadline", func(t *testing.T) {
		l := NewRedisLocker(locking.NewLockingTaskExecutor(freeLocker{}), time.Second)

		err := l.WithLock(context.Background(), "profile:Alice", func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil
		})
		assert.NoError(t, err)
	})
}
