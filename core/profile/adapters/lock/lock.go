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

// Package lock serializes profile updates per username.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyline/core/profile/domain"
	"storyline/modules/db/redis/locking"
	"storyline/modules/keylock"
)

var (
	_ domain.TaskLocker = (*RedisLocker)(nil)
	_ domain.TaskLocker = (*LocalLocker)(nil)
)

// RedisLocker holds the lock in Redis so that every replica of the service
// sees it.
type RedisLocker struct {
	exec   *locking.LockingTaskExecutor
	atMost time.Duration
}

// NewRedisLocker runs tasks through exec, bounding each by atMost when positive.
func NewRedisLocker(exec *locking.LockingTaskExecutor, atMost time.Duration) *RedisLocker {
	return &RedisLocker{exec: exec, atMost: atMost}
}

func (l *RedisLocker) WithLock(ctx context.Context, name string, task func(ctx context.Context) error) error {
	err := l.exec.Execute(ctx, locking.LockConfiguration{Name: name, LockAtMostFor: l.atMost}, task)
	if errors.Is(err, locking.ErrLockNotAcquired) {
		return fmt.Errorf("%w: %w", domain.ErrProfileLocked, err)
	}
	return err
}

// LocalLocker is used when Redis is not configured. It only serializes
// updates within this process.
type LocalLocker struct {
	keys    *keylock.KeyedMutex
	timeout time.Duration
}

// NewLocalLocker waits at most timeout for a busy name, forever when zero.
func NewLocalLocker(timeout time.Duration) *LocalLocker {
	return &LocalLocker{keys: keylock.New(), timeout: timeout}
}

func (l *LocalLocker) WithLock(ctx context.Context, name string, task func(ctx context.Context) error) error {
	acquireCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	unlock, err := l.keys.Lock(acquireCtx, name)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %q still held after %s", domain.ErrProfileLocked, name, l.timeout)
	}
	defer unlock()

	return task(ctx)
}
