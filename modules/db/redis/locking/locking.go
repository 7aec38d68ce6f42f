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

package locking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/rueidis/rueidislock"
)

// TaskFunc is the task signature executed under the distributed lock.
type TaskFunc func(ctx context.Context) error

// Locker is the part of rueidislock.Locker the executor relies on.
type Locker interface {
	WithContext(ctx context.Context, name string) (context.Context, context.CancelFunc, error)
	TryWithContext(ctx context.Context, name string) (context.Context, context.CancelFunc, error)
}

var _ Locker = (rueidislock.Locker)(nil)

// LockConfiguration describes one lock acquisition.
//
//   - Name         : logical lock name, e.g. "profile:Alice"
//   - LockAtMostFor: deadline applied to the task context, zero for none
type LockConfiguration struct {
	Name          string
	LockAtMostFor time.Duration
}

// ErrLockNotAcquired is returned when the lock is held elsewhere: on the
// first try in try-once mode, or until the acquire timeout in wait mode.
var ErrLockNotAcquired = errors.New("locking: lock not acquired")

// ErrInvalidConfiguration is returned when LockConfiguration is invalid.
var ErrInvalidConfiguration = errors.New("locking: invalid lock configuration")

// LockingTaskExecutor coordinates distributed locks around tasks.
type LockingTaskExecutor struct {
	locker Locker
	logger *slog.Logger

	// if true, Execute() blocks for the lock (locker.WithContext), bounded
	// by acquireTimeout when set. Otherwise TryWithContext is used once.
	waitForLock    bool
	acquireTimeout time.Duration

	// prepended to every LockConfiguration.Name
	namePrefix string
}

// Option configures a LockingTaskExecutor.
type Option func(*LockingTaskExecutor)

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(e *LockingTaskExecutor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWaitForLock configures whether Execute() should block until the lock
// is acquired (true) or try once and return ErrLockNotAcquired if it fails (false).
func WithWaitForLock(wait bool) Option {
	return func(e *LockingTaskExecutor) {
		e.waitForLock = wait
	}
}

// WithAcquireTimeout sets a max duration to wait for acquiring the lock
// when waitForLock = true. If zero, no extra timeout is added.
func WithAcquireTimeout(d time.Duration) Option {
	return func(e *LockingTaskExecutor) {
		e.acquireTimeout = d
	}
}

// WithNamePrefix adds a prefix to all lock names.
func WithNamePrefix(prefix string) Option {
	return func(e *LockingTaskExecutor) {
		e.namePrefix = prefix
	}
}

// NewLockingTaskExecutor constructs a LockingTaskExecutor. The default is
// "try once" behavior.
func NewLockingTaskExecutor(locker Locker, opts ...Option) *LockingTaskExecutor {
	e := &LockingTaskExecutor{
		locker: locker,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Execute acquires the lock named by cfg and runs task under it.
//
// The task context is cancelled when the lock is lost, when ctx is done or
// after cfg.LockAtMostFor. The lock is released when Execute returns, also
// on error or panic of the task.
func (e *LockingTaskExecutor) Execute(ctx context.Context, cfg LockConfiguration, task TaskFunc) error {
	if task == nil {
		return errors.New("locking: task must not be nil")
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	lockName := e.namePrefix + cfg.Name
	start := time.Now()

	lockCtx, release, err := e.acquire(ctx, lockName)
	if err != nil {
		return err
	}
	defer release()

	e.logger.DebugContext(ctx, "locking: lock acquired",
		slog.String("lock.name", lockName),
		slog.Duration("lock.acquire_latency", time.Since(start)),
	)

	taskCtx, taskCancel := lockCtx, context.CancelFunc(func() {})
	if cfg.LockAtMostFor > 0 {
		taskCtx, taskCancel = context.WithTimeout(lockCtx, cfg.LockAtMostFor)
	}
	defer taskCancel()

	err = task(taskCtx)
	if lockCtx.Err() != nil && ctx.Err() == nil {
		e.logger.WarnContext(ctx, "locking: lock lost while task was running",
			slog.String("lock.name", lockName),
			slog.Any("task.error", err),
		)
	}
	return err
}

func (e *LockingTaskExecutor) acquire(ctx context.Context, name string) (context.Context, context.CancelFunc, error) {
	if !e.waitForLock {
		lockCtx, cancel, err := e.locker.TryWithContext(ctx, name)
		switch {
		case errors.Is(err, rueidislock.ErrNotLocked):
			return nil, nil, fmt.Errorf("%w: %q is held elsewhere", ErrLockNotAcquired, name)
		case errors.Is(err, rueidislock.ErrLockerClosed):
			return nil, nil, fmt.Errorf("locking: locker closed while trying to acquire lock %q: %w", name, err)
		case err != nil:
			return nil, nil, fmt.Errorf("locking: failed to try-acquire lock %q: %w", name, err)
		}
		return lockCtx, cancel, nil
	}

	if e.acquireTimeout <= 0 {
		lockCtx, cancel, err := e.locker.WithContext(ctx, name)
		if err != nil {
			return nil, nil, acquireError(name, err)
		}
		return lockCtx, cancel, nil
	}

	// The lock context derives from the one passed in, so the acquire
	// timeout is a timer that must be stopped once the lock is held.
	acquireCtx, stopAcquire := context.WithCancel(ctx)
	timer := time.AfterFunc(e.acquireTimeout, stopAcquire)

	lockCtx, cancel, err := e.locker.WithContext(acquireCtx, name)
	if !timer.Stop() {
		if err == nil {
			cancel()
		}
		stopAcquire()
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("%w: %q still held after %s", ErrLockNotAcquired, name, e.acquireTimeout)
	}
	if err != nil {
		stopAcquire()
		return nil, nil, acquireError(name, err)
	}
	return lockCtx, func() {
		cancel()
		stopAcquire()
	}, nil
}

func acquireError(name string, err error) error {
	switch {
	case errors.Is(err, rueidislock.ErrLockerClosed):
		return fmt.Errorf("locking: locker closed while acquiring lock %q: %w", name, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("locking: failed to acquire lock %q: %w", name, err)
	}
}

func validateConfig(cfg LockConfiguration) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: lock name must not be empty", ErrInvalidConfiguration)
	}
	if cfg.LockAtMostFor < 0 {
		return fmt.Errorf("%w: lockAtMostFor must not be negative", ErrInvalidConfiguration)
	}
	return nil
}
