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
	"sync"
	"testing"
	"time"

	"github.com/redis/rueidis/rueidislock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLocker grants one holder per name within the process.
type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]chan struct{}
	loseFns  map[string]context.CancelFunc
	acquired []string
	err      error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]chan struct{}{}, loseFns: map[string]context.CancelFunc{}}
}

func (f *fakeLocker) TryWithContext(ctx context.Context, name string) (context.Context, context.CancelFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, nil, f.err
	}
	if _, ok := f.held[name]; ok {
		return nil, nil, rueidislock.ErrNotLocked
	}
	lctx, cancel := f.grantLocked(ctx, name)
	return lctx, cancel, nil
}

func (f *fakeLocker) WithContext(ctx context.Context, name string) (context.Context, context.CancelFunc, error) {
	for {
		f.mu.Lock()
		if f.err != nil {
			f.mu.Unlock()
			return nil, nil, f.err
		}
		released, ok := f.held[name]
		if !ok {
			lctx, cancel := f.grantLocked(ctx, name)
			f.mu.Unlock()
			return lctx, cancel, nil
		}
		f.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

func (f *fakeLocker) grantLocked(ctx context.Context, name string) (context.Context, context.CancelFunc) {
	released := make(chan struct{})
	f.held[name] = released
	f.acquired = append(f.acquired, name)
	lctx, lose := context.WithCancel(ctx)
	f.loseFns[name] = lose

	return lctx, sync.OnceFunc(func() {
		lose()
		f.mu.Lock()
		delete(f.held, name)
		delete(f.loseFns, name)
		f.mu.Unlock()
		close(released)
	})
}

func (f *fakeLocker) isHeld(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.held[name]
	return ok
}

func (f *fakeLocker) lose(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fn, ok := f.loseFns[name]; ok {
		fn()
	}
}

func TestExecute_RunsTaskAndReleases(t *testing.T) {
	locker := newFakeLocker()
	exec := NewLockingTaskExecutor(locker, WithNamePrefix("test:"))

	ran := false
	err := exec.Execute(context.Background(), LockConfiguration{Name: "job"}, func(ctx context.Context) error {
		ran = true
		assert.True(t, locker.isHeld("test:job"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, locker.isHeld("test:job"))
	assert.Equal(t, []string{"test:job"}, locker.acquired)
}

func TestExecute_TaskErrorIsReturned(t *testing.T) {
	locker := newFakeLocker()
	exec := NewLockingTaskExecutor(locker)
	boom := errors.New("boom")

	err := exec.Execute(context.Background(), LockConfiguration{Name: "job"}, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, locker.isHeld("job"))
}

func TestExecute_TryOnceWhenHeld(t *testing.T) {
	locker := newFakeLocker()
	_, release, err := locker.TryWithContext(context.Background(), "job")
	require.NoError(t, err)
	defer release()

	exec := NewLockingTaskExecutor(locker)
	err = exec.Execute(context.Background(), LockConfiguration{Name: "job"}, func(context.Context) error {
		t.Fatal("task must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestExecute_WaitsForRelease(t *testing.T) {
	locker := newFakeLocker()
	_, release, err := locker.TryWithContext(context.Background(), "job")
	require.NoError(t, err)
	time.AfterFunc(20*time.Millisecond, release)

	exec := NewLockingTaskExecutor(locker, WithWaitForLock(true), WithAcquireTimeout(2*time.Second))
	err = exec.Execute(context.Background(), LockConfiguration{Name: "job"}, func(ctx context.Context) error {
		return ctx.Err()
	})
	require.NoError(t, err)
}

func TestExecute_AcquireTimeout(t *testing.T) {
	locker := newFakeLocker()
	_, release, err := locker.TryWithContext(context.Background(), "job")
	require.NoError(t, err)
	defer release()

	exec := NewLockingTaskExecutor(locker, WithWaitForLock(true), WithAcquireTimeout(20*time.Millisecond))
	err = exec.Execute(context.Background(), LockConfiguration{Name: "job"}, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestExecute_TaskOutlivesAcquireTimeout(t *testing.T) {
	locker := newFakeLocker()
	exec := NewLockingTaskExecutor(locker, WithWaitForLock(true), WithAcquireTimeout(10*time.Millisecond))

	err := exec.Execute(context.Background(), LockConfiguration{Name: "job"}, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(40 * time.Millisecond):
			return nil
		}
	})
	assert.NoError(t, err, "the acquire timeout must not cancel the task")
}

func TestExecute_LockAtMostFor(t *testing.T) {
	exec := NewLockingTaskExecutor(newFakeLocker())

	err := exec.Execute(context.Background(), LockConfiguration{Name: "job", LockAtMostFor: 10 * time.Millisecond},
		func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			<-ctx.Done()
			return ctx.Err()
		})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecute_LockLostCancelsTask(t *testing.T) {
	locker := newFakeLocker()
	exec := NewLockingTaskExecutor(locker)

	err := exec.Execute(context.Background(), LockConfiguration{Name: "job"}, func(ctx context.Context) error {
		locker.lose("job")
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_LockerErrors(t *testing.T) {
	locker := newFakeLocker()
	locker.err = rueidislock.ErrLockerClosed

	for _, wait := range []bool{false, true} {
		exec := NewLockingTaskExecutor(locker, WithWaitForLock(wait), WithAcquireTimeout(time.Second))
		err := exec.Execute(context.Background(), LockConfiguration{Name: "job"}, func(context.Context) error { return nil })
		assert.ErrorIs(t, err, rueidislock.ErrLockerClosed)
		assert.NotErrorIs(t, err, ErrLockNotAcquired)
	}
}

func TestExecute_InvalidConfiguration(t *testing.T) {
	exec := NewLockingTaskExecutor(newFakeLocker())
	noop := func(context.Context) error { return nil }

	assert.ErrorIs(t, exec.Execute(context.Background(), LockConfiguration{}, noop), ErrInvalidConfiguration)
	assert.ErrorIs(t, exec.Execute(context.Background(), LockConfiguration{Name: "job", LockAtMostFor: -time.Second}, noop), ErrInvalidConfiguration)
	assert.Error(t, exec.Execute(context.Background(), LockConfiguration{Name: "job"}, nil))
}
