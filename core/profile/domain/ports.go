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

package domain

import (
	"context"
	"time"
)

// ProfileReadStore defines the port for read operations.
//
// Implementations may route reads to replicas. Usernames are matched
// exactly, callers canonicalize beforehand where needed.
type ProfileReadStore interface {
	// GetProfileByUsername returns ErrProfileNotFound when no profile matches.
	GetProfileByUsername(ctx context.Context, username string) (*Profile, error)

	// ListProfiles returns every profile, oldest first.
	ListProfiles(ctx context.Context) ([]Profile, error)

	// AccountExists reports whether an account holds exactly this username.
	AccountExists(ctx context.Context, username string) (bool, error)
}

// ProfileWriteStore defines the port for the rename cascade writes.
//
// Transaction Handling:
// A transactional store commits everything fn did when fn returns nil and
// rolls everything back otherwise. A non-transactional store runs fn against
// itself; every operation is applied immediately and the caller is
// responsible for compensating on failure.
//
// Important: Do NOT nest WithTx calls - ProfileWriteTx intentionally does
// not expose WithTx.
type ProfileWriteStore interface {
	// Transactional reports whether WithTx is all-or-nothing.
	Transactional() bool

	WithTx(ctx context.Context, fn func(ctx context.Context, tx ProfileWriteTx) error) error
	// WithTimeoutTx is the same as WithTx but applies a context timeout before starting the transaction.
	WithTimeoutTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx ProfileWriteTx) error) error
}

// ProfileWriteTx holds the individual cascade operations.
//
// The content renames rewrite the denormalized copies of from to to and
// return the ids of the records they target, also alongside an error when
// a store may have applied part of the update. A non-nil only restricts them
// to those ids, which is how a rename is undone without touching records
// that held to beforehand.
//
// A ProfileWriteTx of a transactional store is NOT safe for concurrent use.
// Non-transactional implementations must be.
type ProfileWriteTx interface {
	// DeleteProfile removes the profile and returns it, or ErrProfileNotFound.
	DeleteProfile(ctx context.Context, username string) (*Profile, error)

	// InsertProfile stores p as is, or fails with ErrDuplicateProfile.
	InsertProfile(ctx context.Context, p *Profile) (*Profile, error)

	// RenameAccount moves the single account of from; usernames are unique
	// there, so it returns a count.
	RenameAccount(ctx context.Context, from, to string) (int64, error)

	RenameStoryAuthor(ctx context.Context, from, to string, only []string) ([]string, error)
	RenameCommenter(ctx context.Context, from, to string, only []string) ([]string, error)
	RenameReplyCommenter(ctx context.Context, from, to string, only []string) ([]string, error)

	// ReplaceCommentLike swaps from for to inside the likes of comments,
	// leaving the other likes alone.
	ReplaceCommentLike(ctx context.Context, from, to string, only []string) ([]string, error)
}

// TaskLocker runs task while holding the named lock.
//
// Failing to acquire the lock yields ErrProfileLocked; errors returned by
// task are passed through untouched.
type TaskLocker interface {
	WithLock(ctx context.Context, name string, task func(ctx context.Context) error) error
}

// EventPublisher announces committed renames to other services.
type EventPublisher interface {
	PublishProfileRenamed(ctx context.Context, event ProfileRenamed) error
}
