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

package domain_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"storyline/core/profile/adapters/persistence/memory"
	"storyline/core/profile/domain"

	"github.com/stretchr/testify/require"
)

var joined = time.Date(2019, 3, 14, 9, 26, 0, 0, time.UTC)

const aliceBio = "Curious explorer of rabbit holes."

// seeded returns a store holding Alice and Bob with content cross-referencing both.
func seeded(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	s.PutProfile(domain.Profile{
		Username: "Alice", Firstname: "Alice", Lastname: "Liddell", Bio: aliceBio,
		ProfilePicture: "alice.png", CoverPicture: "garden.png", DateJoined: joined,
	})
	s.PutProfile(domain.Profile{
		Username: "Bob", Firstname: "Bob", Lastname: "Builder", Bio: "Can we fix it? Yes we can!",
		DateJoined: joined.Add(time.Hour),
	})
	s.PutAccount(domain.Account{Username: "Alice", Email: "alice@example.com"})
	s.PutAccount(domain.Account{Username: "Bob", Email: "bob@example.com"})
	s.PutStory(domain.Story{ID: "s1", Title: "Down the hole", Author: "Alice"})
	s.PutStory(domain.Story{ID: "s2", Title: "Scaffolding", Author: "Bob"})
	s.PutComment(domain.Comment{ID: "c1", StoryID: "s2", Commenter: "Alice", Likes: []string{"Bob", "Alice"}})
	s.PutComment(domain.Comment{ID: "c2", StoryID: "s1", Commenter: "Bob", Likes: []string{"Bob", "Dave"}})
	s.PutReply(domain.Reply{ID: "r1", CommentID: "c2", Commenter: "Alice"})
	s.PutReply(domain.Reply{ID: "r2", CommentID: "c1", Commenter: "Bob"})
	return s
}

type snapshot struct {
	Profiles []domain.Profile
	Accounts []domain.Account
	Stories  []domain.Story
	Comments []domain.Comment
	Replies  []domain.Reply
}

func snap(t *testing.T, s *memory.Store) snapshot {
	t.Helper()
	profiles, err := s.ListProfiles(context.Background())
	require.NoError(t, err)
	return snapshot{
		Profiles: profiles,
		Accounts: s.Accounts(),
		Stories:  s.Stories(),
		Comments: s.Comments(),
		Replies:  s.Replies(),
	}
}

func ptr(s string) *string { return &s }

// faultyStore fails the next calls of one ProfileWriteTx method.
type faultyStore struct {
	*memory.Store
	atomic bool
	// partial makes failing content renames apply before they error
	partial bool
	failOn  string
	err     error
	// commitErr is returned by WithTx after fn succeeded
	commitErr error

	mu        sync.Mutex
	remaining int
}

func newFaultyStore(s *memory.Store, method string, times int, err error) *faultyStore {
	return &faultyStore{Store: s, failOn: method, remaining: times, err: err}
}

func (f *faultyStore) Transactional() bool { return f.atomic }

func (f *faultyStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.ProfileWriteTx) error) error {
	if err := fn(ctx, f); err != nil {
		return err
	}
	return f.commitErr
}

func (f *faultyStore) WithTimeoutTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx domain.ProfileWriteTx) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return f.WithTx(ctx, fn)
}

func (f *faultyStore) fail(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if method != f.failOn || f.remaining == 0 {
		return nil
	}
	f.remaining--
	return f.err
}

// content runs op unless the call is to fail. Partial failures apply op
// first and still report its ids.
func (f *faultyStore) content(method string, op func() ([]string, error)) ([]string, error) {
	err := f.fail(method)
	if err == nil {
		return op()
	}
	if !f.partial {
		return nil, err
	}
	ids, opErr := op()
	if opErr != nil {
		return ids, opErr
	}
	return ids, err
}

func (f *faultyStore) DeleteProfile(ctx context.Context, username string) (*domain.Profile, error) {
	if err := f.fail("DeleteProfile"); err != nil {
		return nil, err
	}
	return f.Store.DeleteProfile(ctx, username)
}

func (f *faultyStore) InsertProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	if err := f.fail("InsertProfile"); err != nil {
		return nil, err
	}
	return f.Store.InsertProfile(ctx, p)
}

func (f *faultyStore) RenameAccount(ctx context.Context, from, to string) (int64, error) {
	if err := f.fail("RenameAccount"); err != nil {
		return 0, err
	}
	return f.Store.RenameAccount(ctx, from, to)
}

func (f *faultyStore) RenameStoryAuthor(ctx context.Context, from, to string, only []string) ([]string, error) {
	return f.content("RenameStoryAuthor", func() ([]string, error) { return f.Store.RenameStoryAuthor(ctx, from, to, only) })
}

func (f *faultyStore) RenameCommenter(ctx context.Context, from, to string, only []string) ([]string, error) {
	return f.content("RenameCommenter", func() ([]string, error) { return f.Store.RenameCommenter(ctx, from, to, only) })
}

func (f *faultyStore) RenameReplyCommenter(ctx context.Context, from, to string, only []string) ([]string, error) {
	return f.content("RenameReplyCommenter", func() ([]string, error) { return f.Store.RenameReplyCommenter(ctx, from, to, only) })
}

func (f *faultyStore) ReplaceCommentLike(ctx context.Context, from, to string, only []string) ([]string, error) {
	return f.content("ReplaceCommentLike", func() ([]string, error) { return f.Store.ReplaceCommentLike(ctx, from, to, only) })
}

type recordingLocker struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (l *recordingLocker) WithLock(ctx context.Context, name string, task func(ctx context.Context) error) error {
	l.mu.Lock()
	l.names = append(l.names, name)
	l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	return task(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ProfileRenamed
	err    error
}

func (p *recordingPublisher) PublishProfileRenamed(_ context.Context, e domain.ProfileRenamed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func bio(n int) string { return strings.Repeat("a", n) }
