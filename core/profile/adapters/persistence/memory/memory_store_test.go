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

package memory

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"storyline/core/profile/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	joined := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)

	_, err := s.GetProfileByUsername(ctx, "Alice")
	require.ErrorIs(t, err, domain.ErrProfileNotFound)

	_, err = s.InsertProfile(ctx, &domain.Profile{Username: "Alice", DateJoined: joined})
	require.NoError(t, err)

	_, err = s.InsertProfile(ctx, &domain.Profile{Username: "Alice"})
	require.ErrorIs(t, err, domain.ErrDuplicateProfile)

	got, err := s.GetProfileByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, joined, got.DateJoined)

	_, err = s.GetProfileByUsername(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound, "lookups are exact")

	deleted, err := s.DeleteProfile(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", deleted.Username)

	_, err = s.DeleteProfile(ctx, "Alice")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestStore_ListProfilesOldestFirst(t *testing.T) {
	s := NewStore()
	base := time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)
	s.PutProfile(domain.Profile{Username: "Carol", DateJoined: base.Add(time.Hour)})
	s.PutProfile(domain.Profile{Username: "Bob", DateJoined: base})
	s.PutProfile(domain.Profile{Username: "Alice", DateJoined: base})

	got, err := s.ListProfiles(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, []string{got[0].Username, got[1].Username, got[2].Username})
}

func TestStore_RenameOperations(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.PutAccount(domain.Account{Username: "Alice", Email: "a@example.com"})
	s.PutStory(domain.Story{ID: "s1", Author: "Alice"})
	s.PutStory(domain.Story{ID: "s2", Author: "Bob"})
	s.PutComment(domain.Comment{ID: "c1", StoryID: "s2", Commenter: "Alice", Likes: []string{"Bob", "Alice"}})
	s.PutComment(domain.Comment{ID: "c2", StoryID: "s1", Commenter: "Bob", Likes: []string{"Bob"}})
	s.PutReply(domain.Reply{ID: "r1", CommentID: "c2", Commenter: "Alice"})

	n, err := s.RenameAccount(ctx, "Alice", "Carol")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	exists, _ := s.AccountExists(ctx, "Carol")
	assert.True(t, exists)
	assert.Equal(t, "a@example.com", s.Accounts()[0].Email)

	ids, err := s.RenameStoryAuthor(ctx, "Alice", "Carol", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	ids, err = s.RenameCommenter(ctx, "Alice", "Carol", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)

	ids, err = s.RenameReplyCommenter(ctx, "Alice", "Carol", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)

	ids, err = s.ReplaceCommentLike(ctx, "Alice", "Carol", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)

	stories := s.Stories()
	assert.Equal(t, "Carol", stories[0].Author)
	assert.Equal(t, "Bob", stories[1].Author)

	comments := s.Comments()
	assert.Equal(t, "Carol", comments[0].Commenter)
	assert.Equal(t, []string{"Bob", "Carol"}, comments[0].Likes)
	assert.Equal(t, []string{"Bob"}, comments[1].Likes)

	assert.Equal(t, "Carol", s.Replies()[0].Commenter)
}

func TestStore_ScopedRename(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.PutStory(domain.Story{ID: "s1", Author: "Carol"})
	s.PutStory(domain.Story{ID: "s2", Author: "Carol"})
	s.PutComment(domain.Comment{ID: "c1", Commenter: "Carol", Likes: []string{"Carol", "Bob"}})
	s.PutComment(domain.Comment{ID: "c2", Commenter: "Carol", Likes: []string{"Carol"}})

	ids, err := s.RenameStoryAuthor(ctx, "Carol", "Alice", []string{"s2", "missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, ids)
	assert.Equal(t, "Carol", s.Stories()[0].Author)
	assert.Equal(t, "Alice", s.Stories()[1].Author)

	ids, err = s.ReplaceCommentLike(ctx, "Carol", "Alice", []string{"c1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)
	assert.Equal(t, []string{"Alice", "Bob"}, s.Comments()[0].Likes)
	assert.Equal(t, []string{"Carol"}, s.Comments()[1].Likes)

	ids, err = s.RenameCommenter(ctx, "Carol", "Alice", []string{})
	require.NoError(t, err)
	assert.Empty(t, ids, "an empty scope renames nothing")
}

func TestStore_RenameAccountMissingAndTaken(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	n, err := s.RenameAccount(ctx, "Nobody", "Carol")
	require.NoError(t, err)
	assert.Zero(t, n)

	s.PutAccount(domain.Account{Username: "Alice"})
	s.PutAccount(domain.Account{Username: "Carol"})
	_, err = s.RenameAccount(ctx, "Alice", "Carol")
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
}

func TestStore_SnapshotsAreCopies(t *testing.T) {
	s := NewStore()
	likes := []string{"Bob"}
	s.PutComment(domain.Comment{ID: "c1", Likes: likes})
	likes[0] = "Mallory"

	got := s.Comments()
	assert.Equal(t, []string{"Bob"}, got[0].Likes)

	got[0].Likes[0] = "Eve"
	assert.Equal(t, []string{"Bob"}, s.Comments()[0].Likes)
}

func TestStore_ConcurrentRenames(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for range 50 {
		s.PutStory(domain.Story{Author: "Alice"})
	}

	var wg sync.WaitGroup
	var total int64
	var mu sync.Mutex
	for range 8 {
		wg.Go(func() {
			ids, err := s.RenameStoryAuthor(ctx, "Alice", "Carol", nil)
			assert.NoError(t, err)
			mu.Lock()
			total += int64(len(ids))
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.EqualValues(t, 50, total, "every story is renamed exactly once")
}

func TestStore_LoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"profiles": [{"username": "Alice", "firstname": "Alice", "lastname": "Liddell",
			"bio": "Curiouser and curiouser", "dateJoined": "2020-01-02T00:00:00Z"}],
		"accounts": [{"username": "Alice", "email": "alice@example.com"}],
		"stories": [{"id": "s1", "title": "Wonderland", "author": "Alice"}],
		"comments": [{"id": "c1", "storyId": "s1", "commenter": "Alice", "likes": ["Alice"]}],
		"replies": [{"commentId": "c1", "commenter": "Alice"}]
	}`), 0o600))

	s := NewStore()
	require.NoError(t, s.LoadSeedFile(path))

	p, err := s.GetProfileByUsername(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Liddell", p.Lastname)
	assert.Len(t, s.Stories(), 1)
	assert.Equal(t, []string{"Alice"}, s.Comments()[0].Likes)
	require.Len(t, s.Replies(), 1)
	assert.NotEmpty(t, s.Replies()[0].ID, "missing ids are generated")

	assert.Error(t, s.LoadSeedFile(filepath.Join(t.TempDir(), "missing.json")))
}
