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
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"storyline/core/profile/domain"

	"github.com/gofrs/uuid/v5"
)

var (
	_ domain.ProfileReadStore  = (*Store)(nil)
	_ domain.ProfileWriteStore = (*Store)(nil)
	_ domain.ProfileWriteTx    = (*Store)(nil)
)

// Store keeps all five collections in process memory. It is not
// transactional: every write is visible immediately, so the application
// compensates failed cascades itself.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile // username -> profile
	accounts map[string]domain.Account // username -> account
	stories  map[string]domain.Story   // id -> story
	comments map[string]domain.Comment // id -> comment
	replies  map[string]domain.Reply   // id -> reply
}

func NewStore() *Store {
	return &Store{
		profiles: map[string]domain.Profile{},
		accounts: map[string]domain.Account{},
		stories:  map[string]domain.Story{},
		comments: map[string]domain.Comment{},
		replies:  map[string]domain.Reply{},
	}
}

// HealthCheck implements db.Backend.
func (s *Store) HealthCheck() error { return nil }

// Shutdown implements db.Backend. The records stay readable afterwards.
func (s *Store) Shutdown(context.Context) error { return nil }

// --- read port ---

func (s *Store) GetProfileByUsername(_ context.Context, username string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[username]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (s *Store) ListProfiles(_ context.Context) ([]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Collect(maps.Values(s.profiles))
	slices.SortFunc(out, func(a, b domain.Profile) int {
		return cmp.Or(a.DateJoined.Compare(b.DateJoined), cmp.Compare(a.Username, b.Username))
	})
	return out, nil
}

func (s *Store) AccountExists(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.accounts[username]
	return ok, nil
}

// --- write port ---

func (s *Store) Transactional() bool { return false }

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.ProfileWriteTx) error) error {
	return fn(ctx, s)
}

func (s *Store) WithTimeoutTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx domain.ProfileWriteTx) error) error {
	ctx, stop := context.WithTimeout(ctx, timeout)
	defer stop()

	return s.WithTx(ctx, fn)
}

func (s *Store) DeleteProfile(_ context.Context, username string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[username]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	delete(s.profiles, username)
	return &p, nil
}

func (s *Store) InsertProfile(_ context.Context, p *domain.Profile) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.Username]; ok {
		return nil, domain.ErrDuplicateProfile
	}
	s.profiles[p.Username] = *p
	saved := *p
	return &saved, nil
}

func (s *Store) RenameAccount(_ context.Context, from, to string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[from]
	if !ok {
		return 0, nil
	}
	if _, taken := s.accounts[to]; taken {
		return 0, domain.ErrUsernameTaken
	}
	delete(s.accounts, from)
	a.Username = to
	s.accounts[to] = a
	return 1, nil
}

func (s *Store) RenameStoryAuthor(_ context.Context, from, to string, only []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return renameField(s.stories, func(st *domain.Story) *string { return &st.Author }, from, to, only), nil
}

func (s *Store) RenameCommenter(_ context.Context, from, to string, only []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return renameField(s.comments, func(c *domain.Comment) *string { return &c.Commenter }, from, to, only), nil
}

func (s *Store) RenameReplyCommenter(_ context.Context, from, to string, only []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return renameField(s.replies, func(r *domain.Reply) *string { return &r.Commenter }, from, to, only), nil
}

func (s *Store) ReplaceCommentLike(_ context.Context, from, to string, only []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, id := range scopedIDs(s.comments, only) {
		c := s.comments[id]
		if !slices.Contains(c.Likes, from) {
			continue
		}
		likes := slices.Clone(c.Likes)
		for i := range likes {
			if likes[i] == from {
				likes[i] = to
			}
		}
		c.Likes = likes
		s.comments[id] = c
		ids = append(ids, id)
	}
	return ids, nil
}

// renameField rewrites the username field selected by field on every record
// holding from, limited to only when it is non-nil.
func renameField[T any](records map[string]T, field func(*T) *string, from, to string, only []string) []string {
	var ids []string
	for _, id := range scopedIDs(records, only) {
		rec := records[id]
		f := field(&rec)
		if *f != from {
			continue
		}
		*f = to
		records[id] = rec
		ids = append(ids, id)
	}
	return ids
}

// scopedIDs returns the keys of records in key order, or the ones of only
// that exist.
func scopedIDs[T any](records map[string]T, only []string) []string {
	if only == nil {
		return slices.Sorted(maps.Keys(records))
	}
	ids := make([]string, 0, len(only))
	for _, id := range only {
		if _, ok := records[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// --- seeding and inspection ---

func (s *Store) PutProfile(p domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.Username] = p
}

func (s *Store) PutAccount(a domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.Username] = a
}

// PutStory stores st, assigning an id when it has none, and returns the id.
func (s *Store) PutStory(st domain.Story) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.ID = idOrNew(st.ID)
	s.stories[st.ID] = st
	return st.ID
}

func (s *Store) PutComment(c domain.Comment) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = idOrNew(c.ID)
	c.Likes = slices.Clone(c.Likes)
	s.comments[c.ID] = c
	return c.ID
}

func (s *Store) PutReply(r domain.Reply) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = idOrNew(r.ID)
	s.replies[r.ID] = r
	return r.ID
}

func (s *Store) Accounts() []domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.accounts, func(a domain.Account) string { return a.Username })
}

func (s *Store) Stories() []domain.Story {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.stories, func(st domain.Story) string { return st.ID })
}

func (s *Store) Comments() []domain.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := sortedValues(s.comments, func(c domain.Comment) string { return c.ID })
	for i := range out {
		out[i].Likes = slices.Clone(out[i].Likes)
	}
	return out
}

func (s *Store) Replies() []domain.Reply {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.replies, func(r domain.Reply) string { return r.ID })
}

func sortedValues[T any](m map[string]T, key func(T) string) []T {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b T) int { return cmp.Compare(key(a), key(b)) })
	return out
}

func idOrNew(id string) string {
	if id != "" {
		return id
	}
	return uuid.Must(uuid.NewV7()).String()
}
