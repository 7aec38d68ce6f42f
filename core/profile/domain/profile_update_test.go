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
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"storyline/core/profile/domain"
	"storyline/modules/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateProfile_RequestChecks(t *testing.T) {
	s := seeded(t)
	app := domain.NewApp(s, s)
	ctx := context.Background()

	_, err := app.UpdateProfile(ctx, "Alice", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = app.UpdateProfile(ctx, "", &domain.ProfileUpdate{Bio: ptr(aliceBio)})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = app.UpdateProfile(ctx, "Alice", &domain.ProfileUpdate{Bio: ptr("")})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	var fe *domain.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "bio", fe.Field)

	_, err = app.UpdateProfile(ctx, "Zed", &domain.ProfileUpdate{Bio: ptr(aliceBio)})
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestUpdateProfile_BioBounds(t *testing.T) {
	tests := []struct {
		name   string
		bio    string
		reason string
	}{
		{name: "9 chars", bio: bio(9), reason: "Bio cannot be less than 10 characters"},
		{name: "10 chars", bio: bio(10)},
		{name: "250 chars", bio: bio(250)},
		{name: "251 chars", bio: bio(251), reason: "Bio cannot be more than 250 characters"},
		{name: "250 multibyte chars", bio: strings.Repeat("é", 250)},
		{name: "9 multibyte chars", bio: strings.Repeat("é", 9), reason: "Bio cannot be less than 10 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seeded(t)
			app := domain.NewApp(s, s)

			p, err := app.UpdateProfile(context.Background(), "Alice", &domain.ProfileUpdate{Bio: ptr(tt.bio)})
			if tt.reason == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.bio, p.Bio)
				return
			}
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.EqualError(t, err, tt.reason)

			stored, getErr := s.GetProfileByUsername(context.Background(), "Alice")
			require.NoError(t, getErr)
			assert.Equal(t, aliceBio, stored.Bio)
		})
	}
}

func TestUpdateProfile_WithoutRename(t *testing.T) {
	s := seeded(t)
	before := snap(t, s)
	app := domain.NewApp(s, s)

	newBio := "Now living behind the looking glass."
	p, err := app.UpdateProfile(context.Background(), "alice", &domain.ProfileUpdate{
		Username:     ptr("ALICE"),
		Bio:          ptr(newBio),
		CoverPicture: ptr("mirror.png"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Alice", p.Username)
	assert.Equal(t, newBio, p.Bio)
	assert.Equal(t, "mirror.png", p.CoverPicture)
	assert.Equal(t, "alice.png", p.ProfilePicture, "absent picture is kept")
	assert.Equal(t, joined, p.DateJoined)

	after := snap(t, s)
	assert.Equal(t, before.Accounts, after.Accounts)
	assert.Equal(t, before.Stories, after.Stories)
	assert.Equal(t, before.Comments, after.Comments)
	assert.Equal(t, before.Replies, after.Replies)
}

func TestUpdateProfile_EmptyFieldsAreIgnored(t *testing.T) {
	s := seeded(t)
	app := domain.NewApp(s, s)

	p, err := app.UpdateProfile(context.Background(), "Alice", &domain.ProfileUpdate{
		Username:       ptr(""),
		ProfilePicture: ptr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Username)
	assert.Equal(t, "alice.png", p.ProfilePicture)
}

func TestUpdateProfile_RenameCascade(t *testing.T) {
	s := seeded(t)
	events := &recordingPublisher{}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	app := domain.NewApp(s, s,
		domain.WithEventPublisher(events),
		domain.WithClock(clock.NewManualClock(now)),
	)
	ctx := context.Background()

	p, err := app.UpdateProfile(ctx, "alice", &domain.ProfileUpdate{Username: ptr("carol")})
	require.NoError(t, err)
	assert.Equal(t, "Carol", p.Username)
	assert.Equal(t, "Liddell", p.Lastname)
	assert.Equal(t, aliceBio, p.Bio)
	assert.Equal(t, joined, p.DateJoined, "dateJoined survives a rename")

	_, err = s.GetProfileByUsername(ctx, "Alice")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
	stored, err := s.GetProfileByUsername(ctx, "Carol")
	require.NoError(t, err)
	assert.Equal(t, *p, *stored)

	assert.Equal(t, []domain.Account{
		{Username: "Bob", Email: "bob@example.com"},
		{Username: "Carol", Email: "alice@example.com"},
	}, s.Accounts())

	stories := s.Stories()
	assert.Equal(t, "Carol", stories[0].Author)
	assert.Equal(t, "Bob", stories[1].Author)

	comments := s.Comments()
	assert.Equal(t, "Carol", comments[0].Commenter)
	assert.Equal(t, []string{"Bob", "Carol"}, comments[0].Likes)
	assert.Equal(t, "Bob", comments[1].Commenter)
	assert.Equal(t, []string{"Bob", "Dave"}, comments[1].Likes, "other likes untouched")

	replies := s.Replies()
	assert.Equal(t, "Carol", replies[0].Commenter)
	assert.Equal(t, "Bob", replies[1].Commenter)

	require.Len(t, events.events, 1)
	assert.Equal(t, domain.ProfileRenamed{OldUsername: "Alice", NewUsername: "Carol", RenamedAt: now}, events.events[0])
}

func TestUpdateProfile_RenameToTakenUsername(t *testing.T) {
	s := seeded(t)
	before := snap(t, s)
	events := &recordingPublisher{}
	app := domain.NewApp(s, s, domain.WithEventPublisher(events))

	_, err := app.UpdateProfile(context.Background(), "Alice", &domain.ProfileUpdate{Username: ptr("bob")})
	require.ErrorIs(t, err, domain.ErrUsernameTaken)
	assert.EqualError(t, err, "Username Bob has been taken. Please choose another username")

	assert.Equal(t, before, snap(t, s), "nothing is mutated")
	assert.Empty(t, events.events)
}

func TestUpdateProfile_PublishFailureDoesNotFail(t *testing.T) {
	s := seeded(t)
	app := domain.NewApp(s, s, domain.WithEventPublisher(&recordingPublisher{err: errors.New("broker down")}))

	p, err := app.UpdateProfile(context.Background(), "Alice", &domain.ProfileUpdate{Username: ptr("Carol")})
	require.NoError(t, err)
	assert.Equal(t, "Carol", p.Username)
}

func TestUpdateProfile_Locking(t *testing.T) {
	t.Run("rename holds both names in order", func(t *testing.T) {
		s := seeded(t)
		locker := &recordingLocker{}
		app := domain.NewApp(s, s, domain.WithLocker(locker))

		_, err := app.UpdateProfile(context.Background(), "alice", &domain.ProfileUpdate{Username: ptr("aaron")})
		require.NoError(t, err)
		assert.Equal(t, []string{"profile:Aaron", "profile:Alice"}, locker.names)
	})

	t.Run("plain update holds one name", func(t *testing.T) {
		s := seeded(t)
		locker := &recordingLocker{}
		app := domain.NewApp(s, s, domain.WithLocker(locker))

		_, err := app.UpdateProfile(context.Background(), "Bob", &domain.ProfileUpdate{Bio: ptr("Still fixing things.")})
		require.NoError(t, err)
		assert.Equal(t, []string{"profile:Bob"}, locker.names)
	})

	t.Run("busy lock", func(t *testing.T) {
		s := seeded(t)
		before := snap(t, s)
		locker := &recordingLocker{err: fmt.Errorf("profile:Alice: %w", domain.ErrProfileLocked)}
		app := domain.NewApp(s, s, domain.WithLocker(locker))

		_, err := app.UpdateProfile(context.Background(), "Alice", &domain.ProfileUpdate{Username: ptr("Carol")})
		assert.ErrorIs(t, err, domain.ErrProfileLocked)
		assert.Equal(t, before, snap(t, s))
	})

	t.Run("lock backend failure", func(t *testing.T) {
		s := seeded(t)
		app := domain.NewApp(s, s, domain.WithLocker(&recordingLocker{err: errors.New("redis: i/o timeout")}))

		_, err := app.UpdateProfile(context.Background(), "Alice", &domain.ProfileUpdate{Bio: ptr(aliceBio)})
		assert.ErrorIs(t, err, domain.ErrStorageFailure)
	})
}

func TestUpdateProfile_IfVersion(t *testing.T) {
	s := seeded(t)
	app := domain.NewApp(s, s)
	ctx := context.Background()

	current, err := s.GetProfileByUsername(ctx, "Alice")
	require.NoError(t, err)

	_, err = app.UpdateProfile(ctx, "Alice", &domain.ProfileUpdate{Bio: ptr("An outdated biography."), IfVersion: "stale"})
	require.ErrorIs(t, err, domain.ErrPreconditionFailed)

	p, err := app.UpdateProfile(ctx, "Alice", &domain.ProfileUpdate{Bio: ptr("A current biography."), IfVersion: current.V()})
	require.NoError(t, err)
	assert.NotEqual(t, current.V(), p.V(), "the version follows the content")
}

func TestUpdateProfile_RenameToNonASCIIUsername(t *testing.T) {
	s := seeded(t)
	app := domain.NewApp(s, s)
	ctx := context.Background()

	current := "Alice"
	for _, tt := range []struct{ requested, stored string }{
		{"ßOB", "ßob"},
		{"ﬁONA", "ﬁona"},
	} {
		p, err := app.UpdateProfile(ctx, current, &domain.ProfileUpdate{Username: ptr(tt.requested)})
		require.NoError(t, err)
		assert.Equal(t, tt.stored, p.Username)

		// the stored name addresses the profile again
		p, err = app.UpdateProfile(ctx, p.Username, &domain.ProfileUpdate{Bio: ptr("Still curious after the rename.")})
		require.NoError(t, err, tt.stored)
		assert.Equal(t, tt.stored, p.Username)
		current = p.Username
	}
	assert.Equal(t, "ﬁona", s.Stories()[0].Author)
}
