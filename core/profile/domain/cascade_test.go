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
	"testing"

	"storyline/core/profile/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

func statuses(r *domain.CascadeReport) map[domain.CascadeStep]domain.StepStatus {
	out := make(map[domain.CascadeStep]domain.StepStatus, len(r.Steps))
	for _, s := range r.Steps {
		out[s.Step] = s.Status
	}
	return out
}

func TestCascade_CompensationRestoresState(t *testing.T) {
	tests := []struct {
		method string
		failed domain.CascadeStep
	}{
		{"DeleteProfile", domain.StepDeleteProfile},
		{"InsertProfile", domain.StepInsertProfile},
		{"RenameAccount", domain.StepRenameAccount},
		{"RenameStoryAuthor", domain.StepRenameStories},
		{"RenameCommenter", domain.StepRenameComments},
		{"RenameReplyCommenter", domain.StepRenameReplies},
		{"ReplaceCommentLike", domain.StepReplaceLikes},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			s := seeded(t)
			before := snap(t, s)
			faulty := newFaultyStore(s, tt.method, 1, errInjected)
			events := &recordingPublisher{}
			app := domain.NewApp(s, faulty, domain.WithEventPublisher(events))

			_, err := app.UpdateProfile(context.Background(), "Alice", &domain.ProfileUpdate{Username: ptr("Carol")})
			require.ErrorIs(t, err, domain.ErrStorageFailure)
			require.ErrorIs(t, err, errInjected)

			var ce *domain.CascadeError
			require.ErrorAs(t, err, &ce)
			r := ce.Report
			assert.Equal(t, "Alice", r.From)
			assert.Equal(t, "Carol", r.To)
			assert.True(t, r.Renamed)
			assert.False(t, r.Atomic)
			assert.Equal(t, tt.failed, r.FailedStep)
			assert.True(t, r.Compensated)
			assert.Equal(t, domain.StepFailed, statuses(r)[tt.failed])
			for _, step := range r.Completed() {
				assert.Equal(t, domain.StepCompensated, statuses(r)[step], step)
			}

			assert.Equal(t, before, snap(t, s), "store is back to its pre-rename state")
			assert.Empty(t, events.events)
		})
	}
}

func TestCascade_ReportOrder(t *testing.T) {
	s := seeded(t)
	app := domain.NewApp(s, newFaultyStore(s, "RenameCommenter", 1, errInjected))

	_, err := app.UpdateProfile(context.Background(), "Alice", &domain.ProfileUpdate{Username: ptr("Carol")})
	var ce *domain.CascadeError
	require.ErrorAs(t, err, &ce)

	steps := make([]domain.CascadeStep, len(ce.Report.Steps))
	for i, s := range ce.Report.Steps {
		steps[i] = s.Step
	}
	assert.Equal(t, []domain.CascadeStep{
		domain.StepDeleteProfile,
		domain.StepInsertProfile,
		domain.StepRenameAccount,
		domain.StepRenameStories,
		domain.StepRenameComments,
		domain.StepRenameReplies,
		domain.StepReplaceLikes,
	}, steps)
	assert.Equal(t, []domain.CascadeStep{
		domain.StepDeleteProfile,
		domain.StepInsertProfile,
		domain.StepRenameAccount,
		domain.StepRenameStories,
	}, ce.Report.Completed())
	assert.Equal(t, domain.StepPending, statuses(ce.Report)[domain.StepReplaceLikes])
	assert.EqualValues(t, 1, ce.Report.Steps[3].Affected, "one story by Alice")
}

func TestCascade_WithoutRenameFailure(t *testing.T) {
	s := seeded(t)
	before := snap(t, s)
	app := domain.NewApp(s, newFaultyStore(s, "InsertProfile", 1, errInjected))

	_, err := app.UpdateProfile(context.Background(), "Alice", &domain.ProfileUpdate{Bio: ptr("A brand new biography.")})
	var ce *domain.CascadeError
	require.ErrorAs(t, err, &ce)
	assert.False(t, ce.Report.Renamed)
	assert.Len(t, ce.Report.Steps, 2)
	assert.True(t, ce.Report.Compensated)
	assert.Equal(t, before, snap(t, s))
}

func TestCascade_ExistingProfileWithoutAccount(t *testing.T) {
	s := seeded(t)
	s.PutProfile(dave())
	before := snap(t, s)
	app := domain.NewApp(s, s)

	_, err := app.UpdateProfile(context.Background(), "Alice", &domain.ProfileUpdate{Username: ptr("dave")})
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	require.ErrorIs(t, err, domain.ErrDuplicateProfile)

	var ce *domain.CascadeError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, domain.StepInsertProfile, ce.Report.FailedStep)
	assert.Equal(t, before, snap(t, s))
}

func TestCascade_CompensationFailure(t *testing.T) {
	s := seeded(t)
	// fails the step and its undo
	faulty := newFaultyStore(s, "RenameStoryAuthor", 2, errInjected)
	faulty.partial = true
	app := domain.NewApp(s, faulty)

	_, err := app.UpdateProfile(context.Background(), "Alice", &domain.ProfileUpdate{Username: ptr("Carol")})
	var ce *domain.CascadeError
	require.ErrorAs(t, err, &ce)

	r := ce.Report
	assert.False(t, r.Compensated)
	failed := r.Steps[3]
	assert.Equal(t, domain.StepRenameStories, failed.Step)
	assert.Equal(t, domain.StepFailed, failed.Status)
	assert.ErrorIs(t, failed.CompensationErr, errInjected)
	assert.Equal(t, domain.StepCompensated, statuses(r)[domain.StepRenameAccount])
}

func TestCascade_PartiallyAppliedStepIsUndone(t *testing.T) {
	s := seeded(t)
	before := snap(t, s)
	faulty := newFaultyStore(s, "RenameCommenter", 1, errInjected)
	faulty.partial = true
	app := domain.NewApp(s, faulty)

	_, err := app.UpdateProfile(context.Background(), "Alice", &domain.ProfileUpdate{Username: ptr("Carol")})
	var ce *domain.CascadeError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, domain.StepRenameComments, ce.Report.FailedStep)
	assert.True(t, ce.Report.Compensated)
	assert.Equal(t, before, snap(t, s))
}

func TestCascade_CompensationKeepsExistingContentOfTarget(t *testing.T) {
	s := seeded(t)
	// Carol has no profile or account, but content under her name survives
	s.PutStory(domain.Story{ID: "s3", Title: "Orphaned", Author: "Carol"})
	s.PutComment(domain.Comment{ID: "c3", StoryID: "s1", Commenter: "Carol", Likes: []string{"Carol"}})
	before := snap(t, s)
	app := domain.NewApp(s, newFaultyStore(s, "ReplaceCommentLike", 1, errInjected))

	_, err := app.UpdateProfile(context.Background(), "Alice", &domain.ProfileUpdate{Username: ptr("Carol")})
	var ce *domain.CascadeError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, domain.StepReplaceLikes, ce.Report.FailedStep)
	assert.True(t, ce.Report.Compensated)

	after := snap(t, s)
	assert.Equal(t, before, after)
	for _, st := range after.Stories {
		if st.ID == "s3" {
			assert.Equal(t, "Carol", st.Author)
		}
	}
	for _, c := range after.Comments {
		if c.ID == "c3" {
			assert.Equal(t, "Carol", c.Commenter)
			assert.Equal(t, []string{"Carol"}, c.Likes)
		}
	}
}

func TestCascade_TransactionalStore(t *testing.T) {
	t.Run("step failure rolls back", func(t *testing.T) {
		s := seeded(t)
		faulty := newFaultyStore(s, "RenameCommenter", 1, errInjected)
		faulty.atomic = true
		app := domain.NewApp(s, faulty)

		_, err := app.UpdateProfile(context.Background(), "Alice", &domain.ProfileUpdate{Username: ptr("Carol")})
		var ce *domain.CascadeError
		require.ErrorAs(t, err, &ce)

		r := ce.Report
		assert.True(t, r.Atomic)
		assert.True(t, r.Compensated)
		assert.Equal(t, domain.StepRenameComments, r.FailedStep)
		got := statuses(r)
		assert.Equal(t, domain.StepRolledBack, got[domain.StepDeleteProfile])
		assert.Equal(t, domain.StepRolledBack, got[domain.StepRenameStories])
		assert.Equal(t, domain.StepFailed, got[domain.StepRenameComments])
		assert.Equal(t, domain.StepPending, got[domain.StepRenameReplies])
	})

	t.Run("commit failure", func(t *testing.T) {
		s := seeded(t)
		faulty := newFaultyStore(s, "", 0, nil)
		faulty.atomic = true
		faulty.commitErr = errors.New("could not serialize access")
		events := &recordingPublisher{}
		app := domain.NewApp(s, faulty, domain.WithEventPublisher(events))

		_, err := app.UpdateProfile(context.Background(), "Alice", &domain.ProfileUpdate{Username: ptr("Carol")})
		var ce *domain.CascadeError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, domain.StepCommit, ce.Report.FailedStep)
		assert.Len(t, ce.Report.Completed(), 7)
		for _, s := range ce.Report.Steps {
			assert.Equal(t, domain.StepRolledBack, s.Status)
		}
		assert.Empty(t, events.events)
	})
}

func dave() domain.Profile {
	return domain.Profile{Username: "Dave", Firstname: "Dave", Bio: "Dave has no account yet.", DateJoined: joined}
}
