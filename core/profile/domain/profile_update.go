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
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"unicode/utf8"
)

const (
	BioMinLength = 10
	BioMaxLength = 250
)

// UpdateProfile applies upd to the profile stored under the canonical form
// of username, then saves it by replacing the stored record. When the
// username changes, every denormalized copy of it is rewritten as well.
//
// Updates of the same username are serialized through the TaskLocker, and
// a rename also holds the lock of the target username.
func (app *Application) UpdateProfile(ctx context.Context, username string, upd *ProfileUpdate) (*Profile, error) {
	if upd == nil {
		return nil, fieldError(ErrInvalidRequest, "body", "No update provided.")
	}
	if username == "" {
		return nil, fieldError(ErrInvalidRequest, "username", "No username provided.")
	}
	if upd.Bio != nil && *upd.Bio == "" {
		return nil, fieldError(ErrInvalidRequest, "bio", "Bio cannot be empty.")
	}

	from := CanonicalUsername(username)
	to := from
	if upd.Username != nil && *upd.Username != "" {
		to = CanonicalUsername(*upd.Username)
	}

	var saved *Profile
	err := app.withLocks(ctx, lockNames(from, to), func(ctx context.Context) error {
		var err error
		saved, err = app.updateLocked(ctx, from, to, upd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (app *Application) updateLocked(ctx context.Context, from, to string, upd *ProfileUpdate) (*Profile, error) {
	current, err := app.reader.GetProfileByUsername(ctx, from)
	if err != nil {
		return nil, app.readError(ctx, from, err)
	}
	if upd.IfVersion != "" && upd.IfVersion != current.V() {
		return nil, fieldError(ErrPreconditionFailed, "If-Match", "The profile was modified since it was read.")
	}

	candidate := &Profile{
		Username:       to,
		Firstname:      current.Firstname,
		Lastname:       current.Lastname,
		Bio:            pick(upd.Bio, current.Bio),
		ProfilePicture: pick(upd.ProfilePicture, current.ProfilePicture),
		CoverPicture:   pick(upd.CoverPicture, current.CoverPicture),
		DateJoined:     current.DateJoined,
	}

	if err := validateBio(candidate.Bio); err != nil {
		return nil, err
	}

	renamed := candidate.Username != current.Username
	if renamed {
		taken, err := app.reader.AccountExists(ctx, candidate.Username)
		if err != nil {
			slog.ErrorContext(ctx, "account lookup failed",
				slog.String("username", candidate.Username),
				slog.Any("error", err),
			)
			return nil, fmt.Errorf("%w: account lookup: %w", ErrStorageFailure, err)
		}
		if taken {
			return nil, fieldError(ErrUsernameTaken, "username",
				fmt.Sprintf("Username %s has been taken. Please choose another username", candidate.Username))
		}
	}

	var saved *Profile
	plan := planCascade(current, candidate, renamed, &saved)
	report := newCascadeReport(current.Username, candidate.Username, renamed, plan)
	if err := app.runCascade(ctx, plan, report); err != nil {
		return nil, err
	}

	if renamed {
		app.publishRenamed(ctx, current.Username, candidate.Username)
	}
	return saved, nil
}

// validateBio checks the upper bound first; a bio cannot break both.
func validateBio(bio string) error {
	n := utf8.RuneCountInString(bio)
	if n > BioMaxLength {
		return fieldError(ErrValidation, "bio", fmt.Sprintf("Bio cannot be more than %d characters", BioMaxLength))
	}
	if n < BioMinLength {
		return fieldError(ErrValidation, "bio", fmt.Sprintf("Bio cannot be less than %d characters", BioMinLength))
	}
	return nil
}

func (app *Application) publishRenamed(ctx context.Context, from, to string) {
	event := ProfileRenamed{OldUsername: from, NewUsername: to, RenamedAt: app.clock.Now()}
	if err := app.events.PublishProfileRenamed(ctx, event); err != nil {
		slog.WarnContext(ctx, "profile renamed event not published",
			slog.String("from", from),
			slog.String("to", to),
			slog.Any("error", err),
		)
	}
}

// withLocks acquires names in order, nesting the tasks.
func (app *Application) withLocks(ctx context.Context, names []string, task func(ctx context.Context) error) error {
	if len(names) == 0 {
		return task(ctx)
	}
	err := app.locker.WithLock(ctx, names[0], func(ctx context.Context) error {
		return app.withLocks(ctx, names[1:], task)
	})
	if err != nil && !isDomainError(err) {
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	return err
}

// lockNames returns the distinct lock names sorted, so two opposite renames
// cannot deadlock.
func lockNames(from, to string) []string {
	names := []string{"profile:" + from}
	if to != from {
		names = append(names, "profile:"+to)
	}
	slices.Sort(names)
	return names
}

func isDomainError(err error) bool {
	for _, sentinel := range []error{
		ErrInvalidRequest, ErrProfileNotFound, ErrValidation, ErrUsernameTaken,
		ErrProfileLocked, ErrPreconditionFailed, ErrDuplicateProfile, ErrStorageFailure,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func pick(update *string, current string) string {
	if update != nil && *update != "" {
		return *update
	}
	return current
}
