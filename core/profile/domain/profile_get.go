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
)

// GetProfile looks a profile up by its exact username. No canonicalization
// is applied.
func (app *Application) GetProfile(ctx context.Context, username string) (*Profile, error) {
	if username == "" {
		return nil, fieldError(ErrInvalidRequest, "username", "No username provided.")
	}

	p, err := app.reader.GetProfileByUsername(ctx, username)
	if err != nil {
		return nil, app.readError(ctx, username, err)
	}
	return p, nil
}

// ListProfiles returns every stored profile.
func (app *Application) ListProfiles(ctx context.Context) ([]Profile, error) {
	profiles, err := app.reader.ListProfiles(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "list profiles failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: list profiles: %w", ErrStorageFailure, err)
	}
	if profiles == nil {
		profiles = []Profile{}
	}
	return profiles, nil
}

func (app *Application) readError(ctx context.Context, username string, err error) error {
	if errors.Is(err, ErrProfileNotFound) {
		return fieldError(ErrProfileNotFound, "username", fmt.Sprintf("No profile with username %s found.", username))
	}
	slog.ErrorContext(ctx, "get profile failed",
		slog.String("username", username),
		slog.Any("error", err),
	)
	return fmt.Errorf("%w: get profile: %w", ErrStorageFailure, err)
}
