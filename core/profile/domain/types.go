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
	"hash/fnv"
	"strconv"
	"time"
)

type (
	// Profile is the user-facing biographical record, keyed by username.
	Profile struct {
		Username       string
		Firstname      string
		Lastname       string
		Bio            string
		ProfilePicture string
		CoverPicture   string
		// DateJoined never changes, not even across renames.
		DateJoined time.Time
	}

	// Account is the credential record sharing the profile's username.
	// Credentials themselves are opaque to this service.
	Account struct {
		Username string
		Email    string
	}

	Story struct {
		ID     string
		Title  string
		Author string
	}

	Comment struct {
		ID        string
		StoryID   string
		Commenter string
		Content   string
		// Likes holds the usernames of the users who liked the comment.
		Likes []string
	}

	Reply struct {
		ID        string
		CommentID string
		Commenter string
		Content   string
	}

	// ProfileUpdate carries the optional fields of an update request.
	// A nil field is absent. Empty Username and pictures count as absent too.
	ProfileUpdate struct {
		Username       *string
		Bio            *string
		ProfilePicture *string
		CoverPicture   *string

		// IfVersion, when set, must equal the V() of the stored profile.
		IfVersion string
	}

	// ProfileRenamed is published after a rename cascade commits.
	ProfileRenamed struct {
		OldUsername string
		NewUsername string
		RenamedAt   time.Time
	}
)

// V derives a version string from the profile content, used for ETags.
func (p *Profile) V() string {
	h := fnv.New64a()
	for _, f := range []string{p.Username, p.Firstname, p.Lastname, p.Bio, p.ProfilePicture, p.CoverPicture} {
		_, _ = h.Write([]byte(f))
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write([]byte(strconv.FormatInt(p.DateJoined.UnixNano(), 10)))
	return strconv.FormatUint(h.Sum64(), 36)
}
