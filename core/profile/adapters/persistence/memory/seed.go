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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"storyline/core/profile/domain"
)

// Seed is the on-disk layout accepted by LoadSeedFile.
type Seed struct {
	Profiles []struct {
		Username       string    `json:"username"`
		Firstname      string    `json:"firstname"`
		Lastname       string    `json:"lastname"`
		Bio            string    `json:"bio"`
		ProfilePicture string    `json:"profilePicture"`
		CoverPicture   string    `json:"coverPicture"`
		DateJoined     time.Time `json:"dateJoined"`
	} `json:"profiles"`
	Accounts []struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"accounts"`
	Stories []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Author string `json:"author"`
	} `json:"stories"`
	Comments []struct {
		ID        string   `json:"id"`
		StoryID   string   `json:"storyId"`
		Commenter string   `json:"commenter"`
		Content   string   `json:"content"`
		Likes     []string `json:"likes"`
	} `json:"comments"`
	Replies []struct {
		ID        string `json:"id"`
		CommentID string `json:"commentId"`
		Commenter string `json:"commenter"`
		Content   string `json:"content"`
	} `json:"replies"`
}

// LoadSeedFile fills s with the records found in the JSON file at path.
func (s *Store) LoadSeedFile(path string) error {
	seed, err := readJSONFile[Seed](path)
	if err != nil {
		return fmt.Errorf("load seed %s: %w", path, err)
	}
	s.Apply(seed)
	return nil
}

// Apply puts every record of seed, overwriting records with the same key.
func (s *Store) Apply(seed *Seed) {
	for _, p := range seed.Profiles {
		s.PutProfile(domain.Profile{
			Username:       p.Username,
			Firstname:      p.Firstname,
			Lastname:       p.Lastname,
			Bio:            p.Bio,
			ProfilePicture: p.ProfilePicture,
			CoverPicture:   p.CoverPicture,
			DateJoined:     p.DateJoined,
		})
	}
	for _, a := range seed.Accounts {
		s.PutAccount(domain.Account{Username: a.Username, Email: a.Email})
	}
	for _, st := range seed.Stories {
		s.PutStory(domain.Story{ID: st.ID, Title: st.Title, Author: st.Author})
	}
	for _, c := range seed.Comments {
		s.PutComment(domain.Comment{ID: c.ID, StoryID: c.StoryID, Commenter: c.Commenter, Content: c.Content, Likes: c.Likes})
	}
	for _, r := range seed.Replies {
		s.PutReply(domain.Reply{ID: r.ID, CommentID: r.CommentID, Commenter: r.Commenter, Content: r.Content})
	}
}

func readJSONFile[T any](path string) (*T, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
