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

package rest

import (
	"time"

	"storyline/core/profile/domain"

	"github.com/oapi-codegen/nullable"
)

type (
	// Profile mirrors the Profile schema of the OpenAPI document.
	Profile struct {
		Username       string    `json:"username"`
		Firstname      string    `json:"firstname"`
		Lastname       string    `json:"lastname"`
		Bio            string    `json:"bio"`
		ProfilePicture string    `json:"profilePicture"`
		CoverPicture   string    `json:"coverPicture"`
		DateJoined     time.Time `json:"dateJoined"`
	}

	// UpdateProfileRequest is the body of PUT and PATCH. Absent and null
	// members both leave the stored value alone.
	UpdateProfileRequest struct {
		Username     nullable.Nullable[string] `json:"username,omitempty"`
		Bio          nullable.Nullable[string] `json:"bio,omitempty"`
		Base64       nullable.Nullable[string] `json:"base64,omitempty"`
		CoverPicture nullable.Nullable[string] `json:"coverPicture,omitempty"`
	}

	CascadeReport struct {
		From           string        `json:"from"`
		To             string        `json:"to"`
		Renamed        bool          `json:"renamed"`
		Atomic         bool          `json:"atomic"`
		FailedStep     string        `json:"failedStep"`
		CompletedSteps []string      `json:"completedSteps"`
		Compensated    bool          `json:"compensated"`
		Steps          []CascadeStep `json:"steps"`
	}

	CascadeStep struct {
		Step     string `json:"step"`
		Status   string `json:"status"`
		Affected int64  `json:"affected"`
	}
)

func mapProfile(p *domain.Profile) Profile {
	return Profile{
		Username:       p.Username,
		Firstname:      p.Firstname,
		Lastname:       p.Lastname,
		Bio:            p.Bio,
		ProfilePicture: p.ProfilePicture,
		CoverPicture:   p.CoverPicture,
		DateJoined:     p.DateJoined,
	}
}

func mapProfiles(profiles []domain.Profile) []Profile {
	result := make([]Profile, 0, len(profiles))
	for i := range profiles {
		result = append(result, mapProfile(&profiles[i]))
	}
	return result
}

// toDomain returns nil for a nil request, which the domain rejects.
func (req *UpdateProfileRequest) toDomain() *domain.ProfileUpdate {
	if req == nil {
		return nil
	}
	return &domain.ProfileUpdate{
		Username:       optional(req.Username),
		Bio:            optional(req.Bio),
		ProfilePicture: optional(req.Base64),
		CoverPicture:   optional(req.CoverPicture),
	}
}

func optional(n nullable.Nullable[string]) *string {
	if !n.IsSpecified() || n.IsNull() {
		return nil
	}
	v, err := n.Get()
	if err != nil {
		return nil
	}
	return &v
}

func mapCascadeReport(r *domain.CascadeReport) CascadeReport {
	out := CascadeReport{
		From:           r.From,
		To:             r.To,
		Renamed:        r.Renamed,
		Atomic:         r.Atomic,
		FailedStep:     string(r.FailedStep),
		CompletedSteps: make([]string, 0, len(r.Steps)),
		Compensated:    r.Compensated,
		Steps:          make([]CascadeStep, 0, len(r.Steps)),
	}
	for _, s := range r.Completed() {
		out.CompletedSteps = append(out.CompletedSteps, string(s))
	}
	for _, s := range r.Steps {
		out.Steps = append(out.Steps, CascadeStep{Step: string(s.Step), Status: string(s.Status), Affected: s.Affected})
	}
	return out
}
