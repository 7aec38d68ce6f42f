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
	"errors"
	"net/http"
	"net/url"
	"strings"

	"storyline/core/profile/domain"
	"storyline/modules/api/serde"
	"storyline/modules/etag"
	"storyline/modules/middleware/problem"
)

// UpdateProfile serves both PUT and PATCH: only the provided fields change.
//
// An optional If-Match header makes the update conditional on the current
// ETag. Returns 200 with the new ETag, 412 on a version mismatch with the
// current ETag, 404 if not found.
func (p *ProfileAPI) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	username, err := bindUsername(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req *UpdateProfileRequest
	if err := serde.ParseJsonBody(r.Body, &req, serde.AllowUnknownFields()); err != nil && !errors.Is(err, serde.ErrEmptyBody) {
		problem.Write(w, problem.BadRequest("Malformed JSON body.",
			problem.WithCode("invalid_request"),
			problem.WithInstance(r.URL.Path),
			problem.WithInvalidParam("body", "invalid json"),
		))
		return
	}

	upd := req.toDomain()
	if upd != nil {
		version, ok := ifMatchVersion(r.Header.Get("If-Match"))
		if !ok {
			problem.Write(w, problem.BadRequest("invalid etag format",
				problem.WithCode("invalid_request"),
				problem.WithInstance(r.URL.Path),
				problem.WithInvalidParam("If-Match", "invalid etag format"),
			))
			return
		}
		upd.IfVersion = version
	}

	updated, err := p.app.UpdateProfile(r.Context(), username, upd)
	if err != nil {
		if errors.Is(err, domain.ErrPreconditionFailed) {
			// let the client retry against the current version
			if latest, fetchErr := p.app.GetProfile(r.Context(), domain.CanonicalUsername(username)); fetchErr == nil {
				w.Header().Set("ETag", etag.Header(latest))
			}
		}
		writeError(w, r, err)
		return
	}

	w.Header().Set("ETag", etag.Header(updated))
	if updated.Username != domain.CanonicalUsername(username) {
		w.Header().Set("Content-Location", "/v1/profiles/"+url.PathEscape(updated.Username))
	}
	serde.WriteJSON(w, http.StatusOK, mapProfile(updated))
}

// ifMatchVersion returns the version named by a single-tag If-Match header.
// An absent header and "*" impose no version.
func ifMatchVersion(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" || header == "*" {
		return "", true
	}
	v, err := etag.ParseETag(header)
	if err != nil {
		return "", false
	}
	return v, true
}
