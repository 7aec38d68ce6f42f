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
	"net/http"

	"storyline/core/profile/domain"
	"storyline/modules/api/serde"
	"storyline/modules/etag"

	"github.com/oapi-codegen/runtime"
)

// GetProfile retrieves a single profile by its exact username.
// Returns 200 with ETag header on success, 304 when If-None-Match names the
// current version, 404 if not found.
func (p *ProfileAPI) GetProfile(w http.ResponseWriter, r *http.Request) {
	username, err := bindUsername(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	prof, err := p.app.GetProfile(r.Context(), username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("ETag", etag.Header(prof))
	if inm := r.Header.Get("If-None-Match"); inm != "" && etag.Match(inm, prof) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	serde.WriteJSON(w, http.StatusOK, mapProfile(prof))
}

// bindUsername reads the username path segment. PathValue is already
// unescaped, so no path location is passed to the binder.
func bindUsername(r *http.Request) (string, error) {
	var username string
	err := runtime.BindStyledParameterWithOptions("simple", "username", r.PathValue("username"), &username,
		runtime.BindStyledParameterOptions{Explode: false, Required: true})
	if err != nil {
		return "", &domain.FieldError{Field: "username", Reason: "No username provided.", Err: domain.ErrInvalidRequest}
	}
	return username, nil
}
