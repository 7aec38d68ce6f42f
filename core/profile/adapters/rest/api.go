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
	"storyline/modules/db"
)

// ProfileAPI implements the HTTP API handlers for profile operations.
// It acts as the REST adapter in the hexagonal architecture, translating
// HTTP requests into domain operations.
type ProfileAPI struct {
	app    *domain.Application
	health db.HealthManager
}

// NewProfileAPI wires the handlers to app. health reports on the backing store.
func NewProfileAPI(app *domain.Application, health db.HealthManager) *ProfileAPI {
	return &ProfileAPI{app: app, health: health}
}

// Register mounts the profile routes on mux.
func (p *ProfileAPI) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/profiles", p.ListProfiles)
	mux.HandleFunc("GET /v1/profiles/{username}", p.GetProfile)
	mux.HandleFunc("PUT /v1/profiles/{username}", p.UpdateProfile)
	mux.HandleFunc("PATCH /v1/profiles/{username}", p.UpdateProfile)
	// a wildcard never matches an empty segment
	mux.HandleFunc("/v1/profiles/{$}", p.missingUsername)
	mux.HandleFunc("GET /healthz", p.Healthz)
}

func (p *ProfileAPI) missingUsername(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, domain.ErrInvalidRequest)
}
