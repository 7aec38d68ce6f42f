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

package services

import (
	"net/http"

	"storyline/modules/middleware"
	"storyline/modules/server"

	"github.com/getkin/kin-openapi/openapi3"
)

var _ server.RegistrableService = (*ProfileAPIService)(nil)

// ProfileRoutes is implemented by the profile REST adapter.
type ProfileRoutes interface {
	Register(mux *http.ServeMux)
}

// ProfileAPIService encapsulates the registration logic for the Profile API.
type ProfileAPIService struct {
	spec    *openapi3.T
	handler ProfileRoutes
}

// NewProfileAPIService validates requests against spec; a nil spec disables validation.
func NewProfileAPIService(h ProfileRoutes, spec *openapi3.T) *ProfileAPIService {
	return &ProfileAPIService{spec: spec, handler: h}
}

// Register mounts the profile API routes.
func (s *ProfileAPIService) Register(mux *http.ServeMux) {
	s.handler.Register(mux)
}

// Middlewares returns global middlewares required by the Profile API, such as validation.
func (s *ProfileAPIService) Middlewares() []func(http.Handler) http.Handler {
	if s.spec == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{
		middleware.OpenAPIValidation(s.spec),
	}
}
