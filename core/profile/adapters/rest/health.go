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
	"log/slog"
	"net/http"

	"storyline/modules/middleware/problem"
)

// Healthz returns 204 when the profile store answers, 503 otherwise.
func (p *ProfileAPI) Healthz(w http.ResponseWriter, r *http.Request) {
	if p.health != nil {
		if err := p.health.HealthCheck(); err != nil {
			slog.WarnContext(r.Context(), "health check failed", slog.Any("error", err))
			problem.Write(w, problem.ServiceUnavailable("profile store unavailable", problem.WithInstance(r.URL.Path)))
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
