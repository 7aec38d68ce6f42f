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

package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingService struct{}

func (pingService) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(w.Header().Get("X-Trail")))
	})
}

func (pingService) Middlewares() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{trail("service")}
}

func trail(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("X-Trail", name)
			next.ServeHTTP(w, r)
		})
	}
}

func TestNew_BadPort(t *testing.T) {
	for _, port := range []int{0, -1, MAX_TCP_PORT + 1} {
		_, err := New("localhost", port)
		assert.Error(t, err, "port %d", port)
	}
}

func TestNew_MiddlewareOrder(t *testing.T) {
	mux := http.NewServeMux()
	s, err := New("", 8080,
		WithMux(mux),
		WithServices(pingService{}),
		WithGlobalMiddlewares(trail("outer"), trail("inner")),
	)
	require.NoError(t, err)
	assert.Same(t, mux, s.Mux())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	// global middlewares wrap the service ones
	assert.Equal(t, "outer,inner,service", strings.Join(rec.Header().Values("X-Trail"), ","))
	assert.Equal(t, "outer", rec.Body.String())
}
