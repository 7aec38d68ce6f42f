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

package ratelimit

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"storyline/modules/middleware/problem"
	rl "storyline/modules/ratelimit"
)

type (
	Pattern string
	method  string

	// KeyFunc extracts the caller identifier, e.g. the remote IP.
	KeyFunc func(*http.Request) rl.Key

	// RouteInfoFunc resolves the route a request is served by.
	RouteInfoFunc func(*http.Request) RouteInfo

	// RouteInfo is the router-agnostic view of a request used for policy lookup.
	RouteInfo struct {
		ID     Pattern
		Method string
		Path   string
	}

	Policy struct {
		Limiter rl.RateLimiter
		KeyFn   KeyFunc
	}

	// RuntimePolicy is the compiled RestHTTPConfig.
	RuntimePolicy struct {
		byRoute map[Pattern]map[method]Policy

		// fallbacks when a route has no policy of its own; the
		// method-specific one wins over the catch-all
		defaultByMethod map[method]Policy
		defaultPolicy   *Policy

		// AllowIfNoMatch lets requests without any policy through.
		AllowIfNoMatch bool
		// AllowIfNoIdentifier lets requests through when KeyFn yields nothing.
		AllowIfNoIdentifier bool

		RouteInfoFn RouteInfoFunc
	}
)

func normalizeMethod(m string) method {
	return method(strings.ToUpper(m))
}

func (p *RuntimePolicy) lookup(info RouteInfo) (Policy, string, bool) {
	m := normalizeMethod(info.Method)
	if px, ok := p.byRoute[info.ID][m]; ok {
		return px, "explicit", true
	}
	if px, ok := p.defaultByMethod[m]; ok && info.Method != "" {
		return px, "default_method", true
	}
	if p.defaultPolicy != nil {
		return *p.defaultPolicy, "default", true
	}
	return Policy{}, "", false
}

// ParsePolicy compiles cfg into limiters built by factory. Route patterns
// must be the patterns the router registers, see MuxRouteInfo.
func ParsePolicy(
	factory rl.LimiterFactory,
	cfg *RestHTTPConfig,
	routeFn RouteInfoFunc,
	keyStrategies map[KeyStrategyId]KeyFunc,
) (*RuntimePolicy, error) {
	rtp := &RuntimePolicy{
		byRoute:             make(map[Pattern]map[method]Policy, len(cfg.Routes)),
		AllowIfNoIdentifier: cfg.AllowIfNoIdentifier,
		AllowIfNoMatch:      cfg.AllowIfNoMatch,
		RouteInfoFn:         routeFn,
	}

	compile := func(rule EndpointRule) (Policy, bool) {
		ks, ok := keyStrategies[rule.KeyStrategy]
		if !ok {
			return Policy{}, false
		}
		return Policy{Limiter: factory(rule.Limit, rule.Window), KeyFn: ks}, true
	}

	// the default only counts as configured when it can be enforced
	if def := cfg.DefaultPolicy; def.Window > 0 && def.KeyStrategy != "" {
		p, ok := compile(def)
		if !ok {
			return nil, fmt.Errorf("ratelimit parse policy: no such default key strategy %q", def.KeyStrategy)
		}
		if def.Method != "" {
			rtp.defaultByMethod = map[method]Policy{normalizeMethod(def.Method): p}
		} else {
			rtp.defaultPolicy = &p
		}
	}

	for _, r := range cfg.Routes {
		pat := Pattern(r.Pattern)
		methods, ok := rtp.byRoute[pat]
		if !ok {
			methods = make(map[method]Policy, len(r.EndpointRules))
			rtp.byRoute[pat] = methods
		}

		for _, rule := range r.EndpointRules {
			m := normalizeMethod(rule.Method)
			if _, dup := methods[m]; dup {
				return nil, fmt.Errorf("ratelimit parse policy: duplicate method %s on %s", m, pat)
			}
			p, ok := compile(rule)
			if !ok {
				return nil, fmt.Errorf("ratelimit parse policy: no such key strategy %q on %s", rule.KeyStrategy, pat)
			}
			methods[m] = p
		}
	}
	return rtp, nil
}

func NewRateLimitMiddleware(p *RuntimePolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			info := p.RouteInfoFn(r)
			log := slog.With(
				slog.String("middleware", "rate_limiter"),
				slog.String("url", r.URL.Path),
				slog.Any("route_info", info),
			)

			if info.Method == "" {
				log.ErrorContext(ctx, "no method found")
				problem.Write(w, problem.MethodNotAllowed("method not allowed"))
				return
			}

			px, source, ok := p.lookup(info)
			if !ok {
				// unmatched routes end up as the mux's 404/405 anyway
				if info.ID != "" {
					log.WarnContext(ctx, "no rate limit policy found")
				}
				if p.AllowIfNoMatch {
					next.ServeHTTP(w, r)
					return
				}
				if info.ID == "" {
					problem.Write(w, problem.MethodNotAllowed("not allowed"))
					return
				}
				tooMany(w)
				return
			}
			if source != "explicit" {
				log.DebugContext(ctx, "using default rate limit policy", slog.String("policy_source", source))
			}

			var key rl.Key
			if px.KeyFn != nil {
				key = px.KeyFn(r)
			}
			if key == "" {
				if p.AllowIfNoIdentifier {
					next.ServeHTTP(w, r)
					return
				}
				log.WarnContext(ctx, "no rate limit key for request")
				tooMany(w)
				return
			}

			result, err := px.Limiter.Allow(ctx, key)
			if err != nil {
				// counter store may be down
				log.ErrorContext(ctx, "rate limit error", slog.Any("error", err))
				problem.Write(w, problem.Internal(http.StatusText(http.StatusInternalServerError)))
				return
			}

			// handlers may reset headers, so re-apply right before the response is committed
			w = &rateLimitHeaderWriter{ResponseWriter: w, result: result}

			if !result.Allowed {
				log.DebugContext(ctx, "rate limited", slog.String("key", string(key)))
				w.Header().Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds(), 10))
				tooMany(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func tooMany(w http.ResponseWriter) {
	problem.Write(w, problem.TooManyRequests(http.StatusText(http.StatusTooManyRequests)))
}

type rateLimitHeaderWriter struct {
	http.ResponseWriter
	result rl.Result
	done   bool
}

func (w *rateLimitHeaderWriter) writeHeaders() {
	if w.done {
		return
	}
	w.done = true
	h := w.ResponseWriter.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(w.result.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(w.result.Remaining, 10))
	h.Set("X-RateLimit-Window-Seconds", strconv.FormatInt(int64(w.result.Window.Seconds()), 10))
	h.Set("X-RateLimit-Reset-Seconds", strconv.FormatInt(int64(w.result.WindowResetIn.Seconds()), 10))
}

func (w *rateLimitHeaderWriter) WriteHeader(statusCode int) {
	w.writeHeaders()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *rateLimitHeaderWriter) Write(p []byte) (int, error) {
	w.writeHeaders()
	return w.ResponseWriter.Write(p)
}

func (w *rateLimitHeaderWriter) Flush() {
	w.writeHeaders()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RemoteIpKeyFunc keys on the closest proxy-reported client address, falling
// back to the connection's remote host.
func RemoteIpKeyFunc(r *http.Request) rl.Key {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		if ip := strings.TrimSpace(hops[len(hops)-1]); ip != "" {
			return rl.Key(ip)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return rl.Key(r.RemoteAddr)
	}
	return rl.Key(host)
}

// MuxRouteInfo resolves the registered ServeMux pattern for r, so that
// configured Route patterns match the routes the API actually serves.
func MuxRouteInfo(mux *http.ServeMux) RouteInfoFunc {
	return func(r *http.Request) RouteInfo {
		_, pattern := mux.Handler(r)
		// "GET /v1/profiles/{username}" -> "/v1/profiles/{username}"
		if i := strings.IndexByte(pattern, ' '); i >= 0 {
			pattern = pattern[i+1:]
		}
		return RouteInfo{
			ID:     Pattern(pattern),
			Method: r.Method,
			Path:   r.URL.Path,
		}
	}
}
