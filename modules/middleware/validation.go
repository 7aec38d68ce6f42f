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

package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storyline/modules/middleware/problem"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	nethttpmiddleware "github.com/oapi-codegen/nethttp-middleware"
)

// LoadSpec parses and validates an OpenAPI 3 document.
func LoadSpec(ctx context.Context, data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}
	return doc, nil
}

// OpenAPIValidation validates requests against spec before they reach the mux.
//
// Every request shape violation is answered with a 400 problem document
// listing the offending fields. Unknown routes fall through to the mux so it
// can answer 404/405 itself.
func OpenAPIValidation(spec *openapi3.T) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		opts := &nethttpmiddleware.Options{
			Options: openapi3filter.Options{
				MultiError:         true,
				ExcludeRequestBody: false,
			},
			DoNotValidateServers:  true,
			SilenceServersWarning: true,
			ErrorHandlerWithOpts: func(ctx context.Context, err error, w http.ResponseWriter, r *http.Request, eopts nethttpmiddleware.ErrorHandlerOpts) {
				if errors.Is(err, routers.ErrPathNotFound) || errors.Is(err, routers.ErrMethodNotAllowed) {
					next.ServeHTTP(w, r)
					return
				}

				prob := problem.BadRequest("request validation failed", problem.WithCode("invalid_request"))
				var me openapi3.MultiError
				if errors.As(err, &me) {
					for _, item := range me {
						addValidationDetail(prob, item)
					}
				} else {
					addValidationDetail(prob, err)
				}
				problem.Write(w, prob)
			},
		}
		return nethttpmiddleware.OapiRequestValidatorWithOptions(spec, opts)(next)
	}
}

func addValidationDetail(prob *problem.Problem, err error) {
	var re *openapi3filter.RequestError
	if errors.As(err, &re) {
		var se *openapi3.SchemaError
		if errors.As(re.Err, &se) {
			if re.Parameter != nil {
				problem.WithInvalidParam(re.Parameter.Name, se.Reason)(prob)
				return
			}
			problem.WithInvalidParam(fieldFromPointer(se.JSONPointer()), se.Reason)(prob)
			return
		}
		// do not echo input back in generic reasons
		name := "body"
		if re.Parameter != nil {
			name = re.Parameter.Name
		}
		problem.WithInvalidParam(name, safeReason(re.Reason))(prob)
		return
	}

	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		problem.WithInvalidParam(fieldFromPointer(se.JSONPointer()), se.Reason)(prob)
		return
	}

	problem.WithInvalidParam("request", "invalid value")(prob)
}

// fieldFromPointer keeps the top-level body member of a JSON pointer.
func fieldFromPointer(ptr []string) string {
	if len(ptr) == 0 || ptr[0] == "" {
		return "body"
	}
	return ptr[0]
}

func safeReason(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case reason == "":
		return "invalid value"
	case strings.Contains(lower, "doesn't match schema"):
		return "doesn't match schema"
	case strings.Contains(lower, "must be one of"):
		return reason
	case strings.Contains(lower, "header content-type"):
		return "unsupported content type"
	}
	return "invalid value"
}
