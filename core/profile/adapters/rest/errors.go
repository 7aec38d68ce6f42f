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
	"fmt"
	"log/slog"
	"net/http"

	"storyline/core/profile/domain"
	"storyline/modules/middleware/problem"

	"go.opentelemetry.io/otel/trace"
)

// writeError answers r with the problem document matching err.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	prob := ProblemFromDomainError(r, err)
	if prob.Status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "profile request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	problem.Write(w, prob)
}

// ProblemFromDomainError maps domain errors to problem documents. Store
// error text never reaches the client; field errors surface their reason.
func ProblemFromDomainError(r *http.Request, err error) *problem.Problem {
	opts := []problem.Option{problem.WithInstance(r.URL.Path)}
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		opts = append(opts, problem.WithTraceID(sc.TraceID().String()))
	}

	// checked first, a cascade error also unwraps to the failed step's error
	var ce *domain.CascadeError
	if errors.As(err, &ce) {
		report := problem.WithExtension("cascade", mapCascadeReport(ce.Report))
		// a profile without an account already holds the new username
		if errors.Is(ce.Err, domain.ErrDuplicateProfile) {
			reason := fmt.Sprintf("Username %s has been taken. Please choose another username", ce.Report.To)
			return problem.BadRequest(reason, append(opts,
				problem.WithCode("username_taken"),
				problem.WithInvalidParam("username", reason),
				report,
			)...)
		}
		return problem.Internal("The profile could not be saved.", append(opts,
			problem.WithCode("storage_failure"),
			report,
		)...)
	}

	var fe *domain.FieldError
	if errors.As(err, &fe) {
		opts = append(opts, problem.WithInvalidParam(fe.Field, fe.Reason))
	}
	detail := func(fallback string) string {
		if fe != nil {
			return fe.Reason
		}
		return fallback
	}

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return problem.BadRequest(detail("No username provided."), append(opts, problem.WithCode("invalid_request"))...)
	case errors.Is(err, domain.ErrValidation):
		return problem.BadRequest(detail("The profile is invalid."), append(opts, problem.WithCode("validation_failed"))...)
	case errors.Is(err, domain.ErrUsernameTaken):
		return problem.BadRequest(detail("Username has been taken."), append(opts, problem.WithCode("username_taken"))...)
	case errors.Is(err, domain.ErrProfileNotFound):
		return problem.NotFound(detail("Profile not found."), append(opts, problem.WithCode("profile_not_found"))...)
	case errors.Is(err, domain.ErrProfileLocked):
		return problem.Conflict("The profile is being updated, try again later.", append(opts, problem.WithCode("profile_locked"))...)
	case errors.Is(err, domain.ErrPreconditionFailed):
		return problem.PreconditionFailed(detail("The profile was modified since it was read."), append(opts, problem.WithCode("precondition_failed"))...)
	case errors.Is(err, domain.ErrStorageFailure):
		return problem.Internal("The profile store is unavailable.", append(opts, problem.WithCode("storage_failure"))...)
	default:
		return problem.Internal("server error", opts...)
	}
}
