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

package domain

import "errors"

var (
	// ErrInvalidRequest: the request is malformed or misses a required input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrProfileNotFound: no profile matches the username.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrValidation: the resulting profile breaks a field rule.
	ErrValidation = errors.New("validation failed")
	// ErrUsernameTaken: an account already holds the requested username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrProfileLocked: another update of the same username is in progress.
	ErrProfileLocked = errors.New("profile is being updated")
	// ErrPreconditionFailed: the stored profile no longer has the expected version.
	ErrPreconditionFailed = errors.New("profile version mismatch")
	// ErrDuplicateProfile: a profile with the username already exists in the store.
	ErrDuplicateProfile = errors.New("profile with the requested username already exists")
	// ErrStorageFailure: the store failed while reading or writing.
	ErrStorageFailure = errors.New("storage failure")
)

// FieldError attaches a user-facing reason about a single request or
// profile field to one of the sentinel errors above.
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	return e.Reason
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldError(sentinel error, field, reason string) error {
	return &FieldError{Field: field, Reason: reason, Err: sentinel}
}
