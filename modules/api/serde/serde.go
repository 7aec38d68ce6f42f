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

package serde

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrEmptyBody is returned by ParseJsonBody when the body holds no JSON value.
var ErrEmptyBody = errors.New("empty request body")

type decodeOptions struct {
	strict   bool
	maxBytes int64
}

type DecodeOption func(*decodeOptions)

// AllowUnknownFields ignores body members the target type does not declare.
func AllowUnknownFields() DecodeOption {
	return func(o *decodeOptions) { o.strict = false }
}

// WithMaxBytes caps how much of the body is read.
func WithMaxBytes(n int64) DecodeOption {
	return func(o *decodeOptions) { o.maxBytes = n }
}

// ParseJsonBody decodes exactly one JSON value from body into valuePtr.
// Unknown fields are rejected unless AllowUnknownFields is passed.
func ParseJsonBody[T any](body io.ReadCloser, valuePtr *T, opts ...DecodeOption) error {
	defer body.Close()

	o := decodeOptions{strict: true, maxBytes: 1 << 20}
	for _, opt := range opts {
		opt(&o)
	}

	dec := json.NewDecoder(io.LimitReader(body, o.maxBytes))
	if o.strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(valuePtr); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("decode json body: %w", err)
	}
	if dec.More() {
		return errors.New("decode json body: trailing data after JSON value")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Ptr[T any](v T) *T {
	return &v
}
