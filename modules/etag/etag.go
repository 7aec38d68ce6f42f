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

package etag

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidETag = errors.New("invalid etag format")

const prefix = "v:"

type ETaggable interface {
	V() string
}

// ETag returns the opaque tag of obj, unquoted.
func ETag(obj ETaggable) string {
	return prefix + obj.V()
}

// Header returns the tag of obj as a quoted ETag header value.
func Header(obj ETaggable) string {
	return strconv.Quote(ETag(obj))
}

// ParseETag extracts the version from a single tag. Surrounding quotes and
// the weak marker are accepted.
func ParseETag(etag string) (string, error) {
	etag = strings.TrimPrefix(strings.TrimSpace(etag), "W/")
	if unq, err := strconv.Unquote(etag); err == nil {
		etag = unq
	}
	if !strings.HasPrefix(etag, prefix) || len(etag) == len(prefix) {
		return "", ErrInvalidETag
	}
	return strings.TrimPrefix(etag, prefix), nil
}

// Match reports whether an If-None-Match or If-Match header value names
// obj, comparing weakly. "*" matches anything.
func Match(header string, obj ETaggable) bool {
	want := obj.V()
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if v, err := ParseETag(candidate); err == nil && v == want {
			return true
		}
	}
	return false
}
