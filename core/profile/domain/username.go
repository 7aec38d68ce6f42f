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

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CanonicalUsername returns the stored form of a username: first character
// in title case, the remainder lower case. The empty string stays empty.
//
// The first rune is mapped 1:1, so characters without a single-rune title
// form (ß, ﬁ) are kept and CanonicalUsername(CanonicalUsername(s)) equals
// CanonicalUsername(s).
func CanonicalUsername(username string) string {
	if username == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(username)
	// casers carry state, so a fresh one per call
	tail := cases.Lower(language.Und).String(username[size:])
	head := username[:size]
	if first != utf8.RuneError {
		head = string(unicode.ToTitle(first))
	}
	return head + tail
}
