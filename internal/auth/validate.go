// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Username length constraints.
const (
	MinUsernameLength = 2
	MaxUsernameLength = 32
)

// MaxFullNameLength caps full names so a hostile registration cannot exhaust
// storage with an arbitrarily long value.
const MaxFullNameLength = 64

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 6

var (
	// alphaRegex matches values made up only of ASCII letters.
	alphaRegex = regexp.MustCompile(`^[a-zA-Z]+$`)

	// markupRegex matches markup tags stripped during normalization.
	markupRegex = regexp.MustCompile(`<[^>]*>`)

	// emailRegex is the WHATWG HTML email grammar. Syntactic only: a
	// well-formed address with a non-resolvable domain still passes.
	emailRegex = regexp.MustCompile(
		`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`,
	)

	// titleCaser uppercases the first letter of each word and leaves the
	// rest untouched.
	titleCaser = cases.Title(language.English, cases.NoLower)
)

// FieldErrors maps a field name to an ordered list of human-readable reasons
// the submitted value was rejected. Messages are plain, unescaped text; the
// presentation layer is responsible for escaping before rendering.
type FieldErrors map[string][]string

// Add appends messages to a field's error list. Empty message lists are
// ignored so validators can be chained without nil checks.
func (e FieldErrors) Add(field string, messages ...string) {
	if len(messages) == 0 {
		return
	}
	e[field] = append(e[field], messages...)
}

// Empty reports whether no field has errors.
func (e FieldErrors) Empty() bool {
	return len(e) == 0
}

// stripMarkup removes markup tags from a value. Applied during normalization
// of every field except the password.
func stripMarkup(value string) string {
	return markupRegex.ReplaceAllString(value, "")
}

// NormalizeUsername trims whitespace, strips markup, and lowercases.
func NormalizeUsername(username string) string {
	return strings.ToLower(stripMarkup(strings.TrimSpace(username)))
}

// NormalizeEmail trims whitespace and strips markup.
func NormalizeEmail(email string) string {
	return stripMarkup(strings.TrimSpace(email))
}

// NormalizeFullName trims whitespace, strips markup, and title-cases each
// space-separated word. Only the first letter of a word is changed, so
// "alice SMITH" normalizes to "Alice SMITH".
func NormalizeFullName(name string) string {
	return titleCaser.String(stripMarkup(strings.TrimSpace(name)))
}

// Passwords are deliberately NOT normalized: trimming or markup-stripping
// could silently alter legitimate password characters.

// ValidateUsername checks a normalized username. Rules short-circuit in
// order: empty, length, alphabetic. An empty result means valid.
func ValidateUsername(username string) []string {
	if username == "" {
		return []string{"must not be empty"}
	}
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return []string{"must be between 2 and 32 characters"}
	}
	if !alphaRegex.MatchString(username) {
		return []string{"must be alphabetical"}
	}
	return nil
}

// ValidatePassword checks a password as submitted. Composition is not
// checked; mandatory character classes do not guarantee a strong password.
func ValidatePassword(password string) []string {
	if password == "" {
		return []string{"must not be empty"}
	}
	if len(password) < MinPasswordLength {
		return []string{"must be at least 6 characters"}
	}
	return nil
}

// ValidateEmail checks a normalized email address against the syntactic
// grammar. A deliverability check would need a verification mail; out of
// scope here.
func ValidateEmail(email string) []string {
	if email == "" {
		return []string{"must not be empty"}
	}
	if !emailRegex.MatchString(email) {
		return []string{"must be in a valid format"}
	}
	return nil
}

// ValidateFullName checks a normalized full name. The empty and length rules
// are exclusive; the per-word alphabetic check runs independently and
// short-circuits at the first failing word, so an over-long name containing
// digits reports both messages.
func ValidateFullName(name string) []string {
	var errs []string

	if name == "" {
		errs = append(errs, "must not be empty")
	} else if len(name) > MaxFullNameLength {
		errs = append(errs, "must be under 64 characters")
	}

	for _, fragment := range strings.Split(name, " ") {
		if fragment == "" {
			continue
		}
		if !alphaRegex.MatchString(fragment) {
			errs = append(errs, "must be alphabetical")
			break
		}
	}

	return errs
}
