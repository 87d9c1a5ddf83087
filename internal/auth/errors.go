// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrCorruptRecord is returned when persisted bytes fail to decode into a
// valid account shape.
var ErrCorruptRecord = errors.New("corrupt record")

// Storage fault codes. Each maps to an opaque numeric code shown to users;
// the code string itself is for operators and logs only.
const (
	CodeStoreOpenFailed   = "STORE_OPEN_FAILED"   // handle/open failure
	CodeStoreDecodeFailed = "STORE_DECODE_FAILED" // corrupt persisted bytes
	CodeStoreEncodeFailed = "STORE_ENCODE_FAILED" // malformed in-memory record
)

// websiteCodes maps storage fault codes to the numeric codes surfaced to
// users. The numbers are stable; operator runbooks key on them.
var websiteCodes = map[string]int{
	CodeStoreOpenFailed:   1,
	CodeStoreDecodeFailed: 2,
	CodeStoreEncodeFailed: 3,
}

// WebsiteCode returns the opaque numeric code for a storage fault, or 0 when
// the error carries no known code.
func WebsiteCode(err error) int {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 0
	}
	code, ok := oopsErr.Code().(string)
	if !ok {
		return 0
	}
	return websiteCodes[code]
}

// WebsiteError renders the user-facing message for an operational fault.
// It never exposes internal diagnostics, only the opaque code.
func WebsiteError(err error) string {
	return fmt.Sprintf(
		"is currently experiencing technical difficulties, please try again later, error code: %d",
		WebsiteCode(err),
	)
}
