// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "errors"

// Sentinel errors for expected domain outcomes. The HTTP layer maps these
// onto its enumerated error codes; nothing here carries transport detail.
var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateAccount is returned when a signup collides with an
	// existing email. Uniqueness is enforced by the store's constraint,
	// not by application-level locking.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrInvalidCredentials is returned for both an unknown email and a
	// wrong password so signin never reveals which factor failed.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrTokenMissing is returned when no session token was presented.
	ErrTokenMissing = errors.New("session token missing")

	// ErrTokenInvalid is returned for malformed or tampered tokens.
	ErrTokenInvalid = errors.New("session token invalid")

	// ErrTokenExpired is returned when a well-formed token is past its
	// expiry instant.
	ErrTokenExpired = errors.New("session token expired")
)

// IsNotAuthenticated reports whether err is one of the expected
// "not logged in" outcomes of session resolution. Infrastructure failures
// (store unreachable) are not covered and should surface as 500s.
func IsNotAuthenticated(err error) bool {
	return errors.Is(err, ErrTokenMissing) ||
		errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrNotFound)
}
