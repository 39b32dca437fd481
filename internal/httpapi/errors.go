// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package httpapi

import (
	"encoding/json"
	"net/http"
)

// Code is an application-defined error identifier, distinct from the HTTP
// status. The numeric ranges partition by failure class:
//
//	40000-40099 bad request
//	40100-40199 unauthorized
//	40200-40299 forbidden
//	40400-40499 not found
//	50000-59999 server error
//
// The set is closed: every Code declared here has an entry in both
// HTTPStatus and Detail, and adding one without extending those switches is
// caught by the exhaustiveness test.
type Code int

const (
	// CodeBadRequest covers malformed input: unreadable JSON, missing or
	// invalid fields.
	CodeBadRequest Code = 40000

	// CodeDuplicateAccount is returned when signup hits an existing email.
	// Unlike signin, this deliberately reveals account existence - the
	// product wants "sign in instead" guidance on the signup form.
	CodeDuplicateAccount Code = 40001

	// CodeUnauthorized is the generic 401.
	CodeUnauthorized Code = 40100

	// CodeInvalidCredentials is returned for wrong password AND unknown
	// email, identically, so signin cannot be used for enumeration.
	CodeInvalidCredentials Code = 40101

	// CodeNotAuthenticated is returned when no session cookie was sent.
	CodeNotAuthenticated Code = 40102

	// CodeInvalidToken is returned for a malformed or tampered session
	// token.
	CodeInvalidToken Code = 40103

	// CodeTokenExpired is returned when the session token is past expiry.
	CodeTokenExpired Code = 40104

	// CodeUserNotFound is returned when a valid token names a user that no
	// longer exists.
	CodeUserNotFound Code = 40105

	// CodeForbidden is the generic 403.
	CodeForbidden Code = 40200

	// CodeNotFound is the generic 404.
	CodeNotFound Code = 40400

	// CodeServerError covers transient infrastructure failures: store or
	// queue unreachable, and anything unexpected.
	CodeServerError Code = 50000
)

// HTTPStatus maps a Code onto its HTTP status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeBadRequest, CodeDuplicateAccount:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeInvalidCredentials, CodeNotAuthenticated,
		CodeInvalidToken, CodeTokenExpired, CodeUserNotFound:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Detail returns the user-facing message for a Code.
func (c Code) Detail() string {
	switch c {
	case CodeBadRequest:
		return "Bad request"
	case CodeDuplicateAccount:
		return "User with this email already exists"
	case CodeUnauthorized:
		return "Unauthorized"
	case CodeInvalidCredentials:
		return "Invalid email or password"
	case CodeNotAuthenticated:
		return "Not authenticated"
	case CodeInvalidToken:
		return "Invalid token"
	case CodeTokenExpired:
		return "Token has expired"
	case CodeUserNotFound:
		return "User not found"
	case CodeForbidden:
		return "Forbidden"
	case CodeNotFound:
		return "Not found"
	case CodeServerError:
		return "Internal server error"
	default:
		return "Internal server error"
	}
}

// ErrorBody is the JSON envelope for every non-2xx response.
type ErrorBody struct {
	InternalCode int    `json:"internal_code"`
	Detail       string `json:"detail"`
	StatusCode   int    `json:"status_code"`
}

// writeError writes the enumerated error envelope. detail overrides the
// Code's default message when non-empty.
func writeError(w http.ResponseWriter, code Code, detail string) {
	if detail == "" {
		detail = code.Detail()
	}
	status := code.HTTPStatus()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // response write failure leaves nothing to do
	json.NewEncoder(w).Encode(ErrorBody{
		InternalCode: int(code),
		Detail:       detail,
		StatusCode:   status,
	})
}
