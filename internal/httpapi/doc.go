// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package httpapi is the thin HTTP boundary over the auth service. Handlers
// validate request shape, delegate to the domain, translate domain outcomes
// to the enumerated error envelope, and manage the session cookie. No
// business rule lives here.
package httpapi
