// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package session is a client-side state container for the Gatehouse API.
//
// A Store holds the signed-in user, mirrors the server's session cookie in
// an http.CookieJar, and exposes actions (Signup, Signin, Signout, Refresh)
// that mutate that state. Reads and writes are safe for concurrent use.
package session
