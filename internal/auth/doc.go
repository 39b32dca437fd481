// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package auth provides authentication primitives for Gatehouse.
//
// # Domain Types
//
// User records are created through NewUser, which validates the email and
// password hash before any repository sees them. Direct struct
// initialization bypasses validation and may create invalid state.
//
// # Services
//
// Service coordinates signup, signin, signout, and session resolution. It
// owns no I/O itself: persistence goes through UserRepository, hashing
// through PasswordHasher, and token work through the Issuer. Background
// work (the welcome email) is handed to a task.Dispatcher and never blocks
// or fails the primary operation.
//
// Domain failures (duplicate account, bad credentials, expired session) are
// ordinary result values surfaced as sentinel errors, not exceptional
// states. Callers are expected to branch on them with errors.Is.
package auth
