// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package auth implements the account credential lifecycle for Gatehouse.
//
// # Domain Types
//
// Account is the persisted representation of one registered user, keyed by
// username. Session is the server-held proof that a client has authenticated,
// bound to one client fingerprint. Both are produced by the package's
// services; direct struct initialization bypasses validation.
//
// # Services
//
// Service orchestrates registration and login: field normalization and
// validation, password hashing, account persistence, and session
// establishment. Manager owns the session lifecycle: identifier rotation,
// fingerprint checks, and teardown.
//
// # Stores
//
// AccountStore and SessionStore are dependency-injected interfaces. Account
// stores live in the file and postgres subpackages; session stores are the
// in-process MemoryStore and the redis subpackage.
package auth
