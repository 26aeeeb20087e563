// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package play

import (
	"context"
	"errors"

	"github.com/dailymoji/dailymoji/internal/puzzle"
	"github.com/dailymoji/dailymoji/internal/store"
)

// Sentinel errors. Callers classify with errors.Is or KindOf.
var (
	// ErrNotAuthenticated means the caller supplied no player identity.
	ErrNotAuthenticated = errors.New("player identity required")

	// ErrAlreadySolved means the session is terminal.
	ErrAlreadySolved = errors.New("session already solved")

	// ErrInvalidState means the operation is not allowed in the session's current state.
	ErrInvalidState = errors.New("invalid session state")

	// ErrStoreUnavailable marks a transient store failure. It is the store
	// package sentinel so repository errors classify without translation.
	ErrStoreUnavailable = store.ErrUnavailable

	// ErrSessionNotFound is returned by SessionRepository.Get when no row exists.
	ErrSessionNotFound = errors.New("session not found")

	// ErrConflict is returned by conditional writes whose precondition no longer holds.
	ErrConflict = errors.New("session changed concurrently")
)

// Kind is the error kind surfaced to callers.
type Kind string

// Error kinds.
const (
	KindNone             Kind = ""
	KindNotAuthenticated Kind = "NotAuthenticated"
	KindAlreadySolved    Kind = "AlreadySolved"
	KindInvalidState     Kind = "InvalidState"
	KindStoreUnavailable Kind = "StoreUnavailable"
	KindNotFound         Kind = "NotFound"
	KindInternal         Kind = "Internal"
)

// KindOf classifies err. Conflicts that outlived the retry budget and context
// deadlines are reported as StoreUnavailable.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotAuthenticated):
		return KindNotAuthenticated
	case errors.Is(err, ErrAlreadySolved):
		return KindAlreadySolved
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, puzzle.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrConflict),
		errors.Is(err, context.DeadlineExceeded):
		return KindStoreUnavailable
	default:
		return KindInternal
	}
}

// Retryable reports whether an operation failing with k may be retried by the caller.
// RevealHint callers should still retry with care: a retry after an ambiguous
// failure may reveal the next hint.
func (k Kind) Retryable() bool {
	return k == KindStoreUnavailable
}
