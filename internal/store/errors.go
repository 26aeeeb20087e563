// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrUnavailable marks a failure the caller may retry: the database could not
// be reached, shed the request, or rolled the statement back for contention.
var ErrUnavailable = errors.New("store unavailable")

// IsTransient reports whether err is a retryable database failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code) ||
			pgerrcode.IsTransactionRollback(pgErr.Code) ||
			pgerrcode.IsInsufficientResources(pgErr.Code) ||
			pgerrcode.IsOperatorIntervention(pgErr.Code)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally restricted to the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// Classify joins ErrUnavailable onto transient failures so callers can
// classify them with errors.Is. Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) || !IsTransient(err) {
		return err
	}
	return errors.Join(ErrUnavailable, err)
}
