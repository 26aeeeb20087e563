// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode fails t unless err carries code as its innermost oops code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err, "expected an error with code %s", code)
	assert.Equal(t, code, Code(err), "code of %q", err)
}

// AssertErrorContext fails t unless err carries key=value in its oops context.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected an oops error, got %T: %v", err, err)
	got, present := oopsErr.Context()[key]
	require.True(t, present, "context key %q missing from %v", key, oopsErr.Context())
	assert.Equal(t, value, got, "context[%q]", key)
}

// AssertErrorIs fails t unless err wraps target and carries code.
func AssertErrorIs(t *testing.T, err, target error, code string) {
	t.Helper()
	require.ErrorIs(t, err, target)
	AssertErrorCode(t, err, code)
}
