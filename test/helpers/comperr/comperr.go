// Package comperr implements assertions for errors wrapped with
// github.com/pkg/errors.
package comperr

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertCause checks that the root cause of err, as unwrapped by
// errors.Cause, is want. A nil want expects no error at all.
func AssertCause(tb testing.TB, want, err error, msgAndArgs ...interface{}) bool {
	tb.Helper()
	if want == nil {
		return assert.NoError(tb, err, msgAndArgs...)
	}
	if !assert.Error(tb, err, msgAndArgs...) {
		return false
	}
	return assert.Equal(tb, want, errors.Cause(err), msgAndArgs...)
}

// RequireCause is AssertCause, but stops the test on failure.
func RequireCause(tb testing.TB, want, err error, msgAndArgs ...interface{}) {
	tb.Helper()
	if !AssertCause(tb, want, err, msgAndArgs...) {
		tb.FailNow()
	}
}

// RequireMessage checks that err is not nil and that its message contains
// each of parts.
func RequireMessage(tb testing.TB, err error, parts ...string) {
	tb.Helper()
	require.Error(tb, err)
	for _, p := range parts {
		require.Contains(tb, err.Error(), p)
	}
}
