package comperr_test

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/rwool/gkfix/test/helpers/comperr"
)

// recorder records failures instead of failing the running test.
type recorder struct {
	testing.TB
	failed bool
}

func (r *recorder) Helper()                       {}
func (r *recorder) Name() string                  { return "recorder" }
func (r *recorder) Errorf(string, ...interface{}) { r.failed = true }
func (r *recorder) FailNow()                      { r.failed = true }

func TestAssertCause(t *testing.T) {
	assert.True(t, comperr.AssertCause(t, nil, nil))
	comperr.RequireCause(t, io.EOF, errors.Wrap(errors.Wrap(io.EOF, "middle"), "outer"))

	r := &recorder{}
	assert.False(t, comperr.AssertCause(r, io.EOF, nil))
	assert.True(t, r.failed)

	r = &recorder{}
	assert.False(t, comperr.AssertCause(r, io.EOF, errors.New("other")))
	assert.True(t, r.failed)

	r = &recorder{}
	assert.False(t, comperr.AssertCause(r, nil, io.EOF))
	assert.True(t, r.failed)
}

func TestRequireMessage(t *testing.T) {
	err := errors.Wrap(io.EOF, "stream ended while waiting for \"password:\"")
	comperr.RequireMessage(t, err, "password:", "EOF")
}
