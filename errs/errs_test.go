package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorStringIncludesPositionWhenFilenameSet(t *testing.T) {
	e := New(SyntaxError, Position{Filename: "mod.py", StartLine: 3, StartCol: 5}, "bad token %q", "@")
	assert.Equal(t, `mod.py:3:5: SyntaxError: bad token "@"`, e.Error())
}

func TestErrorStringOmitsPositionWhenFilenameEmpty(t *testing.T) {
	e := New(SystemError, Position{}, "unbalanced frame-block stack")
	assert.Equal(t, "SystemError: unbalanced frame-block stack", e.Error())
}

func TestWrapChainsCauseForErrorsIs(t *testing.T) {
	cause := errors.New("boom")
	e := Wrap(SystemError, Position{}, cause, "assembling failed")
	assert.True(t, errors.Is(e, cause))
}

func TestCollectorAccumulatesWarningsWithoutAborting(t *testing.T) {
	c := &Collector{}
	assert.False(t, c.HasWarnings())

	c.Warn(New(SyntaxWarning, Position{}, "assert on a non-empty tuple is always true"))
	c.Warn(New(SyntaxWarning, Position{}, "another warning"))

	assert.True(t, c.HasWarnings())
	assert.Len(t, c.Warnings, 2)
}

func TestKindStringRoundTrip(t *testing.T) {
	assert.Equal(t, "SyntaxError", SyntaxError.String())
	assert.Equal(t, "SyntaxWarning", SyntaxWarning.String())
	assert.Equal(t, "SystemError", SystemError.String())
	assert.Equal(t, "MemoryError", MemoryError.String())
}
