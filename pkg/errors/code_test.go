package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodeAcceptsPackageDotName(t *testing.T) {
	code, err := NewCode("engine.already_plugged")
	require.NoError(t, err)
	assert.Equal(t, "engine.already_plugged", code.String())
	assert.Equal(t, "engine", code.Package())
	assert.Equal(t, "already_plugged", code.Name())
}

func TestNewCodeRejectsBadFormats(t *testing.T) {
	cases := []string{
		"",
		"noseparator",
		"Upper.case",
		"two.dots.here",
		"trailing.",
		".leading",
		"has space.name",
	}
	for _, c := range cases {
		_, err := NewCode(c)
		assert.Error(t, err, "code %q should be rejected", c)
	}
}

func TestNewCodeRejectsErrSubstrings(t *testing.T) {
	_, err := NewCode("engine.some_error")
	assert.Error(t, err)

	_, err = NewCode("engine.err_state")
	assert.Error(t, err)
}

func TestMustNewCodePanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { MustNewCode("NOT VALID") })
	assert.NotPanics(t, func() { MustNewCode("valid.code") })
}

func TestIsZero(t *testing.T) {
	var zero Code
	assert.True(t, zero.IsZero())
	assert.False(t, MustNewCode("a.b").IsZero())
}
