package errors

import (
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCode(t *testing.T) {
	code := MustNewCode("test.simple")
	err := New(code, "something broke")

	assert.Equal(t, "something broke", err.Error())
	assert.Equal(t, code, err.Code)
	assert.False(t, err.Timestamp.IsZero())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(CommonInternal, cause, "operation failed")

	assert.Equal(t, "operation failed: root cause", err.Error())
	assert.Equal(t, cause, goerrors.Unwrap(err))
}

func TestIsMatchesByCode(t *testing.T) {
	code := MustNewCode("test.sentinel")
	sentinel := New(code, "sentinel")
	wrapped := Wrap(CommonInternal, New(code, "inner"), "outer")

	assert.True(t, goerrors.Is(New(code, "other message"), sentinel))
	assert.True(t, goerrors.Is(wrapped, sentinel))
	assert.False(t, goerrors.Is(New(CommonInternal, "x"), sentinel))
}

func TestAddContext(t *testing.T) {
	err := New(CommonValidation, "bad input").
		AddContext("field", "size").
		AddContext("value", "-1")

	assert.Equal(t, map[string]string{"field": "size", "value": "-1"}, GetContext(err))
}

func TestHasCodeWalksChain(t *testing.T) {
	inner := MustNewCode("test.inner")
	outer := MustNewCode("test.outer")
	err := Wrap(outer, New(inner, "inner"), "outer")

	assert.True(t, HasCode(err, outer))
	assert.True(t, HasCode(err, inner))
	assert.False(t, HasCode(err, CommonInternal))
	assert.False(t, HasCode(nil, inner))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, "common.internal", GetCode(New(CommonInternal, "x")))
	assert.Empty(t, GetCode(fmt.Errorf("plain")))
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(nil))

	original := New(CommonValidation, "ours")
	assert.Same(t, original, AsError(original))

	converted := AsError(fmt.Errorf("foreign"))
	require.NotNil(t, converted)
	assert.Equal(t, CommonInternal, converted.Code)
}

func TestFormatErrorIncludesEverything(t *testing.T) {
	err := Wrap(CommonInternal, fmt.Errorf("disk on fire"), "save failed").
		AddContext("path", "/tmp/x")

	out := FormatError(err)
	assert.Contains(t, out, "common.internal")
	assert.Contains(t, out, "save failed")
	assert.Contains(t, out, "/tmp/x")
	assert.Contains(t, out, "disk on fire")
}
