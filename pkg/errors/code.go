package errors

import (
	"fmt"
	"regexp"
	"strings"
)

// Code represents a validated error code with package prefix
type Code struct {
	value string
}

// Common error codes that can be used across packages
var (
	CommonInternal     = MustNewCode("common.internal")
	CommonValidation   = MustNewCode("common.validation")
	CommonInvalidInput = MustNewCode("common.invalid_input")
	CommonUnsupported  = MustNewCode("common.unsupported")
)

// Validation regex: package.name format
var codeRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*\.[a-z][a-z0-9_]*$`)

// NewCode creates a new validated Code
func NewCode(s string) (Code, error) {
	if !codeRegex.MatchString(s) {
		return Code{}, fmt.Errorf("invalid code format '%s': must be 'package.name' (lowercase, underscores, dots only)", s)
	}

	// Check for common patterns that might indicate typos
	if strings.Contains(s, "error") || strings.Contains(s, "err") {
		return Code{}, fmt.Errorf("invalid code '%s': should not contain 'error' or 'err'", s)
	}

	return Code{value: s}, nil
}

// MustNewCode creates a new Code or panics if invalid
func MustNewCode(s string) Code {
	code, err := NewCode(s)
	if err != nil {
		panic(err)
	}
	return code
}

// String returns the string representation of the Code
func (c Code) String() string {
	return c.value
}

// Package returns the package prefix from the code
func (c Code) Package() string {
	parts := strings.SplitN(c.value, ".", 2)
	return parts[0]
}

// Name returns the name portion of the code
func (c Code) Name() string {
	parts := strings.SplitN(c.value, ".", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// IsZero reports whether the code is the zero value
func (c Code) IsZero() bool {
	return c.value == ""
}
