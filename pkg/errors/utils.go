package errors

import (
	"fmt"
	"strings"
)

// Helper to check if an error is of our Error type
func IsShuttleError(err error) bool {
	_, ok := err.(*Error)
	return ok
}

// Helper to extract context from our errors
func GetContext(err error) map[string]string {
	if shuttleErr, ok := err.(*Error); ok {
		return shuttleErr.Context
	}
	return nil
}

// Helper to get error code
func GetCode(err error) string {
	if shuttleErr, ok := err.(*Error); ok {
		return shuttleErr.Code.String()
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain
func HasCode(err error, code Code) bool {
	for err != nil {
		if shuttleErr, ok := err.(*Error); ok && shuttleErr.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Helper to format error for logging
func FormatError(err error) string {
	if shuttleErr, ok := err.(*Error); ok {
		var parts []string
		parts = append(parts, fmt.Sprintf("Code: %s", shuttleErr.Code))
		parts = append(parts, fmt.Sprintf("Message: %s", shuttleErr.Message))

		if len(shuttleErr.Context) > 0 {
			parts = append(parts, "Context:")
			for k, v := range shuttleErr.Context {
				parts = append(parts, fmt.Sprintf("  %s: %v", k, v))
			}
		}

		if shuttleErr.Cause != nil {
			parts = append(parts, fmt.Sprintf("Cause: %v", shuttleErr.Cause))
		}

		return strings.Join(parts, "\n")
	}
	return err.Error()
}

// AsError converts any error to internal errors.Error format
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	if internalErr, ok := err.(*Error); ok {
		return internalErr
	}

	return Wrap(CommonInternal, err, err.Error())
}
