package engine

import "github.com/gear6io/shuttle/pkg/errors"

// Engine-specific error codes
var (
	ErrAlreadyPlugged = errors.MustNewCode("engine.already_plugged")
	ErrDisposed       = errors.MustNewCode("engine.disposed")
	ErrNilSession     = errors.MustNewCode("engine.nil_session")
	ErrRegistration   = errors.MustNewCode("engine.registration_failed")
)
