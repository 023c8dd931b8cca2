package session

import "github.com/gear6io/shuttle/pkg/errors"

// Session-specific error codes
var (
	ErrDetached     = errors.MustNewCode("session.detached")
	ErrOutboundFull = errors.MustNewCode("session.outbound_full")
)
