package reactor

import "github.com/gear6io/shuttle/pkg/errors"

// Reactor-specific error codes
var (
	ErrCreateFailed     = errors.MustNewCode("reactor.create_failed")
	ErrRegisterFailed   = errors.MustNewCode("reactor.register_failed")
	ErrDeregisterFailed = errors.MustNewCode("reactor.deregister_failed")
	ErrInterestFailed   = errors.MustNewCode("reactor.interest_failed")
	ErrInvalidHandle    = errors.MustNewCode("reactor.invalid_handle")
	ErrPollFailed       = errors.MustNewCode("reactor.poll_failed")
)
