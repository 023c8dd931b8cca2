package transport

import "github.com/gear6io/shuttle/pkg/errors"

// Transport-specific error codes
var (
	ErrConnectionClosed = errors.MustNewCode("transport.connection_closed")
	ErrReadFailed       = errors.MustNewCode("transport.read_failed")
	ErrWriteFailed      = errors.MustNewCode("transport.write_failed")
	ErrOpenFailed       = errors.MustNewCode("transport.open_failed")
)

// ErrClosed is returned by Read when the peer has ended the stream
var ErrClosed = errors.New(ErrConnectionClosed, "connection closed by peer")
