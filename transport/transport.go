//go:build linux

// Package transport wraps a raw stream socket descriptor in a non-blocking
// bounded read/write surface. Nothing here ever blocks: an operation that
// cannot make progress reports zero bytes instead of waiting, and the caller
// is expected to retry on the next readiness event.
package transport

import (
	goerrors "errors"

	"github.com/gear6io/shuttle/pkg/errors"
	ferrors "github.com/go-faster/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Conn is a non-blocking byte-stream connection over an open descriptor.
// It owns the descriptor from Open until Close.
type Conn struct {
	fd     int
	logger zerolog.Logger
	closed bool
}

// Open takes ownership of an already-connected descriptor, switches it to
// non-blocking mode and applies the configured socket buffer sizes. A zero
// buffer size leaves the kernel default in place.
func Open(fd int, sndbuf, rcvbuf int, logger zerolog.Logger) (*Conn, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, errors.Wrap(ErrOpenFailed, ferrors.Wrap(err, "set nonblock"), "failed to open transport")
	}
	if sndbuf > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, sndbuf); err != nil {
			return nil, errors.Wrap(ErrOpenFailed, ferrors.Wrap(err, "set SO_SNDBUF"), "failed to open transport")
		}
	}
	if rcvbuf > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, rcvbuf); err != nil {
			return nil, errors.Wrap(ErrOpenFailed, ferrors.Wrap(err, "set SO_RCVBUF"), "failed to open transport")
		}
	}

	// Best effort; the descriptor may not be a TCP socket.
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

	return &Conn{
		fd:     fd,
		logger: logger.With().Str("component", "transport").Int("fd", fd).Logger(),
	}, nil
}

// Read performs exactly one bounded read into p. It returns (n, nil) with n
// possibly zero when nothing is available right now, (0, ErrClosed) when the
// peer has ended the stream, and a wrapped failure for anything else.
func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n, err := unix.Read(c.fd, p)
	if err != nil {
		if goerrors.Is(err, unix.EAGAIN) || goerrors.Is(err, unix.EWOULDBLOCK) || goerrors.Is(err, unix.EINTR) {
			return 0, nil
		}
		if goerrors.Is(err, unix.ECONNRESET) || goerrors.Is(err, unix.ECONNABORTED) ||
			goerrors.Is(err, unix.EPIPE) || goerrors.Is(err, unix.ETIMEDOUT) {
			return 0, ErrClosed
		}
		return 0, errors.Wrap(ErrReadFailed, ferrors.Wrap(err, "read"), "transport read failed")
	}
	if n == 0 {
		// Orderly shutdown from the peer.
		return 0, ErrClosed
	}
	return n, nil
}

// Write performs exactly one bounded write from p. It returns (n, nil) with n
// possibly zero when the socket would not accept data right now; a partial
// write is not an error. Any failure is terminal for the connection.
func (c *Conn) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n, err := unix.Write(c.fd, p)
	if err != nil {
		if goerrors.Is(err, unix.EAGAIN) || goerrors.Is(err, unix.EWOULDBLOCK) || goerrors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, errors.Wrap(ErrWriteFailed, ferrors.Wrap(err, "write"), "transport write failed")
	}
	return n, nil
}

// Descriptor returns the underlying file descriptor for poller registration
func (c *Conn) Descriptor() int {
	return c.fd
}

// Close releases the descriptor. Safe to call more than once.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := unix.Close(c.fd); err != nil {
		c.logger.Debug().Err(err).Msg("Error closing descriptor")
		return ferrors.Wrap(err, "close")
	}
	return nil
}
