//go:build linux

package transport

import (
	goerrors "errors"
	"testing"

	"github.com/gear6io/shuttle/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// pair returns both ends of a connected socketpair wrapped as transports
func pair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)

	a, err := Open(fds[0], 0, 0, zerolog.Nop())
	require.NoError(t, err)
	b, err := Open(fds[1], 0, 0, zerolog.Nop())
	require.NoError(t, err)

	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestReadWouldBlockReportsNothingAvailable(t *testing.T) {
	a, _ := pair(t)

	buf := make([]byte, 16)
	n, err := a.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRoundTrip(t *testing.T) {
	a, b := pair(t)

	n, err := a.Write([]byte("ping"))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	buf := make([]byte, 16)
	n, err = b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), buf[:n])
}

func TestReadReportsPeerClose(t *testing.T) {
	a, b := pair(t)
	require.NoError(t, b.Close())

	buf := make([]byte, 16)
	_, err := a.Read(buf)
	require.Error(t, err)
	assert.True(t, goerrors.Is(err, ErrClosed))
}

func TestReadDrainsBeforeReportingClose(t *testing.T) {
	a, b := pair(t)

	_, err := b.Write([]byte("tail"))
	require.NoError(t, err)
	require.NoError(t, b.Close())

	buf := make([]byte, 16)
	n, err := a.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("tail"), buf[:n])

	_, err = a.Read(buf)
	assert.True(t, goerrors.Is(err, ErrClosed))
}

func TestWriteIntoEmptyBuffer(t *testing.T) {
	a, _ := pair(t)
	n, err := a.Write(nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenAppliesSocketBuffers(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])

	conn, err := Open(fds[0], 16384, 16384, zerolog.Nop())
	require.NoError(t, err)
	defer conn.Close()

	// The kernel doubles the requested value; just check it moved.
	snd, err := unix.GetsockoptInt(conn.Descriptor(), unix.SOL_SOCKET, unix.SO_SNDBUF)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, snd, 16384)
}

func TestOpenRejectsBadDescriptor(t *testing.T) {
	_, err := Open(-1, 0, 0, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrOpenFailed))
}

func TestCloseIsIdempotent(t *testing.T) {
	a, _ := pair(t)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
