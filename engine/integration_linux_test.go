//go:build linux

package engine_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/gear6io/shuttle/codec"
	"github.com/gear6io/shuttle/config"
	"github.com/gear6io/shuttle/engine"
	"github.com/gear6io/shuttle/reactor"
	"github.com/gear6io/shuttle/session"
	"github.com/gear6io/shuttle/transport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// echoRig is a full bridge over one end of a socketpair: reactor, transport,
// codec, session and engine, with a receiver that echoes every message back.
// The other end stays a raw blocking descriptor driven by the test goroutine.
type echoRig struct {
	peer     int
	eng      *engine.Engine
	sess     *session.Session
	detached chan struct{}
	disposed chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
}

func startEchoRig(t *testing.T) *echoRig {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)

	logger := zerolog.Nop()
	conn, err := transport.Open(fds[0], 0, 0, logger)
	require.NoError(t, err)

	r, err := reactor.New(logger)
	require.NoError(t, err)

	rig := &echoRig{
		peer:     fds[1],
		detached: make(chan struct{}),
		disposed: make(chan struct{}),
		done:     make(chan struct{}),
	}

	rig.sess = session.New(
		session.Config{InQueueSize: 128, OutQueueSize: 128},
		func(msg []byte) {
			if err := rig.sess.Send(msg); err != nil {
				t.Errorf("echo send failed: %v", err)
			}
		},
		func() { close(rig.detached) },
		logger,
	)

	rig.eng = engine.New(conn, config.Engine{InBatchSize: 8192, OutBatchSize: 8192}, logger)
	rig.sess.BindEngine(rig.eng)
	rig.eng.SetDisposeHook(func() { close(rig.disposed) })

	// Plugging before Run starts keeps every engine call on one goroutine.
	require.NoError(t, rig.eng.Plug(r, rig.sess))

	ctx, cancel := context.WithCancel(context.Background())
	rig.cancel = cancel
	go func() {
		defer close(rig.done)
		_ = r.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-rig.done:
		case <-time.After(2 * time.Second):
			t.Error("reactor did not stop")
		}
		r.Close()
		conn.Close()
		unix.Close(fds[1])
	})
	return rig
}

func frameBytes(payload []byte) []byte {
	out := make([]byte, codec.HeaderSize+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[codec.HeaderSize:], payload)
	return out
}

func writeAll(t *testing.T, fd int, data []byte) {
	t.Helper()
	for len(data) > 0 {
		n, err := unix.Write(fd, data)
		require.NoError(t, err)
		data = data[n:]
	}
}

func readFull(t *testing.T, fd int, size int) []byte {
	t.Helper()
	buf := make([]byte, size)
	off := 0
	for off < size {
		n, err := unix.Read(fd, buf[off:])
		require.NoError(t, err)
		require.NotZero(t, n, "peer closed before %d bytes arrived", size)
		off += n
	}
	return buf
}

func readFrame(t *testing.T, fd int) []byte {
	t.Helper()
	header := readFull(t, fd, codec.HeaderSize)
	size := int(binary.BigEndian.Uint32(header))
	return readFull(t, fd, size)
}

func TestEchoSingleMessage(t *testing.T) {
	rig := startEchoRig(t)

	writeAll(t, rig.peer, frameBytes([]byte("hello")))
	assert.Equal(t, []byte("hello"), readFrame(t, rig.peer))
}

func TestEchoPreservesOrderAndBoundaries(t *testing.T) {
	rig := startEchoRig(t)

	msgs := [][]byte{
		[]byte("first"),
		{},
		bytes.Repeat([]byte{0xAB}, 100),
		[]byte("last"),
	}
	var wire []byte
	for _, m := range msgs {
		wire = append(wire, frameBytes(m)...)
	}
	writeAll(t, rig.peer, wire)

	for i, want := range msgs {
		got := readFrame(t, rig.peer)
		assert.Equal(t, want, got, "message %d", i)
	}
}

func TestEchoMessageLargerThanBatch(t *testing.T) {
	rig := startEchoRig(t)

	payload := make([]byte, 50000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	writeAll(t, rig.peer, frameBytes(payload))
	assert.Equal(t, payload, readFrame(t, rig.peer))
}

func TestPeerCloseDetachesAndDisposes(t *testing.T) {
	rig := startEchoRig(t)

	writeAll(t, rig.peer, frameBytes([]byte("bye")))
	assert.Equal(t, []byte("bye"), readFrame(t, rig.peer))

	require.NoError(t, unix.Shutdown(rig.peer, unix.SHUT_WR))

	select {
	case <-rig.detached:
	case <-time.After(2 * time.Second):
		t.Fatal("session was not detached after peer close")
	}
	select {
	case <-rig.disposed:
	case <-time.After(2 * time.Second):
		t.Fatal("engine was not disposed after peer close")
	}
}
