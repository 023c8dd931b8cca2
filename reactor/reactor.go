//go:build linux

// Package reactor multiplexes descriptor readiness events over epoll and
// dispatches them to registered handlers on a single goroutine. Interest in
// read and write readiness is toggled per registration, so a handler under
// backpressure can stop its own notifications without leaving the poll set.
package reactor

import (
	"context"
	"encoding/binary"
	goerrors "errors"
	"strconv"

	"github.com/gear6io/shuttle/pkg/errors"
	"github.com/gear6io/shuttle/shared"
	ferrors "github.com/go-faster/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const maxEventsPerWave = 128

// Handle identifies one registered descriptor. It is created by Register and
// becomes invalid after Deregister.
type Handle struct {
	fd      int
	events  uint32
	handler shared.Handler
}

// Descriptor returns the registered file descriptor
func (h *Handle) Descriptor() int {
	return h.fd
}

// Reactor is an epoll-backed implementation of shared.Poller. All methods and
// handler callbacks must run on the same goroutine as Run; the reactor
// performs no internal locking.
type Reactor struct {
	epfd    int
	wakefd  int
	handles map[int]*Handle
	logger  zerolog.Logger
	closed  bool
}

// New creates a reactor with an eventfd used to interrupt the dispatch loop
func New(logger zerolog.Logger) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(ErrCreateFailed, ferrors.Wrap(err, "epoll_create1"), "failed to create reactor")
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, errors.Wrap(ErrCreateFailed, ferrors.Wrap(err, "eventfd"), "failed to create reactor")
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, errors.Wrap(ErrCreateFailed, ferrors.Wrap(err, "epoll_ctl wake"), "failed to create reactor")
	}

	return &Reactor{
		epfd:    epfd,
		wakefd:  wakefd,
		handles: make(map[int]*Handle),
		logger:  logger.With().Str("component", "reactor").Logger(),
	}, nil
}

// Register adds fd to the poll set with no interest in either direction
func (r *Reactor) Register(fd int, h shared.Handler) (shared.Registration, error) {
	handle := &Handle{fd: fd, handler: h}

	ev := unix.EpollEvent{Events: 0, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return nil, errors.Wrap(ErrRegisterFailed, ferrors.Wrap(err, "epoll_ctl add"), "failed to register descriptor").
			AddContext("fd", strconv.Itoa(fd))
	}

	r.handles[fd] = handle
	r.logger.Trace().Int("fd", fd).Msg("Descriptor registered")
	return handle, nil
}

// Deregister removes the descriptor from the poll set. Pending events for it
// in the current dispatch wave are dropped.
func (r *Reactor) Deregister(reg shared.Registration) error {
	handle, err := r.handle(reg)
	if err != nil {
		return err
	}

	delete(r.handles, handle.fd)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, handle.fd, nil); err != nil {
		return errors.Wrap(ErrDeregisterFailed, ferrors.Wrap(err, "epoll_ctl del"), "failed to deregister descriptor").
			AddContext("fd", strconv.Itoa(handle.fd))
	}
	r.logger.Trace().Int("fd", handle.fd).Msg("Descriptor deregistered")
	return nil
}

// SetReadable enables read-readiness notifications
func (r *Reactor) SetReadable(reg shared.Registration) error {
	return r.modify(reg, func(h *Handle) { h.events |= unix.EPOLLIN })
}

// ResetReadable disables read-readiness notifications
func (r *Reactor) ResetReadable(reg shared.Registration) error {
	return r.modify(reg, func(h *Handle) { h.events &^= unix.EPOLLIN })
}

// SetWritable enables write-readiness notifications
func (r *Reactor) SetWritable(reg shared.Registration) error {
	return r.modify(reg, func(h *Handle) { h.events |= unix.EPOLLOUT })
}

// ResetWritable disables write-readiness notifications
func (r *Reactor) ResetWritable(reg shared.Registration) error {
	return r.modify(reg, func(h *Handle) { h.events &^= unix.EPOLLOUT })
}

func (r *Reactor) modify(reg shared.Registration, change func(*Handle)) error {
	handle, err := r.handle(reg)
	if err != nil {
		return err
	}

	change(handle)
	ev := unix.EpollEvent{Events: handle.events, Fd: int32(handle.fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, handle.fd, &ev); err != nil {
		return errors.Wrap(ErrInterestFailed, ferrors.Wrap(err, "epoll_ctl mod"), "failed to update interest").
			AddContext("fd", strconv.Itoa(handle.fd))
	}
	return nil
}

func (r *Reactor) handle(reg shared.Registration) (*Handle, error) {
	handle, ok := reg.(*Handle)
	if !ok || handle == nil {
		return nil, errors.New(ErrInvalidHandle, "registration does not belong to this reactor")
	}
	if r.handles[handle.fd] != handle {
		return nil, errors.Newf(ErrInvalidHandle, "descriptor %d is not registered", handle.fd)
	}
	return handle, nil
}

// Wake interrupts a blocked dispatch loop. This is the only method safe to
// call from another goroutine.
func (r *Reactor) Wake() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, _ = unix.Write(r.wakefd, buf[:])
}

// Run dispatches readiness events until ctx is cancelled
func (r *Reactor) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		r.Wake()
	}()

	events := make([]unix.EpollEvent, maxEventsPerWave)
	for {
		n, err := unix.EpollWait(r.epfd, events, -1)
		if err != nil {
			if goerrors.Is(err, unix.EINTR) {
				continue
			}
			return errors.Wrap(ErrPollFailed, ferrors.Wrap(err, "epoll_wait"), "reactor poll failed")
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			if int(ev.Fd) == r.wakefd {
				r.drainWake()
				continue
			}

			// The handle may have been deregistered by an earlier handler
			// in this wave.
			handle, ok := r.handles[int(ev.Fd)]
			if !ok {
				continue
			}

			// Hangups and errors surface through the read path so the
			// handler observes the close on its next bounded read.
			if ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				handle.handler.OnReadable()
			}
			if r.handles[int(ev.Fd)] != handle {
				continue
			}
			if ev.Events&unix.EPOLLOUT != 0 {
				handle.handler.OnWritable()
			}
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *Reactor) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(r.wakefd, buf[:]); err != nil {
			return
		}
	}
}

// GetType returns the component type identifier
func (r *Reactor) GetType() string {
	return "reactor"
}

// Shutdown gracefully shuts down the component
func (r *Reactor) Shutdown(ctx context.Context) error {
	return r.Close()
}

// Close releases the epoll and wake descriptors
func (r *Reactor) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := unix.Close(r.wakefd); err != nil {
		r.logger.Debug().Err(err).Msg("Error closing wake descriptor")
	}
	if err := unix.Close(r.epfd); err != nil {
		return ferrors.Wrap(err, "close epoll")
	}
	return nil
}

