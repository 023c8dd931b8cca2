// Package session owns the message queues on the application side of an
// engine: decoded messages land in its inbound queue and outbound messages
// wait in its outbound queue until the encoder pulls them. The session is
// also the policy holder for a lost connection; the engine only reports the
// detach, it never reconnects.
//
// Like the engine, a session is single-threaded: all calls must come from
// the goroutine driving the reactor loop.
package session

import (
	"github.com/gear6io/shuttle/pkg/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Activator is the engine surface a session pokes when paused capacity frees
// up.
type Activator interface {
	// ActivateIn re-enables read interest and speculatively drains input
	ActivateIn()

	// ActivateOut re-enables write interest and speculatively writes output
	ActivateOut()
}

// Receiver consumes messages delivered by Flush, in decode order.
type Receiver func(msg []byte)

// DetachFunc is invoked exactly once when the connection is gone. Reconnect
// and cleanup policy live entirely behind it.
type DetachFunc func()

// Session is a bounded in/out message queue pair bridging an engine and the
// application.
type Session struct {
	id       uuid.UUID
	logger   zerolog.Logger
	receiver Receiver
	onDetach DetachFunc

	inbound  [][]byte
	outbound [][]byte
	inLimit  int
	outLimit int

	engine   Activator
	refused  bool
	detached bool
}

// Config holds the queue bounds for a session.
type Config struct {
	InQueueSize  int
	OutQueueSize int
}

// New creates a session delivering inbound messages to receiver
func New(cfg Config, receiver Receiver, onDetach DetachFunc, logger zerolog.Logger) *Session {
	id := uuid.New()
	return &Session{
		id:       id,
		logger:   logger.With().Str("component", "session").Str("session_id", id.String()).Logger(),
		receiver: receiver,
		onDetach: onDetach,
		inLimit:  cfg.InQueueSize,
		outLimit: cfg.OutQueueSize,
	}
}

// ID returns the session identity used in log fields
func (s *Session) ID() string {
	return s.id.String()
}

// BindEngine connects the activate callbacks to an engine; BindEngine(nil)
// disconnects them.
func (s *Session) BindEngine(a Activator) {
	s.engine = a
}

// PushMessage queues a decoded message. It returns false when the inbound
// queue is full; the decoder holds the message and the engine pauses reads.
func (s *Session) PushMessage(msg []byte) bool {
	if len(s.inbound) >= s.inLimit {
		s.refused = true
		return false
	}
	s.inbound = append(s.inbound, msg)
	return true
}

// PullMessage takes the next outbound message for encoding
func (s *Session) PullMessage() ([]byte, bool) {
	if len(s.outbound) == 0 {
		return nil, false
	}
	msg := s.outbound[0]
	s.outbound = s.outbound[1:]
	return msg, true
}

// Send queues an outbound message and speculatively activates the engine's
// write path.
func (s *Session) Send(msg []byte) error {
	if s.detached {
		return errors.New(ErrDetached, "session is detached")
	}
	if len(s.outbound) >= s.outLimit {
		return errors.Newf(ErrOutboundFull, "outbound queue limit of %d reached", s.outLimit)
	}

	s.outbound = append(s.outbound, msg)
	if s.engine != nil {
		s.engine.ActivateOut()
	}
	return nil
}

// Flush delivers all queued inbound messages to the receiver. If the decoder
// was refused since the last flush and the queue has drained, the engine's
// read path is reactivated.
func (s *Session) Flush() {
	for len(s.inbound) > 0 {
		msg := s.inbound[0]
		s.inbound = s.inbound[1:]
		if s.receiver != nil {
			s.receiver(msg)
		}
	}

	if s.refused && s.engine != nil {
		s.refused = false
		s.engine.ActivateIn()
	}
}

// Detach reports that the connection is gone. Further Sends fail; the detach
// hook runs at most once.
func (s *Session) Detach() {
	if s.detached {
		return
	}
	s.detached = true
	s.engine = nil
	s.logger.Debug().Msg("Session detached")
	if s.onDetach != nil {
		s.onDetach()
	}
}

// Pending returns the inbound and outbound queue depths
func (s *Session) Pending() (in, out int) {
	return len(s.inbound), len(s.outbound)
}
