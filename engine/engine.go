// Package engine bridges a non-blocking byte-stream transport and a
// message-oriented session. It multiplexes readiness events into bounded
// reads and writes, drives the framing codec, and propagates flow-control
// backpressure in both directions.
//
// An engine is single-threaded cooperative: exactly one goroutine (the one
// running the reactor loop) may drive it at a time, and session-originated
// calls must be funneled through that same goroutine. No method blocks.
package engine

import (
	"github.com/gear6io/shuttle/codec"
	"github.com/gear6io/shuttle/config"
	"github.com/gear6io/shuttle/pkg/errors"
	"github.com/gear6io/shuttle/shared"
	"github.com/rs/zerolog"
)

// Transport is the non-blocking byte-stream connection the engine moves
// bytes through. Read reports a closed peer with a non-nil error and
// "nothing available" as (0, nil); Write reports "would not accept" as
// (0, nil) and any failure as a terminal error.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Descriptor() int
}

// Session is the engine-facing surface of the message consumer/producer. It
// also satisfies the codec's push/pull contract so the engine can bind it to
// the decoder and encoder.
type Session interface {
	codec.Session

	// Flush delivers newly decoded messages and picks up newly enqueued
	// outbound messages
	Flush()

	// Detach signals that the connection is gone; reconnection policy is
	// the session's responsibility
	Detach()
}

// Engine bridges one transport connection and one session. It is created
// unplugged; Plug binds it to a poller and session, Unplug reverses that,
// and Terminate disposes it. A torn-down engine cannot be revived.
type Engine struct {
	transport Transport
	decoder   codec.Decoder
	encoder   codec.Encoder
	cfg       config.Engine
	logger    zerolog.Logger

	poller shared.Poller
	reg    shared.Registration

	// Borrowed views into the decoder scratch buffer and the encoder batch
	// buffer. Valid only until the next Buffer/Data acquisition.
	in  []byte
	out []byte

	session Session

	// The detaching session, kept alive after Unplug so one more flush can
	// land from a callback already in flight.
	leftover Session

	plugged   bool
	disposed  bool
	onDispose func()
}

// New creates an engine bound to an already-open transport, unplugged, with
// a length-prefixed framing codec sized by the configuration.
func New(t Transport, cfg config.Engine, logger zerolog.Logger) *Engine {
	return NewWithCodec(t,
		codec.NewFrameDecoder(cfg.InBatchSize, cfg.MaxMessageSize),
		codec.NewFrameEncoder(cfg.OutBatchSize),
		cfg, logger)
}

// NewWithCodec creates an engine using the supplied framing codec.
func NewWithCodec(t Transport, dec codec.Decoder, enc codec.Encoder, cfg config.Engine, logger zerolog.Logger) *Engine {
	return &Engine{
		transport: t,
		decoder:   dec,
		encoder:   enc,
		cfg:       cfg,
		logger: logger.With().
			Str("component", "engine").
			Int("fd", t.Descriptor()).
			Logger(),
	}
}

// SetDisposeHook installs the owner callback invoked when the engine
// disposes itself after Terminate or a connection failure. The hook runs
// after the descriptor has been deregistered.
func (e *Engine) SetDisposeHook(fn func()) {
	e.onDispose = fn
}

// Config returns the immutable configuration captured at construction
func (e *Engine) Config() config.Engine {
	return e.cfg
}

// Plugged reports whether the engine is currently plugged
func (e *Engine) Plugged() bool {
	return e.plugged
}

// Disposed reports whether the engine has been disposed
func (e *Engine) Disposed() bool {
	return e.disposed
}

// Plug binds the engine to a poller and session, enables read and write
// interest, and immediately drains any bytes that arrived before
// subscription.
func (e *Engine) Plug(p shared.Poller, s Session) error {
	if e.disposed {
		return errors.New(ErrDisposed, "engine has been disposed")
	}
	if e.plugged || e.session != nil {
		return errors.New(ErrAlreadyPlugged, "engine is already plugged")
	}
	if s == nil {
		return errors.New(ErrNilSession, "engine requires a session")
	}

	e.leftover = nil
	e.encoder.Bind(s)
	e.decoder.Bind(s)
	e.session = s

	reg, err := p.Register(e.transport.Descriptor(), e)
	if err != nil {
		e.encoder.Bind(nil)
		e.decoder.Bind(nil)
		e.session = nil
		return errors.Wrap(ErrRegistration, err, "failed to register with poller")
	}

	e.poller = p
	e.reg = reg
	e.plugged = true

	if err := p.SetReadable(reg); err != nil {
		e.logger.Error().Err(err).Msg("Failed to enable read interest")
	}
	if err := p.SetWritable(reg); err != nil {
		e.logger.Error().Err(err).Msg("Failed to enable write interest")
	}

	e.logger.Debug().Msg("Engine plugged")

	// Flush anything that may have been received before we subscribed.
	e.inEvent()
	return nil
}

// Unplug deregisters the engine and detaches it from its session. Callbacks
// already in flight may still deliver one flush to the detaching session.
// Calling Unplug on an unplugged engine is a contract violation.
func (e *Engine) Unplug() {
	if !e.plugged {
		panic("engine: unplug called on unplugged engine")
	}
	e.plugged = false

	if err := e.poller.Deregister(e.reg); err != nil {
		e.logger.Error().Err(err).Msg("Failed to deregister descriptor")
	}
	e.poller = nil
	e.reg = nil

	e.encoder.Bind(nil)
	e.decoder.Bind(nil)
	e.leftover = e.session
	e.session = nil

	e.logger.Debug().Msg("Engine unplugged")
}

// Terminate unplugs and disposes the engine
func (e *Engine) Terminate() {
	e.Unplug()
	e.dispose()
}

// fail tears the connection down: the session is told it is gone, the engine
// deregisters and disposes. All three terminal causes (peer close, transport
// failure, decode failure) land here.
func (e *Engine) fail() {
	if e.session == nil {
		panic("engine: fail called without a session")
	}
	e.session.Detach()
	e.Unplug()
	e.dispose()
}

func (e *Engine) dispose() {
	if e.plugged {
		panic("engine: dispose called while plugged")
	}
	if e.disposed {
		return
	}
	e.disposed = true
	e.logger.Debug().Msg("Engine disposed")
	if e.onDispose != nil {
		e.onDispose()
	}
}

// OnReadable handles a read-readiness event
func (e *Engine) OnReadable() {
	e.inEvent()
}

// OnWritable handles a write-readiness event
func (e *Engine) OnWritable() {
	e.outEvent()
}

func (e *Engine) inEvent() {
	disconnected := false

	// Only read when the previous window is fully consumed; otherwise the
	// remainder is retried against the decoder first.
	if len(e.in) == 0 {
		buf := e.decoder.Buffer()
		n, err := e.transport.Read(buf)
		if err != nil {
			// Peer close and transport failure take the same path.
			e.in = nil
			disconnected = true
		} else {
			e.in = buf[:n]
		}
	}

	processed, err := e.decoder.Consume(e.in)
	if err != nil {
		disconnected = true
	} else {
		if processed < len(e.in) && e.plugged {
			// The session queue is saturated; stop read notifications
			// until the consumer frees capacity.
			if perr := e.poller.ResetReadable(e.reg); perr != nil {
				e.logger.Error().Err(perr).Msg("Failed to pause read interest")
			}
		}
		e.in = e.in[processed:]
	}

	// Messages decoded before any failure must still be delivered. If the
	// consume step unplugged us reentrantly, the one allowed flush goes to
	// the detaching session.
	if !e.plugged {
		if e.leftover == nil {
			panic("engine: unplugged in-event without leftover session")
		}
		e.leftover.Flush()
	} else {
		e.session.Flush()
	}

	if e.session != nil && disconnected {
		e.fail()
	}
}

func (e *Engine) outEvent() {
	// Refill only when the previous window is fully written.
	if len(e.out) == 0 {
		e.out = e.encoder.Data()

		// The refill pulls from the session and may unplug us reentrantly.
		if !e.plugged {
			if e.leftover == nil {
				panic("engine: unplugged out-event without leftover session")
			}
			e.leftover.Flush()
			return
		}

		if len(e.out) == 0 {
			if err := e.poller.ResetWritable(e.reg); err != nil {
				e.logger.Error().Err(err).Msg("Failed to pause write interest")
			}
			return
		}
	}

	n, err := e.transport.Write(e.out)
	if err != nil {
		e.fail()
		return
	}

	// A partial write is not an error; the remainder goes out on the next
	// writable event.
	e.out = e.out[n:]
}

// ActivateIn re-enables read interest and speculatively drains input rather
// than waiting for the next readiness notification.
func (e *Engine) ActivateIn() {
	if !e.plugged {
		return
	}
	if err := e.poller.SetReadable(e.reg); err != nil {
		e.logger.Error().Err(err).Msg("Failed to resume read interest")
	}
	e.inEvent()
}

// ActivateOut re-enables write interest and speculatively writes. When a
// partial write is still pending this only re-asserts interest and attempts
// to push the remainder.
func (e *Engine) ActivateOut() {
	if !e.plugged {
		return
	}
	if err := e.poller.SetWritable(e.reg); err != nil {
		e.logger.Error().Err(err).Msg("Failed to resume write interest")
	}
	e.outEvent()
}
