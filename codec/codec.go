// Package codec converts between raw byte streams and discrete messages.
// Decoder and Encoder each own their internal buffer; callers only ever hold
// a borrowed view into it, valid until the next acquisition call.
package codec

// Session is the message sink and source a codec is bound to. Decoded
// messages are pushed into it and outbound messages are pulled from it as a
// side effect of the buffer-protocol calls.
type Session interface {
	// PushMessage hands a decoded message to the session. It returns false
	// when the session cannot accept the message right now; the codec must
	// hold it and retry on the next Consume call.
	PushMessage(msg []byte) bool

	// PullMessage takes the next outbound message from the session. The
	// second return is false when nothing is pending.
	PullMessage() ([]byte, bool)
}

// Decoder turns raw bytes into framed messages.
type Decoder interface {
	// Buffer returns the scratch region the caller should read wire bytes
	// into. The view is invalidated by the next Buffer call.
	Buffer() []byte

	// Consume processes a prefix of data, pushing completed messages to the
	// bound session. It returns how many bytes were consumed; a short count
	// signals consumer-side backpressure. A non-nil error means the stream
	// is malformed and the connection must be torn down.
	Consume(data []byte) (int, error)

	// Bind attaches the session messages are delivered to; Bind(nil)
	// detaches it.
	Bind(s Session)
}

// Encoder turns queued messages into raw bytes.
type Encoder interface {
	// Data returns the next chunk of serialized bytes, pulling messages
	// from the bound session as needed. An empty chunk means nothing is
	// pending. The view is invalidated by the next Data call.
	Data() []byte

	// Bind attaches the session messages are pulled from; Bind(nil)
	// detaches it.
	Bind(s Session)
}
