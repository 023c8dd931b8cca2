package codec

import (
	"encoding/binary"

	"github.com/gear6io/shuttle/pkg/errors"
)

// HeaderSize is the length prefix size: a 4-byte big-endian payload length.
const HeaderSize = 4

// defaultFrameLimit bounds a frame's declared size when no explicit maximum
// is configured, so a corrupt or hostile header cannot drive an arbitrary
// allocation.
const defaultFrameLimit = 64 << 20

// FrameDecoder decodes length-prefixed frames from a byte stream. It owns a
// batch-sized scratch buffer for wire reads and assembles each message body
// in its own allocation, so a message may span many Consume calls.
type FrameDecoder struct {
	scratch []byte
	maxSize int
	session Session

	header     [HeaderSize]byte
	headerRead int
	body       []byte
	bodyFilled int
	pending    []byte
}

// NewFrameDecoder creates a decoder with the given scratch buffer size and
// maximum accepted message size. A maxSize of zero falls back to
// defaultFrameLimit.
func NewFrameDecoder(batchSize, maxSize int) *FrameDecoder {
	return &FrameDecoder{
		scratch: make([]byte, batchSize),
		maxSize: maxSize,
	}
}

// Bind attaches the session decoded messages are pushed into
func (d *FrameDecoder) Bind(s Session) {
	d.session = s
}

// Buffer returns the scratch region for the next wire read
func (d *FrameDecoder) Buffer() []byte {
	return d.scratch
}

// Consume processes a prefix of data. It stops early, returning a short
// count, when the session refuses a decoded message; the refused message is
// retried on the next call before any new bytes are touched.
func (d *FrameDecoder) Consume(data []byte) (int, error) {
	if d.pending != nil {
		if !d.push(d.pending) {
			return 0, nil
		}
		d.pending = nil
	}

	consumed := 0
	for consumed < len(data) {
		if d.body == nil {
			n := copy(d.header[d.headerRead:], data[consumed:])
			d.headerRead += n
			consumed += n
			if d.headerRead < HeaderSize {
				break
			}

			// Compared as uint64 so a huge header cannot wrap a 32-bit int.
			size := uint64(binary.BigEndian.Uint32(d.header[:]))
			limit := uint64(defaultFrameLimit)
			if d.maxSize > 0 {
				limit = uint64(d.maxSize)
			}
			if size > limit {
				return 0, errors.Newf(ErrFrameTooLarge, "frame of %d bytes exceeds limit of %d", size, limit)
			}
			d.headerRead = 0
			d.body = make([]byte, int(size))
			d.bodyFilled = 0
		}

		if d.bodyFilled < len(d.body) {
			n := copy(d.body[d.bodyFilled:], data[consumed:])
			d.bodyFilled += n
			consumed += n
		}

		if d.bodyFilled == len(d.body) {
			msg := d.body
			d.body = nil
			if !d.push(msg) {
				d.pending = msg
				return consumed, nil
			}
		}
	}

	return consumed, nil
}

func (d *FrameDecoder) push(msg []byte) bool {
	// The session may detach reentrantly from inside an earlier push.
	if d.session == nil {
		return false
	}
	return d.session.PushMessage(msg)
}

// FrameEncoder serializes queued messages into length-prefixed frames,
// batching as many as fit into its internal buffer per Data call.
type FrameEncoder struct {
	buf     []byte
	session Session

	// unwritten remainder of a message larger than the batch buffer
	tail []byte
}

// NewFrameEncoder creates an encoder with the given batch buffer size
func NewFrameEncoder(batchSize int) *FrameEncoder {
	return &FrameEncoder{
		buf: make([]byte, batchSize),
	}
}

// Bind attaches the session outbound messages are pulled from
func (e *FrameEncoder) Bind(s Session) {
	e.session = s
}

// Data refills the batch buffer from the bound session and returns the
// serialized bytes. An empty result means nothing is pending. The returned
// view is valid until the next Data call.
func (e *FrameEncoder) Data() []byte {
	size := 0

	if len(e.tail) > 0 {
		n := copy(e.buf[size:], e.tail)
		size += n
		e.tail = e.tail[n:]
		if len(e.tail) > 0 {
			return e.buf[:size]
		}
	}

	// A header is never split across batches, so stop once one no longer
	// fits.
	for size+HeaderSize <= len(e.buf) {
		if e.session == nil {
			break
		}
		msg, ok := e.session.PullMessage()
		if !ok {
			break
		}

		binary.BigEndian.PutUint32(e.buf[size:], uint32(len(msg)))
		size += HeaderSize

		n := copy(e.buf[size:], msg)
		size += n
		if n < len(msg) {
			e.tail = msg[n:]
			break
		}
	}

	return e.buf[:size]
}
