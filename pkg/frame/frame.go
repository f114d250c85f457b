// Package frame implements the fixed-size transport framing used to carry
// APDU messages between the host and a Ledger device.
//
// Every frame is 64 bytes on the wire:
//
//	channel id (u16be) || tag (u8) || sequence index (u16be) || payload
//
// The first frame of a message (sequence 0) carries an additional u16be
// total-length prefix ahead of the payload. Continuation frames carry the
// remaining payload and are zero padded up to the frame size.
//
// The channel id multiplexes logical sessions over one physical link. The
// tag distinguishes APDU payloads from link-level ping frames. Any header
// mismatch while decoding is a hard protocol error: the host and device
// must stay byte-synchronized, so there is no silent resynchronization.
package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Tag identifies the content of a frame.
type Tag byte

const (
	// TagAPDU marks a frame carrying a chunk of an APDU message.
	TagAPDU Tag = 0x05

	// TagPing marks a link liveness test frame.
	TagPing Tag = 0x02
)

const (
	// Size is the fixed wire size of every frame.
	Size = 64

	// DefaultChannel is the channel id used when the caller does not
	// multiplex sessions. The leading 0x01 avoids compatibility issues
	// with implementations that strip a leading zero byte.
	DefaultChannel uint16 = 0x0101

	// contHeaderSize is the header size of a continuation frame.
	contHeaderSize = 5

	// firstHeaderSize is the header size of a first frame, which adds
	// the u16be total message length.
	firstHeaderSize = 7
)

// ProtocolError reports a framing violation detected while encoding or
// decoding. Framing errors are always fatal to the in-flight operation.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("frame protocol error: %s", e.Message)
}

func protoErrf(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Message: fmt.Sprintf(format, args...)}
}

// Codec splits messages into frames and reassembles frame streams for one
// (channel, tag) pair.
type Codec struct {
	Channel uint16
	Tag     Tag
}

// NewCodec returns an APDU codec bound to the given channel id.
func NewCodec(channel uint16) Codec {
	return Codec{Channel: channel, Tag: TagAPDU}
}

// Encode splits msg into an ordered sequence of frames. The first frame
// carries the total message length; the last frame is zero padded to the
// fixed frame size.
func (c Codec) Encode(msg []byte) ([][]byte, error) {
	if len(msg) > math.MaxUint16 {
		return nil, protoErrf("message of %d bytes exceeds the %d byte framing limit", len(msg), math.MaxUint16)
	}

	var frames [][]byte
	rest := msg

	for seq := 0; ; seq++ {
		f := make([]byte, Size)
		binary.BigEndian.PutUint16(f[0:], c.Channel)
		f[2] = byte(c.Tag)
		binary.BigEndian.PutUint16(f[3:], uint16(seq))

		body := f[contHeaderSize:]
		if seq == 0 {
			binary.BigEndian.PutUint16(body, uint16(len(msg)))
			body = f[firstHeaderSize:]
		}

		n := copy(body, rest)
		rest = rest[n:]
		frames = append(frames, f)

		if len(rest) == 0 {
			break
		}
	}

	return frames, nil
}

// EncodeStream is Encode with the frames concatenated into one contiguous
// buffer, the shape a transport exchange expects.
func (c Codec) EncodeStream(msg []byte) ([]byte, error) {
	frames, err := c.Encode(msg)
	if err != nil {
		return nil, err
	}
	stream := make([]byte, 0, len(frames)*Size)
	for _, f := range frames {
		stream = append(stream, f...)
	}
	return stream, nil
}

// StreamSize returns the framed wire size of a message of msgLen bytes:
// the byte count a transport must read to hold the whole frame sequence.
func StreamSize(msgLen int) int {
	frames := 1
	if msgLen > Size-firstHeaderSize {
		rest := msgLen - (Size - firstHeaderSize)
		per := Size - contHeaderSize
		frames += (rest + per - 1) / per
	}
	return frames * Size
}

// Decoder reassembles one message from an ordered frame stream.
type Decoder struct {
	codec Codec
	next  uint16
	want  int
	buf   bytes.Buffer
}

// NewDecoder returns a decoder expecting frames for the codec's channel
// and tag, starting at sequence 0.
func NewDecoder(c Codec) *Decoder {
	return &Decoder{codec: c, want: -1}
}

// Push consumes one frame and reports whether the message is complete.
// Frames arriving after completion, or violating the header contract in
// any way, fail with a ProtocolError.
func (d *Decoder) Push(f []byte) (bool, error) {
	if d.done() {
		return false, protoErrf("frame received after message completed")
	}

	header := contHeaderSize
	if d.next == 0 {
		header = firstHeaderSize
	}
	if len(f) < header {
		return false, protoErrf("frame of %d bytes is shorter than its %d byte header", len(f), header)
	}

	if channel := binary.BigEndian.Uint16(f[0:]); channel != d.codec.Channel {
		return false, protoErrf("channel id mismatch: got %#04x, want %#04x", channel, d.codec.Channel)
	}
	if tag := Tag(f[2]); tag != d.codec.Tag {
		return false, protoErrf("tag mismatch: got %#02x, want %#02x", tag, d.codec.Tag)
	}
	if seq := binary.BigEndian.Uint16(f[3:]); seq != d.next {
		return false, protoErrf("out-of-order sequence: got %d, want %d", seq, d.next)
	}

	payload := f[contHeaderSize:]
	if d.next == 0 {
		d.want = int(binary.BigEndian.Uint16(f[contHeaderSize:]))
		payload = f[firstHeaderSize:]
	}
	d.next++

	// Trailing zero padding past the declared length is discarded.
	if left := d.want - d.buf.Len(); len(payload) > left {
		payload = payload[:left]
	}
	d.buf.Write(payload)

	return d.done(), nil
}

// Message returns the reassembled message. It fails if the declared total
// length has not been satisfied yet.
func (d *Decoder) Message() ([]byte, error) {
	if d.want < 0 {
		return nil, protoErrf("no frames received")
	}
	if !d.done() {
		return nil, protoErrf("declared length never satisfied: have %d of %d bytes", d.buf.Len(), d.want)
	}
	return d.buf.Bytes(), nil
}

func (d *Decoder) done() bool {
	return d.want >= 0 && d.buf.Len() >= d.want
}

// Decode reassembles a message from a contiguous stream of frames, e.g.
// the raw bytes returned by one transport exchange. The stream must
// contain enough frames to satisfy the declared total length.
func (c Codec) Decode(stream []byte) ([]byte, error) {
	d := NewDecoder(c)
	for off := 0; off < len(stream); off += Size {
		end := off + Size
		if end > len(stream) {
			end = len(stream)
		}
		done, err := d.Push(stream[off:end])
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	return d.Message()
}
