package frame

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage(n int) []byte {
	msg := make([]byte, n)
	for i := range msg {
		msg[i] = byte(i % 251)
	}
	return msg
}

// TestRoundTrip checks decode(encode(msg)) == msg across the boundary
// lengths of the 64-byte framing.
func TestRoundTrip(t *testing.T) {
	c := NewCodec(DefaultChannel)

	for _, n := range []int{0, 1, 57, 58, 63, 64, 65, 1000} {
		msg := testMessage(n)

		stream, err := c.EncodeStream(msg)
		require.NoError(t, err, "encode length %d", n)
		require.Equal(t, 0, len(stream)%Size, "stream must be whole frames")

		got, err := c.Decode(stream)
		require.NoError(t, err, "decode length %d", n)

		if n == 0 {
			assert.Empty(t, got)
		} else {
			assert.True(t, bytes.Equal(msg, got), "round trip length %d", n)
		}
	}
}

// TestFrameLayout pins the first-frame header layout byte for byte.
func TestFrameLayout(t *testing.T) {
	c := NewCodec(DefaultChannel)

	frames, err := c.Encode([]byte{0xde, 0xad})
	require.NoError(t, err)
	require.Len(t, frames, 1)

	f := frames[0]
	require.Len(t, f, Size)
	assert.Equal(t, []byte{0x01, 0x01, 0x05, 0x00, 0x00, 0x00, 0x02, 0xde, 0xad}, f[:9])
	assert.Equal(t, make([]byte, Size-9), f[9:], "padding must be zero")
}

func TestFrameCount(t *testing.T) {
	c := NewCodec(DefaultChannel)

	// 57 payload bytes fit in the first frame, 59 in each continuation.
	tests := []struct {
		length int
		frames int
	}{
		{0, 1},
		{57, 1},
		{58, 2},
		{57 + 59, 2},
		{57 + 59 + 1, 3},
	}
	for _, tt := range tests {
		frames, err := c.Encode(testMessage(tt.length))
		require.NoError(t, err)
		assert.Len(t, frames, tt.frames, "length %d", tt.length)
	}
}

func TestStreamSize(t *testing.T) {
	c := NewCodec(DefaultChannel)

	for _, n := range []int{0, 1, 57, 58, 120, 1000} {
		stream, err := c.EncodeStream(testMessage(n))
		require.NoError(t, err)
		assert.Equal(t, len(stream), StreamSize(n), "length %d", n)
	}
}

func TestEncodeOversizedMessage(t *testing.T) {
	c := NewCodec(DefaultChannel)

	_, err := c.Encode(make([]byte, 1<<16))
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestDecodeHeaderViolations(t *testing.T) {
	c := NewCodec(DefaultChannel)

	valid, err := c.EncodeStream(testMessage(100))
	require.NoError(t, err)

	corrupt := func(mutate func(stream []byte)) []byte {
		stream := append([]byte(nil), valid...)
		mutate(stream)
		return stream
	}

	tests := []struct {
		name   string
		stream []byte
	}{
		{
			name:   "channel mismatch",
			stream: corrupt(func(s []byte) { binary.BigEndian.PutUint16(s, 0x0202) }),
		},
		{
			name:   "tag mismatch",
			stream: corrupt(func(s []byte) { s[2] = byte(TagPing) }),
		},
		{
			name:   "sequence gap",
			stream: corrupt(func(s []byte) { binary.BigEndian.PutUint16(s[Size+3:], 2) }),
		},
		{
			name:   "short frame",
			stream: valid[:3],
		},
		{
			name:   "length never satisfied",
			stream: valid[:Size],
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.stream)
			var perr *ProtocolError
			require.ErrorAs(t, err, &perr, "expected protocol error")
		})
	}
}

// TestDecoderRejectsTrailingFrame checks that frames past the declared
// total length are refused instead of silently merged into the message.
func TestDecoderRejectsTrailingFrame(t *testing.T) {
	c := NewCodec(DefaultChannel)

	frames, err := c.Encode(testMessage(10))
	require.NoError(t, err)
	require.Len(t, frames, 1)

	d := NewDecoder(c)
	done, err := d.Push(frames[0])
	require.NoError(t, err)
	require.True(t, done)

	_, err = d.Push(frames[0])
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}
