package transport

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boymanjor/hns-ledger/pkg/frame"
)

// serveOnce accepts one connection and answers every incoming frame
// stream with the provided framed response.
func serveOnce(t *testing.T, respond func(request []byte) []byte) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, frame.Size)
		for {
			if _, err := io.ReadFull(conn, buf); err != nil {
				return
			}
			if resp := respond(buf); resp != nil {
				if _, err := conn.Write(resp); err != nil {
					return
				}
			}
		}
	}()

	return ln.Addr().String()
}

func TestTCPExchange(t *testing.T) {
	codec := frame.NewCodec(frame.DefaultChannel)
	response, err := codec.EncodeStream([]byte{0x01, 0x00, 0x03, 0x90, 0x00})
	require.NoError(t, err)

	addr := serveOnce(t, func([]byte) []byte { return response })

	tr := NewTCP(addr)
	require.NoError(t, tr.Open())
	defer tr.Close()

	request, err := codec.EncodeStream([]byte{0xe0, 0x40, 0x00, 0x00, 0x00})
	require.NoError(t, err)

	got, err := tr.Exchange(request)
	require.NoError(t, err)
	assert.Equal(t, response, got)
}

func TestTCPExchangeNotOpen(t *testing.T) {
	tr := NewTCP("127.0.0.1:1")

	_, err := tr.Exchange([]byte{0x00})
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.False(t, terr.Timeout)
}

// TestTCPExchangeTimeout checks that a silent peer surfaces a typed
// timeout error and leaves the channel closed rather than half-written.
func TestTCPExchangeTimeout(t *testing.T) {
	addr := serveOnce(t, func([]byte) []byte { return nil })

	tr := NewTCP(addr)
	tr.Configure(Config{Timeout: 50 * time.Millisecond})
	require.NoError(t, tr.Open())
	defer tr.Close()

	codec := frame.NewCodec(frame.DefaultChannel)
	request, err := codec.EncodeStream([]byte{0xe0, 0x40, 0x00, 0x00, 0x00})
	require.NoError(t, err)

	_, err = tr.Exchange(request)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.Timeout)

	// The channel is now in a defined closed state.
	_, err = tr.Exchange(request)
	require.ErrorAs(t, err, &terr)
	assert.False(t, terr.Timeout)
}
