package transport

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/boymanjor/hns-ledger/pkg/frame"
)

// errNotOpen is returned when an exchange is attempted on a closed or
// broken channel.
var errNotOpen = errors.New("channel is not open")

// TCP is a Transport speaking raw 64-byte frames over a TCP connection,
// the shape exposed by Ledger emulators and HID-to-TCP proxies. Any
// exchange failure closes the connection so the channel is never left
// holding a half-written frame; the caller must Open again to resume.
type TCP struct {
	addr    string
	timeout time.Duration
	log     logrus.FieldLogger
	conn    net.Conn
}

// NewTCP returns an unopened channel to the given address.
func NewTCP(addr string) *TCP {
	return &TCP{
		addr:    addr,
		timeout: DefaultTimeout,
		log:     logrus.StandardLogger(),
	}
}

// Configure implements Transport.
func (t *TCP) Configure(cfg Config) {
	if cfg.Timeout > 0 {
		t.timeout = cfg.Timeout
	}
	if cfg.Logger != nil {
		t.log = cfg.Logger
	}
}

// Open implements Transport.
func (t *TCP) Open() error {
	if t.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", t.addr, t.timeout)
	if err != nil {
		return t.wrap("open", err)
	}
	t.conn = conn
	t.log.WithField("addr", t.addr).Debug("device channel opened")
	return nil
}

// Close implements Transport.
func (t *TCP) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		return t.wrap("close", err)
	}
	return nil
}

// Exchange implements Transport: one blocking round trip of framed bytes,
// bounded by the configured timeout.
func (t *TCP) Exchange(data []byte) ([]byte, error) {
	if t.conn == nil {
		return nil, &Error{Op: "exchange", Err: errNotOpen}
	}

	if err := t.conn.SetDeadline(time.Now().Add(t.timeout)); err != nil {
		return nil, t.fail("exchange", err)
	}

	t.log.WithField("data", hex.EncodeToString(data)).Trace("frames sent to device")
	if _, err := t.conn.Write(data); err != nil {
		return nil, t.fail("exchange", err)
	}

	// The first response frame declares the total message length, which
	// fixes how many more frames to read.
	first := make([]byte, frame.Size)
	if _, err := io.ReadFull(t.conn, first); err != nil {
		return nil, t.fail("exchange", err)
	}

	msgLen := int(binary.BigEndian.Uint16(first[5:7]))
	stream := make([]byte, frame.StreamSize(msgLen))
	copy(stream, first)
	if _, err := io.ReadFull(t.conn, stream[frame.Size:]); err != nil {
		return nil, t.fail("exchange", err)
	}

	t.log.WithField("data", hex.EncodeToString(stream)).Trace("frames received from device")
	return stream, nil
}

// fail closes the broken connection and wraps the error.
func (t *TCP) fail(op string, err error) error {
	t.conn.Close()
	t.conn = nil
	return t.wrap(op, err)
}

func (t *TCP) wrap(op string, err error) error {
	var nerr net.Error
	timeout := errors.As(err, &nerr) && nerr.Timeout()
	return &Error{Op: op, Timeout: timeout, Err: err}
}
