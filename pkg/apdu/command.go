// Package apdu builds the commands and parses the responses of the
// Handshake Ledger signing application.
//
// Commands follow the ISO 7816-4 shape: a class byte, an instruction
// byte, two parameter bytes and an optional length-prefixed data payload.
// Responses are raw payload bytes terminated by a two byte status word;
// everything before the status word is instruction specific.
//
// Builders validate argument shape before encoding so that malformed
// commands are rejected locally, never sent to the device. Parsers check
// response length exactly against what the instruction promises; any
// mismatch is a protocol error, not a silently-truncated payload.
//
// Byte values below are the wire contract of the HNS app v1.x firmware
// and must not drift: a deviation breaks interoperability with the
// device.
package apdu

import "fmt"

// Instruction and parameter byte values of the HNS app.
const (
	// CLA is the instruction class claimed by every HNS app command.
	CLA byte = 0xe0

	// INSGetAppVersion returns the running app's semantic version.
	INSGetAppVersion byte = 0x40

	// INSGetPublicKey derives and returns an extended public key.
	INSGetPublicKey byte = 0x42

	// INSSendTransaction streams transaction preamble chunks for
	// on-device parsing.
	INSSendTransaction byte = 0x44

	// INSGetInputSignature streams an input's script and returns a
	// signature once the final chunk is processed.
	INSGetInputSignature byte = 0x46
)

const (
	// MaxDataSize is the largest data payload one command can carry,
	// bounded by the single length byte of the APDU encoding.
	MaxDataSize = 255

	// MaxTxPacket bounds one transaction-stream chunk.
	MaxTxPacket = 255

	// MaxScriptPacket bounds the script portion of one input-signature
	// chunk, leaving headroom for the first chunk's path and coin
	// fields within MaxDataSize.
	MaxScriptPacket = 182
)

// ChunkTag marks a chunk's position within a multi-chunk operation. It is
// carried in P1 and never changes meaning with the chunk count: the first
// chunk of an operation is tagged first even when it is also the last.
type ChunkTag byte

const (
	// ChunkFirst tags the opening chunk of an operation.
	ChunkFirst ChunkTag = 0x00

	// ChunkContinue tags every subsequent chunk.
	ChunkContinue ChunkTag = 0x80
)

// ResponseShape selects how the response to one chunk is interpreted.
// Request framing is identical for every chunk; only the expected response
// differs, and only for the final chunk of a signature retrieval.
type ResponseShape int

const (
	// ExpectAck means the chunk's response must be an empty
	// acknowledgement.
	ExpectAck ResponseShape = iota

	// ExpectSignature means the chunk's response carries signature
	// bytes.
	ExpectSignature
)

// GET_PUBLIC_KEY parameter flags.
const (
	p1Confirm   byte = 0x01 // require on-device confirmation
	p2XPubExtra byte = 0x01 // include chain code and parent fingerprint
	p2Address   byte = 0x02 // include the bech32 address
)

// ArgumentError reports a command argument that failed local validation.
// It is raised at construction time, before any device exchange.
type ArgumentError struct {
	INS     byte
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("apdu: invalid argument for ins %#02x: %s", e.INS, e.Message)
}

func argErrf(ins byte, format string, args ...interface{}) *ArgumentError {
	return &ArgumentError{INS: ins, Message: fmt.Sprintf(format, args...)}
}

// Command is one APDU addressed to the device.
type Command struct {
	CLA  byte
	INS  byte
	P1   byte
	P2   byte
	Data []byte
}

// Encode serializes the command as cla || ins || p1 || p2 || len || data.
func (c *Command) Encode() ([]byte, error) {
	if len(c.Data) > MaxDataSize {
		return nil, argErrf(c.INS, "data payload of %d bytes exceeds %d", len(c.Data), MaxDataSize)
	}
	out := make([]byte, 0, 5+len(c.Data))
	out = append(out, c.CLA, c.INS, c.P1, c.P2, byte(len(c.Data)))
	out = append(out, c.Data...)
	return out, nil
}

// AppVersion builds the app version query. It takes no arguments and
// cannot fail.
func AppVersion() *Command {
	return &Command{CLA: CLA, INS: INSGetAppVersion}
}

// PublicKeyOptions selects what GET_PUBLIC_KEY returns alongside the
// compressed public key, and whether the user must confirm on-device.
type PublicKeyOptions struct {
	// Confirm requires on-device confirmation before the key leaves
	// the device.
	Confirm bool

	// XPub includes the chain code and parent fingerprint needed to
	// assemble an extended public key.
	XPub bool

	// Address includes the bech32 address derived from the key.
	Address bool
}

// PublicKey builds the public key query for the given derivation path.
func PublicKey(path Path, opts PublicKeyOptions) (*Command, error) {
	if err := path.Validate(); err != nil {
		return nil, &ArgumentError{INS: INSGetPublicKey, Message: err.Error()}
	}

	var p1, p2 byte
	if opts.Confirm {
		p1 |= p1Confirm
	}
	if opts.XPub {
		p2 |= p2XPubExtra
	}
	if opts.Address {
		p2 |= p2Address
	}

	return &Command{
		CLA:  CLA,
		INS:  INSGetPublicKey,
		P1:   p1,
		P2:   p2,
		Data: path.Encode(),
	}, nil
}

// TransactionChunk builds one transaction-stream chunk. Every chunk of a
// stream expects an empty acknowledgement in response.
func TransactionChunk(tag ChunkTag, chunk []byte) (*Command, error) {
	if len(chunk) == 0 {
		return nil, argErrf(INSSendTransaction, "empty transaction chunk")
	}
	if len(chunk) > MaxTxPacket {
		return nil, argErrf(INSSendTransaction, "chunk of %d bytes exceeds %d", len(chunk), MaxTxPacket)
	}
	return &Command{
		CLA:  CLA,
		INS:  INSSendTransaction,
		P1:   byte(tag),
		Data: chunk,
	}, nil
}

// InputSignatureFirst builds the opening input-signature chunk. Alongside
// the first script chunk it carries the derivation path, the coin value
// and the sighash type so the device can begin hashing immediately.
func InputSignatureFirst(path Path, value uint64, sighash uint32, chunk []byte) (*Command, error) {
	if err := path.Validate(); err != nil {
		return nil, &ArgumentError{INS: INSGetInputSignature, Message: err.Error()}
	}
	if len(chunk) == 0 {
		return nil, argErrf(INSGetInputSignature, "empty script chunk")
	}
	if len(chunk) > MaxScriptPacket {
		return nil, argErrf(INSGetInputSignature, "script chunk of %d bytes exceeds %d", len(chunk), MaxScriptPacket)
	}

	data := path.Encode()
	data = appendUint64LE(data, value)
	data = appendUint32LE(data, sighash)
	data = append(data, chunk...)

	return &Command{
		CLA:  CLA,
		INS:  INSGetInputSignature,
		P1:   byte(ChunkFirst),
		Data: data,
	}, nil
}

// InputSignatureMore builds a continuation input-signature chunk carrying
// only script bytes.
func InputSignatureMore(chunk []byte) (*Command, error) {
	if len(chunk) == 0 {
		return nil, argErrf(INSGetInputSignature, "empty script chunk")
	}
	if len(chunk) > MaxScriptPacket {
		return nil, argErrf(INSGetInputSignature, "script chunk of %d bytes exceeds %d", len(chunk), MaxScriptPacket)
	}
	return &Command{
		CLA:  CLA,
		INS:  INSGetInputSignature,
		P1:   byte(ChunkContinue),
		Data: chunk,
	}, nil
}

func appendUint32LE(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendUint64LE(b []byte, v uint64) []byte {
	return append(b,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}
