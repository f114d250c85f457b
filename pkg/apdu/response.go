package apdu

import (
	"encoding/binary"
	"fmt"
)

// ResponseError reports a response whose length or structure does not
// match what the instruction promises. Like framing errors it is fatal to
// the in-flight operation.
type ResponseError struct {
	INS     byte
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("apdu: malformed response for ins %#02x: %s", e.INS, e.Message)
}

func respErrf(ins byte, format string, args ...interface{}) *ResponseError {
	return &ResponseError{INS: ins, Message: fmt.Sprintf(format, args...)}
}

// payload strips and checks the terminal status word, returning the
// instruction-specific payload bytes.
func payload(ins byte, raw []byte) ([]byte, error) {
	if len(raw) < 2 {
		return nil, respErrf(ins, "response of %d bytes lacks a status word", len(raw))
	}
	sw := binary.BigEndian.Uint16(raw[len(raw)-2:])
	if err := Status(sw); err != nil {
		return nil, err
	}
	return raw[:len(raw)-2], nil
}

// ParseAppVersion decodes the GET_APP_VERSION response into a semantic
// version string. The payload is exactly three bytes: major, minor,
// patch.
func ParseAppVersion(raw []byte) (string, error) {
	data, err := payload(INSGetAppVersion, raw)
	if err != nil {
		return "", err
	}
	if len(data) != 3 {
		return "", respErrf(INSGetAppVersion, "version payload is %d bytes, want 3", len(data))
	}
	return fmt.Sprintf("%d.%d.%d", data[0], data[1], data[2]), nil
}

// PublicKeyResult is the decoded GET_PUBLIC_KEY response. ChainCode,
// ParentFingerprint and Address are populated only when the matching
// option flag was sent with the command.
type PublicKeyResult struct {
	PublicKey         []byte
	ChainCode         []byte
	ParentFingerprint uint32
	Address           string
}

// ParsePublicKey decodes the GET_PUBLIC_KEY response. The layout depends
// on the options sent with the command, and the payload must be consumed
// exactly:
//
//	public key length (1) || compressed public key (33)
//	[ chain code (32) || parent fingerprint (u32be) ]   if XPub
//	[ address length (1) || bech32 address ]            if Address
func ParsePublicKey(raw []byte, opts PublicKeyOptions) (*PublicKeyResult, error) {
	data, err := payload(INSGetPublicKey, raw)
	if err != nil {
		return nil, err
	}

	if len(data) < 1 || len(data) < 1+int(data[0]) {
		return nil, respErrf(INSGetPublicKey, "payload lacks public key entry")
	}
	keyLen := int(data[0])
	if keyLen != 33 {
		return nil, respErrf(INSGetPublicKey, "public key is %d bytes, want 33 (compressed)", keyLen)
	}

	res := &PublicKeyResult{
		PublicKey: append([]byte(nil), data[1:1+keyLen]...),
	}
	data = data[1+keyLen:]

	if opts.XPub {
		if len(data) < 36 {
			return nil, respErrf(INSGetPublicKey, "payload lacks chain code and parent fingerprint")
		}
		res.ChainCode = append([]byte(nil), data[:32]...)
		res.ParentFingerprint = binary.BigEndian.Uint32(data[32:36])
		data = data[36:]
	}

	if opts.Address {
		if len(data) < 1 || len(data) < 1+int(data[0]) {
			return nil, respErrf(INSGetPublicKey, "payload lacks address entry")
		}
		res.Address = string(data[1 : 1+int(data[0])])
		data = data[1+int(data[0]):]
	}

	if len(data) != 0 {
		return nil, respErrf(INSGetPublicKey, "%d unexpected trailing bytes", len(data))
	}
	return res, nil
}

// ParseAck decodes a streaming continuation response, which must carry no
// payload at all.
func ParseAck(ins byte, raw []byte) error {
	data, err := payload(ins, raw)
	if err != nil {
		return err
	}
	if len(data) != 0 {
		return respErrf(ins, "acknowledgement carries %d unexpected payload bytes", len(data))
	}
	return nil
}

// ParseSignature decodes the final input-signature response. The payload
// is a DER-encoded ECDSA signature with the sighash type appended, so it
// can never be shorter than the minimal DER encoding plus one byte.
func ParseSignature(raw []byte) ([]byte, error) {
	data, err := payload(INSGetInputSignature, raw)
	if err != nil {
		return nil, err
	}
	// Minimal DER signature (8 bytes) plus the sighash byte.
	if len(data) < 9 {
		return nil, respErrf(INSGetInputSignature, "signature payload is %d bytes, too short", len(data))
	}
	if data[0] != 0x30 {
		return nil, respErrf(INSGetInputSignature, "signature payload is not DER encoded")
	}
	return append([]byte(nil), data...), nil
}
