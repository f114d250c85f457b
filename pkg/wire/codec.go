package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	blake2b "github.com/minio/blake2b-simd"
)

// EncodeError reports a transaction field that cannot be serialized.
type EncodeError struct {
	Field   string
	Message string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("wire encode error [%s]: %s", e.Field, e.Message)
}

// AppendVarint appends a Bitcoin-style variable length integer.
func AppendVarint(b []byte, v uint64) []byte {
	switch {
	case v < 0xfd:
		return append(b, byte(v))
	case v <= 0xffff:
		return append(b, 0xfd, byte(v), byte(v>>8))
	case v <= 0xffffffff:
		return append(b, 0xfe, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	default:
		return append(b, 0xff,
			byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
			byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
	}
}

// VarintSize returns the encoded size of v.
func VarintSize(v uint64) int {
	switch {
	case v < 0xfd:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

func writeVarint(buf *bytes.Buffer, v uint64) {
	buf.Write(AppendVarint(nil, v))
}

// Encode serializes the outpoint as hash || index (u32le).
func (o Outpoint) Encode() []byte {
	buf := make([]byte, 36)
	copy(buf, o.Hash[:])
	binary.LittleEndian.PutUint32(buf[32:], o.Index)
	return buf
}

// Encode serializes the address as version || hash length || hash.
func (a Address) Encode() ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, &EncodeError{Field: "address", Message: err.Error()}
	}
	buf := make([]byte, 0, 2+len(a.Hash))
	buf = append(buf, a.Version, byte(len(a.Hash)))
	return append(buf, a.Hash...), nil
}

// Encode serializes the covenant as type || item count || items, each item
// varint length prefixed.
func (c Covenant) Encode() []byte {
	buf := AppendVarint([]byte{c.Type}, uint64(len(c.Items)))
	for _, item := range c.Items {
		buf = AppendVarint(buf, uint64(len(item)))
		buf = append(buf, item...)
	}
	return buf
}

// Encode serializes the output as value (u64le) || address || covenant.
func (o Output) Encode() ([]byte, error) {
	addr, err := o.Address.Encode()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 8, 8+len(addr))
	binary.LittleEndian.PutUint64(buf, o.Value)
	buf = append(buf, addr...)
	return append(buf, o.Covenant.Encode()...), nil
}

// Preamble serializes the transaction in the order the device parser
// expects:
//
//	version (u32le) || locktime (u32le) ||
//	input count (varint) || output count (varint) ||
//	total serialized outputs size (varint) ||
//	per input: outpoint || sequence (u32le) ||
//	every serialized output
//
// The device hashes the preamble as it streams in, so this layout is part
// of the wire contract.
func (tx *TX) Preamble() ([]byte, error) {
	if len(tx.Inputs) == 0 {
		return nil, &EncodeError{Field: "inputs", Message: "transaction has no inputs"}
	}
	if len(tx.Outputs) == 0 {
		return nil, &EncodeError{Field: "outputs", Message: "transaction has no outputs"}
	}

	var outputs []byte
	for i, out := range tx.Outputs {
		raw, err := out.Encode()
		if err != nil {
			return nil, &EncodeError{Field: fmt.Sprintf("output %d", i), Message: err.Error()}
		}
		outputs = append(outputs, raw...)
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, tx.Version)
	binary.Write(buf, binary.LittleEndian, tx.Locktime)
	writeVarint(buf, uint64(len(tx.Inputs)))
	writeVarint(buf, uint64(len(tx.Outputs)))
	writeVarint(buf, uint64(len(outputs)))

	for _, in := range tx.Inputs {
		buf.Write(in.Outpoint.Encode())
		binary.Write(buf, binary.LittleEndian, in.Sequence)
	}
	buf.Write(outputs)

	return buf.Bytes(), nil
}

// TxID computes the blake2b-256 hash of the witness-free transaction
// serialization:
//
//	version (u32le) || input count || inputs || output count || outputs ||
//	locktime (u32le)
func (tx *TX) TxID() ([32]byte, error) {
	var txid [32]byte

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, tx.Version)
	writeVarint(buf, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf.Write(in.Outpoint.Encode())
		binary.Write(buf, binary.LittleEndian, in.Sequence)
	}
	writeVarint(buf, uint64(len(tx.Outputs)))
	for i, out := range tx.Outputs {
		raw, err := out.Encode()
		if err != nil {
			return txid, &EncodeError{Field: fmt.Sprintf("output %d", i), Message: err.Error()}
		}
		buf.Write(raw)
	}
	binary.Write(buf, binary.LittleEndian, tx.Locktime)

	h, err := blake2b.New(&blake2b.Config{Size: 32})
	if err != nil {
		return txid, &EncodeError{Field: "txid", Message: err.Error()}
	}
	h.Write(buf.Bytes())
	copy(txid[:], h.Sum(nil))
	return txid, nil
}
