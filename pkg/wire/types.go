// Package wire models the subset of the Handshake transaction format the
// signing bridge must serialize: outpoints, addresses, covenants and
// outputs, plus the transaction preamble streamed to the device.
//
// All consensus integers are little-endian and variable-length fields are
// varint prefixed, exactly as on the HNS wire. The encoding is a bit-exact
// contract with the device firmware: the device re-hashes what it is shown,
// so any drift produces signatures over the wrong transaction.
package wire

import (
	"encoding/hex"
	"fmt"
)

// Sighash types understood by the Handshake consensus rules. The device
// firmware currently signs with SighashAll only.
const (
	SighashAll          uint32 = 0x01
	SighashNone         uint32 = 0x02
	SighashSingle       uint32 = 0x03
	SighashAnyoneCanPay uint32 = 0x80
)

// Covenant action types.
const (
	CovenantNone     uint8 = 0
	CovenantClaim    uint8 = 1
	CovenantOpen     uint8 = 2
	CovenantBid      uint8 = 3
	CovenantReveal   uint8 = 4
	CovenantRedeem   uint8 = 5
	CovenantRegister uint8 = 6
	CovenantUpdate   uint8 = 7
	CovenantRenew    uint8 = 8
	CovenantTransfer uint8 = 9
	CovenantFinalize uint8 = 10
	CovenantRevoke   uint8 = 11
)

// Outpoint references a previous transaction output being spent.
type Outpoint struct {
	Hash  [32]byte
	Index uint32
}

// Key returns the canonical byte string correlating per-input state:
// the hex encoding of hash || index (u32le).
func (o Outpoint) Key() string {
	buf := make([]byte, 36)
	copy(buf, o.Hash[:])
	buf[32] = byte(o.Index)
	buf[33] = byte(o.Index >> 8)
	buf[34] = byte(o.Index >> 16)
	buf[35] = byte(o.Index >> 24)
	return hex.EncodeToString(buf)
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%x/%d", o.Hash[:], o.Index)
}

// Address is a Handshake witness program: a version byte and a hash.
// Version 0 programs are pay-to-pubkey-hash at 20 bytes and
// pay-to-script-hash at 32 bytes.
type Address struct {
	Version uint8
	Hash    []byte
}

// Validate checks the witness program bounds.
func (a Address) Validate() error {
	if a.Version > 31 {
		return fmt.Errorf("address version %d out of range", a.Version)
	}
	if len(a.Hash) < 2 || len(a.Hash) > 40 {
		return fmt.Errorf("address hash of %d bytes out of range", len(a.Hash))
	}
	if a.Version == 0 && len(a.Hash) != 20 && len(a.Hash) != 32 {
		return fmt.Errorf("version 0 address hash must be 20 or 32 bytes, got %d", len(a.Hash))
	}
	return nil
}

// IsScriptHash reports whether the address commits to a redeem script
// rather than a public key hash.
func (a Address) IsScriptHash() bool {
	return a.Version == 0 && len(a.Hash) == 32
}

// Covenant is the name-auction action attached to an output. A plain
// payment carries CovenantNone with no items.
type Covenant struct {
	Type  uint8
	Items [][]byte
}

// Input is a transaction input as seen by the preamble: the outpoint being
// spent and the sequence number. Witnesses never cross the bridge.
type Input struct {
	Outpoint Outpoint
	Sequence uint32
}

// Output is a transaction output: value, destination address and covenant.
type Output struct {
	Value    uint64
	Address  Address
	Covenant Covenant
}

// TX is the transaction shape streamed to the device for parsing.
type TX struct {
	Version  uint32
	Locktime uint32
	Inputs   []Input
	Outputs  []Output
}
