// Package keyring derives script and address material from public keys
// returned by the device.
//
// A ring groups a compressed secp256k1 public key with the script data
// derived from it: the BLAKE2b-160 key hash, the pay-to-pubkey-hash
// locking script and the bech32 address. Private keys never appear here;
// the only signing material that crosses the bridge is device-produced
// signatures, which this package can verify but never create.
package keyring

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	blake2b "github.com/minio/blake2b-simd"

	"github.com/boymanjor/hns-ledger/pkg/wire"
)

// Handshake script opcodes used by the standard p2pkh template.
const (
	opDup         byte = 0x76
	opEqualVerify byte = 0x88
	opCheckSig    byte = 0xac
	opBlake160    byte = 0xc0
)

// KeyHashSize is the size of a BLAKE2b-160 public key hash.
const KeyHashSize = 20

// Ring is derived key material for one public key.
type Ring struct {
	pub *secp256k1.PublicKey
}

// New parses a 33-byte compressed public key into a ring. The key is
// validated as a curve point; garbage from a misbehaving device fails
// here rather than producing an unspendable script.
func New(pub []byte) (*Ring, error) {
	if len(pub) != 33 {
		return nil, fmt.Errorf("compressed public key must be 33 bytes, got %d", len(pub))
	}
	key, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &Ring{pub: key}, nil
}

// PublicKey returns the compressed public key serialization.
func (r *Ring) PublicKey() []byte {
	return r.pub.SerializeCompressed()
}

// KeyHash returns the BLAKE2b-160 hash of the compressed public key.
func (r *Ring) KeyHash() ([]byte, error) {
	h, err := blake2b.New(&blake2b.Config{Size: KeyHashSize})
	if err != nil {
		return nil, fmt.Errorf("blake2b-160: %w", err)
	}
	h.Write(r.pub.SerializeCompressed())
	return h.Sum(nil), nil
}

// Script synthesizes the standard pay-to-pubkey-hash locking script:
//
//	OP_DUP OP_BLAKE160 <20-byte key hash> OP_EQUALVERIFY OP_CHECKSIG
func (r *Ring) Script() ([]byte, error) {
	hash, err := r.KeyHash()
	if err != nil {
		return nil, err
	}
	script := make([]byte, 0, 3+KeyHashSize+2)
	script = append(script, opDup, opBlake160, byte(KeyHashSize))
	script = append(script, hash...)
	return append(script, opEqualVerify, opCheckSig), nil
}

// Address returns the version 0 witness program paying to the key hash.
func (r *Ring) Address() (wire.Address, error) {
	hash, err := r.KeyHash()
	if err != nil {
		return wire.Address{}, err
	}
	return wire.Address{Version: 0, Hash: hash}, nil
}

// VerifySignature checks a device-returned signature against a 32-byte
// digest. The signature is DER followed by one sighash byte, the exact
// shape GET_INPUT_SIGNATURE responses carry.
func (r *Ring) VerifySignature(digest [32]byte, sig []byte) bool {
	if len(sig) < 2 {
		return false
	}
	parsed, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
	if err != nil {
		return false
	}
	return parsed.Verify(digest[:], r.pub)
}
