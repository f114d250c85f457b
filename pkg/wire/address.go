package wire

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

// Bech32 human-readable prefixes per Handshake network.
const (
	MainnetHRP = "hs"
	TestnetHRP = "ts"
	RegtestHRP = "rs"
	SimnetHRP  = "ss"
)

// Bech32 encodes the address with the given network prefix.
func (a Address) Bech32(hrp string) (string, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}
	converted, err := bech32.ConvertBits(a.Hash, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert address program: %w", err)
	}
	return bech32.Encode(hrp, append([]byte{a.Version}, converted...))
}

// DecodeAddress parses a bech32 Handshake address, returning the network
// prefix alongside the witness program.
func DecodeAddress(addr string) (string, Address, error) {
	hrp, data, err := bech32.Decode(strings.ToLower(addr))
	if err != nil {
		return "", Address{}, fmt.Errorf("decode address: %w", err)
	}
	if len(data) < 1 {
		return "", Address{}, fmt.Errorf("address %q carries no witness version", addr)
	}

	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return "", Address{}, fmt.Errorf("convert address program: %w", err)
	}

	a := Address{Version: data[0], Hash: program}
	if err := a.Validate(); err != nil {
		return "", Address{}, err
	}
	return hrp, a, nil
}
