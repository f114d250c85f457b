package ledger

import (
	"github.com/boymanjor/hns-ledger/pkg/apdu"
	"github.com/boymanjor/hns-ledger/pkg/keyring"
	"github.com/boymanjor/hns-ledger/pkg/wire"
)

// Coin is the previous output a signing input spends: the outpoint it
// references, its value, its destination address and, when known, its
// explicit locking script.
type Coin struct {
	Outpoint wire.Outpoint
	Value    uint64
	Address  wire.Address

	// Script is the previous output's locking script. When empty it is
	// synthesized from the input's public key as pay-to-pubkey-hash.
	Script []byte
}

// InputConfig assembles a SigningInput. Sighash zero defaults to
// SighashAll, the only type the app firmware accepts.
type InputConfig struct {
	Path      apdu.Path
	Coin      Coin
	Redeem    []byte
	PublicKey []byte
	Sighash   uint32
}

// SigningInput is the per-input value object consulted throughout one
// signing session. Derived fields are memoized on first access and
// cleared only by Reset, never implicitly: a caller that mutates the
// path, coin, redeem script or public key must Reset before the next
// derived access.
type SigningInput struct {
	path      apdu.Path
	coin      Coin
	redeem    []byte
	publicKey []byte
	sighash   uint32

	// Memoized derivations, all cleared together by Reset.
	ring        *keyring.Ring
	prevScript  []byte
	prevRedeem  []byte
	outpointKey string
}

// NewSigningInput validates and builds a signing input. Construction
// fails fast on everything locally determinable: an oversized path, a
// sighash type other than ALL, a malformed public key, or a script-hash
// coin missing its redeem script.
func NewSigningInput(cfg InputConfig) (*SigningInput, error) {
	if err := cfg.Path.Validate(); err != nil {
		return nil, &UsageError{Message: err.Error()}
	}

	sighash := cfg.Sighash
	if sighash == 0 {
		sighash = wire.SighashAll
	}
	if sighash != wire.SighashAll {
		return nil, usageErrf("sighash type %#02x not supported, the device signs SIGHASH_ALL only", sighash)
	}

	if cfg.Coin.Address.IsScriptHash() && len(cfg.Redeem) == 0 {
		return nil, usageErrf("script-hash coin %s requires a redeem script", cfg.Coin.Outpoint)
	}

	if cfg.PublicKey != nil && len(cfg.PublicKey) != 33 {
		return nil, usageErrf("public key must be 33 compressed bytes, got %d", len(cfg.PublicKey))
	}

	return &SigningInput{
		path:      cfg.Path,
		coin:      cfg.Coin,
		redeem:    cfg.Redeem,
		publicKey: cfg.PublicKey,
		sighash:   sighash,
	}, nil
}

// Path returns the input's derivation path.
func (in *SigningInput) Path() apdu.Path { return in.path }

// Coin returns the previous output being spent.
func (in *SigningInput) Coin() Coin { return in.coin }

// Sighash returns the sighash type the signature will commit to.
func (in *SigningInput) Sighash() uint32 { return in.sighash }

// SetPath replaces the derivation path. The caller must Reset afterwards.
func (in *SigningInput) SetPath(path apdu.Path) { in.path = path }

// SetCoin replaces the coin. The caller must Reset afterwards.
func (in *SigningInput) SetCoin(coin Coin) { in.coin = coin }

// SetRedeem replaces the redeem script. The caller must Reset afterwards.
func (in *SigningInput) SetRedeem(redeem []byte) { in.redeem = redeem }

// SetPublicKey replaces the raw public key. The caller must Reset
// afterwards.
func (in *SigningInput) SetPublicKey(pub []byte) { in.publicKey = pub }

// Reset clears every memoized derivation in one step. There is no partial
// invalidation.
func (in *SigningInput) Reset() {
	in.ring = nil
	in.prevScript = nil
	in.prevRedeem = nil
	in.outpointKey = ""
}

// Ring returns the key ring built from the raw public key. A missing
// public key at this point is a usage error, never a silent default.
func (in *SigningInput) Ring() (*keyring.Ring, error) {
	if in.ring != nil {
		return in.ring, nil
	}
	if in.publicKey == nil {
		return nil, usageErrf("input %s has no public key, cannot derive key material", in.coin.Outpoint)
	}
	ring, err := keyring.New(in.publicKey)
	if err != nil {
		return nil, &UsageError{Message: err.Error()}
	}
	in.ring = ring
	return ring, nil
}

// PrevScript returns the previous output's locking script: the coin's
// explicit script when given, else a pay-to-pubkey-hash script synthesized
// from the key ring.
func (in *SigningInput) PrevScript() ([]byte, error) {
	if in.prevScript != nil {
		return in.prevScript, nil
	}
	if len(in.coin.Script) > 0 {
		in.prevScript = in.coin.Script
		return in.prevScript, nil
	}
	ring, err := in.Ring()
	if err != nil {
		return nil, err
	}
	script, err := ring.Script()
	if err != nil {
		return nil, err
	}
	in.prevScript = script
	return script, nil
}

// PrevRedeem returns the exact byte sequence the device must be shown to
// authorize the spend: the redeem script for a script-hash coin, the
// previous script otherwise.
func (in *SigningInput) PrevRedeem() ([]byte, error) {
	if in.prevRedeem != nil {
		return in.prevRedeem, nil
	}
	if in.coin.Address.IsScriptHash() {
		if len(in.redeem) == 0 {
			return nil, usageErrf("script-hash coin %s requires a redeem script", in.coin.Outpoint)
		}
		in.prevRedeem = in.redeem
		return in.prevRedeem, nil
	}
	script, err := in.PrevScript()
	if err != nil {
		return nil, err
	}
	in.prevRedeem = script
	return script, nil
}

// OutpointKey returns the canonical key correlating this input's state
// across the signing session.
func (in *SigningInput) OutpointKey() string {
	if in.outpointKey == "" {
		in.outpointKey = in.coin.Outpoint.Key()
	}
	return in.outpointKey
}
