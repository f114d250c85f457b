package keyring

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) (*secp256k1.PrivateKey, *Ring) {
	t.Helper()

	seed := [32]byte{
		0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88,
		0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x01,
		0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88,
		0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x02,
	}
	priv := secp256k1.PrivKeyFromBytes(seed[:])

	ring, err := New(priv.PubKey().SerializeCompressed())
	require.NoError(t, err)
	return priv, ring
}

func TestNewValidatesKey(t *testing.T) {
	_, err := New(make([]byte, 32))
	assert.Error(t, err, "wrong length")

	bad := make([]byte, 33)
	bad[0] = 0x05 // invalid prefix
	_, err = New(bad)
	assert.Error(t, err, "not a curve point")
}

func TestKeyHashAndScript(t *testing.T) {
	_, ring := testKey(t)

	hash, err := ring.KeyHash()
	require.NoError(t, err)
	require.Len(t, hash, KeyHashSize)

	script, err := ring.Script()
	require.NoError(t, err)
	require.Len(t, script, 25)

	assert.Equal(t, byte(0x76), script[0], "OP_DUP")
	assert.Equal(t, byte(0xc0), script[1], "OP_BLAKE160")
	assert.Equal(t, byte(0x14), script[2], "push 20")
	assert.Equal(t, hash, script[3:23])
	assert.Equal(t, byte(0x88), script[23], "OP_EQUALVERIFY")
	assert.Equal(t, byte(0xac), script[24], "OP_CHECKSIG")
}

func TestAddress(t *testing.T) {
	_, ring := testKey(t)

	addr, err := ring.Address()
	require.NoError(t, err)
	assert.Equal(t, uint8(0), addr.Version)
	assert.Len(t, addr.Hash, KeyHashSize)
	assert.False(t, addr.IsScriptHash())

	hash, err := ring.KeyHash()
	require.NoError(t, err)
	assert.Equal(t, hash, addr.Hash)
}

func TestVerifySignature(t *testing.T) {
	priv, ring := testKey(t)

	var digest [32]byte
	digest[0] = 0x5a

	// Mimic the device response shape: DER signature plus sighash byte.
	der := ecdsa.Sign(priv, digest[:]).Serialize()
	sig := append(append([]byte(nil), der...), 0x01)

	assert.True(t, ring.VerifySignature(digest, sig))

	var wrong [32]byte
	assert.False(t, ring.VerifySignature(wrong, sig), "different digest")

	assert.False(t, ring.VerifySignature(digest, []byte{0x01}), "garbage signature")
}
