package apdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandEncode(t *testing.T) {
	cmd := AppVersion()
	raw, err := cmd.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xe0, 0x40, 0x00, 0x00, 0x00}, raw)
}

func TestCommandEncodeOversizedData(t *testing.T) {
	cmd := &Command{CLA: CLA, INS: INSSendTransaction, Data: make([]byte, MaxDataSize+1)}
	_, err := cmd.Encode()
	var aerr *ArgumentError
	require.ErrorAs(t, err, &aerr)
}

func TestPublicKeyCommand(t *testing.T) {
	path := Path{Hardened + 44, Hardened + 5353, Hardened, 0, 0}

	cmd, err := PublicKey(path, PublicKeyOptions{Confirm: true, XPub: true, Address: true})
	require.NoError(t, err)

	assert.Equal(t, INSGetPublicKey, cmd.INS)
	assert.Equal(t, byte(0x01), cmd.P1, "confirm flag")
	assert.Equal(t, byte(0x03), cmd.P2, "xpub and address flags")

	want := []byte{
		0x05,
		0x80, 0x00, 0x00, 0x2c,
		0x80, 0x00, 0x14, 0xe9,
		0x80, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	assert.Equal(t, want, cmd.Data)
}

// TestPathDepthRejectedAtConstruction checks that an oversized derivation
// path never produces a sendable command.
func TestPathDepthRejectedAtConstruction(t *testing.T) {
	long := make(Path, MaxPathDepth+1)

	_, err := PublicKey(long, PublicKeyOptions{})
	var aerr *ArgumentError
	require.ErrorAs(t, err, &aerr)

	_, err = InputSignatureFirst(long, 1, 1, []byte{0x00})
	require.ErrorAs(t, err, &aerr)
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		in   string
		want Path
		err  bool
	}{
		{in: "m/44'/5353'/0'/0/0", want: Path{Hardened + 44, Hardened + 5353, Hardened, 0, 0}},
		{in: "m/44h/5353h/1h", want: Path{Hardened + 44, Hardened + 5353, Hardened + 1}},
		{in: "m", want: Path{}},
		{in: "m/1/2/3/4/5/6/7/8/9/10/11", err: true},
		{in: "m/abc", err: true},
		{in: "m/2147483648", err: true},
	}

	for _, tt := range tests {
		got, err := ParsePath(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestPathString(t *testing.T) {
	p := Path{Hardened + 44, Hardened + 5353, Hardened, 0, 3}
	assert.Equal(t, "m/44'/5353'/0'/0/3", p.String())
}

func TestTransactionChunkBounds(t *testing.T) {
	_, err := TransactionChunk(ChunkFirst, nil)
	assert.Error(t, err)

	_, err = TransactionChunk(ChunkFirst, make([]byte, MaxTxPacket+1))
	assert.Error(t, err)

	cmd, err := TransactionChunk(ChunkContinue, make([]byte, MaxTxPacket))
	require.NoError(t, err)
	assert.Equal(t, byte(ChunkContinue), cmd.P1)
}

func TestInputSignatureFirstLayout(t *testing.T) {
	path := Path{Hardened, 1}

	cmd, err := InputSignatureFirst(path, 0x0102030405060708, 1, []byte{0xaa, 0xbb})
	require.NoError(t, err)
	assert.Equal(t, byte(ChunkFirst), cmd.P1)

	want := []byte{
		0x02,                   // path depth
		0x80, 0x00, 0x00, 0x00, // hardened 0
		0x00, 0x00, 0x00, 0x01, // index 1
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, // value u64le
		0x01, 0x00, 0x00, 0x00, // sighash ALL u32le
		0xaa, 0xbb, // script chunk
	}
	assert.Equal(t, want, cmd.Data)
}

func TestInputSignatureChunkBounds(t *testing.T) {
	_, err := InputSignatureMore(make([]byte, MaxScriptPacket+1))
	var aerr *ArgumentError
	require.ErrorAs(t, err, &aerr)

	_, err = InputSignatureFirst(Path{0}, 1, 1, make([]byte, MaxScriptPacket+1))
	require.ErrorAs(t, err, &aerr)
}
