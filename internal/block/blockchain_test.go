package block

import (
	"testing"

	"github.com/nas-ai/vaultcrypt/internal/bytesbuf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyPair(t *testing.T, h hashingSize) (*bytesbuf.Buffer, *bytesbuf.Buffer) {
	t.Helper()
	return fixedSalt(h.Size(), 0x11), fixedSalt(h.Size(), 0x77)
}

type hashingSize interface{ Size() int }

func roundTrip(t *testing.T, payloadLen int) {
	t.Helper()
	h := sha256H(t)
	pwhash, encSalt := keyPair(t, h)

	plain := make([]byte, payloadLen)
	for i := range plain {
		plain[i] = byte(i)
	}

	enc, err := NewChain(Encrypt, h, pwhash, encSalt)
	require.NoError(t, err)
	require.NoError(t, enc.AddData(plain))
	cipher := enc.GetResult().Bytes()
	assert.Equal(t, payloadLen, len(cipher))

	dec, err := NewChain(Decrypt, h, fixedSalt(h.Size(), 0x11), fixedSalt(h.Size(), 0x77))
	require.NoError(t, err)
	require.NoError(t, dec.AddData(cipher))
	assert.Equal(t, plain, dec.GetResult().Bytes())
}

func TestBlockChainRoundTripAcrossSizes(t *testing.T) {
	h := sha256H(t)
	sizes := []int{0, 1, h.Size() - 1, h.Size(), h.Size() + 1, 100 * h.Size()}
	for _, n := range sizes {
		n := n
		t.Run("", func(t *testing.T) { roundTrip(t, n) })
	}
}

func TestBlockChainRoundTripFedInSmallChunks(t *testing.T) {
	h := sha256H(t)
	pwhash, encSalt := keyPair(t, h)
	plain := make([]byte, 3*h.Size()+7)
	for i := range plain {
		plain[i] = byte(i * 3)
	}

	enc, err := NewChain(Encrypt, h, pwhash, encSalt)
	require.NoError(t, err)
	for i := 0; i < len(plain); i += 5 {
		end := i + 5
		if end > len(plain) {
			end = len(plain)
		}
		require.NoError(t, enc.AddData(plain[i:end]))
	}
	cipher := enc.GetResult().Bytes()

	dec, err := NewChain(Decrypt, h, fixedSalt(h.Size(), 0x11), fixedSalt(h.Size(), 0x77))
	require.NoError(t, err)
	require.NoError(t, dec.AddData(cipher))
	assert.Equal(t, plain, dec.GetResult().Bytes())
}

func TestBlockChainHeightAndDataSize(t *testing.T) {
	h := sha256H(t)
	pwhash, encSalt := keyPair(t, h)
	bc, err := NewChain(Encrypt, h, pwhash, encSalt)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), bc.Height())
	assert.Equal(t, uint64(0), bc.DataSize())

	require.NoError(t, bc.AddData(make([]byte, h.Size())))
	assert.Equal(t, uint64(1), bc.Height())
	assert.Equal(t, uint64(h.Size()), bc.DataSize())

	require.NoError(t, bc.AddData(make([]byte, 1)))
	assert.Equal(t, uint64(2), bc.Height())
	assert.Equal(t, uint64(h.Size()+1), bc.DataSize())
}

func TestBlockChainExactBoundaryDoesNotDoubleFlush(t *testing.T) {
	h := sha256H(t)
	pwhash, encSalt := keyPair(t, h)
	bc, err := NewChain(Encrypt, h, pwhash, encSalt)
	require.NoError(t, err)

	require.NoError(t, bc.AddData(make([]byte, h.Size())))
	require.NoError(t, bc.AddData(nil))
	assert.Equal(t, h.Size(), bc.GetResult().Len())
}
