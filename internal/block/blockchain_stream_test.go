package block

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainStreamMatchesInMemoryChain(t *testing.T) {
	h := sha256H(t)
	pwhash, encSalt := keyPair(t, h)
	sizes := []int{0, 1, h.Size() - 1, h.Size(), h.Size() + 1, 10*h.Size() + 3}

	for _, n := range sizes {
		plain := make([]byte, n)
		for i := range plain {
			plain[i] = byte(i * 7)
		}

		bc, err := NewChain(Encrypt, h, fixedSalt(h.Size(), 0x11), fixedSalt(h.Size(), 0x77))
		require.NoError(t, err)
		require.NoError(t, bc.AddData(plain))
		wantCipher := bc.GetResult().Bytes()

		cs, err := NewChainStream(Encrypt, h, pwhash, encSalt)
		require.NoError(t, err)
		var out bytes.Buffer
		require.NoError(t, cs.Copy(&out, bytes.NewReader(plain), uint64(n)))
		assert.Equal(t, wantCipher, out.Bytes())
		assert.Equal(t, bc.Height(), cs.Height())
	}
}

func TestChainStreamDecryptRoundTrip(t *testing.T) {
	h := sha256H(t)
	plain := make([]byte, 5*h.Size()+2)
	for i := range plain {
		plain[i] = byte(i)
	}

	encCS, err := NewChainStream(Encrypt, h, fixedSalt(h.Size(), 0x11), fixedSalt(h.Size(), 0x77))
	require.NoError(t, err)
	var cipher bytes.Buffer
	require.NoError(t, encCS.Copy(&cipher, bytes.NewReader(plain), uint64(len(plain))))

	decCS, err := NewChainStream(Decrypt, h, fixedSalt(h.Size(), 0x11), fixedSalt(h.Size(), 0x77))
	require.NoError(t, err)
	var recovered bytes.Buffer
	require.NoError(t, decCS.Copy(&recovered, bytes.NewReader(cipher.Bytes()), uint64(cipher.Len())))

	assert.Equal(t, plain, recovered.Bytes())
}

func TestChainStreamFailsOnShortInput(t *testing.T) {
	h := sha256H(t)
	cs, err := NewChainStream(Encrypt, h, fixedSalt(h.Size(), 0x11), fixedSalt(h.Size(), 0x77))
	require.NoError(t, err)
	var out bytes.Buffer
	err = cs.Copy(&out, bytes.NewReader(make([]byte, h.Size()-1)), uint64(h.Size()))
	assert.Error(t, err)
}
