package saltiter

import (
	"testing"

	"github.com/nas-ai/vaultcrypt/internal/bytesbuf"
	"github.com/nas-ai/vaultcrypt/internal/hashing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHash(t *testing.T) hashing.Hash {
	t.Helper()
	h, err := hashing.New(hashing.SHA256)
	require.NoError(t, err)
	return h
}

func TestDeterminismGivenEqualInitAndSequence(t *testing.T) {
	h := newHash(t)
	pwhash := bytesbuf.FromBytes(make([]byte, h.Size()))
	encSalt := bytesbuf.FromBytes(bytes(h.Size(), 7))

	it1 := New(h)
	require.NoError(t, it1.Init(pwhash, encSalt))
	it2 := New(h)
	require.NoError(t, it2.Init(pwhash, encSalt))

	lbhSeq := []*bytesbuf.Buffer{nil, bytesbuf.FromBytes(bytes(h.Size(), 1)), bytesbuf.FromBytes(bytes(h.Size(), 2))}

	for _, lbh := range lbhSeq {
		out1, err := it1.Next(lbh)
		require.NoError(t, err)
		out2, err := it2.Next(lbh)
		require.NoError(t, err)
		assert.True(t, out1.Equal(out2))
	}
}

func TestReInitResets(t *testing.T) {
	h := newHash(t)
	pwhash := bytesbuf.FromBytes(make([]byte, h.Size()))
	encSalt := bytesbuf.FromBytes(bytes(h.Size(), 9))

	it := New(h)
	require.NoError(t, it.Init(pwhash, encSalt))
	_, err := it.Next(nil)
	require.NoError(t, err)

	require.NoError(t, it.Init(pwhash, encSalt))
	out, err := it.Next(nil)
	require.NoError(t, err)

	fresh := New(h)
	require.NoError(t, fresh.Init(pwhash, encSalt))
	freshOut, err := fresh.Next(nil)
	require.NoError(t, err)

	assert.True(t, out.Equal(freshOut))
}

func TestInitRejectsMismatchedLengths(t *testing.T) {
	h := newHash(t)
	short := bytesbuf.FromBytes(make([]byte, h.Size()-1))
	full := bytesbuf.FromBytes(make([]byte, h.Size()))

	it := New(h)
	assert.Error(t, it.Init(short, full))
	assert.Error(t, it.Init(full, short))
}

func TestNextRequiresLastBlockHashAfterFirstCall(t *testing.T) {
	h := newHash(t)
	full := bytesbuf.FromBytes(make([]byte, h.Size()))

	it := New(h)
	require.NoError(t, it.Init(full, full))
	_, err := it.Next(nil)
	require.NoError(t, err)

	_, err = it.Next(nil)
	assert.Error(t, err)
}

func bytes(n int, fill byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = fill
	}
	return b
}
