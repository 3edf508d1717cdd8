package filehandle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nas-ai/vaultcrypt/internal/bytesbuf"
	"github.com/nas-ai/vaultcrypt/internal/chainhash"
	"github.com/nas-ai/vaultcrypt/internal/dataheader"
	"github.com/nas-ai/vaultcrypt/internal/hashing"
	"github.com/nas-ai/vaultcrypt/internal/vaulterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha256H(t *testing.T) hashing.Hash {
	t.Helper()
	h, err := hashing.New(hashing.SHA256)
	require.NoError(t, err)
	return h
}

func buildHeaderBytes(t *testing.T, h hashing.Hash, pwhash *bytesbuf.Buffer, payloadLen int) []byte {
	t.Helper()
	dh, err := dataheader.New(hashing.SHA256)
	require.NoError(t, err)
	dh.SetFileMode(7)

	ch1 := chainhash.New(chainhash.Normal, 10, chainhash.NewData(chainhash.Format{}))
	require.NoError(t, dh.SetChainHash1(ch1))
	ch2 := chainhash.New(chainhash.Normal, 5, chainhash.NewData(chainhash.Format{}))
	require.NoError(t, dh.SetChainHash2(ch2))

	valid, err := ch2.Run(h, pwhash.Bytes())
	require.NoError(t, err)
	require.NoError(t, dh.SetValidPasswordHash(valid))

	hdr, err := dh.CalcHeaderBytes(h, pwhash, true)
	require.NoError(t, err)
	require.NoError(t, dataheader.PatchFileSize(hdr, uint64(hdr.Len()+payloadLen)))

	out := append([]byte{}, hdr.Bytes()...)
	out = append(out, make([]byte, payloadLen)...)
	return out
}

func TestIsEmptyAndFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.enc")

	h := New(path)
	_, err := h.FileSize()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))
	h2 := New(path)
	empty, err := h2.IsEmpty()
	require.NoError(t, err)
	assert.False(t, empty)
	size, err := h2.FileSize()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), size)
}

func TestFirstBytesFailsWhenShort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.enc")
	require.NoError(t, os.WriteFile(path, []byte("ab"), 0o600))

	h := New(path)
	_, err := h.FirstBytes(5)
	assert.Error(t, err)

	got, err := h.FirstBytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), got)
}

func TestWriteBytesIfEmptyRespectsPrecondition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.enc")

	h := New(path)
	require.NoError(t, h.WriteBytesIfEmpty([]byte("first")))

	err := h.WriteBytesIfEmpty([]byte("second"))
	assert.True(t, vaulterr.Is(err, vaulterr.FileNotEmpty))

	require.NoError(t, h.WriteBytes([]byte("overwritten")))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("overwritten"), got)
}

func TestUpdateParsesHeaderAndValidatesSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.enc")
	hh := sha256H(t)
	pwhash := hh.Sum([]byte("pw"))

	raw := buildHeaderBytes(t, hh, pwhash, 13)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	h := New(path)
	require.NoError(t, h.Update())

	dh, err := h.GetDataHeader()
	require.NoError(t, err)
	assert.Equal(t, byte(7), dh.FileMode())

	hs, err := h.HeaderSize()
	require.NoError(t, err)
	assert.Equal(t, dh.HeaderLength(), hs)

	ok, err := h.IsDataHeader(7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.IsDataHeader(9)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateRejectsDeclaredSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.enc")
	hh := sha256H(t)
	pwhash := hh.Sum([]byte("pw"))

	raw := buildHeaderBytes(t, hh, pwhash, 13)
	raw = append(raw, []byte("extra-unaccounted-bytes")...)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	h := New(path)
	err := h.Update()
	assert.True(t, vaulterr.Is(err, vaulterr.FileDataInvalid))
}

func TestGetDataStreamSeeksPastHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.enc")
	hh := sha256H(t)
	pwhash := hh.Sum([]byte("pw"))

	raw := buildHeaderBytes(t, hh, pwhash, 4)
	copy(raw[len(raw)-4:], []byte("data"))
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	h := New(path)
	f, err := h.GetDataStream()
	require.NoError(t, err)
	defer f.Close()

	got := make([]byte, 4)
	n, err := f.Read(got)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("data"), got)
}

func TestWriteInvalidatesCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.enc")
	hh := sha256H(t)
	pwhash := hh.Sum([]byte("pw"))

	raw := buildHeaderBytes(t, hh, pwhash, 0)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	h := New(path)
	require.NoError(t, h.Update())
	_, err := h.GetDataHeader()
	require.NoError(t, err)

	require.NoError(t, h.WriteBytes([]byte("short")))
	size, err := h.FileSize()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), size)
}
