package apistate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nas-ai/vaultcrypt/internal/bytesbuf"
	"github.com/nas-ai/vaultcrypt/internal/chainhash"
	"github.com/nas-ai/vaultcrypt/internal/filehandle"
	"github.com/nas-ai/vaultcrypt/internal/hashing"
	"github.com/nas-ai/vaultcrypt/internal/vaulterr"
)

func testSettings() HeaderSettings {
	return HeaderSettings{
		HashMode:   hashing.SHA256,
		FileMode:   7,
		ChainHash1: chainhash.New(chainhash.Normal, 10, chainhash.NewData(chainhash.Format{})),
		ChainHash2: chainhash.New(chainhash.Normal, 5, chainhash.NewData(chainhash.Format{})),
	}
}

func TestSelectFileOnlyFromInit(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)

	require.NoError(t, a.CreateFile("f.enc"))
	require.NoError(t, a.SelectFile("f.enc"))
	assert.Equal(t, FileSelected, a.State())

	err := a.SelectFile("f.enc")
	assert.True(t, vaulterr.Is(err, vaulterr.ApiStateInvalid))
	assert.Equal(t, FileSelected, a.State(), "a rejected call must not mutate state")
}

func TestCreateFileOnlyFromInit(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)
	require.NoError(t, a.CreateFile("f.enc"))
	require.NoError(t, a.SelectFile("f.enc"))

	err := a.CreateFile("g.enc")
	assert.True(t, vaulterr.Is(err, vaulterr.ApiStateInvalid))
}

func TestListFilesValidInAnyState(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)
	require.NoError(t, a.CreateFile("a.enc"))
	require.NoError(t, a.CreateFile("b.enc"))

	names, err := a.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.enc", "b.enc"}, names)

	require.NoError(t, a.SelectFile("a.enc"))
	names, err = a.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.enc", "b.enc"}, names)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)

	require.NoError(t, a.CreateFile("vault.enc"))
	require.NoError(t, a.SelectFile("vault.enc"))

	require.NoError(t, a.CreateDataHeader("correct horse", testSettings()))
	assert.Equal(t, Decrypted, a.State())

	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	buf, err := a.GetFileData()
	require.NoError(t, err)
	assert.Equal(t, 0, buf.Len())

	require.NoError(t, a.SetFileData(bytesbuf.FromBytes(plaintext)))
	require.NoError(t, a.GetEncryptedData())
	assert.Equal(t, Encrypted, a.State())
	require.NoError(t, a.WriteToFile())
	assert.Equal(t, Encrypted, a.State())

	a.Logout()
	assert.Equal(t, Init, a.State())

	b := New(dir)
	require.NoError(t, b.SelectFile("vault.enc"))
	outcome, err := b.VerifyPassword("correct horse", time.Second)
	require.NoError(t, err)
	assert.Equal(t, vaulterr.Success, outcome.Status)
	assert.Equal(t, PasswordVerified, b.State())

	require.NoError(t, b.GetDecryptedData())
	assert.Equal(t, Decrypted, b.State())

	got, err := b.GetFileData()
	require.NoError(t, err)
	assert.Equal(t, plaintext, got.Bytes())
}

func TestVerifyPasswordRejectsWrongPassword(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)
	require.NoError(t, a.CreateFile("vault.enc"))
	require.NoError(t, a.SelectFile("vault.enc"))
	require.NoError(t, a.CreateDataHeader("correct horse", testSettings()))
	require.NoError(t, a.SetFileData(bytesbuf.FromBytes([]byte("secret"))))
	require.NoError(t, a.GetEncryptedData())
	require.NoError(t, a.WriteToFile())
	a.Logout()

	b := New(dir)
	require.NoError(t, b.SelectFile("vault.enc"))
	outcome, err := b.VerifyPassword("wrong password", time.Second)
	assert.True(t, vaulterr.Is(err, vaulterr.PasswordInvalid))
	assert.Equal(t, vaulterr.Fail, outcome.Status)
	assert.Equal(t, FileSelected, b.State(), "a failed verify must not advance state")
}

func TestVerifyPasswordTimesOutWithoutMutatingState(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)
	require.NoError(t, a.CreateFile("vault.enc"))
	require.NoError(t, a.SelectFile("vault.enc"))

	settings := testSettings()
	settings.ChainHash1 = chainhash.New(chainhash.Normal, chainhash.MaxIterations, chainhash.NewData(chainhash.Format{}))
	require.NoError(t, a.CreateDataHeader("correct horse", settings))
	require.NoError(t, a.SetFileData(bytesbuf.FromBytes([]byte("secret"))))
	require.NoError(t, a.GetEncryptedData())
	require.NoError(t, a.WriteToFile())
	a.Logout()

	b := New(dir)
	require.NoError(t, b.SelectFile("vault.enc"))
	outcome, err := b.VerifyPassword("correct horse", time.Nanosecond)
	require.NoError(t, err)
	assert.Equal(t, vaulterr.TimedOut, outcome.Status)
	assert.Equal(t, FileSelected, b.State())
}

func TestCreateDataHeaderRequiresEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.enc")
	a := New(dir)
	require.NoError(t, a.CreateFile("vault.enc"))
	require.NoError(t, a.SelectFile("vault.enc"))
	require.NoError(t, filehandle.New(path).WriteBytes([]byte("not empty")))

	err := a.CreateDataHeader("pw", testSettings())
	assert.True(t, vaulterr.Is(err, vaulterr.FileNotEmpty))
	assert.Equal(t, FileSelected, a.State())
}

func TestDeleteFileReturnsToInit(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)
	require.NoError(t, a.CreateFile("vault.enc"))
	require.NoError(t, a.SelectFile("vault.enc"))
	require.NoError(t, a.DeleteFile())
	assert.Equal(t, Init, a.State())

	names, err := a.ListFiles()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestOperationsRejectedOutsideTheirState(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)

	assert.True(t, vaulterr.Is(a.Unselect(), vaulterr.ApiStateInvalid))
	assert.True(t, vaulterr.Is(a.GetDecryptedData(), vaulterr.ApiStateInvalid))
	assert.True(t, vaulterr.Is(a.ChangeSalt(nil), vaulterr.ApiStateInvalid))
	_, err2 := a.GetFileData()
	assert.True(t, vaulterr.Is(err2, vaulterr.ApiStateInvalid))
	assert.True(t, vaulterr.Is(a.WriteToFile(), vaulterr.ApiStateInvalid))
}
