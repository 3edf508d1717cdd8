// Package hashing unifies SHA-256/384/512 behind a single Hash interface so
// the rest of vaultcrypt can be generic over the hash primitive selected by
// a file's HashMode tag.
package hashing

import (
	"crypto/sha256"
	"crypto/sha512"

	"github.com/nas-ai/vaultcrypt/internal/bytesbuf"
	"github.com/nas-ai/vaultcrypt/internal/vaulterr"
)

// Mode is the persisted tag selecting a hash primitive.
type Mode uint8

const (
	SHA256 Mode = 1
	SHA384 Mode = 2
	SHA512 Mode = 3
)

// Hash is a pure function from bytes to a fixed-size digest. Implementations
// carry no state and are safe to share across calls.
type Hash interface {
	// Size returns the digest length in bytes.
	Size() int
	// Sum returns H(data) as a buffer of Size() bytes.
	Sum(data []byte) *bytesbuf.Buffer
	// SumString returns H(s) where s is hashed as its UTF-8 bytes; must
	// agree with Sum when the byte sequences are equal.
	SumString(s string) *bytesbuf.Buffer
	// Mode returns this hash's persisted tag.
	Mode() Mode
}

type sha256Hash struct{}
type sha384Hash struct{}
type sha512Hash struct{}

func (sha256Hash) Size() int { return sha256.Size }
func (sha256Hash) Sum(data []byte) *bytesbuf.Buffer {
	d := sha256.Sum256(data)
	return bytesbuf.FromBytes(d[:])
}
func (h sha256Hash) SumString(s string) *bytesbuf.Buffer { return h.Sum([]byte(s)) }
func (sha256Hash) Mode() Mode                            { return SHA256 }

func (sha384Hash) Size() int { return sha512.Size384 }
func (sha384Hash) Sum(data []byte) *bytesbuf.Buffer {
	d := sha512.Sum384(data)
	return bytesbuf.FromBytes(d[:])
}
func (h sha384Hash) SumString(s string) *bytesbuf.Buffer { return h.Sum([]byte(s)) }
func (sha384Hash) Mode() Mode                            { return SHA384 }

func (sha512Hash) Size() int { return sha512.Size }
func (sha512Hash) Sum(data []byte) *bytesbuf.Buffer {
	d := sha512.Sum512(data)
	return bytesbuf.FromBytes(d[:])
}
func (h sha512Hash) SumString(s string) *bytesbuf.Buffer { return h.Sum([]byte(s)) }
func (sha512Hash) Mode() Mode                            { return SHA512 }

// New returns the Hash implementation for the given mode, failing on an
// unrecognized tag.
func New(mode Mode) (Hash, error) {
	switch mode {
	case SHA256:
		return sha256Hash{}, nil
	case SHA384:
		return sha384Hash{}, nil
	case SHA512:
		return sha512Hash{}, nil
	default:
		return nil, vaulterr.New(vaulterr.HashModeInvalid, "hash_mode")
	}
}
