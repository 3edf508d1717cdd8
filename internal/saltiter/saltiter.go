// Package saltiter implements the deterministic per-block salt generator
// that binds each block's salt to the password hash, the encrypted master
// salt, and the previous block's plaintext hash (§3, §4.6).
package saltiter

import (
	"github.com/nas-ai/vaultcrypt/internal/bytesbuf"
	"github.com/nas-ai/vaultcrypt/internal/hashing"
	"github.com/nas-ai/vaultcrypt/internal/vaulterr"
)

// Iterator holds the running state: current_hash, current_salt, and the
// hash function they were seeded with. Re-Init resets it completely; there
// is no hidden state beyond these fields.
type Iterator struct {
	hash         hashing.Hash
	currentHash  *bytesbuf.Buffer
	currentSalt  *bytesbuf.Buffer
	hashSize     int
	initialized  bool
	producedOnce bool
}

// New returns an uninitialized iterator for the given hash.
func New(h hashing.Hash) *Iterator {
	return &Iterator{hash: h, hashSize: h.Size()}
}

// Init seeds the iterator from the password hash and the encrypted master
// salt. Both must have length equal to the hash's digest size.
func (it *Iterator) Init(pwhash, encSalt *bytesbuf.Buffer) error {
	if pwhash.Len() != it.hashSize || encSalt.Len() != it.hashSize {
		return vaulterr.New(vaulterr.LengthInvalid, "pwhash/enc_salt must match hash size")
	}
	it.currentHash = pwhash
	it.currentSalt = it.hash.Sum(append(append([]byte{}, pwhash.Bytes()...), encSalt.Bytes()...))
	it.initialized = true
	it.producedOnce = false
	return nil
}

// Next advances the iterator and returns the next salt. lastBlockHash must
// be nil only for the very first call (it is then treated as an all-zero
// buffer of hash-size length); every subsequent call requires a real
// previous block hash of that same length.
func (it *Iterator) Next(lastBlockHash *bytesbuf.Buffer) (*bytesbuf.Buffer, error) {
	if !it.initialized {
		return nil, vaulterr.New(vaulterr.Bug, "salt iterator not initialized")
	}
	var lbh *bytesbuf.Buffer
	if lastBlockHash == nil {
		if it.producedOnce {
			return nil, vaulterr.New(vaulterr.ArgumentInvalid, "last_block_hash required after first call")
		}
		lbh = bytesbuf.New(it.hashSize)
		zero := make([]byte, it.hashSize)
		_ = lbh.AddConsume(zero, it.hashSize)
	} else {
		if lastBlockHash.Len() != it.hashSize {
			return nil, vaulterr.New(vaulterr.LengthInvalid, "last_block_hash")
		}
		lbh = lastBlockHash
	}

	mix := concat(it.currentHash.Bytes(), it.currentSalt.Bytes(), lbh.Bytes())
	it.currentHash = it.hash.Sum(mix)
	out := it.hash.Sum(concat(it.currentHash.Bytes(), it.currentSalt.Bytes()))
	it.producedOnce = true
	return out, nil
}

func concat(parts ...[]byte) []byte {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
