// Package block also implements BlockChain, the in-memory streaming
// container that chains Blocks together via the salt iterator (§4.7).
package block

import (
	"github.com/nas-ai/vaultcrypt/internal/bytesbuf"
	"github.com/nas-ai/vaultcrypt/internal/hashing"
	"github.com/nas-ai/vaultcrypt/internal/saltiter"
)

// BlockChain owns at most one live block at a time: data is appended to the
// current block; once it fills and more data remains, its output is flushed
// into the accumulated result and a new block is constructed from the next
// salt, seeded by the just-finished block's plaintext hash.
type BlockChain struct {
	kind     Kind
	hash     hashing.Hash
	saltIter *saltiter.Iterator

	current *Block
	height  uint64
	result  []byte
}

// NewChain builds a BlockChain keyed by pwhash and encSalt, ready to accept
// data via AddData. hash must be the same hash the header names; pwhash and
// encSalt must both have length hash.Size().
func NewChain(kind Kind, hash hashing.Hash, pwhash, encSalt *bytesbuf.Buffer) (*BlockChain, error) {
	it := saltiter.New(hash)
	if err := it.Init(pwhash, encSalt); err != nil {
		return nil, err
	}
	bc := &BlockChain{kind: kind, hash: hash, saltIter: it}
	if err := bc.rollBlock(); err != nil {
		return nil, err
	}
	return bc, nil
}

// rollBlock flushes the current block's output (if any) into the
// accumulated result, then replaces it with a fresh block seeded from the
// finished block's plaintext hash (an all-zero hash for the very first
// block, handled internally by the salt iterator).
func (bc *BlockChain) rollBlock() error {
	var lbh *bytesbuf.Buffer
	if bc.current != nil {
		h, err := bc.current.GetHash()
		if err != nil {
			return err
		}
		lbh = h
		bc.result = append(bc.result, bc.current.GetResult().Bytes()...)
	}
	salt, err := bc.saltIter.Next(lbh)
	if err != nil {
		return err
	}
	next, err := New(bc.kind, bc.hash, salt)
	if err != nil {
		return err
	}
	bc.current = next
	bc.height++
	return nil
}

// AddData slices input into chunks aligned to the current block's free
// space, rolling to a new block whenever the current one fills and more
// data remains.
func (bc *BlockChain) AddData(input []byte) error {
	written := 0
	for {
		free := bc.current.FreeSpace()
		take := len(input) - written
		if take > free {
			take = free
		}
		if err := bc.current.AddData(input[written : written+take]); err != nil {
			return err
		}
		written += take
		if written < len(input) {
			if err := bc.rollBlock(); err != nil {
				return err
			}
		} else {
			break
		}
	}
	return nil
}

// GetResult returns the accumulated output: every finalized block's bytes
// plus the current (possibly partial, possibly already-full) block's
// bytes. No padding is used; output length always equals total input
// length processed so far.
func (bc *BlockChain) GetResult() *bytesbuf.Buffer {
	out := make([]byte, 0, len(bc.result)+bc.current.GetResult().Len())
	out = append(out, bc.result...)
	out = append(out, bc.current.GetResult().Bytes()...)
	return bytesbuf.FromBytes(out)
}

// Height returns the number of blocks constructed so far.
func (bc *BlockChain) Height() uint64 { return bc.height }

// DataSize returns the number of bytes of payload processed so far.
func (bc *BlockChain) DataSize() uint64 {
	return bc.height*uint64(bc.hash.Size()) - uint64(bc.current.FreeSpace())
}
