// Package block implements the fixed-length, salt-keyed block that is the
// unit of the streaming cipher (§4.7): one block holds exactly hash_size
// bytes of transformed output, produced by adding (encrypt) or subtracting
// (decrypt) its salt from the input byte-for-byte.
package block

import (
	"github.com/nas-ai/vaultcrypt/internal/bytesbuf"
	"github.com/nas-ai/vaultcrypt/internal/hashing"
	"github.com/nas-ai/vaultcrypt/internal/vaulterr"
)

// Kind selects which direction a Block transforms data.
type Kind int

const (
	Encrypt Kind = iota
	Decrypt
)

// Block holds one block_len-sized window of the blockchain. block_len is
// always the hash function's digest size (§3): salt, data and the block
// hash all share that length.
type Block struct {
	kind     Kind
	hash     hashing.Hash
	blockLen int
	salt     *bytesbuf.Buffer
	data     *bytesbuf.Buffer
	decHash  *bytesbuf.Buffer
}

// New constructs a block for the given direction. salt.Len() must equal
// hash.Size(), which is also the block's length.
func New(kind Kind, hash hashing.Hash, salt *bytesbuf.Buffer) (*Block, error) {
	if salt.Len() != hash.Size() {
		return nil, vaulterr.New(vaulterr.LengthInvalid, "salt")
	}
	return &Block{
		kind:     kind,
		hash:     hash,
		blockLen: hash.Size(),
		salt:     salt,
		data:     bytesbuf.New(hash.Size()),
	}, nil
}

// FreeSpace returns how many more bytes this block can accept.
func (b *Block) FreeSpace() int { return b.blockLen - b.data.Len() }

// IsComplete reports whether the block has reached block_len bytes.
func (b *Block) IsComplete() bool { return b.data.Len() == b.blockLen }

// AddData transforms x against the matching slice of the salt and appends
// the result. An empty x is always a no-op, even on a completed block.
// Adding more than FreeSpace() fails loudly rather than silently truncating.
// Once the block fills, the hash of the block's plaintext is computed and
// cached exactly once; further (necessarily empty) adds after that point
// are tolerated.
func (b *Block) AddData(x []byte) error {
	if len(x) == 0 {
		return nil
	}
	if len(x) > b.FreeSpace() {
		return vaulterr.New(vaulterr.LengthInvalid, "block data length would exceed block_len")
	}

	offset := b.data.Len()
	saltSlice, err := b.salt.CopySub(offset, offset+len(x))
	if err != nil {
		return err
	}
	input := bytesbuf.FromBytes(x)

	var transformed *bytesbuf.Buffer
	if b.kind == Encrypt {
		transformed, err = input.Add(saltSlice)
	} else {
		transformed, err = input.Sub(saltSlice)
	}
	if err != nil {
		return err
	}
	if err := b.data.AddConsume(transformed.Bytes(), transformed.Len()); err != nil {
		return err
	}

	if b.IsComplete() && b.decHash == nil {
		b.decHash = b.hash.Sum(b.plaintext().Bytes())
	}
	return nil
}

// plaintext returns the block's decrypted content regardless of direction:
// for a decrypt block data already holds plaintext; for an encrypt block
// the salt must be subtracted back out of the stored ciphertext.
func (b *Block) plaintext() *bytesbuf.Buffer {
	if b.kind == Decrypt {
		return b.data
	}
	saltPrefix, _ := b.salt.CopySub(0, b.data.Len())
	out, _ := b.data.Sub(saltPrefix)
	return out
}

// GetResult returns the block's transformed output so far (ciphertext for
// an encrypt block, plaintext for a decrypt block). Valid at any fill level.
func (b *Block) GetResult() *bytesbuf.Buffer {
	out, _ := b.data.CopySub(0, b.data.Len())
	return out
}

// GetHash returns the block's plaintext hash, used to seed the next block's
// salt. Fails if the block has not yet been filled to block_len.
func (b *Block) GetHash() (*bytesbuf.Buffer, error) {
	if b.decHash == nil {
		return nil, vaulterr.New(vaulterr.LengthInvalid, "block is not completed, cannot get hash")
	}
	return b.decHash, nil
}
