package block

import (
	"io"

	"github.com/nas-ai/vaultcrypt/internal/bytesbuf"
	"github.com/nas-ai/vaultcrypt/internal/hashing"
	"github.com/nas-ai/vaultcrypt/internal/saltiter"
	"github.com/nas-ai/vaultcrypt/internal/vaulterr"
)

// ChainStream is the streaming counterpart to BlockChain: it reads from an
// io.Reader and writes to an io.Writer directly, never holding more than
// one block's worth of plaintext/ciphertext in memory. The invariant is the
// same as the in-memory chain: bytes written out equal bytes read in, with
// no padding.
type ChainStream struct {
	kind     Kind
	hash     hashing.Hash
	saltIter *saltiter.Iterator

	current *Block
	height  uint64
}

// NewChainStream builds a ChainStream keyed by pwhash and encSalt.
func NewChainStream(kind Kind, hash hashing.Hash, pwhash, encSalt *bytesbuf.Buffer) (*ChainStream, error) {
	it := saltiter.New(hash)
	if err := it.Init(pwhash, encSalt); err != nil {
		return nil, err
	}
	cs := &ChainStream{kind: kind, hash: hash, saltIter: it}
	if err := cs.rollBlock(nil); err != nil {
		return nil, err
	}
	return cs, nil
}

func (cs *ChainStream) rollBlock(lastBlockHash *bytesbuf.Buffer) error {
	salt, err := cs.saltIter.Next(lastBlockHash)
	if err != nil {
		return err
	}
	b, err := New(cs.kind, cs.hash, salt)
	if err != nil {
		return err
	}
	cs.current = b
	cs.height++
	return nil
}

// Copy streams exactly streamLen bytes from in to out, encrypting or
// decrypting block-by-block as it goes. It never buffers more than one
// block's worth of data.
func (cs *ChainStream) Copy(out io.Writer, in io.Reader, streamLen uint64) error {
	var written uint64
	blockSize := cs.hash.Size()
	buf := make([]byte, blockSize)
	for written < streamLen {
		free := cs.current.FreeSpace()
		prevLen := blockSize - free
		want := uint64(free)
		remaining := streamLen - written
		if remaining < want {
			want = remaining
		}
		chunk := buf[:want]
		if _, err := io.ReadFull(in, chunk); err != nil {
			return vaulterr.New(vaulterr.NotEnoughData, "could not read all bytes from input stream")
		}
		if err := cs.current.AddData(chunk); err != nil {
			return err
		}
		if _, err := out.Write(cs.current.GetResult().Bytes()[prevLen : prevLen+int(want)]); err != nil {
			return vaulterr.New(vaulterr.FileRead, "could not write to output stream")
		}
		written += want

		if cs.current.FreeSpace() == 0 {
			if written < streamLen {
				lbh, err := cs.current.GetHash()
				if err != nil {
					return vaulterr.New(vaulterr.Bug, "block completed without a hash")
				}
				if err := cs.rollBlock(lbh); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Height returns the number of blocks constructed so far.
func (cs *ChainStream) Height() uint64 { return cs.height }
