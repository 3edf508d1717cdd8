// Package dataheader implements the binary codec for the file header that
// precedes every encrypted payload: the two size prefixes, the file/hash
// mode tags, both chainhash records, the password validator, the encrypted
// master salt and the payload-layer datablocks (§4.5).
package dataheader

import (
	"encoding/binary"

	"github.com/nas-ai/vaultcrypt/internal/bytesbuf"
	"github.com/nas-ai/vaultcrypt/internal/chainhash"
	"github.com/nas-ai/vaultcrypt/internal/hashing"
	"github.com/nas-ai/vaultcrypt/internal/vaulterr"
)

// fixedFieldBytes is the byte length of everything from offset 16 (file_mode)
// through chainhash2_datablock_len, minus the two variable datablocks:
// file_mode(1) + hash_mode(1) + chainhash1_mode(1) + chainhash1_iters(8) +
// chainhash1_datablock_len(1) + chainhash2_mode(1) + chainhash2_iters(8) +
// chainhash2_datablock_len(1) = 22.
const fixedFieldBytes = 22

// sizePrefixBytes is the byte length of the size prefix. Despite the two
// words conventionally being labeled file_size/header_size, the wire format
// writes file_size twice (both words must agree on parse); header_size is
// never itself serialized and is always recomputed from the fields that
// follow it.
const sizePrefixBytes = 16

// DecDatablock is one payload-layer metadata entry trailing the header.
type DecDatablock struct {
	Type  byte
	Bytes []byte
}

// DataHeader is the in-memory model of §4.5's serialized layout. It is
// built up by setters, then serialized once with CalcHeaderBytes, or
// populated wholesale by ParseHeaderBytes.
type DataHeader struct {
	hashMode hashing.Mode
	hashSize int

	fileMode    byte
	fileModeSet bool

	chainhash1 *chainhash.ChainHash
	chainhash2 *chainhash.ChainHash

	validPasswordHash *bytesbuf.Buffer
	encSalt           *bytesbuf.Buffer
	decDatablocks     []DecDatablock

	fileSize   uint64
	headerSize uint64
}

// New returns a DataHeader for the given hash mode. The hash mode is fixed
// for the header's lifetime; it determines hash_size, which in turn
// constrains valid_passwordhash.len and enc_salt.len.
func New(hashMode hashing.Mode) (*DataHeader, error) {
	h, err := hashing.New(hashMode)
	if err != nil {
		return nil, err
	}
	return &DataHeader{hashMode: hashMode, hashSize: h.Size()}, nil
}

// SetFileMode sets the payload's content tag. Validation of the tag's
// meaning (which values are legal file modes) is a payload-schema concern
// out of scope here; only the byte itself is carried.
func (dh *DataHeader) SetFileMode(mode byte) {
	dh.fileMode = mode
	dh.fileModeSet = true
}

// SetChainHash1 sets the password -> passwordhash chainhash. ch must
// already validate (mode, iterations, datablock all consistent).
func (dh *DataHeader) SetChainHash1(ch *chainhash.ChainHash) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	dh.chainhash1 = ch
	return nil
}

// SetChainHash2 sets the passwordhash -> validator chainhash.
func (dh *DataHeader) SetChainHash2(ch *chainhash.ChainHash) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	dh.chainhash2 = ch
	return nil
}

// SetValidPasswordHash sets the expected chainhash2(pwhash) result used to
// verify a candidate password. Length must equal hash_size.
func (dh *DataHeader) SetValidPasswordHash(v *bytesbuf.Buffer) error {
	if v.Len() != dh.hashSize {
		return vaulterr.New(vaulterr.LengthInvalid, "valid_passwordhash")
	}
	dh.validPasswordHash = v
	return nil
}

// AddDecDatablock appends one payload-layer metadata entry. Each must be at
// most 255 bytes; the field is opaque to this package.
func (dh *DataHeader) AddDecDatablock(typ byte, data []byte) error {
	if len(data) > 255 {
		return vaulterr.New(vaulterr.DatablockTooLong, "dec_datablock")
	}
	dh.decDatablocks = append(dh.decDatablocks, DecDatablock{Type: typ, Bytes: append([]byte{}, data...)})
	return nil
}

// HashSize returns the digest size implied by this header's hash mode.
func (dh *DataHeader) HashSize() int { return dh.hashSize }

// FileSize returns the cached total file size (0 until set by
// ParseHeaderBytes; PatchFileSize rewrites serialized bytes only and does
// not change this value).
func (dh *DataHeader) FileSize() uint64 { return dh.fileSize }

// HeaderLength returns the byte length the header will serialize to, or 0 if
// not enough fields are set yet to compute it (§4.5: 16-byte size prefix +
// 22 fixed fields + 2*hash_size + both datablock lengths + the
// dec_datablock count byte and entries).
func (dh *DataHeader) HeaderLength() uint64 {
	if dh.chainhash1 == nil || dh.chainhash2 == nil || dh.validPasswordHash == nil {
		return 0
	}
	total := sizePrefixBytes + fixedFieldBytes + 2*dh.hashSize + dh.chainhash1.Data.Len() + dh.chainhash2.Data.Len()
	for _, d := range dh.decDatablocks {
		total += 2 + len(d.Bytes)
	}
	total += 1 // dec_datablock_count
	return uint64(total)
}

// CalcHeaderBytes serializes the header per §4.5. pwhash is required and
// must be hash_size bytes long. If verifyPwhash is true, pwhash is checked
// against chainhash2(pwhash) == valid_passwordhash before emitting anything
// (PasswordInvalid on mismatch). A fresh random salt is generated
// and enc_salt is set to salt + pwhash with elementwise mod-256 addition —
// never XOR, and never the raw salt alone (the file format depends on this
// exact combination). Both file_size copies are written from the header's
// cached FileSize (0 unless the header came from ParseHeaderBytes); use
// PatchFileSize once the final file length is known. header_size is never
// itself serialized.
func (dh *DataHeader) CalcHeaderBytes(h hashing.Hash, pwhash *bytesbuf.Buffer, verifyPwhash bool) (*bytesbuf.Buffer, error) {
	if !dh.fileModeSet || dh.chainhash1 == nil || dh.chainhash2 == nil || dh.validPasswordHash == nil {
		return nil, vaulterr.New(vaulterr.DataHeaderSettingsIncomplete, "data_header")
	}
	if pwhash == nil || pwhash.Len() != dh.hashSize {
		return nil, vaulterr.New(vaulterr.LengthInvalid, "pwhash")
	}
	if verifyPwhash {
		got, err := dh.chainhash2.Run(h, pwhash.Bytes())
		if err != nil {
			return nil, err
		}
		if !got.Equal(dh.validPasswordHash) {
			return nil, vaulterr.New(vaulterr.PasswordInvalid, "pwhash")
		}
	}

	salt := bytesbuf.New(dh.hashSize)
	if err := salt.AddRandom(dh.hashSize); err != nil {
		return nil, err
	}
	encSalt, err := salt.Add(pwhash)
	if err != nil {
		return nil, err
	}
	dh.encSalt = encSalt

	headerSize := dh.HeaderLength()
	dh.headerSize = headerSize

	out := bytesbuf.New(int(headerSize))
	// Both size-prefix words carry file_size; it is written twice and the
	// two copies must agree on parse. header_size is never stored on the
	// wire — it is always recomputed from the fields that follow.
	appendU64(out, dh.fileSize)
	appendU64(out, dh.fileSize)
	_ = out.AddByte(dh.fileMode)
	_ = out.AddByte(byte(dh.hashMode))
	_ = out.AddByte(byte(dh.chainhash1.Mode))
	appendU64(out, dh.chainhash1.Iterations)
	_ = out.AddByte(byte(dh.chainhash1.Data.Len()))
	_ = out.AddConsume(dh.chainhash1.Data.Bytes(), dh.chainhash1.Data.Len())
	_ = out.AddByte(byte(dh.chainhash2.Mode))
	appendU64(out, dh.chainhash2.Iterations)
	_ = out.AddByte(byte(dh.chainhash2.Data.Len()))
	_ = out.AddConsume(dh.chainhash2.Data.Bytes(), dh.chainhash2.Data.Len())
	_ = out.AddConsume(dh.validPasswordHash.Bytes(), dh.validPasswordHash.Len())
	_ = out.AddConsume(dh.encSalt.Bytes(), dh.encSalt.Len())
	_ = out.AddByte(byte(len(dh.decDatablocks)))
	for _, d := range dh.decDatablocks {
		_ = out.AddByte(d.Type)
		_ = out.AddByte(byte(len(d.Bytes)))
		_ = out.AddConsume(d.Bytes, len(d.Bytes))
	}

	if out.Len() != int(headerSize) {
		return nil, vaulterr.New(vaulterr.Bug, "header length mismatch after serialization")
	}
	return out, nil
}

// PatchFileSize rewrites both file_size copies (offsets 0 and 8) of an
// already-serialized header in place, without re-running CalcHeaderBytes.
func PatchFileSize(headerBytes *bytesbuf.Buffer, fileSize uint64) error {
	if headerBytes.Len() < sizePrefixBytes {
		return vaulterr.New(vaulterr.NotEnoughData, "header_bytes")
	}
	raw := headerBytes.Bytes()
	binary.BigEndian.PutUint64(raw[0:8], fileSize)
	binary.BigEndian.PutUint64(raw[8:16], fileSize)
	return nil
}

func appendU64(b *bytesbuf.Buffer, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	_ = b.AddConsume(tmp[:], 8)
}

// ParseHeaderBytes reads a header from the front of stream, validating every
// field as it goes and returning the unconsumed tail for the payload reader.
// The two file_size copies (offsets 0 and 8) must agree, or parsing fails.
func ParseHeaderBytes(stream []byte) (*DataHeader, []byte, error) {
	if len(stream) < sizePrefixBytes+1 {
		return nil, nil, vaulterr.New(vaulterr.NotEnoughData, "header")
	}
	fileSize := binary.BigEndian.Uint64(stream[0:8])
	fileSizeCopy := binary.BigEndian.Uint64(stream[8:16])
	if fileSize != fileSizeCopy {
		return nil, nil, vaulterr.New(vaulterr.FileDataInvalid, "file_size")
	}

	rest := stream[sizePrefixBytes:]
	if len(rest) < 2 {
		return nil, nil, vaulterr.New(vaulterr.NotEnoughData, "file_mode")
	}
	fileMode := rest[0]
	hashModeByte := rest[1]
	rest = rest[2:]

	dh, err := New(hashing.Mode(hashModeByte))
	if err != nil {
		return nil, nil, err
	}
	dh.SetFileMode(fileMode)
	dh.fileSize = fileSize

	ch1, rest, err := parseChainHash(rest)
	if err != nil {
		return nil, nil, err
	}
	if err := dh.SetChainHash1(ch1); err != nil {
		return nil, nil, vaulterr.New(vaulterr.Chainhash1Invalid, "chainhash1")
	}

	ch2, rest, err := parseChainHash(rest)
	if err != nil {
		return nil, nil, err
	}
	if err := dh.SetChainHash2(ch2); err != nil {
		return nil, nil, vaulterr.New(vaulterr.Chainhash2Invalid, "chainhash2")
	}

	if len(rest) < 2*dh.hashSize {
		return nil, nil, vaulterr.New(vaulterr.NotEnoughData, "valid_passwordhash/enc_salt")
	}
	if err := dh.SetValidPasswordHash(bytesbuf.FromBytes(rest[:dh.hashSize])); err != nil {
		return nil, nil, err
	}
	dh.encSalt = bytesbuf.FromBytes(rest[dh.hashSize : 2*dh.hashSize])
	rest = rest[2*dh.hashSize:]

	if len(rest) < 1 {
		return nil, nil, vaulterr.New(vaulterr.NotEnoughData, "dec_datablock_count")
	}
	count := int(rest[0])
	rest = rest[1:]
	for i := 0; i < count; i++ {
		if len(rest) < 2 {
			return nil, nil, vaulterr.New(vaulterr.NotEnoughData, "dec_datablock")
		}
		typ := rest[0]
		length := int(rest[1])
		rest = rest[2:]
		if len(rest) < length {
			return nil, nil, vaulterr.New(vaulterr.NotEnoughData, "dec_datablock")
		}
		if err := dh.AddDecDatablock(typ, rest[:length]); err != nil {
			return nil, nil, err
		}
		rest = rest[length:]
	}

	dh.headerSize = dh.HeaderLength()
	return dh, rest, nil
}

// EncSalt returns the encrypted master salt parsed or computed for this
// header. Only valid once CalcHeaderBytes or ParseHeaderBytes has run.
func (dh *DataHeader) EncSalt() *bytesbuf.Buffer { return dh.encSalt }

// ValidPasswordHash returns the password validator this header was built or
// parsed with.
func (dh *DataHeader) ValidPasswordHash() *bytesbuf.Buffer { return dh.validPasswordHash }

// ChainHash1 returns the password -> passwordhash chainhash.
func (dh *DataHeader) ChainHash1() *chainhash.ChainHash { return dh.chainhash1 }

// ChainHash2 returns the passwordhash -> validator chainhash.
func (dh *DataHeader) ChainHash2() *chainhash.ChainHash { return dh.chainhash2 }

// HashMode returns the hash mode this header was constructed with.
func (dh *DataHeader) HashMode() hashing.Mode { return dh.hashMode }

// FileMode returns the payload content tag.
func (dh *DataHeader) FileMode() byte { return dh.fileMode }

// DecDatablocks returns the payload-layer metadata trailer.
func (dh *DataHeader) DecDatablocks() []DecDatablock { return dh.decDatablocks }

func parseChainHash(rest []byte) (*chainhash.ChainHash, []byte, error) {
	if len(rest) < 9 {
		return nil, nil, vaulterr.New(vaulterr.NotEnoughData, "chainhash")
	}
	mode := chainhash.Mode(rest[0])
	iters := binary.BigEndian.Uint64(rest[1:9])
	rest = rest[9:]
	if len(rest) < 1 {
		return nil, nil, vaulterr.New(vaulterr.NotEnoughData, "chainhash_datablock_len")
	}
	length := int(rest[0])
	rest = rest[1:]
	if len(rest) < length {
		return nil, nil, vaulterr.New(vaulterr.NotEnoughData, "chainhash_datablock")
	}
	datablockBytes := rest[:length]
	rest = rest[length:]

	format, err := chainhash.FormatFor(mode)
	if err != nil {
		return nil, nil, err
	}
	data := chainhash.NewData(format)
	pos := 0
	for _, slot := range format {
		slotLen := slot.Length
		if slotLen == 0 {
			slotLen = len(datablockBytes) - pos
		}
		if pos+slotLen > len(datablockBytes) {
			return nil, nil, vaulterr.New(vaulterr.ChainhashDatapartInvalid, slot.Name)
		}
		if err := data.Add(bytesbuf.FromBytes(datablockBytes[pos : pos+slotLen])); err != nil {
			return nil, nil, err
		}
		pos += slotLen
	}
	if pos != len(datablockBytes) {
		return nil, nil, vaulterr.New(vaulterr.ChainhashDatablockOutOfRange, "datablock")
	}

	ch := chainhash.New(mode, iters, data)
	return ch, rest, nil
}
