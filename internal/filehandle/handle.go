// Package filehandle wraps a single filesystem path (§4.8), caching the
// parsed header and file size until a write invalidates them. Apart from
// the streams returned by the Get*Stream methods, which the caller closes,
// it never holds the file open longer than one call.
package filehandle

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nas-ai/vaultcrypt/internal/dataheader"
	"github.com/nas-ai/vaultcrypt/internal/vaulterr"
)

// Extension is the on-disk suffix vaultcrypt files use (§6).
const Extension = ".enc"

// Handle is exclusive to its path for its lifetime: nothing in this
// package assumes another Handle isn't also touching the same file, but
// vaultcrypt's own callers never open two handles on one path concurrently.
type Handle struct {
	path string

	sizeCached bool
	size       int64

	headerCached bool
	header       *dataheader.DataHeader
}

// New wraps path. The file need not exist yet.
func New(path string) *Handle {
	return &Handle{path: path}
}

// Path returns the wrapped filesystem path.
func (h *Handle) Path() string { return h.path }

func (h *Handle) invalidate() {
	h.sizeCached = false
	h.headerCached = false
	h.header = nil
}

func (h *Handle) stat() (os.FileInfo, error) {
	info, err := os.Stat(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vaulterr.New(vaulterr.FileNotFound, h.path)
		}
		return nil, vaulterr.New(vaulterr.FileRead, h.path)
	}
	return info, nil
}

// FileSize returns the file's byte length, cached until the next write.
func (h *Handle) FileSize() (uint64, error) {
	if !h.sizeCached {
		info, err := h.stat()
		if err != nil {
			return 0, err
		}
		h.size = info.Size()
		h.sizeCached = true
	}
	return uint64(h.size), nil
}

// IsEmpty reports whether the file exists and has zero length.
func (h *Handle) IsEmpty() (bool, error) {
	size, err := h.FileSize()
	if err != nil {
		return false, err
	}
	return size == 0, nil
}

// HeaderSize returns the parsed header's on-disk byte length, parsing the
// header first (via GetDataHeader) if it is not cached yet.
func (h *Handle) HeaderSize() (uint64, error) {
	dh, err := h.GetDataHeader()
	if err != nil {
		return 0, err
	}
	return dh.HeaderLength(), nil
}

// FirstBytes reads the file's first n bytes. Fails with NotEnoughData if
// the file is shorter than n.
func (h *Handle) FirstBytes(n int) ([]byte, error) {
	f, err := os.Open(h.path)
	if err != nil {
		return nil, vaulterr.New(vaulterr.FileNotOpen, h.path)
	}
	defer f.Close()

	buf := make([]byte, n)
	read := 0
	for read < n {
		m, err := f.Read(buf[read:])
		read += m
		if err != nil {
			break
		}
	}
	if read < n {
		return nil, vaulterr.New(vaulterr.NotEnoughData, h.path)
	}
	return buf, nil
}

// WriteBytesIfEmpty writes buf only if the file is currently empty (or
// absent), then resets cached metadata. It is not atomic across processes;
// vaultcrypt's own state machine never races two handles on one path.
func (h *Handle) WriteBytesIfEmpty(buf []byte) error {
	empty, err := h.fileExistsAndEmpty()
	if err != nil {
		return err
	}
	if !empty {
		return vaulterr.New(vaulterr.FileNotEmpty, h.path)
	}
	return h.WriteBytes(buf)
}

func (h *Handle) fileExistsAndEmpty() (bool, error) {
	info, err := os.Stat(h.path)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, vaulterr.New(vaulterr.FileRead, h.path)
	}
	return info.Size() == 0, nil
}

// WriteBytes unconditionally overwrites the file's contents, then resets
// cached header/size metadata.
func (h *Handle) WriteBytes(buf []byte) error {
	f, err := os.Create(h.path)
	if err != nil {
		return vaulterr.New(vaulterr.FileNotCreated, h.path)
	}
	defer f.Close()
	if _, err := f.Write(buf); err != nil {
		return vaulterr.New(vaulterr.FileRead, h.path)
	}
	h.invalidate()
	return nil
}

// GetWriteStream opens the file for unconditional overwrite, truncating any
// existing content. The caller owns the returned file and must close it.
func (h *Handle) GetWriteStream() (*os.File, error) {
	f, err := os.Create(h.path)
	if err != nil {
		return nil, vaulterr.New(vaulterr.FileNotCreated, h.path)
	}
	h.invalidate()
	return f, nil
}

// GetWriteStreamIfEmpty is GetWriteStream's atomic-precondition sibling: it
// fails rather than truncate a non-empty file.
func (h *Handle) GetWriteStreamIfEmpty() (*os.File, error) {
	empty, err := h.fileExistsAndEmpty()
	if err != nil {
		return nil, err
	}
	if !empty {
		return nil, vaulterr.New(vaulterr.FileNotEmpty, h.path)
	}
	return h.GetWriteStream()
}

// GetReadStream opens the file for reading from byte 0. The caller owns the
// returned file and must close it.
func (h *Handle) GetReadStream() (*os.File, error) {
	f, err := os.Open(h.path)
	if err != nil {
		return nil, vaulterr.New(vaulterr.FileNotOpen, h.path)
	}
	return f, nil
}

// GetDataStream opens the file for reading and seeks past the parsed
// header, leaving the file positioned at the first ciphertext byte. The
// header is parsed first (via GetDataHeader) if it is not cached yet.
func (h *Handle) GetDataStream() (*os.File, error) {
	dh, err := h.GetDataHeader()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(h.path)
	if err != nil {
		return nil, vaulterr.New(vaulterr.FileNotOpen, h.path)
	}
	if _, err := f.Seek(int64(dh.HeaderLength()), 0); err != nil {
		f.Close()
		return nil, vaulterr.New(vaulterr.FileRead, h.path)
	}
	return f, nil
}

// Update re-parses the header from disk and validates it against the
// actual byte count: the header's declared file_size must equal
// header_size plus the bytes remaining after it.
func (h *Handle) Update() error {
	raw, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return vaulterr.New(vaulterr.FileNotFound, h.path)
		}
		return vaulterr.New(vaulterr.FileRead, h.path)
	}

	dh, rest, err := dataheader.ParseHeaderBytes(raw)
	if err != nil {
		return err
	}
	actual := dh.HeaderLength() + uint64(len(rest))
	if dh.FileSize() != actual {
		return vaulterr.New(vaulterr.FileDataInvalid, "file_size disagrees with actual file length")
	}

	h.header = dh
	h.headerCached = true
	h.size = int64(actual)
	h.sizeCached = true
	return nil
}

// IsDataHeader cheaply checks whether the file's first bytes look like a
// header tagged with the given file mode, without parsing the full header.
func (h *Handle) IsDataHeader(fileMode byte) (bool, error) {
	buf, err := h.FirstBytes(17)
	if err != nil {
		return false, err
	}
	return buf[16] == fileMode, nil
}

// GetDataHeader returns the cached parsed header, calling Update first if
// no parse has succeeded yet.
func (h *Handle) GetDataHeader() (*dataheader.DataHeader, error) {
	if !h.headerCached {
		if err := h.Update(); err != nil {
			return nil, err
		}
	}
	return h.header, nil
}

// Create makes an empty file at path, failing if one already exists.
func Create(path string) (*Handle, error) {
	if path == "" {
		return nil, vaulterr.New(vaulterr.EmptyFilePath, "path")
	}
	if !strings.HasSuffix(path, Extension) {
		return nil, vaulterr.New(vaulterr.ExtensionInvalid, path)
	}
	if _, err := os.Stat(path); err == nil {
		return nil, vaulterr.New(vaulterr.FileExists, path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, vaulterr.New(vaulterr.FileNotCreated, path)
	}
	f.Close()
	return New(path), nil
}

// Delete removes the wrapped file.
func (h *Handle) Delete() error {
	if err := os.Remove(h.path); err != nil {
		if os.IsNotExist(err) {
			return vaulterr.New(vaulterr.FileNotFound, h.path)
		}
		return vaulterr.New(vaulterr.FileNotDeleted, h.path)
	}
	h.invalidate()
	return nil
}

// ListFiles returns the sorted basenames of every Extension-suffixed file
// directly under dir.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, vaulterr.New(vaulterr.FileRead, dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), Extension) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// JoinPath joins dir and name, matching filepath semantics vaultcrypt uses
// throughout for resolving encryption-files-directory-relative paths.
func JoinPath(dir, name string) string { return filepath.Join(dir, name) }
