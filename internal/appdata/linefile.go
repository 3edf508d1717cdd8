// Package appdata holds the two small pieces of persisted state the core
// never touches (§6): the bit-exact `<setting_name> <value>` app-data file
// recording the last-used directory, and a viper-backed AppSettings layer
// for operator-tunable defaults.
package appdata

import (
	"bufio"
	"os"
	"strings"

	"github.com/nas-ai/vaultcrypt/internal/vaulterr"
)

// LastDirKey is the setting name the CLI boundary persists across runs.
const LastDirKey = "last_directory"

// File is the in-memory model of one app-data file: an ordered set of
// name/value pairs, one per line, `<name> <value>` separated by the first
// space. Order is preserved across Load/Save round-trips.
type File struct {
	path  string
	order []string
	vals  map[string]string
}

// New returns an empty app-data file bound to path. The file need not exist
// yet; Save creates it.
func New(path string) *File {
	return &File{path: path, vals: make(map[string]string)}
}

// Load reads path into a new File bound to it. A missing file is not an
// error: it is treated as an empty file, matching first-run behavior.
func Load(path string) (*File, error) {
	f := New(path)
	raw, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, vaulterr.New(vaulterr.FileRead, path)
	}
	defer raw.Close()

	scanner := bufio.NewScanner(raw)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, " ")
		if !found {
			return nil, vaulterr.New(vaulterr.FileDataInvalid, "app-data line missing value: "+line)
		}
		f.Set(name, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, vaulterr.New(vaulterr.FileRead, path)
	}
	return f, nil
}

// Get looks up a setting by name.
func (f *File) Get(name string) (string, bool) {
	v, ok := f.vals[name]
	return v, ok
}

// Set assigns name to value, appending name to the write order on first use.
func (f *File) Set(name, value string) {
	if _, ok := f.vals[name]; !ok {
		f.order = append(f.order, name)
	}
	f.vals[name] = value
}

// Save writes every setting back to path, one `<name> <value>` per line in
// first-set order, overwriting any existing file.
func (f *File) Save() error {
	var b strings.Builder
	for _, name := range f.order {
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(f.vals[name])
		b.WriteByte('\n')
	}
	if err := os.WriteFile(f.path, []byte(b.String()), 0o600); err != nil {
		return vaulterr.New(vaulterr.FileNotCreated, f.path)
	}
	return nil
}
