package chainhash

import (
	"github.com/nas-ai/vaultcrypt/internal/bytesbuf"
	"github.com/nas-ai/vaultcrypt/internal/vaulterr"
)

const maxDatablockLen = 255

type part struct {
	name  string
	value *bytesbuf.Buffer
}

// Data is a datablock: the ordered, schema-validated parameters of one
// chainhash invocation. Parts are appended in schema order; Data is
// "complete" once every slot in the Format has a part.
type Data struct {
	format Format
	parts  []part
}

// NewData returns an empty datablock for the given format.
func NewData(format Format) *Data {
	return &Data{format: format}
}

// Format returns the schema this datablock validates against.
func (d *Data) Format() Format { return d.format }

// IsComplete reports whether every slot in the format has a part.
func (d *Data) IsComplete() bool { return len(d.parts) == len(d.format) }

// Add appends the next part in schema order. value's length must equal the
// slot's declared length, or be any non-zero length for a variable slot
// (the last slot only). Fails if the datablock is already complete or the
// running total would exceed 255 bytes.
func (d *Data) Add(value *bytesbuf.Buffer) error {
	if d.IsComplete() {
		return vaulterr.New(vaulterr.ChainhashDatablockAlreadyComplete, "datablock")
	}
	slot := d.format[len(d.parts)]
	if slot.Length == 0 {
		if value.Len() == 0 {
			return vaulterr.New(vaulterr.ChainhashDatapartInvalid, slot.Name)
		}
	} else if value.Len() != slot.Length {
		return vaulterr.New(vaulterr.ChainhashDatapartInvalid, slot.Name)
	}
	if d.Len()+value.Len() > maxDatablockLen {
		return vaulterr.New(vaulterr.ChainhashDatablockOutOfRange, "datablock")
	}
	d.parts = append(d.parts, part{name: slot.Name, value: value})
	return nil
}

// Len returns the total byte length of all parts added so far.
func (d *Data) Len() int {
	total := 0
	for _, p := range d.parts {
		total += p.value.Len()
	}
	return total
}

// Get looks up a part by name.
func (d *Data) Get(name string) (*bytesbuf.Buffer, error) {
	for _, p := range d.parts {
		if p.name == name {
			return p.value, nil
		}
	}
	return nil, vaulterr.New(vaulterr.ChainhashDatapartInvalid, name)
}

// Bytes returns the concatenation of all parts in schema order — the
// serialized datablock.
func (d *Data) Bytes() []byte {
	out := make([]byte, 0, d.Len())
	for _, p := range d.parts {
		out = append(out, p.value.Bytes()...)
	}
	return out
}

// Equal compares format and ordered parts.
func (d *Data) Equal(o *Data) bool {
	if len(d.format) != len(o.format) || len(d.parts) != len(o.parts) {
		return false
	}
	for i := range d.format {
		if d.format[i] != o.format[i] {
			return false
		}
	}
	for i := range d.parts {
		if d.parts[i].name != o.parts[i].name || !d.parts[i].value.Equal(o.parts[i].value) {
			return false
		}
	}
	return true
}
