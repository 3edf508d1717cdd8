package chainhash

import "github.com/nas-ai/vaultcrypt/internal/vaulterr"

// Mode tags one of the five chainhash variants, persisted in the header.
type Mode uint8

const (
	Normal            Mode = 1
	ConstantSalt      Mode = 2
	CountSalt         Mode = 3
	ConstantCountSalt Mode = 4
	Quadratic         Mode = 5
)

// MaxMode is the highest valid Mode tag; all modes from 1 to MaxMode are
// valid, mirroring the original's MAX_CHAINHASHMODE_NUMBER.
const MaxMode = Quadratic

// MinIterations and MaxIterations bound a ChainHash's iteration count.
const (
	MinIterations uint64 = 1
	MaxIterations uint64 = 1_000_000_000
	// StandardIterations is the suggested default for interactive setup.
	StandardIterations uint64 = 1000
)

func (m Mode) Valid() bool { return m >= Normal && m <= MaxMode }

// PartSpec names one slot of a mode's parameter schema. Length == 0 means
// variable length (only the last slot of a Format may be variable).
type PartSpec struct {
	Name   string
	Length int
}

// Format is the ordered schema for one chainhash mode's datablock.
type Format []PartSpec

// FormatFor returns the fixed schema for mode, per §3's table. Since the
// schema is fixed per mode, it is hard-coded here rather than parsed from
// the textual "<len>B <name>" grammar the original tooling used internally.
func FormatFor(mode Mode) (Format, error) {
	switch mode {
	case Normal:
		return Format{}, nil
	case ConstantSalt:
		return Format{{Name: "S", Length: 0}}, nil
	case CountSalt:
		return Format{{Name: "SN", Length: 8}}, nil
	case ConstantCountSalt:
		return Format{{Name: "SN", Length: 8}, {Name: "S", Length: 0}}, nil
	case Quadratic:
		return Format{
			{Name: "SN", Length: 8},
			{Name: "A", Length: 8},
			{Name: "B", Length: 8},
			{Name: "C", Length: 8},
		}, nil
	default:
		return nil, vaulterr.New(vaulterr.ChainhashModeInvalid, "mode")
	}
}
