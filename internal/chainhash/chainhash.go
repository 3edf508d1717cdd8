// Package chainhash implements the five deterministic password-stretching
// functions the file header selects by mode tag (§3/§4.3 of the spec this
// module implements). Each iterates a Hash, optionally mixing in a
// deterministic salt derived from the chainhash's datablock.
package chainhash

import (
	"strconv"
	"time"

	"github.com/nas-ai/vaultcrypt/internal/bytesbuf"
	"github.com/nas-ai/vaultcrypt/internal/hashing"
	"github.com/nas-ai/vaultcrypt/internal/vaulterr"
)

// ChainHash is a validated (mode, iterations, datablock) tuple ready to run.
type ChainHash struct {
	Mode       Mode
	Iterations uint64
	Data       *Data
}

// New returns a ChainHash wrapping the given parameters. Use Validate (or
// call Run/RunString/RunTimed, which validate internally) to check it.
func New(mode Mode, iterations uint64, data *Data) *ChainHash {
	return &ChainHash{Mode: mode, Iterations: iterations, Data: data}
}

// Validate checks every invariant from §3: mode in range, iterations in
// bounds, datablock complete against the mode's format and no longer than
// 255 bytes.
func (c *ChainHash) Validate() error {
	if !c.Mode.Valid() {
		return vaulterr.New(vaulterr.ChainhashModeInvalid, "mode")
	}
	if c.Iterations < MinIterations || c.Iterations > MaxIterations {
		return vaulterr.New(vaulterr.IterationsInvalid, "iterations")
	}
	wantFormat, err := FormatFor(c.Mode)
	if err != nil {
		return err
	}
	if c.Data == nil {
		return vaulterr.New(vaulterr.DatablockNotComplete, "datablock")
	}
	if len(c.Data.format) != len(wantFormat) {
		return vaulterr.New(vaulterr.ChainhashFormatInvalid, "datablock")
	}
	for i := range wantFormat {
		if c.Data.format[i] != wantFormat[i] {
			return vaulterr.New(vaulterr.ChainhashFormatInvalid, "datablock")
		}
	}
	if !c.Data.IsComplete() {
		return vaulterr.New(vaulterr.DatablockNotComplete, "datablock")
	}
	if c.Data.Len() > maxDatablockLen {
		return vaulterr.New(vaulterr.DatablockTooLong, "datablock")
	}
	return nil
}

// Run executes the chainhash over raw input bytes.
func (c *ChainHash) Run(h hashing.Hash, input []byte) (*bytesbuf.Buffer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Mode {
	case Normal:
		return runNormal(h, input, c.Iterations), nil
	case ConstantSalt:
		salt, _ := c.Data.Get("S")
		return runConstantSalt(h, input, c.Iterations, salt.Bytes()), nil
	case CountSalt:
		snBuf, _ := c.Data.Get("SN")
		start, _ := snBuf.ToLong()
		return runCountSalt(h, input, c.Iterations, start), nil
	case ConstantCountSalt:
		snBuf, _ := c.Data.Get("SN")
		start, _ := snBuf.ToLong()
		salt, _ := c.Data.Get("S")
		return runConstantCountSalt(h, input, c.Iterations, start, salt.Bytes()), nil
	case Quadratic:
		snBuf, _ := c.Data.Get("SN")
		aBuf, _ := c.Data.Get("A")
		bBuf, _ := c.Data.Get("B")
		cBuf, _ := c.Data.Get("C")
		start, _ := snBuf.ToLong()
		a, _ := aBuf.ToLong()
		b, _ := bBuf.ToLong()
		cc, _ := cBuf.ToLong()
		return runQuadratic(h, input, c.Iterations, start, a, b, cc), nil
	default:
		return nil, vaulterr.New(vaulterr.ChainhashModeInvalid, "mode")
	}
}

// RunString hashes s's UTF-8 bytes. Must agree with Run on []byte(s).
func (c *ChainHash) RunString(h hashing.Hash, s string) (*bytesbuf.Buffer, error) {
	return c.Run(h, []byte(s))
}

// TimedResult is the outcome of a budgeted chainhash run: how many
// iterations actually completed, and the resulting digest. A non-timed
// re-run with Iterations set to this count reproduces Result bit-for-bit.
type TimedResult struct {
	Iterations uint64
	Result     *bytesbuf.Buffer
}

// RunTimed runs at least one iteration of this chainhash's mode/datablock
// and continues until elapsed wall-clock exceeds budget, checking the clock
// between whole iterations only (never mid-iteration). There is no target
// iteration count; MaxIterations caps the run.
func RunTimed(mode Mode, data *Data, h hashing.Hash, input []byte, budget time.Duration) (*TimedResult, error) {
	probe := New(mode, MinIterations, data)
	if err := probe.Validate(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(budget)
	state := newChainState(mode, data)

	var iterations uint64 = 1
	result := state.first(h, input)
	for iterations < MaxIterations && time.Now().Before(deadline) {
		result = state.next(h, result)
		iterations++
	}
	return &TimedResult{Iterations: iterations, Result: result}, nil
}

// RunDeadline runs c's full Iterations count (unlike RunTimed, which has no
// target count and runs until budget expires), but checks the wall clock
// against deadline between whole iterations only. If the deadline passes
// before the run completes, it returns done=false and a nil result rather
// than a truncated digest — the caller (verify_password's timeout path,
// §4.9 step 4) must discard it, since the password may still be correct.
func (c *ChainHash) RunDeadline(h hashing.Hash, input []byte, deadline time.Time) (result *bytesbuf.Buffer, done bool, err error) {
	if err := c.Validate(); err != nil {
		return nil, false, err
	}
	state := newChainState(c.Mode, c.Data)
	ret := state.first(h, input)
	var i uint64 = 1
	for i < c.Iterations {
		if !time.Now().Before(deadline) {
			return nil, false, nil
		}
		ret = state.next(h, ret)
		i++
	}
	return ret, true, nil
}

// --- algorithm implementations -------------------------------------------

func asciiCounter(n uint64) []byte {
	return []byte(strconv.FormatUint(n, 10))
}

func runNormal(h hashing.Hash, input []byte, iters uint64) *bytesbuf.Buffer {
	ret := h.Sum(input)
	for i := uint64(1); i < iters; i++ {
		ret = h.Sum(ret.Bytes())
	}
	return ret
}

func runConstantSalt(h hashing.Hash, input []byte, iters uint64, salt []byte) *bytesbuf.Buffer {
	ret := h.Sum(concat(input, salt))
	hs := h.Sum(salt)
	for i := uint64(1); i < iters; i++ {
		ret = h.Sum(concat(ret.Bytes(), hs.Bytes()))
	}
	return ret
}

func runCountSalt(h hashing.Hash, input []byte, iters uint64, start uint64) *bytesbuf.Buffer {
	counter := start
	ret := h.Sum(concat(input, asciiCounter(counter)))
	for i := uint64(1); i < iters; i++ {
		counter++
		hs := h.Sum(asciiCounter(counter))
		ret = h.Sum(concat(ret.Bytes(), hs.Bytes()))
	}
	return ret
}

func runConstantCountSalt(h hashing.Hash, input []byte, iters uint64, start uint64, salt []byte) *bytesbuf.Buffer {
	counter := start
	ret := h.Sum(concat(input, salt, asciiCounter(counter)))
	hs := h.Sum(salt)
	for i := uint64(1); i < iters; i++ {
		counter++
		hcount := h.Sum(asciiCounter(counter))
		ret = h.Sum(concat(ret.Bytes(), hs.Bytes(), hcount.Bytes()))
	}
	return ret
}

func quadratic(a, b, c, k uint64) uint64 {
	return a*k*k + b*k + c
}

func runQuadratic(h hashing.Hash, input []byte, iters uint64, start, a, b, c uint64) *bytesbuf.Buffer {
	counter := start
	ret := h.Sum(concat(input, asciiCounter(quadratic(a, b, c, counter))))
	for i := uint64(1); i < iters; i++ {
		counter++
		hs := h.Sum(asciiCounter(quadratic(a, b, c, counter)))
		ret = h.Sum(concat(ret.Bytes(), hs.Bytes()))
	}
	return ret
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

// chainState drives RunTimed one iteration at a time, mirroring the loop
// bodies above without knowing the total iteration count in advance.
type chainState struct {
	mode           Mode
	start, a, b, c uint64
	salt           []byte
	hashedSalt     *bytesbuf.Buffer
	counter        uint64
}

func newChainState(mode Mode, data *Data) *chainState {
	s := &chainState{mode: mode}
	switch mode {
	case ConstantSalt:
		salt, _ := data.Get("S")
		s.salt = salt.Bytes()
	case CountSalt:
		sn, _ := data.Get("SN")
		s.start, _ = sn.ToLong()
		s.counter = s.start
	case ConstantCountSalt:
		sn, _ := data.Get("SN")
		s.start, _ = sn.ToLong()
		s.counter = s.start
		salt, _ := data.Get("S")
		s.salt = salt.Bytes()
	case Quadratic:
		sn, _ := data.Get("SN")
		aBuf, _ := data.Get("A")
		bBuf, _ := data.Get("B")
		cBuf, _ := data.Get("C")
		s.start, _ = sn.ToLong()
		s.a, _ = aBuf.ToLong()
		s.b, _ = bBuf.ToLong()
		s.c, _ = cBuf.ToLong()
		s.counter = s.start
	}
	return s
}

func (s *chainState) first(h hashing.Hash, input []byte) *bytesbuf.Buffer {
	switch s.mode {
	case Normal:
		return h.Sum(input)
	case ConstantSalt:
		s.hashedSalt = h.Sum(s.salt)
		return h.Sum(concat(input, s.salt))
	case CountSalt:
		return h.Sum(concat(input, asciiCounter(s.counter)))
	case ConstantCountSalt:
		s.hashedSalt = h.Sum(s.salt)
		return h.Sum(concat(input, s.salt, asciiCounter(s.counter)))
	case Quadratic:
		return h.Sum(concat(input, asciiCounter(quadratic(s.a, s.b, s.c, s.counter))))
	default:
		return h.Sum(input)
	}
}

func (s *chainState) next(h hashing.Hash, prev *bytesbuf.Buffer) *bytesbuf.Buffer {
	switch s.mode {
	case Normal:
		return h.Sum(prev.Bytes())
	case ConstantSalt:
		return h.Sum(concat(prev.Bytes(), s.hashedSalt.Bytes()))
	case CountSalt:
		s.counter++
		hs := h.Sum(asciiCounter(s.counter))
		return h.Sum(concat(prev.Bytes(), hs.Bytes()))
	case ConstantCountSalt:
		s.counter++
		hcount := h.Sum(asciiCounter(s.counter))
		return h.Sum(concat(prev.Bytes(), s.hashedSalt.Bytes(), hcount.Bytes()))
	case Quadratic:
		s.counter++
		hs := h.Sum(asciiCounter(quadratic(s.a, s.b, s.c, s.counter)))
		return h.Sum(concat(prev.Bytes(), hs.Bytes()))
	default:
		return h.Sum(prev.Bytes())
	}
}
