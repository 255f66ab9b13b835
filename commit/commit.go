// Package commit computes the digests that tie a proof to a program, a
// pair of boundary states and an execution trace.
//
// All digests are sequential MiMC over BN254 scalar field elements, the
// same permutation gnark's std/hash/mimc evaluates inside the circuit, so
// every value here can be recomputed from witness variables. Each digest
// starts with a domain tag so the three kinds of input never collide.
//
//	D(s)       = MiMC(TagState, pc, sp, halted, stack top..bottom, 0-pad, memory)
//	Program(p) = MiMC(TagProgram, len, op_0, arg_0, ..., op_{P-1}, arg_{P-1})
//	Trace(t)   = MiMC(TagTrace, N, op_i, arg_i, D(pre_i) for i < N, D(post_{N-1}))
//
// Programs are padded with HALT/0 up to P slots and traces are padded with
// HALT steps on the final state up to N rows before hashing, so a logical
// execution has exactly one commitment.
package commit

import (
	"errors"
	"fmt"
	"hash"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"github.com/PolyhedraZK/ProvableVM/field"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

// Domain tags, hashed as the first block of each digest.
const (
	TagState   = 0x5354
	TagProgram = 0x5047
	TagTrace   = 0x5452
)

var (
	ErrProgramTooLong = errors.New("program does not fit the configured slots")
	ErrTraceTooLong   = errors.New("trace does not fit the configured rows")
	ErrEmptyTrace     = errors.New("empty trace")
)

type hasher struct {
	h hash.Hash
}

func newHasher(tag uint64) *hasher {
	h := &hasher{h: mimc.NewMiMC()}
	h.write(field.FromUint64(tag))
	return h
}

func (h *hasher) write(es ...field.Element) {
	for i := range es {
		b := field.ToBytes(es[i])
		// canonical blocks are always accepted
		_, _ = h.h.Write(b[:])
	}
}

func (h *hasher) sum() field.Element {
	var e field.Element
	e.SetBytes(h.h.Sum(nil))
	return e
}

// State is the digest of a machine state.
func State(cfg vm.Config, s vm.State) field.Element {
	h := newHasher(TagState)
	h.write(s.Vector(cfg)...)
	return h.sum()
}

// Program is the digest of p padded to cfg.MaxProgramLen.
func Program(cfg vm.Config, p vm.Program) (field.Element, error) {
	if len(p) > cfg.MaxProgramLen {
		return field.Element{}, fmt.Errorf("%w: %d > %d", ErrProgramTooLong, len(p), cfg.MaxProgramLen)
	}
	h := newHasher(TagProgram)
	h.write(field.FromUint64(uint64(len(p))))
	for _, ins := range p.Padded(cfg.MaxProgramLen) {
		h.write(field.FromUint64(uint64(ins.Op)), ins.Arg)
	}
	return h.sum(), nil
}

// Trace is the commitment to t padded to cfg.MaxSteps rows. t itself is
// left untouched.
func Trace(cfg vm.Config, t *vm.Trace) (field.Element, error) {
	if t == nil || t.Len() == 0 {
		return field.Element{}, ErrEmptyTrace
	}
	if t.Len() > cfg.MaxSteps {
		return field.Element{}, fmt.Errorf("%w: %d > %d", ErrTraceTooLong, t.Len(), cfg.MaxSteps)
	}
	if t.Len() < cfg.MaxSteps {
		t = t.Padded(cfg.MaxSteps)
	}
	steps := t.Steps()
	h := newHasher(TagTrace)
	h.write(field.FromUint64(uint64(cfg.MaxSteps)))
	for _, s := range steps {
		h.write(field.FromUint64(uint64(s.Instr.Op)), s.Instr.Arg, State(cfg, s.Pre))
	}
	h.write(State(cfg, steps[len(steps)-1].Post))
	return h.sum(), nil
}
