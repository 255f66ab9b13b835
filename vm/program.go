package vm

import (
	"fmt"
	"strings"

	"github.com/PolyhedraZK/ProvableVM/field"
)

// Instruction is an opcode with its immediate. Arg is zero for opcodes
// that take no operand.
type Instruction struct {
	Op  Opcode
	Arg field.Element
}

func Push(v uint64) Instruction { return Instruction{Op: OpPush, Arg: field.FromUint64(v)} }
func Jmp(t int) Instruction { return Instruction{Op: OpJmp, Arg: field.FromUint64(uint64(t))} }
func Jz(t int) Instruction { return Instruction{Op: OpJz, Arg: field.FromUint64(uint64(t))} }
func Load(addr int) Instruction { return Instruction{Op: OpLoad, Arg: field.FromUint64(uint64(addr))} }
func Store(addr int) Instruction { return Instruction{Op: OpStore, Arg: field.FromUint64(uint64(addr))} }
func Op(op Opcode) Instruction { return Instruction{Op: op} }
func PushElement(v field.Element) Instruction { return Instruction{Op: OpPush, Arg: v} }

func (ins Instruction) String() string {
	if ins.Op.HasOperand() {
		return ins.Op.String() + " " + field.String(ins.Arg)
	}
	return ins.Op.String()
}

// Program is indexed by program counter.
type Program []Instruction

// Halt is the instruction that pads programs up to Config.MaxProgramLen.
var Halt = Instruction{Op: OpHalt}

// Validate performs the static checks shared by the machine, the
// arithmetizer and the verifier. The returned error is an
// *ExecutionError with Step -1 naming the first offending instruction.
func (p Program) Validate(cfg Config) error {
	if len(p) == 0 {
		return &ExecutionError{Step: -1, Err: ErrEmptyProgram}
	}
	if len(p) > cfg.MaxProgramLen {
		return &ExecutionError{Step: -1, PC: cfg.MaxProgramLen, Op: p[cfg.MaxProgramLen].Op,
			Err: fmt.Errorf("%w: %d > %d", ErrProgramTooLong, len(p), cfg.MaxProgramLen)}
	}
	for pc, ins := range p {
		if err := ins.validate(cfg, len(p)); err != nil {
			return &ExecutionError{Step: -1, PC: pc, Op: ins.Op, Err: err}
		}
	}
	last := p[len(p)-1]
	if last.Op != OpHalt && last.Op != OpJmp {
		return &ExecutionError{Step: -1, PC: len(p) - 1, Op: last.Op, Err: ErrUnterminatedProgram}
	}
	return nil
}

func (ins Instruction) validate(cfg Config, codeLen int) error {
	if !ins.Op.Valid() {
		return ErrUnknownOpcode
	}
	if !ins.Op.HasOperand() {
		if !ins.Arg.IsZero() {
			return ErrUnexpectedOperand
		}
		return nil
	}
	switch ins.Op {
	case OpJmp, OpJz:
		if t, ok := field.Small(ins.Arg); !ok || t >= codeLen {
			return fmt.Errorf("%w: %s", ErrInvalidJumpTarget, field.String(ins.Arg))
		}
	case OpLoad, OpStore:
		if a, ok := field.Small(ins.Arg); !ok || a >= cfg.MemorySize {
			return fmt.Errorf("%w: %s", ErrMemoryOutOfBounds, field.String(ins.Arg))
		}
	}
	return nil
}

// Padded returns the program extended with HALT up to n instructions, the
// layout the circuit's program table uses.
func (p Program) Padded(n int) Program {
	out := make(Program, n)
	copy(out, p)
	for i := len(p); i < n; i++ {
		out[i] = Halt
	}
	return out
}

func (p Program) String() string {
	var sb strings.Builder
	for pc, ins := range p {
		fmt.Fprintf(&sb, "%3d: %s\n", pc, ins)
	}
	return sb.String()
}
