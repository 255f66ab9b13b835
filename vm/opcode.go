package vm

import (
	"fmt"
	"strings"
)

// Opcode is the closed set of machine operations. The numeric values are
// part of the program digest and of the circuit's opcode selector.
type Opcode uint8

const (
	OpPush Opcode = iota + 1
	OpPop
	OpAdd
	OpSub
	OpMul
	OpJmp
	OpJz
	OpLoad
	OpStore
	OpHalt
)

// NumOpcodes is the number of selector slots the circuit allocates; slot 0
// is reserved and never active.
const NumOpcodes = int(OpHalt) + 1

type opInfo struct {
	name       string
	hasOperand bool
	pops       int
	pushes     int
}

var opTable = [NumOpcodes]opInfo{
	OpPush:  {"PUSH", true, 0, 1},
	OpPop:   {"POP", false, 1, 0},
	OpAdd:   {"ADD", false, 2, 1},
	OpSub:   {"SUB", false, 2, 1},
	OpMul:   {"MUL", false, 2, 1},
	OpJmp:   {"JMP", true, 0, 0},
	OpJz:    {"JZ", true, 1, 0},
	OpLoad:  {"LOAD", true, 0, 1},
	OpStore: {"STORE", true, 1, 0},
	OpHalt:  {"HALT", false, 0, 0},
}

// Opcodes lists every valid opcode in numeric order.
func Opcodes() []Opcode {
	ops := make([]Opcode, 0, NumOpcodes-1)
	for op := OpPush; op <= OpHalt; op++ {
		ops = append(ops, op)
	}
	return ops
}

func (op Opcode) Valid() bool {
	return op >= OpPush && op <= OpHalt
}

// HasOperand reports whether the instruction carries an immediate.
func (op Opcode) HasOperand() bool {
	return op.Valid() && opTable[op].hasOperand
}

// Pops is the number of stack elements the opcode consumes.
func (op Opcode) Pops() int {
	if !op.Valid() {
		return 0
	}
	return opTable[op].pops
}

// Pushes is the number of stack elements the opcode produces.
func (op Opcode) Pushes() int {
	if !op.Valid() {
		return 0
	}
	return opTable[op].pushes
}

func (op Opcode) String() string {
	if !op.Valid() {
		return fmt.Sprintf("Opcode(%d)", uint8(op))
	}
	return opTable[op].name
}

// ParseOpcode is case insensitive.
func ParseOpcode(s string) (Opcode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, op := range Opcodes() {
		if opTable[op].name == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOpcode, s)
}
