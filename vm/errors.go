package vm

import (
	"errors"
	"fmt"
)

var (
	ErrStackUnderflow      = errors.New("stack underflow")
	ErrStackOverflow       = errors.New("stack overflow")
	ErrInvalidJumpTarget   = errors.New("invalid jump target")
	ErrMemoryOutOfBounds   = errors.New("memory address out of bounds")
	ErrTraceTooLong        = errors.New("trace exceeds maximum length")
	ErrUnknownOpcode       = errors.New("unknown opcode")
	ErrMissingOperand      = errors.New("missing operand")
	ErrUnexpectedOperand   = errors.New("unexpected operand")
	ErrEmptyProgram        = errors.New("empty program")
	ErrProgramTooLong      = errors.New("program exceeds maximum length")
	ErrUnterminatedProgram = errors.New("program does not end with HALT or JMP")
	ErrPCOutOfBounds       = errors.New("program counter out of bounds")
	ErrInvalidState        = errors.New("invalid machine state")
	ErrHalted              = errors.New("machine is halted")
)

// ExecutionError aborts a run. Step is the index of the trace row being
// executed, or -1 when the program was rejected before the first step.
type ExecutionError struct {
	Step int
	PC   int
	Op   Opcode
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("program rejected at instruction %d (%s): %v", e.PC, e.Op, e.Err)
	}
	return fmt.Sprintf("execution failed at step %d, pc %d (%s): %v", e.Step, e.PC, e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
