// Package loader reads programs in the text format:
//
//	# comment
//	PUSH 3
//	PUSH 0x04   # hex operand
//	ADD
//	HALT
//
// One instruction per line, opcode names are case insensitive and
// operands are decimal (optionally negative, taken modulo the field
// order) or 0x-prefixed hexadecimal.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PolyhedraZK/ProvableVM/field"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

// SyntaxError locates a parse failure.
type SyntaxError struct {
	Line int
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Parse reads a whole program. It only checks syntax; bounds are checked
// by vm.Program.Validate against a machine shape.
func Parse(r io.Reader) (vm.Program, error) {
	var p vm.Program
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		ins, err := parseInstruction(fields)
		if err != nil {
			return nil, &SyntaxError{Line: line, Err: err}
		}
		p = append(p, ins)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return nil, vm.ErrEmptyProgram
	}
	return p, nil
}

func parseInstruction(fields []string) (vm.Instruction, error) {
	op, err := vm.ParseOpcode(fields[0])
	if err != nil {
		return vm.Instruction{}, err
	}
	if !op.HasOperand() {
		if len(fields) > 1 {
			return vm.Instruction{}, fmt.Errorf("%w: %s takes no operand", vm.ErrUnexpectedOperand, op)
		}
		return vm.Op(op), nil
	}
	switch len(fields) {
	case 1:
		return vm.Instruction{}, fmt.Errorf("%w: %s", vm.ErrMissingOperand, op)
	case 2:
	default:
		return vm.Instruction{}, fmt.Errorf("%w: %s takes one operand", vm.ErrUnexpectedOperand, op)
	}
	arg, err := field.Parse(fields[1])
	if err != nil {
		return vm.Instruction{}, err
	}
	return vm.Instruction{Op: op, Arg: arg}, nil
}

// LoadFile parses the program stored at path.
func LoadFile(path string) (vm.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Format is the inverse of Parse.
func Format(w io.Writer, p vm.Program) error {
	for _, ins := range p {
		if _, err := fmt.Fprintln(w, ins.String()); err != nil {
			return err
		}
	}
	return nil
}
