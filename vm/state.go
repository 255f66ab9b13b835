package vm

import (
	"fmt"
	"strings"

	"github.com/PolyhedraZK/ProvableVM/field"
)

// State is a full machine snapshot. Stack is ordered bottom to top.
type State struct {
	PC     int
	Stack  []field.Element
	Memory []field.Element
	Halted bool
}

// NewState is the empty state for cfg: pc 0, empty stack, zeroed memory.
func NewState(cfg Config) State {
	return State{Memory: make([]field.Element, cfg.MemorySize)}
}

// NewStateWith seeds the stack (bottom first) and the low memory cells.
func NewStateWith(cfg Config, stack []field.Element, memory []field.Element) State {
	s := NewState(cfg)
	s.Stack = append([]field.Element(nil), stack...)
	copy(s.Memory, memory)
	return s
}

func (s State) Clone() State {
	c := s
	c.Stack = append([]field.Element(nil), s.Stack...)
	c.Memory = append([]field.Element(nil), s.Memory...)
	return c
}

func (s State) Equal(o State) bool {
	if s.PC != o.PC || s.Halted != o.Halted || len(s.Stack) != len(o.Stack) || len(s.Memory) != len(o.Memory) {
		return false
	}
	for i := range s.Stack {
		if !s.Stack[i].Equal(&o.Stack[i]) {
			return false
		}
	}
	for i := range s.Memory {
		if !s.Memory[i].Equal(&o.Memory[i]) {
			return false
		}
	}
	return true
}

// Top returns the top of the stack, or zero when it is empty.
func (s State) Top() field.Element {
	if len(s.Stack) == 0 {
		return field.Zero()
	}
	return s.Stack[len(s.Stack)-1]
}

// Check reports whether s fits the shape of cfg.
func (s State) Check(cfg Config) error {
	if len(s.Stack) > cfg.StackDepth {
		return fmt.Errorf("%w: stack holds %d elements, depth is %d", ErrInvalidState, len(s.Stack), cfg.StackDepth)
	}
	if len(s.Memory) != cfg.MemorySize {
		return fmt.Errorf("%w: memory has %d cells, expected %d", ErrInvalidState, len(s.Memory), cfg.MemorySize)
	}
	if s.PC < 0 {
		return fmt.Errorf("%w: negative pc %d", ErrInvalidState, s.PC)
	}
	return nil
}

// Vector is the canonical encoding of s:
//
//	pc, sp, halted, stack top ... bottom, zero padding up to StackDepth, memory
//
// The state digest hashes exactly these values and the circuit's state
// variables are assigned from them, slot for slot.
func (s State) Vector(cfg Config) []field.Element {
	v := make([]field.Element, cfg.StateWidth())
	v[0] = field.FromUint64(uint64(s.PC))
	v[1] = field.FromUint64(uint64(len(s.Stack)))
	if s.Halted {
		v[2] = field.One()
	}
	for i := 0; i < len(s.Stack) && i < cfg.StackDepth; i++ {
		v[3+i] = s.Stack[len(s.Stack)-1-i]
	}
	copy(v[3+cfg.StackDepth:], s.Memory)
	return v
}

func (s State) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "pc=%d halted=%t stack=[", s.PC, s.Halted)
	for i, e := range s.Stack {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(field.String(e))
	}
	sb.WriteString("] mem=[")
	for i, e := range s.Memory {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(field.String(e))
	}
	sb.WriteByte(']')
	return sb.String()
}
