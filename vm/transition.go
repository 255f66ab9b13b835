package vm

import (
	"fmt"

	"github.com/PolyhedraZK/ProvableVM/field"
)

// Apply is the transition function: the state after executing ins in pre.
// It never mutates pre. codeLen bounds jump targets.
//
// The circuit encodes exactly this relation, so any change here must be
// mirrored in circuit.ExecutionCircuit.
func Apply(cfg Config, codeLen int, ins Instruction, pre State) (State, error) {
	if pre.Halted {
		return State{}, ErrHalted
	}
	if !ins.Op.Valid() {
		return State{}, ErrUnknownOpcode
	}
	if len(pre.Stack) < ins.Op.Pops() {
		return State{}, ErrStackUnderflow
	}
	if len(pre.Stack)-ins.Op.Pops()+ins.Op.Pushes() > cfg.StackDepth {
		return State{}, ErrStackOverflow
	}

	post := pre.Clone()
	post.PC = pre.PC + 1

	switch ins.Op {
	case OpPush:
		post.push(ins.Arg)
	case OpPop:
		post.pop()
	case OpAdd, OpSub, OpMul:
		a := post.pop()
		b := post.pop()
		var r field.Element
		switch ins.Op {
		case OpAdd:
			r.Add(&b, &a)
		case OpSub:
			r.Sub(&b, &a)
		default:
			r.Mul(&b, &a)
		}
		post.push(r)
	case OpJmp:
		t, err := jumpTarget(ins.Arg, codeLen)
		if err != nil {
			return State{}, err
		}
		post.PC = t
	case OpJz:
		t, err := jumpTarget(ins.Arg, codeLen)
		if err != nil {
			return State{}, err
		}
		if c := post.pop(); c.IsZero() {
			post.PC = t
		}
	case OpLoad:
		a, err := address(ins.Arg, cfg.MemorySize)
		if err != nil {
			return State{}, err
		}
		post.push(post.Memory[a])
	case OpStore:
		a, err := address(ins.Arg, cfg.MemorySize)
		if err != nil {
			return State{}, err
		}
		post.Memory[a] = post.pop()
	case OpHalt:
		post.PC = pre.PC
		post.Halted = true
	default:
		return State{}, ErrUnknownOpcode
	}
	return post, nil
}

func jumpTarget(arg field.Element, codeLen int) (int, error) {
	t, ok := field.Small(arg)
	if !ok || t >= codeLen {
		return 0, fmt.Errorf("%w: %s", ErrInvalidJumpTarget, field.String(arg))
	}
	return t, nil
}

func address(arg field.Element, size int) (int, error) {
	a, ok := field.Small(arg)
	if !ok || a >= size {
		return 0, fmt.Errorf("%w: %s", ErrMemoryOutOfBounds, field.String(arg))
	}
	return a, nil
}

func (s *State) push(v field.Element) {
	s.Stack = append(s.Stack, v)
}

func (s *State) pop() field.Element {
	v := s.Stack[len(s.Stack)-1]
	s.Stack = s.Stack[:len(s.Stack)-1]
	return v
}
