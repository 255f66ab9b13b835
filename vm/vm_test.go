package vm

import (
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PolyhedraZK/ProvableVM/field"
)

var small = Config{MaxSteps: 8, MaxProgramLen: 8, StackDepth: 4, MemorySize: 4}

func stackOf(vs ...int64) []field.Element {
	s := make([]field.Element, len(vs))
	for i, v := range vs {
		s[i] = field.FromInt64(v)
	}
	return s
}

func TestAddNumbers(t *testing.T) {
	program := Program{Push(3), Push(4), Op(OpAdd), Halt}
	final, trace, err := Execute(small, program, NewState(small))
	require.NoError(t, err)

	assert.Equal(t, stackOf(7), final.Stack)
	assert.True(t, final.Halted)
	assert.Equal(t, 3, final.PC)
	assert.Equal(t, 4, trace.Executed())
	require.Equal(t, small.MaxSteps, trace.Len())
	assert.True(t, trace.Final().Equal(final))
	assert.True(t, trace.Initial().Equal(NewState(small)))

	for i, s := range trace.Steps()[trace.Executed():] {
		assert.Equal(t, Halt, s.Instr, "padding row %d", i)
		assert.True(t, s.Pre.Equal(final))
		assert.True(t, s.Post.Equal(final))
	}
}

func TestStackUnderflow(t *testing.T) {
	final, trace, err := Execute(small, Program{Op(OpPop), Halt}, NewState(small))
	require.ErrorIs(t, err, ErrStackUnderflow)
	assert.Nil(t, trace)
	assert.True(t, final.Equal(State{}))

	var ee *ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 0, ee.Step)
	assert.Equal(t, OpPop, ee.Op)

	_, _, err = Execute(small, Program{Push(1), Op(OpMul), Halt}, NewState(small))
	require.ErrorIs(t, err, ErrStackUnderflow)
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 1, ee.Step)
}

func TestTraceTooLong(t *testing.T) {
	_, trace, err := Execute(small, Program{Jmp(0)}, NewState(small))
	require.ErrorIs(t, err, ErrTraceTooLong)
	assert.Nil(t, trace)

	var ee *ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, small.MaxSteps, ee.Step)
}

func TestStackOverflow(t *testing.T) {
	cfg := small
	cfg.StackDepth = 2
	_, _, err := Execute(cfg, Program{Push(1), Push(2), Push(3), Halt}, NewState(cfg))
	require.ErrorIs(t, err, ErrStackOverflow)
}

func TestFieldWraparound(t *testing.T) {
	final, _, err := Execute(small, Program{Push(0), Push(1), Op(OpSub), Halt}, NewState(small))
	require.NoError(t, err)
	assert.Equal(t, stackOf(-1), final.Stack)

	minusOne := field.FromInt64(-1)
	final, _, err = Execute(small, Program{PushElement(minusOne), Push(2), Op(OpAdd), Halt}, NewState(small))
	require.NoError(t, err)
	assert.Equal(t, stackOf(1), final.Stack)

	final, _, err = Execute(small, Program{PushElement(minusOne), PushElement(minusOne), Op(OpMul), Halt}, NewState(small))
	require.NoError(t, err)
	assert.Equal(t, stackOf(1), final.Stack)
}

func TestSubOperandOrder(t *testing.T) {
	final, _, err := Execute(small, Program{Push(10), Push(3), Op(OpSub), Halt}, NewState(small))
	require.NoError(t, err)
	assert.Equal(t, stackOf(7), final.Stack)
}

func TestJz(t *testing.T) {
	program := func(c uint64) Program {
		return Program{Push(c), Jz(3), Push(9), Halt}
	}

	final, trace, err := Execute(small, program(0), NewState(small))
	require.NoError(t, err)
	assert.Empty(t, final.Stack)
	assert.Equal(t, 3, trace.Executed())

	final, trace, err = Execute(small, program(5), NewState(small))
	require.NoError(t, err)
	assert.Equal(t, stackOf(9), final.Stack)
	assert.Equal(t, 4, trace.Executed())
}

func TestLoopWithMemory(t *testing.T) {
	// counts mem[0] down to zero, accumulating into mem[1]
	program := Program{
		Load(0),   // 0
		Jz(9),     // 1
		Load(1),   // 2
		Push(2),   // 3
		Op(OpAdd), // 4
		Store(1),  // 5
		Load(0),   // 6
		Jmp(10),   // 7
		Halt,      // 8
		Halt,      // 9
		Push(1),   // 10
		Op(OpSub), // 11
		Store(0),  // 12
		Jmp(0),    // 13
	}
	cfg := Config{MaxSteps: 64, MaxProgramLen: 16, StackDepth: 4, MemorySize: 2}
	initial := NewStateWith(cfg, nil, stackOf(3))
	final, trace, err := Execute(cfg, program, initial)
	require.NoError(t, err)
	assert.Equal(t, stackOf(0, 6), final.Memory)
	assert.Empty(t, final.Stack)
	assert.Equal(t, 9, final.PC)
	assert.Equal(t, 3*12+3, trace.Executed())
}

func TestMemoryOutOfBounds(t *testing.T) {
	_, _, err := Execute(small, Program{Load(4), Halt}, NewState(small))
	require.ErrorIs(t, err, ErrMemoryOutOfBounds)

	_, err = Apply(small, 2, Load(7), NewState(small))
	require.ErrorIs(t, err, ErrMemoryOutOfBounds)
}

func TestApplyDoesNotMutate(t *testing.T) {
	pre := NewStateWith(small, stackOf(1, 2), stackOf(5))
	before := pre.Clone()
	for _, ins := range []Instruction{Op(OpAdd), Op(OpPop), Push(3), Store(2), Load(0), Jz(0), Jmp(1), Halt} {
		_, err := Apply(small, 2, ins, pre)
		require.NoError(t, err, ins.String())
		require.True(t, pre.Equal(before), ins.String())
	}
}

func TestApplyErrors(t *testing.T) {
	pre := NewState(small)
	_, err := Apply(small, 2, Jmp(2), pre)
	assert.ErrorIs(t, err, ErrInvalidJumpTarget)
	_, err = Apply(small, 2, Instruction{Op: 42}, pre)
	assert.ErrorIs(t, err, ErrUnknownOpcode)
	pre.Halted = true
	_, err = Apply(small, 2, Halt, pre)
	assert.ErrorIs(t, err, ErrHalted)
}

func TestValidate(t *testing.T) {
	long := make(Program, small.MaxProgramLen+1)
	for i := range long {
		long[i] = Halt
	}
	tests := []struct {
		name    string
		program Program
		err     error
	}{
		{"empty", Program{}, ErrEmptyProgram},
		{"too long", long, ErrProgramTooLong},
		{"unknown opcode", Program{{Op: 0}, Halt}, ErrUnknownOpcode},
		{"operand on ADD", Program{{Op: OpAdd, Arg: field.One()}, Halt}, ErrUnexpectedOperand},
		{"jump past end", Program{Jmp(2), Halt}, ErrInvalidJumpTarget},
		{"huge jump", Program{{Op: OpJz, Arg: field.FromInt64(-1)}, Halt}, ErrInvalidJumpTarget},
		{"store out of range", Program{Push(1), Store(4), Halt}, ErrMemoryOutOfBounds},
		{"falls off the end", Program{Push(1)}, ErrUnterminatedProgram},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.program.Validate(small)
			require.ErrorIs(t, err, tt.err)
			var ee *ExecutionError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, -1, ee.Step)
		})
	}
	assert.NoError(t, Program{Jmp(0)}.Validate(small))
}

func TestInvalidInitialState(t *testing.T) {
	s := NewState(small)
	s.PC = 1
	_, _, err := Execute(small, Program{Halt}, s)
	assert.ErrorIs(t, err, ErrInvalidState)

	s = NewState(small)
	s.Memory = s.Memory[:2]
	_, _, err = Execute(small, Program{Halt}, s)
	assert.ErrorIs(t, err, ErrInvalidState)

	s = NewStateWith(small, stackOf(1, 2, 3, 4, 5), nil)
	_, _, err = Execute(small, Program{Halt}, s)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestMachineStep(t *testing.T) {
	m, err := New(small, Program{Push(1), Halt}, NewState(small))
	require.NoError(t, err)
	require.NoError(t, m.Step())
	assert.Equal(t, 1, m.State().PC)
	require.NoError(t, m.Step())
	assert.True(t, m.Halted())
	assert.ErrorIs(t, m.Step(), ErrHalted)
}

func TestStateVector(t *testing.T) {
	s := NewStateWith(small, stackOf(1, 2), stackOf(7))
	s.PC = 5
	s.Halted = true
	v := s.Vector(small)
	require.Len(t, v, small.StateWidth())
	assert.Equal(t, stackOf(5, 2, 1, 2, 1, 0, 0, 7, 0, 0, 0), v)
}

func TestOpcodeNames(t *testing.T) {
	for _, op := range Opcodes() {
		got, err := ParseOpcode(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, got)
	}
	_, err := ParseOpcode("NOP")
	assert.ErrorIs(t, err, ErrUnknownOpcode)
	op, err := ParseOpcode("halt")
	require.NoError(t, err)
	assert.Equal(t, OpHalt, op)
}

func TestTraceCBOR(t *testing.T) {
	program := Program{Push(3), PushElement(field.FromInt64(-4)), Op(OpMul), Store(1), Halt}
	_, trace, err := Execute(small, program, NewStateWith(small, stackOf(11), nil))
	require.NoError(t, err)

	data, err := EncodeTrace(small, trace)
	require.NoError(t, err)
	cfg, got, err := DecodeTrace(data)
	require.NoError(t, err)
	assert.Equal(t, small, cfg)
	require.Equal(t, trace.Len(), got.Len())
	assert.Equal(t, trace.Executed(), got.Executed())
	for i := range trace.Steps() {
		want, have := trace.Steps()[i], got.Steps()[i]
		assert.Equal(t, want.Instr, have.Instr)
		assert.True(t, want.Pre.Equal(have.Pre), "step %d", i)
		assert.True(t, want.Post.Equal(have.Post), "step %d", i)
	}

	again, err := EncodeTrace(cfg, got)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	_, _, err = DecodeTrace(data[:len(data)/2])
	assert.Error(t, err)
}

func TestTraceEncMode(t *testing.T) {
	assert.NotNil(t, traceEncMode)
	assert.Panics(t, func() { mustEncMode(cbor.EncOptions{Sort: cbor.SortMode(99)}) })
}
