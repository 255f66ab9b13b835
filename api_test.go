package provablevm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PolyhedraZK/ProvableVM/commit"
	"github.com/PolyhedraZK/ProvableVM/field"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

var small = vm.Config{MaxSteps: 8, MaxProgramLen: 8, StackDepth: 4, MemorySize: 4}

func TestEngine(t *testing.T) {
	e, err := New(WithConfig(small), WithCacheSize(1))
	require.NoError(t, err)
	assert.Equal(t, small, e.Config())

	program := vm.Program{vm.Push(3), vm.Push(4), vm.Op(vm.OpAdd), vm.Halt}
	initial := vm.NewState(small)
	x, err := e.Execute(program, initial)
	require.NoError(t, err)
	assert.Equal(t, field.FromUint64(7), x.Output())
	assert.Equal(t, 4, x.Trace.Executed())
	assert.Equal(t, small.MaxSteps, x.Trace.Len())

	p, err := e.Prove(x)
	require.NoError(t, err)
	assert.Equal(t, x.Commitment, p.Public.TraceCommitment)
	assert.Equal(t, commit.State(small, initial), p.Public.InitialStateDigest)

	ok, err := e.Verify(p, program, initial, field.FromUint64(7))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Verify(p, program, initial, field.FromUint64(8))
	require.NoError(t, err)
	assert.False(t, ok)

	other := vm.Program{vm.Push(3), vm.Push(4), vm.Op(vm.OpMul), vm.Halt}
	ok, err = e.Verify(p, other, initial, field.FromUint64(7))
	require.NoError(t, err)
	assert.False(t, ok)

	seeded := vm.NewStateWith(small, nil, []field.Element{field.One()})
	ok, err = e.Verify(p, program, seeded, field.FromUint64(7))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.Verify(p, program, initial, field.FromUint64(7), WithCommitment(x.Commitment))
	require.NoError(t, err)
	assert.True(t, ok)

	wrong := field.One()
	wrong.Add(&wrong, &x.Commitment)
	ok, err = e.Verify(p, program, initial, field.FromUint64(7), WithCommitment(wrong))
	require.NoError(t, err)
	assert.False(t, ok)

	_, vk, err := e.Keys()
	require.NoError(t, err)
	ok, err = e.VerifyWithKey(vk, p, program, initial, field.FromUint64(7))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = e.Verify(p, vm.Program{vm.Push(1)}, initial, field.Zero())
	assert.ErrorIs(t, err, vm.ErrUnterminatedProgram)
}

func TestEngineExecutionErrors(t *testing.T) {
	e, err := New(WithConfig(small))
	require.NoError(t, err)

	_, err = e.Execute(vm.Program{vm.Op(vm.OpPop), vm.Halt}, vm.NewState(small))
	assert.ErrorIs(t, err, vm.ErrStackUnderflow)

	_, err = e.Execute(vm.Program{vm.Jmp(0)}, vm.NewState(small))
	assert.ErrorIs(t, err, vm.ErrTraceTooLong)
}

func TestEngineOptions(t *testing.T) {
	_, err := New(WithConfig(vm.Config{}))
	assert.Error(t, err)
	_, err = New(WithCacheSize(0))
	assert.Error(t, err)

	e, err := New()
	require.NoError(t, err)
	assert.Equal(t, vm.DefaultConfig(), e.Config())
}
