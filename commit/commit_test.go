package commit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PolyhedraZK/ProvableVM/commit"
	"github.com/PolyhedraZK/ProvableVM/field"
	"github.com/PolyhedraZK/ProvableVM/test"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

func TestTraceCommitmentBinding(t *testing.T) {
	cfg := test.SmallConfig
	seen := make(map[field.Element]string)
	for seed := int64(1); seed <= 300; seed++ {
		g := test.NewProgramGenerator(cfg, seed)
		initial := g.State()
		program := g.Program(initial)
		_, trace, err := vm.Execute(cfg, program, initial)
		require.NoError(t, err)

		c, err := commit.Trace(cfg, trace)
		require.NoError(t, err)
		again, err := commit.Trace(cfg, trace)
		require.NoError(t, err)
		require.Equal(t, c, again)

		data, err := vm.EncodeTrace(cfg, trace)
		require.NoError(t, err)
		key := string(data)
		if prev, ok := seen[c]; ok {
			require.Equal(t, prev, key, "distinct traces share commitment %s", field.String(c))
		}
		seen[c] = key
	}
	assert.Greater(t, len(seen), 100)
}

func TestTraceCommitmentPadding(t *testing.T) {
	cfg := test.SmallConfig
	program := vm.Program{vm.Push(3), vm.Push(4), vm.Op(vm.OpAdd), vm.Halt}
	_, trace, err := vm.Execute(cfg, program, vm.NewState(cfg))
	require.NoError(t, err)

	unpadded, err := vm.NewTrace(trace.Steps()[:trace.Executed()], trace.Executed())
	require.NoError(t, err)
	a, err := commit.Trace(cfg, trace)
	require.NoError(t, err)
	b, err := commit.Trace(cfg, unpadded)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, trace.Executed(), unpadded.Len(), "padding a copy leaves the input alone")

	longer := cfg
	longer.MaxSteps++
	c, err := commit.Trace(longer, trace)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	shorter := cfg
	shorter.MaxSteps = trace.Len() - 1
	_, err = commit.Trace(shorter, trace)
	assert.ErrorIs(t, err, commit.ErrTraceTooLong)

	_, err = commit.Trace(cfg, nil)
	assert.ErrorIs(t, err, commit.ErrEmptyTrace)
}

func TestTraceCommitmentSensitivity(t *testing.T) {
	cfg := test.SmallConfig
	program := vm.Program{vm.Push(3), vm.Push(4), vm.Op(vm.OpAdd), vm.Halt}
	_, trace, err := vm.Execute(cfg, program, vm.NewState(cfg))
	require.NoError(t, err)
	base, err := commit.Trace(cfg, trace)
	require.NoError(t, err)

	steps := trace.Steps()
	for i := range steps {
		tampered := make([]vm.Step, len(steps))
		copy(tampered, steps)
		s := tampered[i]
		s.Post = s.Post.Clone()
		s.Post.Memory[0] = field.FromUint64(99)
		s.Pre = s.Pre.Clone()
		s.Pre.Memory[0] = field.FromUint64(99)
		tampered[i] = s
		tr, err := vm.NewTrace(tampered, trace.Executed())
		require.NoError(t, err)
		c, err := commit.Trace(cfg, tr)
		require.NoError(t, err)
		assert.NotEqual(t, base, c, "row %d", i)
	}
}

func TestStateDigest(t *testing.T) {
	cfg := test.SmallConfig
	empty := commit.State(cfg, vm.NewState(cfg))

	variants := []func(*vm.State){
		func(s *vm.State) { s.PC = 1 },
		func(s *vm.State) { s.Halted = true },
		func(s *vm.State) { s.Stack = append(s.Stack, field.Zero()) },
		func(s *vm.State) { s.Stack = append(s.Stack, field.One()) },
		func(s *vm.State) { s.Memory[3] = field.One() },
	}
	seen := map[field.Element]int{empty: -1}
	for i, f := range variants {
		s := vm.NewState(cfg)
		f(&s)
		d := commit.State(cfg, s)
		_, dup := seen[d]
		assert.False(t, dup, "variant %d", i)
		seen[d] = i
	}
}

func TestProgramDigest(t *testing.T) {
	cfg := test.SmallConfig
	a, err := commit.Program(cfg, vm.Program{vm.Halt})
	require.NoError(t, err)
	b, err := commit.Program(cfg, vm.Program{vm.Halt, vm.Halt})
	require.NoError(t, err)
	c, err := commit.Program(cfg, vm.Program{vm.Push(1), vm.Halt})
	require.NoError(t, err)
	d, err := commit.Program(cfg, vm.Program{vm.Push(2), vm.Halt})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, c, d)

	_, err = commit.Program(cfg, make(vm.Program, cfg.MaxProgramLen+1))
	assert.ErrorIs(t, err, commit.ErrProgramTooLong)
}
