package circuit_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PolyhedraZK/ProvableVM/circuit"
	"github.com/PolyhedraZK/ProvableVM/commit"
	"github.com/PolyhedraZK/ProvableVM/field"
	"github.com/PolyhedraZK/ProvableVM/test"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

type run struct {
	cfg     vm.Config
	program vm.Program
	initial vm.State
	final   vm.State
	trace   *vm.Trace
	cm      field.Element
}

func execute(t *testing.T, program vm.Program) run {
	cfg := test.SmallConfig
	initial := vm.NewState(cfg)
	final, trace, err := vm.Execute(cfg, program, initial)
	require.NoError(t, err)
	cm, err := commit.Trace(cfg, trace)
	require.NoError(t, err)
	return run{cfg, program, initial, final, trace, cm}
}

func (r run) build() (*circuit.Instance, error) {
	return circuit.Build(r.cfg, r.program, r.trace, r.cm, circuit.PublicIO{Initial: r.initial, Final: r.final})
}

// withSteps rebuilds the trace from edited steps and recommits it, so only
// the edit itself can be at fault.
func (r run) withSteps(t *testing.T, edit func([]vm.Step)) run {
	steps := make([]vm.Step, r.trace.Len())
	for i, s := range r.trace.Steps() {
		steps[i] = vm.Step{Pre: s.Pre.Clone(), Instr: s.Instr, Post: s.Post.Clone()}
	}
	edit(steps)
	tr, err := vm.NewTrace(steps, r.trace.Executed())
	require.NoError(t, err)
	r.trace = tr
	r.cm, err = commit.Trace(r.cfg, tr)
	require.NoError(t, err)
	return r
}

func requireArithmetizationError(t *testing.T, err error, kind error, step int) {
	t.Helper()
	require.ErrorIs(t, err, kind)
	var ae *circuit.ArithmetizationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, step, ae.Step)
}

func TestBuild(t *testing.T) {
	r := execute(t, addNumbers)
	inst, err := r.build()
	require.NoError(t, err)
	assert.Equal(t, r.cfg, inst.Config)
	assert.Equal(t, field.FromUint64(7), inst.Public.Output)

	w, err := inst.PublicWitness()
	require.NoError(t, err)
	pw, err := inst.Public.Witness(r.cfg)
	require.NoError(t, err)
	a, err := w.MarshalBinary()
	require.NoError(t, err)
	b, err := pw.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildShapeMismatch(t *testing.T) {
	r := execute(t, addNumbers)

	short, err := vm.NewTrace(r.trace.Steps()[:r.trace.Executed()], r.trace.Executed())
	require.NoError(t, err)
	_, err = circuit.Build(r.cfg, r.program, short, r.cm, circuit.PublicIO{Initial: r.initial, Final: r.final})
	requireArithmetizationError(t, err, circuit.ErrShapeMismatch, -1)

	_, err = circuit.Build(r.cfg, r.program, nil, r.cm, circuit.PublicIO{Initial: r.initial, Final: r.final})
	requireArithmetizationError(t, err, circuit.ErrShapeMismatch, -1)

	other := r.cfg
	other.MemorySize++
	_, err = circuit.Build(other, r.program, r.trace, r.cm, circuit.PublicIO{Initial: vm.NewState(other), Final: r.final})
	requireArithmetizationError(t, err, circuit.ErrShapeMismatch, -1)
}

func TestBuildCommitmentMismatch(t *testing.T) {
	r := execute(t, addNumbers)
	r.cm = field.FromUint64(1)
	_, err := r.build()
	requireArithmetizationError(t, err, circuit.ErrCommitmentMismatch, -1)

	other := execute(t, vm.Program{vm.Push(3), vm.Push(4), vm.Op(vm.OpMul), vm.Halt})
	r = execute(t, addNumbers)
	r.cm = other.cm
	_, err = r.build()
	requireArithmetizationError(t, err, circuit.ErrCommitmentMismatch, -1)
}

func TestBuildBoundaryMismatch(t *testing.T) {
	r := execute(t, addNumbers)
	r.final = vm.NewStateWith(r.cfg, []field.Element{field.FromUint64(8)}, nil)
	r.final.PC = 3
	r.final.Halted = true
	_, err := r.build()
	requireArithmetizationError(t, err, circuit.ErrBoundaryMismatch, 3)

	r = execute(t, addNumbers)
	r.initial = vm.NewStateWith(r.cfg, []field.Element{field.FromUint64(1)}, nil)
	_, err = r.build()
	requireArithmetizationError(t, err, circuit.ErrBoundaryMismatch, 0)
}

func TestBuildTransitionViolation(t *testing.T) {
	r := execute(t, addNumbers)

	// claims 3 + 4 = 8 consistently from step 2 on
	bad := r.withSteps(t, func(steps []vm.Step) {
		eight := []field.Element{field.FromUint64(8)}
		steps[2].Post.Stack = eight
		for i := 3; i < len(steps); i++ {
			steps[i].Pre.Stack = eight
			steps[i].Post.Stack = eight
		}
	})
	bad.final = bad.trace.Final()
	_, err := bad.build()
	requireArithmetizationError(t, err, circuit.ErrTransitionViolation, 2)

	// runs a different instruction than the program holds
	bad = r.withSteps(t, func(steps []vm.Step) {
		steps[0].Instr = vm.Push(5)
		steps[0].Post.Stack = []field.Element{field.FromUint64(5)}
	})
	_, err = bad.build()
	requireArithmetizationError(t, err, circuit.ErrTransitionViolation, 0)

	// a break in the chain of states
	bad = r.withSteps(t, func(steps []vm.Step) {
		steps[1].Pre.Memory[0] = field.One()
	})
	_, err = bad.build()
	requireArithmetizationError(t, err, circuit.ErrTransitionViolation, 1)

	// padding that is not HALT
	bad = r.withSteps(t, func(steps []vm.Step) {
		steps[len(steps)-1].Instr = vm.Op(vm.OpPop)
	})
	_, err = bad.build()
	requireArithmetizationError(t, err, circuit.ErrTransitionViolation, r.cfg.MaxSteps-1)
}

func TestBuildReportsLowestRow(t *testing.T) {
	r := execute(t, addNumbers)
	bad := r.withSteps(t, func(steps []vm.Step) {
		steps[1].Pre.Memory[0] = field.One()
		steps[len(steps)-2].Instr = vm.Op(vm.OpPop)
		steps[len(steps)-1].Instr = vm.Op(vm.OpPop)
	})
	for i := 0; i < 20; i++ {
		_, err := bad.build()
		requireArithmetizationError(t, err, circuit.ErrTransitionViolation, 1)
	}
}

func TestBuildRejectsInvalidProgram(t *testing.T) {
	r := execute(t, addNumbers)
	r.program = vm.Program{vm.Push(3), vm.Push(4), vm.Op(vm.OpAdd)}
	_, err := r.build()
	requireArithmetizationError(t, err, circuit.ErrShapeMismatch, -1)
	assert.ErrorIs(t, err, vm.ErrUnterminatedProgram)
}
