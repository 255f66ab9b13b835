// Package test holds helpers shared by the tests of the other packages.
package test

import (
	"testing"

	gnarktest "github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"

	"github.com/PolyhedraZK/ProvableVM/circuit"
	"github.com/PolyhedraZK/ProvableVM/commit"
	"github.com/PolyhedraZK/ProvableVM/field"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

// SmallConfig keeps circuits small enough for unit tests.
var SmallConfig = vm.Config{MaxSteps: 8, MaxProgramLen: 8, StackDepth: 4, MemorySize: 4}

type Assert struct {
	*require.Assertions
	t *testing.T
}

func NewAssert(t *testing.T) *Assert {
	return &Assert{Assertions: require.New(t), t: t}
}

// Executes runs program and fails the test if the run errors.
func (a *Assert) Executes(cfg vm.Config, program vm.Program, initial vm.State) (vm.State, *vm.Trace) {
	a.t.Helper()
	final, trace, err := vm.Execute(cfg, program, initial)
	a.NoError(err)
	a.NotNil(trace)
	return final, trace
}

// ExecutionFails checks that the run fails with target and releases no
// trace.
func (a *Assert) ExecutionFails(cfg vm.Config, program vm.Program, initial vm.State, target error) {
	a.t.Helper()
	_, trace, err := vm.Execute(cfg, program, initial)
	a.ErrorIs(err, target)
	a.Nil(trace)
}

// Instance executes program and builds the matching circuit instance.
func (a *Assert) Instance(cfg vm.Config, program vm.Program, initial vm.State) *circuit.Instance {
	a.t.Helper()
	final, trace := a.Executes(cfg, program, initial)
	cm, err := commit.Trace(cfg, trace)
	a.NoError(err)
	inst, err := circuit.Build(cfg, program, trace, cm, circuit.PublicIO{Initial: initial, Final: final})
	a.NoError(err)
	return inst
}

// ProveSucceeded checks the assignment with gnark's test engine.
func (a *Assert) ProveSucceeded(cfg vm.Config, assignment *circuit.ExecutionCircuit) {
	a.t.Helper()
	a.NoError(gnarktest.IsSolved(circuit.NewCircuit(cfg), assignment, field.ScalarField))
}

func (a *Assert) ProveFailed(cfg vm.Config, assignment *circuit.ExecutionCircuit) {
	a.t.Helper()
	a.Error(gnarktest.IsSolved(circuit.NewCircuit(cfg), assignment, field.ScalarField))
}
