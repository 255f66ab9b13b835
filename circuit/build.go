package circuit

import (
	"runtime"

	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/logger"
	"golang.org/x/sync/errgroup"

	"github.com/PolyhedraZK/ProvableVM/commit"
	"github.com/PolyhedraZK/ProvableVM/field"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

// PublicIO is the claimed boundary of a run.
type PublicIO struct {
	Initial vm.State
	Final   vm.State
}

// Instance is a fully assigned circuit together with its public inputs.
// It is never modified after Build returns.
type Instance struct {
	Config     vm.Config
	Public     PublicInputs
	Assignment *ExecutionCircuit
}

// Build checks trace against program, the claimed boundary and the
// commitment, then assigns every circuit variable. It refuses to produce
// an instance for anything the circuit would reject.
func Build(cfg vm.Config, program vm.Program, trace *vm.Trace, commitment field.Element, io PublicIO) (*Instance, error) {
	if err := cfg.Validate(); err != nil {
		return nil, wrap(-1, ErrShapeMismatch, err)
	}
	if err := program.Validate(cfg); err != nil {
		return nil, wrap(-1, ErrShapeMismatch, err)
	}
	if trace == nil || trace.Len() != cfg.MaxSteps {
		n := 0
		if trace != nil {
			n = trace.Len()
		}
		return nil, fail(-1, ErrShapeMismatch, "trace has %d rows, circuit has %d", n, cfg.MaxSteps)
	}
	if err := io.Initial.Check(cfg); err != nil {
		return nil, fail(-1, ErrShapeMismatch, "initial state: %v", err)
	}
	if err := io.Final.Check(cfg); err != nil {
		return nil, fail(-1, ErrShapeMismatch, "final state: %v", err)
	}

	steps := trace.Steps()
	executed := trace.Executed()
	if !steps[0].Pre.Equal(io.Initial) {
		return nil, fail(0, ErrBoundaryMismatch, "trace does not start in the declared initial state")
	}
	if io.Initial.PC != 0 || io.Initial.Halted {
		return nil, fail(0, ErrBoundaryMismatch, "initial state must be at pc 0 and running")
	}
	if executed < 1 || executed > len(steps) {
		return nil, fail(-1, ErrShapeMismatch, "%d executed steps of %d", executed, len(steps))
	}
	if !steps[executed-1].Post.Equal(io.Final) {
		return nil, fail(executed-1, ErrBoundaryMismatch, "trace does not end in the declared final state")
	}
	if !io.Final.Halted {
		return nil, fail(executed-1, ErrBoundaryMismatch, "final state is not halted")
	}

	a := NewCircuit(cfg)
	padded := program.Padded(cfg.MaxProgramLen)
	a.ProgramLen = len(program)
	for k, ins := range padded {
		a.Opcodes[k] = uint8(ins.Op)
		a.Operands[k] = field.ToBigInt(ins.Arg)
	}

	// No cancellation: every row is checked so the reported error is the
	// one at the lowest row, whatever the scheduling.
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	errs := make([]error, len(steps))
	for i := range steps {
		i := i
		g.Go(func() error {
			if err := checkStep(cfg, program, steps, executed, i); err != nil {
				errs[i] = err
				return err
			}
			a.States[i] = assignState(cfg, steps[i].Pre)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}
	a.States[cfg.MaxSteps] = assignState(cfg, steps[len(steps)-1].Post)

	got, err := commit.Trace(cfg, trace)
	if err != nil {
		return nil, fail(-1, ErrShapeMismatch, "%v", err)
	}
	if !got.Equal(&commitment) {
		return nil, fail(-1, ErrCommitmentMismatch, "trace commits to %s, claimed %s", field.String(got), field.String(commitment))
	}
	pd, err := commit.Program(cfg, program)
	if err != nil {
		return nil, fail(-1, ErrShapeMismatch, "%v", err)
	}

	pub := PublicInputs{
		ProgramDigest:      pd,
		TraceCommitment:    commitment,
		InitialStateDigest: commit.State(cfg, io.Initial),
		FinalStateDigest:   commit.State(cfg, io.Final),
		Output:             io.Final.Top(),
	}
	pub.Assign(a)

	log := logger.Logger()
	log.Debug().
		Int("rows", len(steps)).
		Int("executed", executed).
		Str("shape", cfg.ID()).
		Msg("instance built")
	return &Instance{Config: cfg, Public: pub, Assignment: a}, nil
}

// checkStep validates row i in isolation from the other rows, apart from
// the link to its predecessor.
func checkStep(cfg vm.Config, program vm.Program, steps []vm.Step, executed, i int) error {
	s := steps[i]
	if err := s.Pre.Check(cfg); err != nil {
		return fail(i, ErrShapeMismatch, "pre-state: %v", err)
	}
	if err := s.Post.Check(cfg); err != nil {
		return fail(i, ErrShapeMismatch, "post-state: %v", err)
	}
	if i > 0 && !steps[i-1].Post.Equal(s.Pre) {
		return fail(i, ErrTransitionViolation, "pre-state differs from the previous post-state")
	}
	if i >= executed {
		final := steps[executed-1].Post
		if s.Instr != vm.Halt || !s.Pre.Equal(final) || !s.Post.Equal(final) {
			return fail(i, ErrTransitionViolation, "padding row is not HALT on the final state")
		}
		return nil
	}
	if s.Pre.PC < 0 || s.Pre.PC >= len(program) {
		return fail(i, ErrTransitionViolation, "pc %d outside the program", s.Pre.PC)
	}
	if want := program[s.Pre.PC]; s.Instr != want {
		return fail(i, ErrTransitionViolation, "executed %s, program has %s at pc %d", s.Instr, want, s.Pre.PC)
	}
	post, err := vm.Apply(cfg, len(program), s.Instr, s.Pre)
	if err != nil {
		return fail(i, ErrTransitionViolation, "%s: %v", s.Instr, err)
	}
	if !post.Equal(s.Post) {
		return fail(i, ErrTransitionViolation, "%s: recorded post-state differs from the transition function", s.Instr)
	}
	if i < executed-1 && post.Halted {
		return fail(i, ErrTransitionViolation, "halted before the last executed step")
	}
	return nil
}

func assignState(cfg vm.Config, s vm.State) StateVars {
	v := s.Vector(cfg)
	sv := StateVars{
		PC:     v[0].Uint64(),
		SP:     v[1].Uint64(),
		Halted: v[2].Uint64(),
		Stack:  make([]frontend.Variable, cfg.StackDepth),
		Memory: make([]frontend.Variable, cfg.MemorySize),
	}
	for j := range sv.Stack {
		sv.Stack[j] = field.ToBigInt(v[3+j])
	}
	for j := range sv.Memory {
		sv.Memory[j] = field.ToBigInt(v[3+cfg.StackDepth+j])
	}
	return sv
}

// Witness is the full witness of the instance.
func (inst *Instance) Witness() (witness.Witness, error) {
	return frontend.NewWitness(inst.Assignment, field.ScalarField)
}

// PublicWitness is the part of the witness a verifier sees.
func (inst *Instance) PublicWitness() (witness.Witness, error) {
	return frontend.NewWitness(inst.Assignment, field.ScalarField, frontend.PublicOnly())
}
