package vm

import (
	"fmt"

	"github.com/consensys/gnark/logger"
)

// Machine runs one program. It is not safe for concurrent use; independent
// machines share nothing.
type Machine struct {
	cfg     Config
	program Program
	state   State
	trace   *Trace
}

// New validates program and the initial state against cfg.
func New(cfg Config, program Program, initial State) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := program.Validate(cfg); err != nil {
		return nil, err
	}
	if err := initial.Check(cfg); err != nil {
		return nil, &ExecutionError{Step: -1, Err: err}
	}
	if initial.PC != 0 || initial.Halted {
		return nil, &ExecutionError{Step: -1, PC: initial.PC,
			Err: fmt.Errorf("%w: runs start at pc 0 and not halted", ErrInvalidState)}
	}
	return &Machine{
		cfg:     cfg,
		program: append(Program(nil), program...),
		state:   initial.Clone(),
		trace:   newTrace(cfg.MaxSteps),
	}, nil
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	return m.state.Clone()
}

func (m *Machine) Halted() bool {
	return m.state.Halted
}

// Step executes one instruction and records it.
func (m *Machine) Step() error {
	step := m.trace.Len()
	if m.state.Halted {
		return &ExecutionError{Step: step, PC: m.state.PC, Op: OpHalt, Err: ErrHalted}
	}
	if step >= m.cfg.MaxSteps {
		return &ExecutionError{Step: step, PC: m.state.PC, Err: fmt.Errorf("%w: limit is %d", ErrTraceTooLong, m.cfg.MaxSteps)}
	}
	if m.state.PC < 0 || m.state.PC >= len(m.program) {
		return &ExecutionError{Step: step, PC: m.state.PC, Err: ErrPCOutOfBounds}
	}
	ins := m.program[m.state.PC]
	post, err := Apply(m.cfg, len(m.program), ins, m.state)
	if err != nil {
		return &ExecutionError{Step: step, PC: m.state.PC, Op: ins.Op, Err: err}
	}
	m.trace.append(Step{Pre: m.state, Instr: ins, Post: post.Clone()})
	m.state = post
	return nil
}

// Run steps until HALT. On success the trace is padded to MaxSteps rows
// and handed over; the machine keeps no reference to it.
func (m *Machine) Run() (*Trace, error) {
	for !m.state.Halted {
		if err := m.Step(); err != nil {
			return nil, err
		}
	}
	t := m.trace
	m.trace = newTrace(0)
	t.Pad(m.cfg.MaxSteps)
	return t, nil
}

// Execute runs program from initial and returns the final state together
// with the padded trace. No trace is returned when the run fails.
func Execute(cfg Config, program Program, initial State) (State, *Trace, error) {
	log := logger.Logger()
	m, err := New(cfg, program, initial)
	if err != nil {
		return State{}, nil, err
	}
	t, err := m.Run()
	if err != nil {
		log.Debug().Err(err).Msg("execution aborted")
		return State{}, nil, err
	}
	final := m.State()
	log.Debug().
		Int("steps", t.Executed()).
		Int("rows", t.Len()).
		Int("pc", final.PC).
		Int("sp", len(final.Stack)).
		Msg("execution halted")
	return final, t, nil
}
