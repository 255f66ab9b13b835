package vm

import "fmt"

// Step records one executed instruction.
type Step struct {
	Pre   State
	Instr Instruction
	Post  State
}

// Trace is the ordered record of a run. Its capacity is fixed to the
// configured number of rows when it is created; row i of the trace is row
// i of the circuit.
type Trace struct {
	steps    []Step
	executed int
}

func newTrace(capacity int) *Trace {
	return &Trace{steps: make([]Step, 0, capacity)}
}

// NewTrace wraps recorded steps, e.g. after decoding. executed is the
// number of leading steps that were actually executed.
func NewTrace(steps []Step, executed int) (*Trace, error) {
	if executed < 1 || executed > len(steps) {
		return nil, fmt.Errorf("%w: %d executed steps of %d", ErrInvalidState, executed, len(steps))
	}
	return &Trace{steps: append([]Step(nil), steps...), executed: executed}, nil
}

func (t *Trace) append(s Step) {
	t.steps = append(t.steps, s)
	t.executed = len(t.steps)
}

// Pad extends the trace to n rows by repeating HALT on the final state.
// It is a no-op when the trace already has n rows.
func (t *Trace) Pad(n int) {
	if len(t.steps) == 0 {
		return
	}
	final := t.steps[len(t.steps)-1].Post
	for len(t.steps) < n {
		t.steps = append(t.steps, Step{Pre: final.Clone(), Instr: Halt, Post: final.Clone()})
	}
}

// Padded returns a padded copy, leaving t untouched.
func (t *Trace) Padded(n int) *Trace {
	c := &Trace{steps: make([]Step, len(t.steps), max(n, len(t.steps))), executed: t.executed}
	copy(c.steps, t.steps)
	c.Pad(n)
	return c
}

// Steps returns every row, padding included. The slice must not be
// modified.
func (t *Trace) Steps() []Step {
	return t.steps
}

func (t *Trace) Len() int {
	return len(t.steps)
}

// Executed is the number of instructions the machine actually ran, the
// last of which is the HALT that stopped it.
func (t *Trace) Executed() int {
	return t.executed
}

func (t *Trace) Initial() State {
	return t.steps[0].Pre
}

// Final is the post-state of the last executed step.
func (t *Trace) Final() State {
	return t.steps[t.executed-1].Post
}
