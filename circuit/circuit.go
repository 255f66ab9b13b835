// Package circuit arithmetizes the machine. ExecutionCircuit is one gnark
// circuit per machine shape: it holds the program table and N+1 state rows,
// and constrains every consecutive pair of rows to the transition
// function of package vm.
package circuit

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/selector"

	"github.com/PolyhedraZK/ProvableVM/commit"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

// StateVars is one state row, laid out like vm.State.Vector. Stack slot 0
// is the top of the stack; slots at or above SP are zero.
type StateVars struct {
	PC     frontend.Variable
	SP     frontend.Variable
	Halted frontend.Variable
	Stack  []frontend.Variable
	Memory []frontend.Variable
}

// ExecutionCircuit proves that a program run from a state with digest
// InitialStateDigest halts in a state with digest FinalStateDigest and top
// of stack Output, through the trace committed to by TraceCommitment.
//
// States[i] is the pre-state of row i and States[N] is the final state.
type ExecutionCircuit struct {
	ProgramDigest      frontend.Variable `gnark:",public"`
	TraceCommitment    frontend.Variable `gnark:",public"`
	InitialStateDigest frontend.Variable `gnark:",public"`
	FinalStateDigest   frontend.Variable `gnark:",public"`
	Output             frontend.Variable `gnark:",public"`

	ProgramLen frontend.Variable
	Opcodes    []frontend.Variable
	Operands   []frontend.Variable
	States     []StateVars

	Config vm.Config `gnark:"-"`
}

// NewCircuit allocates the variables of the circuit for cfg.
func NewCircuit(cfg vm.Config) *ExecutionCircuit {
	c := &ExecutionCircuit{
		Opcodes:  make([]frontend.Variable, cfg.MaxProgramLen),
		Operands: make([]frontend.Variable, cfg.MaxProgramLen),
		States:   make([]StateVars, cfg.MaxSteps+1),
		Config:   cfg,
	}
	for i := range c.States {
		c.States[i] = StateVars{
			Stack:  make([]frontend.Variable, cfg.StackDepth),
			Memory: make([]frontend.Variable, cfg.MemorySize),
		}
	}
	return c
}

func (c *ExecutionCircuit) Define(api frontend.API) error {
	n := c.Config.MaxSteps

	first, last := c.States[0], c.States[n]
	api.AssertIsEqual(first.PC, 0)
	api.AssertIsEqual(first.Halted, 0)
	api.AssertIsEqual(last.Halted, 1)
	api.AssertIsEqual(c.Output, last.Stack[0])

	digests := make([]frontend.Variable, n+1)
	for i := range c.States {
		d, err := c.stateDigest(api, c.States[i])
		if err != nil {
			return err
		}
		digests[i] = d
	}
	api.AssertIsEqual(c.InitialStateDigest, digests[0])
	api.AssertIsEqual(c.FinalStateDigest, digests[n])

	th, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	th.Write(commit.TagTrace, n)
	for i := 0; i < n; i++ {
		op, arg := c.transition(api, c.States[i], c.States[i+1])
		th.Write(op, arg, digests[i])
	}
	th.Write(digests[n])
	api.AssertIsEqual(c.TraceCommitment, th.Sum())

	ph, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	ph.Write(commit.TagProgram, c.ProgramLen)
	for k := range c.Opcodes {
		ph.Write(c.Opcodes[k], c.Operands[k])
	}
	api.AssertIsEqual(c.ProgramDigest, ph.Sum())
	return nil
}

func (c *ExecutionCircuit) stateDigest(api frontend.API, s StateVars) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	h.Write(commit.TagState, s.PC, s.SP, s.Halted)
	h.Write(s.Stack...)
	h.Write(s.Memory...)
	return h.Sum(), nil
}

// dot is the inner product of a one-hot selector with values.
func dot(api frontend.API, sel []frontend.Variable, values []frontend.Variable) frontend.Variable {
	var r frontend.Variable = 0
	for i := range sel {
		r = api.Add(r, api.Mul(sel[i], values[i]))
	}
	return r
}

// weigh returns Σ sel[op]·w(op) over all opcodes.
func weigh(api frontend.API, sel []frontend.Variable, w func(vm.Opcode) int) frontend.Variable {
	var r frontend.Variable = 0
	for _, op := range vm.Opcodes() {
		if k := w(op); k != 0 {
			r = api.Add(r, api.Mul(sel[op], k))
		}
	}
	return r
}

// transition constrains post to be the successor of pre and returns the
// fetched instruction.
func (c *ExecutionCircuit) transition(api frontend.API, pre, post StateVars) (frontend.Variable, frontend.Variable) {
	depth := c.Config.StackDepth

	// fetch
	at := selector.Decoder(api, len(c.Opcodes), pre.PC)
	op := dot(api, at, c.Opcodes)
	arg := dot(api, at, c.Operands)

	sel := selector.Decoder(api, vm.NumOpcodes, op)
	api.AssertIsEqual(sel[0], 0)
	var (
		isPush  = sel[vm.OpPush]
		isPop   = sel[vm.OpPop]
		isAdd   = sel[vm.OpAdd]
		isSub   = sel[vm.OpSub]
		isMul   = sel[vm.OpMul]
		isJmp   = sel[vm.OpJmp]
		isJz    = sel[vm.OpJz]
		isLoad  = sel[vm.OpLoad]
		isStore = sel[vm.OpStore]
		isHalt  = sel[vm.OpHalt]
	)

	// a halted machine only repeats HALT
	api.AssertIsEqual(api.Mul(pre.Halted, api.Sub(1, isHalt)), 0)
	api.AssertIsEqual(post.Halted, isHalt)

	// stack pointer
	need := weigh(api, sel, vm.Opcode.Pops)
	selector.Decoder(api, depth+1, api.Sub(pre.SP, need))
	delta := weigh(api, sel, func(op vm.Opcode) int { return op.Pushes() - op.Pops() })
	api.AssertIsEqual(post.SP, api.Add(pre.SP, delta))
	selector.Decoder(api, depth+1, post.SP)

	// memory
	top, second := pre.Stack[0], pre.Stack[1]
	addr := api.Mul(api.Add(isLoad, isStore), arg)
	cell := selector.Decoder(api, len(pre.Memory), addr)
	loaded := dot(api, cell, pre.Memory)
	for j := range pre.Memory {
		w := api.Mul(isStore, cell[j])
		api.AssertIsEqual(post.Memory[j], api.Add(pre.Memory[j], api.Mul(w, api.Sub(top, pre.Memory[j]))))
	}

	// stack
	pushed := api.Add(api.Mul(isPush, arg), api.Mul(isLoad, loaded))
	result := api.Add(
		api.Mul(isAdd, api.Add(second, top)),
		api.Mul(isSub, api.Sub(second, top)),
		api.Mul(isMul, api.Mul(second, top)),
	)
	keep := api.Add(isJmp, isHalt)
	shiftDown := api.Add(isPush, isLoad)
	popOne := api.Add(isPop, isJz, isStore)
	shiftUp := api.Add(popOne, isAdd, isSub, isMul)

	api.AssertIsEqual(post.Stack[0], api.Add(api.Mul(keep, top), pushed, api.Mul(popOne, second), result))
	for j := 1; j < depth; j++ {
		var above frontend.Variable = 0
		if j+1 < depth {
			above = pre.Stack[j+1]
		}
		api.AssertIsEqual(post.Stack[j], api.Add(
			api.Mul(keep, pre.Stack[j]),
			api.Mul(shiftDown, pre.Stack[j-1]),
			api.Mul(shiftUp, above),
		))
	}

	// program counter
	jump := api.Add(isJmp, api.Mul(isJz, api.IsZero(top)))
	next := api.Sub(api.Add(pre.PC, 1), isHalt)
	api.AssertIsEqual(post.PC, api.Add(next, api.Mul(jump, api.Sub(arg, pre.PC, 1))))

	return op, arg
}
