package test

import (
	"math/rand"

	"github.com/PolyhedraZK/ProvableVM/field"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

type randRange struct {
	l int
	r int
}

func (rr *randRange) sample(r *rand.Rand) int {
	return r.Intn(rr.r-rr.l+1) + rr.l
}

// ProgramGenerator produces random programs that halt without error
// within the machine's step budget. Jumps only go forward, so the run
// length is bounded by the program length.
type ProgramGenerator struct {
	cfg  vm.Config
	rand *rand.Rand
	// percentage of operands drawn from the whole field rather than small
	// integers
	bigPercent int
}

func NewProgramGenerator(cfg vm.Config, seed int64) *ProgramGenerator {
	return &ProgramGenerator{cfg: cfg, rand: rand.New(rand.NewSource(seed)), bigPercent: 20}
}

func (g *ProgramGenerator) value() field.Element {
	if g.rand.Intn(100) < g.bigPercent {
		var e field.Element
		e.SetUint64(g.rand.Uint64())
		e.Mul(&e, &e)
		return e
	}
	return field.FromUint64(uint64(g.rand.Intn(8)))
}

// State returns a random state that a run may start from.
func (g *ProgramGenerator) State() vm.State {
	s := vm.NewState(g.cfg)
	depth := (&randRange{0, g.cfg.StackDepth / 2}).sample(g.rand)
	for i := 0; i < depth; i++ {
		s.Stack = append(s.Stack, g.value())
	}
	for i := range s.Memory {
		s.Memory[i] = g.value()
	}
	return s
}

// Program returns a program that runs to HALT from initial.
func (g *ProgramGenerator) Program(initial vm.State) vm.Program {
	for {
		p := g.candidate(len(initial.Stack))
		if _, _, err := vm.Execute(g.cfg, p, initial); err == nil {
			return p
		}
	}
}

func (g *ProgramGenerator) candidate(depth int) vm.Program {
	maxLen := g.cfg.MaxProgramLen
	if g.cfg.MaxSteps < maxLen {
		maxLen = g.cfg.MaxSteps
	}
	n := (&randRange{1, maxLen}).sample(g.rand)
	p := make(vm.Program, n)
	for k := 0; k < n-1; k++ {
		var choices []vm.Opcode
		for _, op := range vm.Opcodes() {
			if op == vm.OpHalt {
				continue
			}
			if depth >= op.Pops() && depth-op.Pops()+op.Pushes() <= g.cfg.StackDepth {
				choices = append(choices, op)
			}
		}
		op := choices[g.rand.Intn(len(choices))]
		switch op {
		case vm.OpPush:
			p[k] = vm.PushElement(g.value())
		case vm.OpJmp:
			p[k] = vm.Jmp((&randRange{k + 1, n - 1}).sample(g.rand))
		case vm.OpJz:
			p[k] = vm.Jz((&randRange{k + 1, n - 1}).sample(g.rand))
		case vm.OpLoad:
			p[k] = vm.Load(g.rand.Intn(g.cfg.MemorySize))
		case vm.OpStore:
			p[k] = vm.Store(g.rand.Intn(g.cfg.MemorySize))
		default:
			p[k] = vm.Op(op)
		}
		depth += op.Pushes() - op.Pops()
	}
	p[n-1] = vm.Halt
	return p
}
