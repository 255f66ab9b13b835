// Package provablevm runs programs on the stack machine and proves that
// they ran.
//
// A typical prover:
//
//	e, _ := provablevm.New()
//	x, _ := e.Execute(program, vm.NewState(e.Config()))
//	p, _ := e.Prove(x)
//
// and the matching verifier, which holds the program and the initial
// state but never re-executes:
//
//	ok, _ := e.Verify(p, program, initial, output)
package provablevm

import (
	"fmt"

	"github.com/PolyhedraZK/ProvableVM/circuit"
	"github.com/PolyhedraZK/ProvableVM/commit"
	"github.com/PolyhedraZK/ProvableVM/field"
	"github.com/PolyhedraZK/ProvableVM/proof"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

// Engine ties a machine shape to the keys for that shape.
type Engine struct {
	cfg  vm.Config
	keys *proof.KeyCache
}

type engineOptions struct {
	cfg       vm.Config
	store     proof.KeyStore
	cacheSize int
	keys      *proof.KeyCache
}

type EngineOption func(*engineOptions) error

// WithConfig selects the machine shape. The default is vm.DefaultConfig.
func WithConfig(cfg vm.Config) EngineOption {
	return func(o *engineOptions) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		o.cfg = cfg
		return nil
	}
}

// WithKeyStore persists generated keys and reuses keys saved earlier.
func WithKeyStore(s proof.KeyStore) EngineOption {
	return func(o *engineOptions) error {
		o.store = s
		return nil
	}
}

// WithKeyCache shares a key cache between engines.
func WithKeyCache(c *proof.KeyCache) EngineOption {
	return func(o *engineOptions) error {
		o.keys = c
		return nil
	}
}

func WithCacheSize(n int) EngineOption {
	return func(o *engineOptions) error {
		if n < 1 {
			return fmt.Errorf("cache size %d", n)
		}
		o.cacheSize = n
		return nil
	}
}

func New(opts ...EngineOption) (*Engine, error) {
	o := engineOptions{cfg: vm.DefaultConfig(), cacheSize: 4}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	keys := o.keys
	if keys == nil {
		var err error
		keys, err = proof.NewKeyCache(o.cacheSize, o.store)
		if err != nil {
			return nil, err
		}
	}
	return &Engine{cfg: o.cfg, keys: keys}, nil
}

func (e *Engine) Config() vm.Config {
	return e.cfg
}

// Keys returns the key pair of the engine's shape, running Setup on first
// use if no store has them.
func (e *Engine) Keys() (*proof.ProvingKey, *proof.VerifyingKey, error) {
	return e.keys.Get(e.cfg)
}

// Execution is a successful run together with its trace commitment.
type Execution struct {
	Program    vm.Program
	Initial    vm.State
	Final      vm.State
	Trace      *vm.Trace
	Commitment field.Element
}

// Output is the top of the final stack.
func (x *Execution) Output() field.Element {
	return x.Final.Top()
}

func (e *Engine) Execute(program vm.Program, initial vm.State) (*Execution, error) {
	final, trace, err := vm.Execute(e.cfg, program, initial)
	if err != nil {
		return nil, err
	}
	cm, err := commit.Trace(e.cfg, trace)
	if err != nil {
		return nil, err
	}
	return &Execution{
		Program:    program,
		Initial:    initial.Clone(),
		Final:      final,
		Trace:      trace,
		Commitment: cm,
	}, nil
}

// Instance arithmetizes x.
func (e *Engine) Instance(x *Execution) (*circuit.Instance, error) {
	return circuit.Build(e.cfg, x.Program, x.Trace, x.Commitment, circuit.PublicIO{Initial: x.Initial, Final: x.Final})
}

func (e *Engine) Prove(x *Execution) (*proof.Proof, error) {
	inst, err := e.Instance(x)
	if err != nil {
		return nil, err
	}
	pk, _, err := e.Keys()
	if err != nil {
		return nil, err
	}
	return proof.Prove(pk, inst)
}

// VerifyOption narrows what a verifier accepts beyond the program, the
// initial state and the output.
type VerifyOption func(*verifyOptions)

type verifyOptions struct {
	commitment *field.Element
}

// WithCommitment pins the trace commitment to a value the verifier learned
// out of band instead of the one carried by the proof.
func WithCommitment(c field.Element) VerifyOption {
	return func(o *verifyOptions) {
		o.commitment = &c
	}
}

// PublicInputs derives what a verifier can compute itself: the program and
// initial state digests and the output. The trace commitment and final
// state digest are taken from claimed, which is usually p.Public, unless
// WithCommitment overrides the commitment.
func (e *Engine) PublicInputs(program vm.Program, initial vm.State, output field.Element, claimed circuit.PublicInputs, opts ...VerifyOption) (circuit.PublicInputs, error) {
	var o verifyOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := program.Validate(e.cfg); err != nil {
		return circuit.PublicInputs{}, err
	}
	if err := initial.Check(e.cfg); err != nil {
		return circuit.PublicInputs{}, err
	}
	pd, err := commit.Program(e.cfg, program)
	if err != nil {
		return circuit.PublicInputs{}, err
	}
	commitment := claimed.TraceCommitment
	if o.commitment != nil {
		commitment = *o.commitment
	}
	return circuit.PublicInputs{
		ProgramDigest:      pd,
		TraceCommitment:    commitment,
		InitialStateDigest: commit.State(e.cfg, initial),
		FinalStateDigest:   claimed.FinalStateDigest,
		Output:             output,
	}, nil
}

// Verify accepts p if it proves that program, run from initial, halts
// with output on top of the stack.
func (e *Engine) Verify(p *proof.Proof, program vm.Program, initial vm.State, output field.Element, opts ...VerifyOption) (bool, error) {
	_, vk, err := e.Keys()
	if err != nil {
		return false, err
	}
	return e.VerifyWithKey(vk, p, program, initial, output, opts...)
}

// VerifyWithKey is Verify for a process that only holds a verifying key.
func (e *Engine) VerifyWithKey(vk *proof.VerifyingKey, p *proof.Proof, program vm.Program, initial vm.State, output field.Element, opts ...VerifyOption) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("%w: nil proof", proof.ErrMalformed)
	}
	public, err := e.PublicInputs(program, initial, output, p.Public, opts...)
	if err != nil {
		return false, err
	}
	return proof.Verify(vk, p, public)
}
