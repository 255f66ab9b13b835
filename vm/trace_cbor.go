package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/PolyhedraZK/ProvableVM/field"
)

// Wire form of a trace. Field elements travel as 32-byte big-endian
// strings.
type traceFile struct {
	_        struct{} `cbor:",toarray"`
	Config   Config
	Executed int
	Steps    []stepFile
}

type stepFile struct {
	_    struct{} `cbor:",toarray"`
	Pre  stateFile
	Op   uint8
	Arg  []byte
	Post stateFile
}

type stateFile struct {
	_      struct{} `cbor:",toarray"`
	PC     int
	Halted bool
	Stack  [][]byte
	Memory [][]byte
}

var traceEncMode = mustEncMode(cbor.CoreDetEncOptions())

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// EncodeTrace serializes t in deterministic CBOR.
func EncodeTrace(cfg Config, t *Trace) ([]byte, error) {
	f := traceFile{Config: cfg, Executed: t.Executed(), Steps: make([]stepFile, t.Len())}
	for i, s := range t.Steps() {
		f.Steps[i] = stepFile{
			Pre:  encodeState(s.Pre),
			Op:   uint8(s.Instr.Op),
			Arg:  elementBytes(s.Instr.Arg),
			Post: encodeState(s.Post),
		}
	}
	return traceEncMode.Marshal(f)
}

// DecodeTrace is the inverse of EncodeTrace.
func DecodeTrace(data []byte) (Config, *Trace, error) {
	var f traceFile
	if err := cbor.Unmarshal(data, &f); err != nil {
		return Config{}, nil, fmt.Errorf("decode trace: %w", err)
	}
	if err := f.Config.Validate(); err != nil {
		return Config{}, nil, fmt.Errorf("decode trace: %w", err)
	}
	steps := make([]Step, len(f.Steps))
	for i, s := range f.Steps {
		pre, err := decodeState(s.Pre)
		if err != nil {
			return Config{}, nil, fmt.Errorf("decode trace step %d: %w", i, err)
		}
		post, err := decodeState(s.Post)
		if err != nil {
			return Config{}, nil, fmt.Errorf("decode trace step %d: %w", i, err)
		}
		arg, err := field.FromBytes(s.Arg)
		if err != nil {
			return Config{}, nil, fmt.Errorf("decode trace step %d: %w", i, err)
		}
		steps[i] = Step{Pre: pre, Instr: Instruction{Op: Opcode(s.Op), Arg: arg}, Post: post}
	}
	t, err := NewTrace(steps, f.Executed)
	if err != nil {
		return Config{}, nil, fmt.Errorf("decode trace: %w", err)
	}
	return f.Config, t, nil
}

func elementBytes(e field.Element) []byte {
	b := field.ToBytes(e)
	return b[:]
}

func encodeState(s State) stateFile {
	f := stateFile{PC: s.PC, Halted: s.Halted, Stack: make([][]byte, len(s.Stack)), Memory: make([][]byte, len(s.Memory))}
	for i, e := range s.Stack {
		f.Stack[i] = elementBytes(e)
	}
	for i, e := range s.Memory {
		f.Memory[i] = elementBytes(e)
	}
	return f
}

func decodeState(f stateFile) (State, error) {
	s := State{PC: f.PC, Halted: f.Halted, Memory: make([]field.Element, len(f.Memory))}
	if len(f.Stack) > 0 {
		s.Stack = make([]field.Element, len(f.Stack))
	}
	for i, b := range f.Stack {
		e, err := field.FromBytes(b)
		if err != nil {
			return State{}, err
		}
		s.Stack[i] = e
	}
	for i, b := range f.Memory {
		e, err := field.FromBytes(b)
		if err != nil {
			return State{}, err
		}
		s.Memory[i] = e
	}
	return s, nil
}
