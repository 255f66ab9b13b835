package circuit

import (
	"fmt"

	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"

	"github.com/PolyhedraZK/ProvableVM/field"
	"github.com/PolyhedraZK/ProvableVM/utils"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

// PublicInputs are the values a verifier checks a proof against, in the
// order of the public witness.
type PublicInputs struct {
	ProgramDigest      field.Element
	TraceCommitment    field.Element
	InitialStateDigest field.Element
	FinalStateDigest   field.Element
	Output             field.Element
}

func (p *PublicInputs) elements() []*field.Element {
	return []*field.Element{&p.ProgramDigest, &p.TraceCommitment, &p.InitialStateDigest, &p.FinalStateDigest, &p.Output}
}

func (p PublicInputs) Equal(o PublicInputs) bool {
	a, b := p.elements(), o.elements()
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Assign sets the public fields of c.
func (p PublicInputs) Assign(c *ExecutionCircuit) {
	c.ProgramDigest = field.ToBigInt(p.ProgramDigest)
	c.TraceCommitment = field.ToBigInt(p.TraceCommitment)
	c.InitialStateDigest = field.ToBigInt(p.InitialStateDigest)
	c.FinalStateDigest = field.ToBigInt(p.FinalStateDigest)
	c.Output = field.ToBigInt(p.Output)
}

// Witness is the public witness a verifier feeds to the proof system.
func (p PublicInputs) Witness(cfg vm.Config) (witness.Witness, error) {
	c := NewCircuit(cfg)
	p.Assign(c)
	w, err := frontend.NewWitness(c, field.ScalarField, frontend.PublicOnly())
	if err != nil {
		return nil, fmt.Errorf("public witness: %w", err)
	}
	return w, nil
}

func (p PublicInputs) Serialize(o *utils.OutputBuf) {
	for _, e := range p.elements() {
		o.AppendFieldElement(*e)
	}
}

func DeserializePublicInputs(in *utils.InputBuf) PublicInputs {
	var p PublicInputs
	for _, e := range p.elements() {
		*e = in.ReadFieldElement()
	}
	return p
}

func (p PublicInputs) String() string {
	return fmt.Sprintf("program=%s trace=%s initial=%s final=%s output=%s",
		field.String(p.ProgramDigest), field.String(p.TraceCommitment),
		field.String(p.InitialStateDigest), field.String(p.FinalStateDigest),
		field.String(p.Output))
}
