package proof

import (
	"fmt"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/logger"

	"github.com/PolyhedraZK/ProvableVM/circuit"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

// Proof is a Groth16 proof together with the statement it proves.
type Proof struct {
	Config        vm.Config
	VKFingerprint [32]byte
	Public        circuit.PublicInputs
	proof         groth16.Proof
}

// Prove never emits a proof for an instance whose witness does not
// satisfy the constraint system.
func Prove(pk *ProvingKey, inst *circuit.Instance) (*Proof, error) {
	if !pk.ready() {
		return nil, ErrKeysNotReady
	}
	if inst == nil || inst.Assignment == nil {
		return nil, fmt.Errorf("%w: nil instance", ErrMalformed)
	}
	if inst.Config != pk.Config {
		return nil, fmt.Errorf("%w: key %s, instance %s", ErrKeyShapeMismatch, pk.Config.ID(), inst.Config.ID())
	}
	w, err := inst.Witness()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsatisfiedWitness, err)
	}
	if err := pk.ccs.IsSolved(w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsatisfiedWitness, err)
	}

	log := logger.Logger()
	start := time.Now()
	p, err := groth16.Prove(pk.ccs, pk.pk, w)
	if err != nil {
		return nil, fmt.Errorf("groth16 prove: %w", err)
	}
	log.Debug().Str("shape", pk.Config.ID()).Dur("took", time.Since(start)).Msg("proved")
	return &Proof{
		Config:        pk.Config,
		VKFingerprint: pk.fingerprint,
		Public:        inst.Public,
		proof:         p,
	}, nil
}
