// Package proof runs the Groth16 pipeline over circuit.ExecutionCircuit:
// one setup per machine shape, then any number of proofs and
// verifications against the resulting keys.
package proof

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/logger"
	"golang.org/x/crypto/blake2b"

	"github.com/PolyhedraZK/ProvableVM/circuit"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

// ProvingKey carries the compiled constraint system with the Groth16
// proving key. It is immutable and may be shared between goroutines.
type ProvingKey struct {
	Config      vm.Config
	ccs         constraint.ConstraintSystem
	pk          groth16.ProvingKey
	fingerprint [32]byte
}

// VerifyingKey is immutable and may be shared between goroutines.
type VerifyingKey struct {
	Config      vm.Config
	vk          groth16.VerifyingKey
	fingerprint [32]byte
}

// Fingerprint identifies the verifying key a proof was made for.
func (vk *VerifyingKey) Fingerprint() [32]byte {
	return vk.fingerprint
}

// Fingerprint of the verifying key generated together with pk.
func (pk *ProvingKey) Fingerprint() [32]byte {
	return pk.fingerprint
}

func (pk *ProvingKey) ready() bool {
	return pk != nil && pk.ccs != nil && pk.pk != nil
}

func (vk *VerifyingKey) ready() bool {
	return vk != nil && vk.vk != nil
}

func fingerprint(vk groth16.VerifyingKey) ([32]byte, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return [32]byte{}, fmt.Errorf("serialize verifying key: %w", err)
	}
	return blake2b.Sum256(buf.Bytes()), nil
}

// Setup compiles the circuit for cfg and samples a fresh key pair. The
// toxic waste comes from crypto/rand and is discarded; anyone who learns
// it can forge proofs for this key pair.
func Setup(cfg vm.Config) (*ProvingKey, *VerifyingKey, error) {
	ccs, err := circuit.Compile(cfg)
	if err != nil {
		return nil, nil, err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("groth16 setup: %w", err)
	}
	fp, err := fingerprint(vk)
	if err != nil {
		return nil, nil, err
	}
	log := logger.Logger()
	log.Info().Str("shape", cfg.ID()).Hex("vk", fp[:8]).Msg("setup done")
	return &ProvingKey{Config: cfg, ccs: ccs, pk: pk, fingerprint: fp},
		&VerifyingKey{Config: cfg, vk: vk, fingerprint: fp}, nil
}
