package proof

import (
	"fmt"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/logger"

	"github.com/PolyhedraZK/ProvableVM/circuit"
)

// Verify checks p against public. A proof that does not verify is not an
// error: the result is false. Errors are reserved for missing keys and
// malformed proofs.
func Verify(vk *VerifyingKey, p *Proof, public circuit.PublicInputs) (bool, error) {
	if !vk.ready() {
		return false, ErrKeysNotReady
	}
	if p == nil || p.proof == nil {
		return false, fmt.Errorf("%w: nil proof", ErrMalformed)
	}
	log := logger.Logger()
	switch {
	case p.Config != vk.Config:
		log.Debug().Str("proof", p.Config.ID()).Str("key", vk.Config.ID()).Msg("rejected: shape")
		return false, nil
	case p.VKFingerprint != vk.fingerprint:
		log.Debug().Msg("rejected: proof made for another verifying key")
		return false, nil
	case !p.Public.Equal(public):
		log.Debug().Msg("rejected: public inputs differ")
		return false, nil
	}
	pw, err := public.Witness(vk.Config)
	if err != nil {
		return false, err
	}
	if err := groth16.Verify(p.proof, vk.vk, pw); err != nil {
		log.Debug().Err(err).Msg("rejected")
		return false, nil
	}
	return true, nil
}
