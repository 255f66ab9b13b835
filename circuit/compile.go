package circuit

import (
	"fmt"
	"sync"
	"time"

	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/logger"

	"github.com/PolyhedraZK/ProvableVM/field"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

type compiled struct {
	once sync.Once
	ccs  constraint.ConstraintSystem
	err  error
}

var (
	compiledMu sync.Mutex
	compiledCS = make(map[vm.Config]*compiled)
)

// Compile returns the R1CS for cfg. Each shape is compiled once per
// process; concurrent callers for the same shape wait for the first.
func Compile(cfg vm.Config) (constraint.ConstraintSystem, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	compiledMu.Lock()
	c, ok := compiledCS[cfg]
	if !ok {
		c = &compiled{}
		compiledCS[cfg] = c
	}
	compiledMu.Unlock()

	c.once.Do(func() {
		c.ccs, c.err = compile(cfg)
	})
	return c.ccs, c.err
}

func compile(cfg vm.Config) (constraint.ConstraintSystem, error) {
	start := time.Now()
	ccs, err := frontend.Compile(field.ScalarField, r1cs.NewBuilder, NewCircuit(cfg))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", cfg.ID(), err)
	}
	stats := GetStats(ccs)
	log := logger.Logger()
	log.Info().
		Str("shape", cfg.ID()).
		Int("nbConstraints", stats.NbConstraints).
		Int("nbPublic", stats.NbPublic).
		Int("nbSecret", stats.NbSecret).
		Int("nbInternal", stats.NbInternal).
		Dur("took", time.Since(start)).
		Msg("compiled")
	return ccs, nil
}
