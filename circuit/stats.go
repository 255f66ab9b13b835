package circuit

import "github.com/consensys/gnark/constraint"

type Stats struct {
	// number of R1CS constraints
	NbConstraints int
	// public variables, including the constant one wire
	NbPublic int
	NbSecret int
	// variables created while compiling, hint outputs included
	NbInternal int
}

func GetStats(ccs constraint.ConstraintSystem) Stats {
	return Stats{
		NbConstraints: ccs.GetNbConstraints(),
		NbPublic:      ccs.GetNbPublicVariables(),
		NbSecret:      ccs.GetNbSecretVariables(),
		NbInternal:    ccs.GetNbInternalVariables(),
	}
}
