package circuit

import "fmt"

// Check solves the compiled constraint system on the instance witness and
// reports the first violated constraint, if any.
func (inst *Instance) Check() error {
	ccs, err := Compile(inst.Config)
	if err != nil {
		return err
	}
	w, err := inst.Witness()
	if err != nil {
		return fmt.Errorf("witness: %w", err)
	}
	if err := ccs.IsSolved(w); err != nil {
		return fmt.Errorf("instance not satisfied: %w", err)
	}
	return nil
}
