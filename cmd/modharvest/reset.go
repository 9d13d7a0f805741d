package main

import (
	"fmt"

	"github.com/fwojciec/modharvest"
)

// Run executes the reset command.
func (c *ResetCmd) Run(deps *Dependencies) error {
	if !c.Force {
		fmt.Fprintf(deps.Stderr, "error: use --force to confirm deletion\n")
		return modharvest.Errorf(modharvest.EINVALID, "use --force to confirm deletion")
	}

	if err := deps.Checkpoints.Clear(deps.Ctx); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", modharvest.ErrorMessage(err))
		return err
	}

	fmt.Fprintln(deps.Stdout, "Checkpoint deleted")
	return nil
}
