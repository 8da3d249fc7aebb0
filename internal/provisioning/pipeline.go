package provisioning

import (
	"fmt"
	"time"
)

// RunPhases executes all provisioning phases sequentially. State is saved
// after every successful phase so an interrupted run resumes cleanly.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()
	ctx.Observer.Printf("Starting provisioning with %d phases...", len(phases))

	for i, phase := range phases {
		phaseStart := time.Now()
		name := fmt.Sprintf("%s (%d/%d)", phase.Name(), i+1, len(phases))

		LogPhaseStart(ctx.Observer, name)

		if err := phase.Provision(ctx); err != nil {
			LogPhaseFailed(ctx.Observer, name, err)
			// Best effort: keep whatever the phase recorded before failing.
			if saveErr := ctx.State.Save(ctx.Config.StatePath); saveErr != nil {
				ctx.Observer.Printf("warning: failed to save state after %s failure: %v", phase.Name(), saveErr)
			}
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		if err := ctx.State.Save(ctx.Config.StatePath); err != nil {
			return fmt.Errorf("failed to save state after %s phase: %w", phase.Name(), err)
		}

		LogPhaseComplete(ctx.Observer, name, time.Since(phaseStart))
	}

	ctx.Observer.Printf("Provisioning completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}
