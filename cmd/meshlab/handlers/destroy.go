package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/meshlab-io/meshlab/internal/provisioning"
	"github.com/meshlab-io/meshlab/internal/provisioning/destroy"
)

// Provisioner interface for testing - matches provisioning.Phase.
type Provisioner interface {
	Provision(ctx *provisioning.Context) error
}

// Factory function variables for destroy - can be replaced in tests.
var (
	// newDestroyProvisioner creates a new destroy provisioner.
	newDestroyProvisioner = func() Provisioner {
		return destroy.NewProvisioner()
	}

	// confirmInput is where the confirmation prompt reads from.
	confirmInput io.Reader = os.Stdin
)

// Destroy tears the environment down in reverse dependency order.
//
// Unless yes is set, the user must type the environment name to confirm.
// Deletion failures accumulate into the returned error instead of aborting,
// so a second destroy can pick up whatever got stuck.
func Destroy(ctx context.Context, opts Options, yes bool) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	if !yes {
		fmt.Printf("This will delete every AWS resource of environment %q.\n", cfg.EnvironmentName)
		fmt.Print("Type the environment name to confirm: ")
		line, err := bufio.NewReader(confirmInput).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.TrimSpace(line) != cfg.EnvironmentName {
			return errors.New("destroy aborted")
		}
	}

	pctx, err := buildContext(ctx, cfg)
	if err != nil {
		return err
	}

	if err := newDestroyProvisioner().Provision(pctx); err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}

	log.Printf("Environment %s destroyed", cfg.EnvironmentName)
	return nil
}
