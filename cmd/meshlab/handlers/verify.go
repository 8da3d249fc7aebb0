package handlers

import (
	"context"

	"github.com/meshlab-io/meshlab/internal/verify"
)

// newVerifyRunner is replaceable in tests.
var newVerifyRunner = verify.NewRunner

// Verify runs the configured connectivity and authorization checks against
// the live environment. When check is non-empty, only that check runs.
func Verify(ctx context.Context, opts Options, check string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	pctx, err := buildContext(ctx, cfg)
	if err != nil {
		return err
	}

	cleanup, err := connectCluster(pctx)
	if err != nil {
		return err
	}
	defer cleanup()

	runner, err := newVerifyRunner(pctx)
	if err != nil {
		return err
	}

	_, err = runner.Run(pctx, cfg, pctx.State, check)
	return err
}
