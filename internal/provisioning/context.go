package provisioning

import (
	"context"

	"github.com/meshlab-io/meshlab/internal/addons/helm"
	"github.com/meshlab-io/meshlab/internal/config"
	"github.com/meshlab-io/meshlab/internal/platform/awscloud"
	"github.com/meshlab-io/meshlab/internal/platform/kube"
	"github.com/meshlab-io/meshlab/internal/state"
)

// Context wraps all dependencies and state needed for a provisioning phase.
// State is progressively populated as phases complete and persisted between
// runs, so a failed apply resumes where it stopped.
type Context struct {
	context.Context
	Config *config.Config
	State  *state.State

	// Cloud operates in the local account. ExternalCloud is nil in the
	// single-account scenario.
	Cloud         awscloud.CloudManager
	ExternalCloud awscloud.CloudManager

	// Populated by the EKS phase once the control plane is reachable.
	Kube  *kube.Client
	Istio IstioRunner
	Helm  *helm.Client

	Observer Observer
	Timeouts *config.Timeouts
}

// NewContext creates a provisioning context around loaded config and state.
func NewContext(ctx context.Context, cfg *config.Config, st *state.State, cloud, external awscloud.CloudManager) *Context {
	return &Context{
		Context:       ctx,
		Config:        cfg,
		State:         st,
		Cloud:         cloud,
		ExternalCloud: external,
		Observer:      NewConsoleObserver(),
		Timeouts:      config.LoadTimeouts(),
	}
}

// CloudFor returns the client for the named side. The external side falls
// back to the local client in the single-account scenario.
func (c *Context) CloudFor(side string) awscloud.CloudManager {
	if side == "external" && c.ExternalCloud != nil {
		return c.ExternalCloud
	}
	return c.Cloud
}
