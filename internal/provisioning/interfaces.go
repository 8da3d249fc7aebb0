// Package provisioning provides shared types and interfaces for environment
// provisioning.
//
// The provisioning domain is organized into focused subpackages:
//   - network/ — VPCs, subnets, gateways, routing, peering
//   - iam/ — task and cluster roles
//   - ecs/ — ECS cluster, task definitions, services
//   - eks/ — EKS control plane and nodegroup
//   - mesh/ — Istio ambient installation and workload enrollment
//   - destroy/ — reverse-order teardown
//
// This root package contains the phase pipeline, context, and observability
// types used across subpackages.
package provisioning

import (
	"context"

	"github.com/meshlab-io/meshlab/internal/platform/istio"
)

// Phase defines the interface for a provisioning phase.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the provisioning logic for this phase.
	Provision(ctx *Context) error
}

// IstioRunner defines the istioctl operations phases depend on.
// Implemented by internal/platform/istio.Istioctl.
type IstioRunner interface {
	// Version returns the istioctl client version.
	Version(ctx context.Context) (string, error)

	// InstallEastWestGateway installs the cross-network gateway.
	InstallEastWestGateway(ctx context.Context, opts istio.GatewayOpts) error

	// RegisterECSWorkload enrolls an ECS service in the ambient mesh.
	RegisterECSWorkload(ctx context.Context, opts istio.RegisterOpts) error

	// DeregisterECSWorkload removes an ECS service from the mesh.
	DeregisterECSWorkload(ctx context.Context, name, namespace string) error

	// ApplyWaypoint deploys a waypoint proxy in a namespace.
	ApplyWaypoint(ctx context.Context, namespace, name string) error

	// DeleteWaypoint removes a waypoint proxy.
	DeleteWaypoint(ctx context.Context, namespace, name string) error

	// ZtunnelWorkloadCount reports how many workloads ztunnel knows.
	ZtunnelWorkloadCount(ctx context.Context) (int, error)
}
