package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	NatGateway        time.Duration // Waiting for NAT gateways to become available
	Peering           time.Duration // Waiting for peering connections to activate
	ECSService        time.Duration // Waiting for ECS services to stabilize
	EKSCluster        time.Duration // Waiting for the EKS control plane
	EKSNodegroup      time.Duration // Waiting for the managed nodegroup
	HelmInstall       time.Duration // Helm release install/upgrade
	Delete            time.Duration // All delete operations
	Verify            time.Duration // Per-check verification budget
	PollInterval      time.Duration // Fixed interval for status polling
	RetryMaxAttempts  int           // Maximum number of retry attempts
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - MESHLAB_TIMEOUT_NAT_GATEWAY (default: 5m)
//   - MESHLAB_TIMEOUT_PEERING (default: 3m)
//   - MESHLAB_TIMEOUT_ECS_SERVICE (default: 10m)
//   - MESHLAB_TIMEOUT_EKS_CLUSTER (default: 25m)
//   - MESHLAB_TIMEOUT_EKS_NODEGROUP (default: 15m)
//   - MESHLAB_TIMEOUT_HELM_INSTALL (default: 10m)
//   - MESHLAB_TIMEOUT_DELETE (default: 20m)
//   - MESHLAB_TIMEOUT_VERIFY (default: 2m)
//   - MESHLAB_POLL_INTERVAL (default: 10s)
//   - MESHLAB_RETRY_MAX_ATTEMPTS (default: 5)
//   - MESHLAB_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		NatGateway:        parseDuration("MESHLAB_TIMEOUT_NAT_GATEWAY", 5*time.Minute),
		Peering:           parseDuration("MESHLAB_TIMEOUT_PEERING", 3*time.Minute),
		ECSService:        parseDuration("MESHLAB_TIMEOUT_ECS_SERVICE", 10*time.Minute),
		EKSCluster:        parseDuration("MESHLAB_TIMEOUT_EKS_CLUSTER", 25*time.Minute),
		EKSNodegroup:      parseDuration("MESHLAB_TIMEOUT_EKS_NODEGROUP", 15*time.Minute),
		HelmInstall:       parseDuration("MESHLAB_TIMEOUT_HELM_INSTALL", 10*time.Minute),
		Delete:            parseDuration("MESHLAB_TIMEOUT_DELETE", 20*time.Minute),
		Verify:            parseDuration("MESHLAB_TIMEOUT_VERIFY", 2*time.Minute),
		PollInterval:      parseDuration("MESHLAB_POLL_INTERVAL", 10*time.Second),
		RetryMaxAttempts:  parseInt("MESHLAB_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("MESHLAB_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
