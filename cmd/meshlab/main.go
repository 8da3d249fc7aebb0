// Package main is the entry point for the meshlab CLI.
//
// meshlab provisions a demo environment spanning Amazon ECS and Amazon EKS
// joined by an Istio ambient mesh, verifies cross-cluster connectivity, and
// tears everything down again.
//
// Commands: init, apply, deploy, verify, status, destroy.
//
// For detailed usage information, run:
//
//	meshlab --help
package main

import (
	"fmt"
	"os"

	"github.com/meshlab-io/meshlab/cmd/meshlab/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
