// Package prerequisites provides utilities for checking required client tools.
package prerequisites

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Tool represents a client tool that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// EnvOverride names an environment variable that can point at the binary.
	EnvOverride string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string
}

// DefaultTools returns the default set of tools to check.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:        "kubectl",
			Required:    false,
			Description: "Useful for inspecting the EKS cluster manually",
			InstallURL:  "https://kubernetes.io/docs/tasks/tools/",
		},
	}
}

// MeshTools returns additional tools needed for mesh deployment.
// The istioctl here is the vendor distribution carrying the ECS workload
// registration subcommands; the open-source build will not work.
func MeshTools() []Tool {
	return []Tool{
		{
			Name:        "istioctl",
			EnvOverride: "MESHLAB_ISTIOCTL",
			Required:    true,
			Description: "Required for east-west gateways, waypoints, and ECS workload registration",
			InstallURL:  "https://docs.solo.io/",
		},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// lookPath and getenv are replaceable in tests.
var (
	lookPath = exec.LookPath
	getenv   = os.Getenv
)

// Check verifies the given tools are available.
func Check(tools []Tool) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}

		// An env override wins over PATH lookup.
		if tool.EnvOverride != "" {
			if p := getenv(tool.EnvOverride); p != "" {
				result.Found = true
				result.Path = p
			}
		}

		if !result.Found {
			if path, err := lookPath(tool.Name); err == nil {
				result.Found = true
				result.Path = path
			}
		}

		if result.Found {
			result.Version = toolVersion(result.Path)
		} else {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}

// CheckDefault checks the default tool set.
func CheckDefault() *CheckResults {
	return Check(DefaultTools())
}

// CheckMesh checks the default tools plus mesh tools.
func CheckMesh() *CheckResults {
	return Check(append(DefaultTools(), MeshTools()...))
}

// toolVersion runs the binary with "version" and returns the first output
// line, or empty string on failure. Purely informational.
func toolVersion(path string) string {
	out, err := exec.Command(path, "version", "--short").CombinedOutput() // #nosec G204
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return line
}
