package destroy

import (
	"fmt"
	"strings"
)

// CleanupError accumulates per-resource failures during teardown so one
// stuck resource does not leave everything after it orphaned.
type CleanupError struct {
	failures []failure
}

type failure struct {
	resource string
	err      error
}

// Add records a failed deletion.
func (c *CleanupError) Add(resource string, err error) {
	c.failures = append(c.failures, failure{resource: resource, err: err})
}

// HasFailures reports whether any deletion failed.
func (c *CleanupError) HasFailures() bool {
	return len(c.failures) > 0
}

// Failures returns the failed resource names.
func (c *CleanupError) Failures() []string {
	out := make([]string, 0, len(c.failures))
	for _, f := range c.failures {
		out = append(out, f.resource)
	}
	return out
}

// ErrOrNil returns the error when failures were recorded, nil otherwise.
func (c *CleanupError) ErrOrNil() error {
	if !c.HasFailures() {
		return nil
	}
	return c
}

// Error implements the error interface.
func (c *CleanupError) Error() string {
	var parts []string
	for _, f := range c.failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.resource, f.err))
	}
	return fmt.Sprintf("%d resource(s) failed to delete: %s", len(c.failures), strings.Join(parts, "; "))
}
