package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootHasAllCommands(t *testing.T) {
	t.Parallel()

	root := Root()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{"init", "apply", "deploy", "verify", "status", "destroy", "version", "completion"} {
		assert.Contains(t, names, want)
	}
}

func TestApplyFlags(t *testing.T) {
	t.Parallel()

	cmd := Apply()
	require.NotNil(t, cmd.Flags().Lookup("config"))
	require.NotNil(t, cmd.Flags().Lookup("scenario"))
	require.NotNil(t, cmd.Flags().Lookup("state"))
	require.NotNil(t, cmd.Flags().Lookup("skip-eks"))
	assert.Equal(t, "c", cmd.Flags().Lookup("config").Shorthand)
}

func TestDestroyHasYesFlag(t *testing.T) {
	t.Parallel()

	require.NotNil(t, Destroy().Flags().Lookup("yes"))
}

func TestVerifyHasCheckFlag(t *testing.T) {
	t.Parallel()

	require.NotNil(t, Verify().Flags().Lookup("check"))
}
