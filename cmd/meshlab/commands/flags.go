package commands

import "github.com/spf13/cobra"

// envFlags are the flags shared by every command that operates on an
// environment.
type envFlags struct {
	configPath string
	scenario   string
	statePath  string
}

func (f *envFlags) addTo(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to configuration file (default: meshlab.yaml)")
	cmd.Flags().StringVar(&f.scenario, "scenario", "", "Override the configured scenario (single-account or multi-account)")
	cmd.Flags().StringVar(&f.statePath, "state", "", "Override the state file path")
}
