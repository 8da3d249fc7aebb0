package commands

import (
	"github.com/spf13/cobra"

	"github.com/meshlab-io/meshlab/cmd/meshlab/handlers"
)

// Init returns the command for writing a starter configuration file.
func Init() *cobra.Command {
	var (
		outputPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter meshlab.yaml configuration",
		Long: `Write a starter configuration file with two demo ECS services,
an EKS cluster, and an ambient mesh namespace.

Edit the file, then run 'meshlab apply'.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Init(outputPath, force)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "meshlab.yaml", "Output file path")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}
