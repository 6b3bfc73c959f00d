package commands

import (
	"github.com/spf13/cobra"
)

func newArtifactCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Manage artifacts",
	}
	cmd.AddCommand(newArtifactLogCommand())
	return cmd
}

func newArtifactLogCommand() *cobra.Command {
	var (
		project string
		kind    string
		target  string
	)

	cmd := &cobra.Command{
		Use:   "log <name> <src>",
		Short: "Upload a file or directory and register it as an artifact",
		Example: `  # Copy ./model into the artifact store and record it
  dhsdk artifact log model ./model --project demo --target /data/artifacts/model`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			art, err := a.store.LogArtifact(cmd.Context(), project, args[0], kind, args[1], target)
			if err != nil {
				return err
			}
			return printEntity(cmd.OutOrStdout(), art)
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "project name")
	cmd.Flags().StringVar(&kind, "kind", "artifact", "artifact kind")
	cmd.Flags().StringVar(&target, "target", "", "destination path or URI")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}
