package commands

import (
	"github.com/spf13/cobra"

	"github.com/digitalhub/dhsdk/pkg/entities"
	"github.com/digitalhub/dhsdk/pkg/entity"
)

func newProjectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	cmd.AddCommand(newProjectCreateCommand())
	cmd.AddCommand(newProjectGetCommand())
	cmd.AddCommand(newProjectDeleteCommand())
	return cmd
}

func newProjectCreateCommand() *cobra.Command {
	var (
		description string
		labels      []string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Example: `  # Create a project
  dhsdk project create demo --description "demo project" --label team-a`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			p, err := entities.ProjectFromParameters(args[0], entities.Parameters{
				Description: description,
				Labels:      labels,
				User:        a.cfg.User,
			})
			if err != nil {
				return err
			}
			created, err := a.store.Create(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printEntity(cmd.OutOrStdout(), created)
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "project description")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "project labels")

	return cmd
}

func newProjectGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show a project and the latest version of its entities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			p, err := a.store.Read(cmd.Context(), entity.TypeProject, "", args[0])
			if err != nil {
				return err
			}
			return printEntity(cmd.OutOrStdout(), p)
		},
	}
}

func newProjectDeleteCommand() *cobra.Command {
	var cascade bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			res, err := a.store.Delete(cmd.Context(), entity.TypeProject, "", args[0], entities.DeleteOptions{Cascade: cascade})
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().BoolVar(&cascade, "cascade", false, "also delete every entity of the project")

	return cmd
}
