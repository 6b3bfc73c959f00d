package commands

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/digitalhub/dhsdk/pkg/entities"
	"github.com/digitalhub/dhsdk/pkg/entity"
)

func newEntityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "List, show, export and delete project entities",
		Long: `Entities are addressed by key:

  store://<project>/<type>/<kind>/<name>[:<id>]

A key without id selects the latest version of the name.`,
	}
	cmd.AddCommand(newEntityListCommand())
	cmd.AddCommand(newEntityGetCommand())
	cmd.AddCommand(newEntityDeleteCommand())
	cmd.AddCommand(newEntityExportCommand())
	cmd.AddCommand(newEntityImportCommand())
	return cmd
}

func newEntityListCommand() *cobra.Command {
	var (
		project     string
		name        string
		kind        string
		state       string
		allVersions bool
	)

	cmd := &cobra.Command{
		Use:   "list <type>",
		Short: "List entities of a type, newest first",
		Example: `  # Latest version of every function
  dhsdk entity list functions --project demo

  # Every version of one artifact
  dhsdk entity list artifacts --project demo --name data --all-versions

  # Completed runs
  dhsdk entity list runs --project demo --state COMPLETED`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := entity.Type(args[0])
			if err := t.Validate(); err != nil {
				return err
			}
			if !t.IsBase() && project == "" {
				return fmt.Errorf("--project is required for %s", t)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			filters := url.Values{}
			for k, v := range map[string]string{"name": name, "kind": kind, "state": state} {
				if v != "" {
					filters.Set(k, v)
				}
			}
			if allVersions {
				filters.Set("versions", "all")
			}

			list, err := a.store.List(cmd.Context(), t, project, filters)
			if err != nil {
				return err
			}
			return printEntities(cmd.OutOrStdout(), list)
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "project name")
	cmd.Flags().StringVar(&name, "name", "", "filter by name")
	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind")
	cmd.Flags().StringVar(&state, "state", "", "filter runs by state")
	cmd.Flags().BoolVar(&allVersions, "all-versions", false, "list every version instead of the latest")

	return cmd
}

func newEntityGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts, err := entity.ParseKey(args[0])
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			e, err := a.store.Get(cmd.Context(), parts.Type, parts.Project, args[0])
			if err != nil {
				return err
			}
			return printEntity(cmd.OutOrStdout(), e)
		},
	}
}

func newEntityDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete one version, or every version when the key has no id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts, err := entity.ParseKey(args[0])
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			res, err := a.store.Delete(cmd.Context(), parts.Type, parts.Project, args[0], entities.DeleteOptions{})
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), res)
		},
	}
}

func newEntityExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <key>",
		Short: "Export an entity to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts, err := entity.ParseKey(args[0])
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			e, err := a.store.Get(cmd.Context(), parts.Type, parts.Project, args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("%s-%s.yaml", e.Type.Singular(), e.ID)
			}
			if err := entities.ExportFile(output, e); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file")

	return cmd
}

func newEntityImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Create an entity from an exported YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			e, err := entities.Import(f)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			created, err := a.store.Create(cmd.Context(), e)
			if err != nil {
				return err
			}
			return printEntity(cmd.OutOrStdout(), created)
		},
	}
}
