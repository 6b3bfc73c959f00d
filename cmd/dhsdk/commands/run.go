package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/digitalhub/dhsdk/pkg/engine"
	"github.com/digitalhub/dhsdk/pkg/entity"
	"github.com/digitalhub/dhsdk/pkg/runtime"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Follow and control runs",
	}
	cmd.AddCommand(newRunWaitCommand())
	cmd.AddCommand(newRunStopCommand())
	cmd.AddCommand(newRunLogsCommand())
	return cmd
}

// runTarget loads the run addressed by key and an engine to drive it.
func runTarget(cmd *cobra.Command, key string, opts ...engine.Option) (*app, *engine.Engine, *entity.Entity, error) {
	parts, err := entity.ParseKey(key)
	if err != nil {
		return nil, nil, nil, err
	}
	if parts.Type != entity.TypeRun {
		return nil, nil, nil, entity.NewInvalidKeyError(key, "not a run key")
	}

	a, err := newApp()
	if err != nil {
		return nil, nil, nil, err
	}
	run, err := a.store.Get(cmd.Context(), entity.TypeRun, parts.Project, key)
	if err != nil {
		a.close(cmd.Context())
		return nil, nil, nil, err
	}
	opts = append(opts, engine.WithTelemetry(a.tel))
	return a, engine.New(a.store, runtime.NewRegistry(), opts...), run, nil
}

func newRunWaitCommand() *cobra.Command {
	var (
		poll    time.Duration
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait <key>",
		Short: "Wait until a run reaches a terminal state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, eng, run, err := runTarget(cmd, args[0], engine.WithPollInterval(poll))
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			defer eng.Close()

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if err := eng.Wait(ctx, run); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), run.State())
			if run.State() == entity.StateError {
				return fmt.Errorf("run %s failed: %v", run.ID, run.Status["message"])
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&poll, "poll", engine.DefaultPollInterval, "interval between status polls")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits forever)")

	return cmd
}

func newRunStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <key>",
		Short: "Stop a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, eng, run, err := runTarget(cmd, args[0])
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			defer eng.Close()

			if err := eng.Stop(cmd.Context(), run); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), run.State())
			return nil
		},
	}
}

func newRunLogsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <key>",
		Short: "Print the logs of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, eng, run, err := runTarget(cmd, args[0])
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			defer eng.Close()

			logs, err := eng.Logs(cmd.Context(), run)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), logs)
			}
			for _, l := range logs {
				fmt.Fprintln(cmd.OutOrStdout(), l["content"])
			}
			return nil
		},
	}
}
