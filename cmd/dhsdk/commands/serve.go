package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/digitalhub/dhsdk/pkg/client"
	"github.com/digitalhub/dhsdk/pkg/mockserver"
)

func newServeCommand(version string) *cobra.Command {
	var (
		addr     string
		apiLevel int
		user     string
		password string
		token    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an in-memory backend over HTTP",
		Long: `Serve the backend REST API from process memory.

Data is lost when the server stops. Prometheus metrics are exposed on
/metrics and a health check on /healthz.`,
		Example: `  # Serve on port 8080 and point the CLI at it
  dhsdk serve --addr :8080 &
  dhsdk --endpoint http://localhost:8080 project create demo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tel, err := newTelemetry(version)
			if err != nil {
				return fmt.Errorf("failed to initialize telemetry: %w", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tel.Shutdown(ctx)
			}()

			srv := mockserver.NewServer(
				client.NewLocalClient(client.WithTelemetry(tel)),
				mockserver.WithAPILevel(apiLevel),
				mockserver.WithBasicAuth(user, password),
				mockserver.WithBearerToken(token),
				mockserver.WithMetrics(tel.Metrics),
				mockserver.WithLogger(tel.Logger),
			)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().IntVar(&apiLevel, "api-level", mockserver.DefaultAPILevel, "advertised API level")
	cmd.Flags().StringVar(&user, "user", "", "require basic auth with this user")
	cmd.Flags().StringVar(&password, "password", "", "password for --user")
	cmd.Flags().StringVar(&token, "token", "", "require this bearer token")

	return cmd
}
