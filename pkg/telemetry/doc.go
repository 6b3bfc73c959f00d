// Package telemetry provides the observability plumbing shared by the backend
// clients and the execution engine.
//
// The package combines structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus). Every component takes a
// *Telemetry; a nil value or Nop() disables all three pillars, so library
// users pay nothing unless they opt in.
//
// # Usage
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	c, err := client.NewRemoteClient(cfg, client.WithTelemetry(tel))
//
// # Metrics
//
//   - dhsdk_client_requests_total{method,status}
//   - dhsdk_client_request_duration_seconds{method}
//   - dhsdk_client_token_refresh_total{result}
//   - dhsdk_run_transitions_total{kind,state}
//   - dhsdk_runtime_calls_total{runtime,operation}
//   - dhsdk_runtime_errors_total{runtime,operation}
//
// Metrics live in a private registry exposed through Metrics.Handler.
//
// Never log credentials: the remote client only logs method, path and status.
package telemetry
