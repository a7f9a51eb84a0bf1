// Package telemetry sets up OpenTelemetry trace and meter providers.
//
// Spans come from the knowledge stores, the pipeline stages and the MCP
// tools; OTEL metrics come from the HTTP and MCP layers. Prometheus metrics
// for the pipeline are registered separately and served at /metrics.
//
//	tel, err := telemetry.New(ctx, cfg.Observability)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Configuration:
//
//	observability:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc
//	  service_name: "mathrag"
//	  sampling:
//	    rate: 1.0
//	  metrics:
//	    export_interval: "15s"
//
// Exporter failures never fail startup. The instance is marked degraded and
// callers keep getting the global no-op providers.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
