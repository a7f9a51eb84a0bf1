// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// The package wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - dual output (stdout and the OpenTelemetry log bridge)
//   - automatic context fields (trace_id, span_id, session.id, request.id)
//   - redaction of provider credentials (Groq, Tavily, gateway keys)
//   - level-aware sampling (errors are never sampled)
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, otelProvider)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithSessionID(ctx, sessionID)
//	logger.Info(ctx, "question solved", zap.Int("attempts", 1))
//
// Output includes the correlation fields:
//
//	{"level":"info","ts":"...","msg":"question solved","service":"mathrag","session.id":"...","attempts":1}
//
// # Testing
//
// NewTestLogger returns a logger backed by zaptest/observer with assertion
// helpers (AssertLogged, AssertField, AssertNoSecrets).
package logging
