// Package instrumentation provides OpenTelemetry instrumentation for kv-oauth.
//
// When Config.Enabled is false every provider is a no-op. When enabled, spans
// go through an SDK tracer provider; pass Config.SpanProcessors to export them.
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-web-app",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
// # Available Metrics
//
// HTTP Layer:
//   - oauth.http.requests.total{method, endpoint, status}
//   - oauth.http.request.duration{endpoint}
//
// Session flows:
//   - oauth.signin.started{provider}
//   - oauth.callback.processed{provider, result}
//   - oauth.signout.processed{had_session}
//   - oauth.session.rotated{provider}
//
// Security:
//   - oauth.rate_limit.exceeded{limiter_type}
//   - oauth.state.mismatch{reason}
//   - oauth.audit.events.total{event_type}
//
// Storage:
//   - storage.operation.total{operation, result}
//   - storage.operation.duration{operation}
//   - storage.transactions.count
//   - storage.tokens.count
//
// Provider:
//   - provider.api.calls.total{provider, operation, success}
//   - provider.api.duration{provider, operation}
//   - provider.api.errors.total{provider, operation}
package instrumentation
