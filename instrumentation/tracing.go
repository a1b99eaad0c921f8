package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
//
// SECURITY WARNING: never put token values, authorization codes, state values
// or full session IDs in spans. Only metadata.
const (
	AttrProvider       = "oauth.provider"
	AttrPKCEMethod     = "oauth.pkce.method"
	AttrTokenType      = "oauth.token_type" //nolint:gosec // token type (Bearer), not a token
	AttrHasRefresh     = "oauth.token.has_refresh"
	AttrSessionNew     = "oauth.session.new"
	AttrSessionRotated = "oauth.session.rotated"
	AttrError          = "oauth.error"

	AttrStorageOperation = "storage.operation"
	AttrStorageType      = "storage.type"
	AttrStorageNamespace = "storage.namespace"

	AttrProviderOperation = "provider.operation"

	AttrRateLimiterType = "security.rate_limiter.type"
	AttrClientIP        = "security.client_ip"

	AttrHTTPEndpoint   = "http.endpoint"
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddSignInAttributes adds sign-in attributes to a span (nil-safe)
func AddSignInAttributes(span trace.Span, provider, pkceMethod string) {
	if provider != "" {
		SetSpanAttributes(span, attribute.String(AttrProvider, provider))
	}
	if pkceMethod != "" {
		SetSpanAttributes(span, attribute.String(AttrPKCEMethod, pkceMethod))
	}
}

// AddTokenAttributes describes an issued token bag without its values (nil-safe)
func AddTokenAttributes(span trace.Span, tokenType string, hasRefresh bool) {
	SetSpanAttributes(span,
		attribute.String(AttrTokenType, tokenType),
		attribute.Bool(AttrHasRefresh, hasRefresh),
	)
}

// AddStorageAttributes adds storage operation attributes to a span (nil-safe)
func AddStorageAttributes(span trace.Span, operation, storageType, namespace string) {
	SetSpanAttributes(span,
		attribute.String(AttrStorageOperation, operation),
		attribute.String(AttrStorageType, storageType),
	)
	if namespace != "" {
		SetSpanAttributes(span, attribute.String(AttrStorageNamespace, namespace))
	}
}

// AddProviderAttributes adds provider attributes to a span (nil-safe)
func AddProviderAttributes(span trace.Span, providerName, operation string) {
	SetSpanAttributes(span,
		attribute.String(AttrProvider, providerName),
		attribute.String(AttrProviderOperation, operation),
	)
}

// AddHTTPAttributes adds HTTP request attributes to a span (nil-safe)
func AddHTTPAttributes(span trace.Span, method, endpoint string, statusCode int) {
	SetSpanAttributes(span,
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPEndpoint, endpoint),
		attribute.Int(AttrHTTPStatusCode, statusCode),
	)
}

// AddSecurityAttributes adds the client IP to a span (nil-safe).
// Check ShouldLogClientIPs before calling.
func AddSecurityAttributes(span trace.Span, clientIP string) {
	if clientIP != "" {
		SetSpanAttributes(span, attribute.String(AttrClientIP, clientIP))
	}
}
