package prefixdb

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/elum-utils/prefixdb"

// startSpan starts a span with the common database attributes.
// With telemetry disabled it returns the span already in ctx.
func (c *Connection) startSpan(ctx context.Context, operation, query string) (context.Context, trace.Span) {
	if !c.telemetry {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "prefixdb."+operation)
	span.SetAttributes(
		attribute.String("db.system", c.driver),
		attribute.String("db.operation", operation),
	)
	if query != "" {
		span.SetAttributes(attribute.String("db.statement", query))
	}
	return ctx, span
}

// finishSpan records err on span and ends it.
func (c *Connection) finishSpan(span trace.Span, err error) {
	if !c.telemetry {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
