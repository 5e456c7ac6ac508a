package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName instrumentation scope
const TracerName = "converser"

// span 属性键
const (
	AttrProvider     = attribute.Key("llm.provider")
	AttrModelID      = attribute.Key("llm.model_id")
	AttrMode         = attribute.Key("llm.mode")
	AttrStopReason   = attribute.Key("llm.stop_reason")
	AttrInputTokens  = attribute.Key("llm.usage.input_tokens")
	AttrOutputTokens = attribute.Key("llm.usage.output_tokens")
	AttrSessionID    = attribute.Key("session.id")
)

func tracer() trace.Tracer { return otel.Tracer(TracerName) }

// StartInvokeSpan 一次 converse 调用；mode 为 batch 或 stream
func StartInvokeSpan(ctx context.Context, provider, modelID, mode string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "llm.converse",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(AttrProvider.String(provider), AttrModelID.String(modelID), AttrMode.String(mode)),
	)
}

// StartTurnSpan 会话中的一个回合，包住其下的 llm.converse
func StartTurnSpan(ctx context.Context, sessionID, mode string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "session.turn",
		trace.WithAttributes(AttrSessionID.String(sessionID), AttrMode.String(mode)),
	)
}

func RecordUsage(span trace.Span, stopReason string, input, output int) {
	span.SetAttributes(
		AttrStopReason.String(stopReason),
		AttrInputTokens.Int(input),
		AttrOutputTokens.Int(output),
	)
}

// EndWithError err 为 nil 时等同 span.End()
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
