package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInvokeSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartInvokeSpan(context.Background(), "bedrock", "m1", "batch")
	RecordUsage(span, "end_turn", 10, 4)
	EndWithError(span, nil)

	_, span = StartTurnSpan(context.Background(), "s1", "stream")
	EndWithError(span, errors.New("boom"))

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "llm.converse", ended[0].Name())
	attrs := map[string]string{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "bedrock", attrs["llm.provider"])
	assert.Equal(t, "end_turn", attrs["llm.stop_reason"])
	assert.Equal(t, "10", attrs["llm.usage.input_tokens"])
	assert.Equal(t, codes.Error, ended[1].Status().Code)
}

func TestExporterSampler(t *testing.T) {
	assert.Contains(t, Exporter{}.sampler().Description(), "AlwaysOnSampler")
	assert.Contains(t, Exporter{SampleRatio: 1.5}.sampler().Description(), "AlwaysOnSampler")
	assert.Contains(t, Exporter{SampleRatio: 0.25}.sampler().Description(), "TraceIDRatioBased{0.25}")
}
