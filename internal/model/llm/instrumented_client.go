package llm

import (
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel/trace"

	"converser/pkg/converse"
	"converser/pkg/metrics"
	"converser/pkg/stream"
	"converser/pkg/tracing"
)

// InstrumentedClient 为模型调用记录 span、耗时、token 与流事件计数
type InstrumentedClient struct {
	inner    converse.Client
	provider string
}

// NewInstrumentedClient 包装客户端
func NewInstrumentedClient(inner converse.Client) *InstrumentedClient {
	return &InstrumentedClient{inner: inner, provider: ProviderOf(inner)}
}

// Provider 实现 Named
func (c *InstrumentedClient) Provider() string { return c.provider }

// Converse 实现 converse.Client
func (c *InstrumentedClient) Converse(ctx context.Context, req *converse.Request) (*converse.Response, error) {
	ctx, span := tracing.StartInvokeSpan(ctx, c.provider, req.ModelID, "batch")
	start := time.Now()
	resp, err := c.inner.Converse(ctx, req)
	metrics.TurnDuration.WithLabelValues("batch").Observe(time.Since(start).Seconds())
	if err != nil {
		tracing.EndWithError(span, err)
		return nil, err
	}
	recordUsage(resp.Usage)
	tracing.RecordUsage(span, resp.StopReason, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	tracing.EndWithError(span, nil)
	return resp, nil
}

// ConverseStream 实现 converse.Client；span 在事件源 Close 时结束
func (c *InstrumentedClient) ConverseStream(ctx context.Context, req *converse.Request) (stream.Source, error) {
	ctx, span := tracing.StartInvokeSpan(ctx, c.provider, req.ModelID, "stream")
	src, err := c.inner.ConverseStream(ctx, req)
	if err != nil {
		tracing.EndWithError(span, err)
		return nil, err
	}
	return &instrumentedSource{Source: src, span: span, start: time.Now()}, nil
}

type instrumentedSource struct {
	stream.Source
	span       trace.Span
	start      time.Time
	stopReason string
	usage      stream.Usage
	err        error
	closed     bool
}

func (s *instrumentedSource) Recv() (stream.Event, error) {
	ev, err := s.Source.Recv()
	if err != nil {
		if s.err == nil && !errors.Is(err, io.EOF) {
			s.err = err
		}
		return ev, err
	}
	metrics.StreamEventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	if ev.StopReason != "" {
		s.stopReason = ev.StopReason
	}
	if ev.Usage != nil {
		s.usage = *ev.Usage
	}
	return ev, nil
}

func (s *instrumentedSource) Close() error {
	err := s.Source.Close()
	if !s.closed {
		s.closed = true
		metrics.TurnDuration.WithLabelValues("stream").Observe(time.Since(s.start).Seconds())
		recordUsage(s.usage)
		tracing.RecordUsage(s.span, s.stopReason, s.usage.InputTokens, s.usage.OutputTokens)
		tracing.EndWithError(s.span, s.err)
	}
	return err
}

func recordUsage(u stream.Usage) {
	metrics.LLMTokensTotal.WithLabelValues("input").Add(float64(u.InputTokens))
	metrics.LLMTokensTotal.WithLabelValues("output").Add(float64(u.OutputTokens))
}
