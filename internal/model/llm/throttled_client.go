// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package llm

import (
	"context"
	"sync"
	"time"

	"converser/pkg/converse"
	"converser/pkg/message"
	"converser/pkg/metrics"
	"converser/pkg/stream"
)

// ThrottledClient 在调用前向 Throttle 申请许可；流式调用的许可随事件源 Close 归还
type ThrottledClient struct {
	inner    converse.Client
	provider string
	throttle *Throttle
}

// NewThrottledClient throttle 为 nil 时直接透传
func NewThrottledClient(inner converse.Client, throttle *Throttle) *ThrottledClient {
	return &ThrottledClient{inner: inner, provider: ProviderOf(inner), throttle: throttle}
}

func (c *ThrottledClient) Provider() string { return c.provider }

func (c *ThrottledClient) Converse(ctx context.Context, req *converse.Request) (*converse.Response, error) {
	if c.throttle == nil {
		return c.inner.Converse(ctx, req)
	}
	release, err := c.admit(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := c.inner.Converse(ctx, req)
	if err != nil {
		release(0)
		return nil, err
	}
	release(resp.Usage.Total())
	return resp, nil
}

func (c *ThrottledClient) ConverseStream(ctx context.Context, req *converse.Request) (stream.Source, error) {
	if c.throttle == nil {
		return c.inner.ConverseStream(ctx, req)
	}
	release, err := c.admit(ctx, req)
	if err != nil {
		return nil, err
	}
	src, err := c.inner.ConverseStream(ctx, req)
	if err != nil {
		release(0)
		return nil, err
	}
	return &throttledSource{Source: src, release: release}, nil
}

func (c *ThrottledClient) admit(ctx context.Context, req *converse.Request) (func(int), error) {
	start := time.Now()
	release, err := c.throttle.Acquire(ctx, c.provider, estimateTokens(req))
	if err != nil {
		return nil, err
	}
	metrics.RateLimitWaitSeconds.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())
	return release, nil
}

// throttledSource 记下 metadata 中的用量，Close 时一并归还
type throttledSource struct {
	stream.Source
	release func(int)
	used    int
	once    sync.Once
}

func (s *throttledSource) Recv() (stream.Event, error) {
	ev, err := s.Source.Recv()
	if err == nil && ev.Usage != nil {
		s.used = ev.Usage.Total()
	}
	return ev, err
}

func (s *throttledSource) Close() error {
	err := s.Source.Close()
	s.once.Do(func() { s.release(s.used) })
	return err
}

// estimateTokens 约 4 字节一个 token，再加上 max_tokens
func estimateTokens(req *converse.Request) int {
	n := 0
	for _, s := range req.System {
		n += len(s)
	}
	for _, m := range req.Messages {
		n += payloadBytes(m)
	}
	return max(n/4+req.Inference.MaxTokens, 1)
}

func payloadBytes(m message.Message) int {
	n := 0
	for _, b := range m.Content {
		switch {
		case b.Type == message.BlockText:
			n += len(b.Text)
		case b.ToolUse != nil:
			n += len(b.ToolUse.Input)
		case b.ToolResult != nil:
			n += len(b.ToolResult.Output)
		case b.Document != nil:
			n += len(b.Document.Bytes)
		}
	}
	return n
}
