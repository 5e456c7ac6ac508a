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

package converse

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"converser/pkg/errors"
	"converser/pkg/memory"
	"converser/pkg/message"
	"converser/pkg/stream"
	"converser/pkg/tooluse"
)

// fakeClient 记录请求并返回预设结果
type fakeClient struct {
	requests []*Request
	resp     *Response
	err      error
	events   []stream.Event
	src      *stream.SliceSource
}

func (f *fakeClient) Converse(ctx context.Context, req *Request) (*Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	r := *f.resp
	return &r, nil
}

func (f *fakeClient) ConverseStream(ctx context.Context, req *Request) (stream.Source, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	f.src = stream.NewSliceSource(f.events...)
	return f.src, nil
}

func replying(text, stop string) *fakeClient {
	return &fakeClient{
		resp: &Response{Message: message.AssistantText(text), StopReason: stop, Usage: stream.Usage{InputTokens: 5, OutputTokens: 2}},
		events: []stream.Event{
			{Kind: stream.KindMessageStart, Role: message.RoleAssistant},
			{Kind: stream.KindContentBlockDelta, Text: text[:1]},
			{Kind: stream.KindContentBlockDelta, Text: text[1:]},
			{Kind: stream.KindContentBlockStop},
			{Kind: stream.KindMessageStop, StopReason: stop},
			{Kind: stream.KindMetadata, Usage: &stream.Usage{InputTokens: 5, OutputTokens: 2}},
		},
	}
}

func TestNew_DefaultsAndValidation(t *testing.T) {
	c, err := New(replying("hi", "end_turn"), "model-x", WithSystemPrompt("be brief", ""))
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID())
	s := c.Settings()
	assert.Equal(t, "model-x", s.ModelID)
	assert.Equal(t, []string{"be brief"}, s.System)
	assert.Equal(t, DefaultInferenceConfig(), s.Inference)
	assert.Nil(t, c.Memory())

	_, err = New(replying("hi", "end_turn"), "")
	assert.ErrorIs(t, err, errors.ErrInvalidArg)

	_, err = New(replying("hi", "end_turn"), "m", WithInferenceConfig(InferenceConfig{Temperature: 2, MaxTokens: 10}))
	assert.ErrorIs(t, err, errors.ErrInvalidArg)

	_, err = New(nil, "m")
	assert.Error(t, err)
}

func TestSettings_AreImmutableCopies(t *testing.T) {
	c, err := New(replying("hi", "end_turn"), "m", WithSystemPrompt("a"))
	require.NoError(t, err)
	s := c.Settings()
	s.System[0] = "changed"
	s.Inference.StopSequences = append(s.Inference.StopSequences, "x")
	assert.Equal(t, []string{"a"}, c.Settings().System)
	assert.Empty(t, c.Settings().Inference.StopSequences)
}

func TestSend_CommitsLastCallerMessageAndReply(t *testing.T) {
	mem := memory.New()
	client := replying("Hello", "end_turn")
	c, err := New(client, "m", WithMemory(mem), WithSystemPrompt("sys"))
	require.NoError(t, err)

	resp, err := c.Send(context.Background(), message.UserText("Hi"))
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Message.Text())
	assert.Equal(t, "end_turn", resp.StopReason)

	h := mem.History()
	require.Len(t, h, 2)
	assert.Equal(t, "Hi", h[0].Text())
	assert.Equal(t, message.RoleAssistant, h[1].Role)
	assert.Equal(t, "Hello", h[1].Text())

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, "m", req.ModelID)
	assert.Equal(t, []string{"sys"}, req.System)
	assert.Equal(t, DefaultMaxTokens, req.Inference.MaxTokens)
}

func TestSend_MergesHistoryBeforeBatch(t *testing.T) {
	mem := memory.New()
	require.NoError(t, mem.Append(message.UserText("q1"), message.AssistantText("a1")))
	client := replying("a2", "end_turn")
	c, err := New(client, "m", WithMemory(mem))
	require.NoError(t, err)

	_, err = c.Send(context.Background(), message.UserText("q2"))
	require.NoError(t, err)

	sent := client.requests[0].Messages
	require.Len(t, sent, 3)
	assert.Equal(t, "q1", sent[0].Text())
	assert.Equal(t, "q2", sent[2].Text())
	assert.Equal(t, 4, mem.Len())
}

func TestSend_MultiMessageBatchCommitsOnlyLast(t *testing.T) {
	mem := memory.New()
	c, err := New(replying("ok", "end_turn"), "m", WithMemory(mem))
	require.NoError(t, err)

	_, err = c.Send(context.Background(), message.UserText("u1"), message.AssistantText("a1"), message.UserText("u2"))
	require.NoError(t, err)
	h := mem.History()
	require.Len(t, h, 2)
	assert.Equal(t, "u2", h[0].Text())
	assert.Equal(t, "ok", h[1].Text())
}

func TestSend_InvalidOrderNeverCallsModel(t *testing.T) {
	cases := map[string][]message.Message{
		"empty":           nil,
		"assistant first": {message.AssistantText("x")},
		"two users":       {message.UserText("a"), message.UserText("b")},
	}
	for name, batch := range cases {
		t.Run(name, func(t *testing.T) {
			mem := memory.New()
			client := replying("x", "end_turn")
			c, err := New(client, "m", WithMemory(mem))
			require.NoError(t, err)

			_, err = c.Send(context.Background(), batch...)
			assert.ErrorIs(t, err, errors.ErrInvalidOrder)
			assert.Empty(t, client.requests)
			assert.Equal(t, 0, mem.Len())
		})
	}
}

func TestSend_UnsupportedStopReason(t *testing.T) {
	for _, reason := range []string{"content_filtered", "guardrail_intervened", ""} {
		mem := memory.New()
		c, err := New(replying("x", reason), "m", WithMemory(mem))
		require.NoError(t, err)

		_, err = c.Send(context.Background(), message.UserText("q"))
		var sr *errors.UnsupportedStopReasonError
		require.ErrorAs(t, err, &sr)
		assert.Equal(t, reason, sr.Reason)
		assert.Equal(t, 0, mem.Len())
	}
}

func TestSend_RecognizedStopReasonsCommit(t *testing.T) {
	for _, reason := range []string{"end_turn", "tool_use", "max_tokens", "stop_sequence"} {
		mem := memory.New()
		c, err := New(replying("x", reason), "m", WithMemory(mem))
		require.NoError(t, err)
		_, err = c.Send(context.Background(), message.UserText("q"))
		require.NoError(t, err, reason)
		assert.Equal(t, 2, mem.Len(), reason)
	}
}

func TestSend_ClientErrorPropagatesUnwrapped(t *testing.T) {
	mem, err := memory.FromHistory([]message.Message{
		message.UserText("earlier"),
		message.AssistantText("reply"),
	})
	require.NoError(t, err)
	before := mem.History()
	transport := stderrors.New("throttled")
	c, err := New(&fakeClient{err: transport}, "m", WithMemory(mem))
	require.NoError(t, err)

	_, err = c.Send(context.Background(), message.UserText("q"))
	assert.Equal(t, transport, err)
	assert.Equal(t, before, mem.History())
}

func TestSend_WithoutMemoryIsStateless(t *testing.T) {
	client := replying("x", "end_turn")
	c, err := New(client, "m")
	require.NoError(t, err)
	_, err = c.Send(context.Background(), message.UserText("q1"))
	require.NoError(t, err)
	_, err = c.Send(context.Background(), message.UserText("q2"))
	require.NoError(t, err)
	assert.Len(t, client.requests[1].Messages, 1)
}

func TestSend_ToolsPassedThrough(t *testing.T) {
	d, err := tooluse.FromParams("ping", "Ping.")
	require.NoError(t, err)
	client := replying("x", "tool_use")
	c, err := New(client, "m", WithTools(d))
	require.NoError(t, err)
	_, err = c.Send(context.Background(), message.UserText("q"))
	require.NoError(t, err)
	require.Len(t, client.requests[0].Tools, 1)
	assert.Equal(t, "ping", client.requests[0].Tools[0].Name)
}

func TestSendStream_CommitsOnTerminal(t *testing.T) {
	mem := memory.New()
	c, err := New(replying("Hello", "end_turn"), "m", WithMemory(mem))
	require.NoError(t, err)

	r, err := c.SendStream(context.Background(), message.UserText("Hi"))
	require.NoError(t, err)
	outs, err := stream.Collect(r)
	require.NoError(t, err)

	last := outs[len(outs)-1]
	assert.True(t, last.Event.Done)
	require.NotNil(t, last.Message)
	assert.Equal(t, "Hello", last.Message.Text())
	require.NotNil(t, last.Event.Usage)
	assert.Equal(t, 5, last.Event.Usage.InputTokens)

	h := mem.History()
	require.Len(t, h, 2)
	assert.Equal(t, "Hi", h[0].Text())
	assert.Equal(t, "Hello", h[1].Text())
}

func TestSendStream_AbandonedDoesNotCommit(t *testing.T) {
	mem := memory.New()
	client := replying("Hello", "end_turn")
	c, err := New(client, "m", WithMemory(mem))
	require.NoError(t, err)

	r, err := c.SendStream(context.Background(), message.UserText("Hi"))
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.True(t, client.src.Closed())
	assert.Equal(t, 0, mem.Len())
}

func TestSendStream_UnsupportedStopReason(t *testing.T) {
	mem := memory.New()
	c, err := New(replying("Hello", "content_filtered"), "m", WithMemory(mem))
	require.NoError(t, err)

	r, err := c.SendStream(context.Background(), message.UserText("Hi"))
	require.NoError(t, err)
	_, err = stream.Collect(r)
	assert.ErrorIs(t, err, errors.ErrUnsupportedStopReason)
	assert.Equal(t, 0, mem.Len())
}

func TestSendStream_InvalidOrder(t *testing.T) {
	client := replying("x", "end_turn")
	c, err := New(client, "m")
	require.NoError(t, err)
	_, err = c.SendStream(context.Background(), message.AssistantText("x"))
	assert.ErrorIs(t, err, errors.ErrInvalidOrder)
	assert.Empty(t, client.requests)
}

func TestStream_ExplicitSettings(t *testing.T) {
	mem := memory.New()
	client := replying("yo", "stop_sequence")
	settings := Settings{ModelID: "m2", Inference: DefaultInferenceConfig()}

	r, err := Stream(context.Background(), client, settings, mem, []message.Message{message.UserText("q")})
	require.NoError(t, err)
	_, err = stream.Collect(r)
	require.NoError(t, err)
	assert.Equal(t, "m2", client.requests[0].ModelID)
	assert.Equal(t, 2, mem.Len())

	_, err = Stream(context.Background(), client, Settings{}, mem, []message.Message{message.UserText("q")})
	assert.ErrorIs(t, err, errors.ErrInvalidArg)
}

func TestInferenceConfig_Validate(t *testing.T) {
	ok := DefaultInferenceConfig()
	assert.NoError(t, ok.Validate())

	bad := []InferenceConfig{
		{Temperature: -0.1, MaxTokens: 1},
		{Temperature: 0.5, MaxTokens: 0},
		{Temperature: 0.5, MaxTokens: 4097},
		{Temperature: 0.5, MaxTokens: 10, TopP: 1.5},
		{Temperature: 0.5, MaxTokens: 10, StopSequences: []string{"a", "b", "c", "d", "e"}},
	}
	for _, cfg := range bad {
		assert.ErrorIs(t, cfg.Validate(), errors.ErrInvalidArg, "%+v", cfg)
	}
}

func TestParseStopReason(t *testing.T) {
	r, err := ParseStopReason("max_tokens")
	require.NoError(t, err)
	assert.Equal(t, StopMaxTokens, r)

	_, err = ParseStopReason("guardrail_intervened")
	assert.ErrorIs(t, err, errors.ErrUnsupportedStopReason)
}

func TestCommitHook_BatchAndStream(t *testing.T) {
	var saved [][]message.Message
	hook := func(ctx context.Context, history []message.Message) error {
		saved = append(saved, history)
		return stderrors.New("store down")
	}
	mem := memory.New()
	c, err := New(replying("Hi", "end_turn"), "m", WithMemory(mem), WithCommitHook(hook))
	require.NoError(t, err)

	_, err = c.Send(context.Background(), message.UserText("hello"))
	require.NoError(t, err, "hook errors are logged only")
	require.Len(t, saved, 1)
	assert.Len(t, saved[0], 2)

	r, err := c.SendStream(context.Background(), message.UserText("again"))
	require.NoError(t, err)
	_, err = stream.Collect(r)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Len(t, saved[1], 4)
}

func TestCommitHook_NotCalledWithoutCommit(t *testing.T) {
	called := false
	hook := func(context.Context, []message.Message) error { called = true; return nil }

	c, err := New(replying("x", "content_filtered"), "m", WithMemory(memory.New()), WithCommitHook(hook))
	require.NoError(t, err)
	_, err = c.Send(context.Background(), message.UserText("hello"))
	require.Error(t, err)

	stateless, err := New(replying("x", "end_turn"), "m", WithCommitHook(hook))
	require.NoError(t, err)
	_, err = stateless.Send(context.Background(), message.UserText("hello"))
	require.NoError(t, err)
	assert.False(t, called)
}
