package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	converrors "converser/pkg/errors"
	"converser/pkg/message"
	"converser/pkg/stream"
)

func newTestAnthropic(t *testing.T, h http.HandlerFunc) *AnthropicClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewAnthropicClient(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestAnthropic_RequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicClient(Config{})
	assert.Error(t, err)
}

func TestAnthropic_Converse(t *testing.T) {
	var got anthropicRequest
	c := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","role":"assistant","content":[{"type":"text","text":"Hi!"},
			{"type":"tool_use","id":"tu_1","name":"get_weather","input":{"city":"Paris"}}],
			"stop_reason":"tool_use","usage":{"input_tokens":9,"output_tokens":5}}`)
	})

	req := testRequest(message.UserText("hello"))
	resp, err := c.Converse(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "claude-3-haiku-20240307", got.Model)
	assert.Equal(t, "be brief", got.System)
	assert.Equal(t, 4096, got.MaxTokens)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello", got.Messages[0].Content[0].Text)

	assert.Equal(t, "Hi!", resp.Message.Text())
	assert.Equal(t, "tool_use", resp.StopReason)
	uses := resp.Message.ToolUses()
	require.Len(t, uses, 1)
	assert.JSONEq(t, `{"city":"Paris"}`, string(uses[0].Input))
	assert.Equal(t, 14, resp.Usage.Total())
}

func TestAnthropic_APIError(t *testing.T) {
	c := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	})
	_, err := c.Converse(context.Background(), testRequest(message.UserText("x")))
	var apiErr *AnthropicAPIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "rate_limit_error", apiErr.Type)

	_, err = c.ConverseStream(context.Background(), testRequest(message.UserText("x")))
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "slow down", apiErr.Message)
}

func sseBody(events ...string) string {
	var b strings.Builder
	for _, e := range events {
		var head struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal([]byte(e), &head)
		fmt.Fprintf(&b, "event: %s\ndata: %s\n\n", head.Type, e)
	}
	return b.String()
}

func TestAnthropic_StreamThroughReducer(t *testing.T) {
	body := sseBody(
		`{"type":"message_start","message":{"id":"m","role":"assistant","content":[],"usage":{"input_tokens":11,"output_tokens":1}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"ping"}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Bon"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"jour"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":3}}`,
		`{"type":"message_stop"}`,
	)
	var streamed bool
	c := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		streamed = req.Stream
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, body)
	})

	src, err := c.ConverseStream(context.Background(), testRequest(message.UserText("hi")))
	require.NoError(t, err)
	outs, err := stream.Collect(stream.NewReducer(src))
	require.NoError(t, err)
	assert.True(t, streamed)

	last := outs[len(outs)-1]
	assert.True(t, last.Event.Done)
	assert.Equal(t, "Bonjour", last.Message.Text())
	assert.Equal(t, "end_turn", last.Event.StopReason)
	require.NotNil(t, last.Event.Usage)
	assert.Equal(t, 11, last.Event.Usage.InputTokens)
	assert.Equal(t, 3, last.Event.Usage.OutputTokens)
	assert.Equal(t, stream.KindMessageStart, outs[0].Event.Kind)
}

func TestAnthropic_StreamUnknownEvent(t *testing.T) {
	body := sseBody(
		`{"type":"message_start","message":{"role":"assistant"}}`,
		`{"type":"brand_new_event"}`,
	)
	c := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	})
	src, err := c.ConverseStream(context.Background(), testRequest(message.UserText("hi")))
	require.NoError(t, err)
	_, err = stream.Collect(stream.NewReducer(src))
	assert.ErrorIs(t, err, converrors.ErrUnrecognizedStreamEvent)
}

func TestAnthropicModelName(t *testing.T) {
	assert.Equal(t, "claude-3-haiku-20240307", anthropicModelName("anthropic.claude-3-haiku-20240307-v1:0"))
	assert.Equal(t, "claude-3-5-sonnet-latest", anthropicModelName("claude-3-5-sonnet-latest"))
}

func TestToAnthropicBlock(t *testing.T) {
	b, err := toAnthropicBlock(message.ImageBlock("png", []byte{1, 2}))
	require.NoError(t, err)
	assert.Equal(t, "image/png", b.Source.MediaType)
	assert.Equal(t, "AQI=", b.Source.Data)

	b, err = toAnthropicBlock(message.DocumentBlock("md", "notes.md", []byte("# hi")))
	require.NoError(t, err)
	assert.Equal(t, "text", b.Source.Type)
	assert.Equal(t, "# hi", b.Source.Data)

	_, err = toAnthropicBlock(message.DocumentBlock("docx", "a.docx", []byte("PK")))
	assert.ErrorIs(t, err, converrors.ErrUnsupportedFormat)

	b, err = toAnthropicBlock(message.ToolResultBlock("tu_1", "boom", message.ToolResultError))
	require.NoError(t, err)
	assert.True(t, b.IsError)
	assert.Equal(t, "tu_1", b.ToolUseID)
}

func TestSSEReader(t *testing.T) {
	r := newSSEReader(strings.NewReader(": comment\nevent: a\ndata: one\ndata: two\n\nevent: b\ndata: three"))
	ev, data, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", ev)
	assert.Equal(t, "one\ntwo", data)
	ev, data, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", ev)
	assert.Equal(t, "three", data)
	_, _, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
