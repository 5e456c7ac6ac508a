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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"converser/pkg/converse"
	"converser/pkg/message"
	"converser/pkg/stream"
	"converser/pkg/tooluse"
	"converser/pkg/utils"
)

// OpenAIClient OpenAI 兼容端点（经 eino ChatModel），把 Chat Completions 映射到 converse 语义
type OpenAIClient struct {
	chat   model.ToolCallingChatModel
	logger *slog.Logger
}

// NewOpenAIClient BaseURL 为空时用 OPENAI_BASE_URL 或官方地址
func NewOpenAIClient(ctx context.Context, cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	chat, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: utils.Coalesce(cfg.BaseURL, os.Getenv("OPENAI_BASE_URL")),
		Model:   "gpt-4o-mini",
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI ChatModel failed: %w", err)
	}
	return newOpenAIClient(chat, cfg.Logger), nil
}

func newOpenAIClient(chat model.ToolCallingChatModel, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &OpenAIClient{chat: chat, logger: logger.With("component", "llm", "provider", ProviderOpenAI)}
}

// Provider 实现 Named
func (c *OpenAIClient) Provider() string { return ProviderOpenAI }

// Converse 实现 converse.Client
func (c *OpenAIClient) Converse(ctx context.Context, req *converse.Request) (*converse.Response, error) {
	chat, input, opts, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := chat.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	resp := &converse.Response{
		Message:    fromEinoMessage(out),
		StopReason: openAIStopReason(""),
		LatencyMs:  time.Since(start).Milliseconds(),
	}
	if out.ResponseMeta != nil {
		resp.StopReason = openAIStopReason(out.ResponseMeta.FinishReason)
		resp.Usage = fromEinoUsage(out.ResponseMeta.Usage)
	}
	return resp, nil
}

// ConverseStream 实现 converse.Client
func (c *OpenAIClient) ConverseStream(ctx context.Context, req *converse.Request) (stream.Source, error) {
	chat, input, opts, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	sr, err := chat.Stream(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return &openAISource{sr: sr, tools: map[int]int{}}, nil
}

func (c *OpenAIClient) prepare(req *converse.Request) (model.ToolCallingChatModel, []*schema.Message, []model.Option, error) {
	input, err := toEinoMessages(req.System, req.Messages)
	if err != nil {
		return nil, nil, nil, err
	}
	inf := req.Inference
	opts := []model.Option{
		model.WithModel(req.ModelID),
		model.WithTemperature(float32(inf.Temperature)),
		model.WithMaxTokens(inf.MaxTokens),
		model.WithTopP(float32(inf.TopP)),
	}
	if len(inf.StopSequences) > 0 {
		opts = append(opts, model.WithStop(inf.StopSequences))
	}
	chat := c.chat
	if len(req.Tools) > 0 {
		infos, err := tooluse.ToolInfos(req.Tools)
		if err != nil {
			return nil, nil, nil, err
		}
		if chat, err = c.chat.WithTools(infos); err != nil {
			return nil, nil, nil, err
		}
	}
	return chat, input, opts, nil
}

// toEinoMessages tool_result 块拆成独立的 tool 消息；文档块转为文本
func toEinoMessages(system []string, msgs []message.Message) ([]*schema.Message, error) {
	var out []*schema.Message
	if len(system) > 0 {
		out = append(out, schema.SystemMessage(strings.Join(system, "\n\n")))
	}
	for _, m := range msgs {
		if m.Role == message.RoleAssistant {
			out = append(out, toEinoAssistant(m))
			continue
		}
		var parts []schema.ChatMessagePart
		for _, b := range m.Content {
			switch {
			case b.Type == message.BlockText:
				parts = append(parts, schema.ChatMessagePart{Type: schema.ChatMessagePartTypeText, Text: b.Text})
			case b.Type == message.BlockImage && b.Image != nil:
				mime := "image/" + b.Image.Format
				parts = append(parts, schema.ChatMessagePart{
					Type: schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{
						URL:      "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b.Image.Bytes),
						MIMEType: mime,
					},
				})
			case b.Type == message.BlockDocument && b.Document != nil:
				text, err := DocumentText(b.Document)
				if err != nil {
					return nil, err
				}
				parts = append(parts, schema.ChatMessagePart{
					Type: schema.ChatMessagePartTypeText,
					Text: fmt.Sprintf("<document name=%q>\n%s\n</document>", b.Document.Name, text),
				})
			case b.Type == message.BlockToolResult && b.ToolResult != nil:
				out = append(out, schema.ToolMessage(b.ToolResult.Output, b.ToolResult.ToolUseID))
			}
		}
		switch {
		case len(parts) == 1 && parts[0].Type == schema.ChatMessagePartTypeText:
			out = append(out, schema.UserMessage(parts[0].Text))
		case len(parts) > 0:
			out = append(out, &schema.Message{Role: schema.User, MultiContent: parts})
		}
	}
	return out, nil
}

func toEinoAssistant(m message.Message) *schema.Message {
	var calls []schema.ToolCall
	for _, tu := range m.ToolUses() {
		args := string(tu.Input)
		if args == "" {
			args = "{}"
		}
		calls = append(calls, schema.ToolCall{
			ID:       tu.ID,
			Type:     "function",
			Function: schema.FunctionCall{Name: tu.Name, Arguments: args},
		})
	}
	return schema.AssistantMessage(m.Text(), calls)
}

func fromEinoMessage(m *schema.Message) message.Message {
	out := message.Message{Role: message.RoleAssistant}
	if m.Content != "" {
		out.Content = append(out.Content, message.Text(m.Content))
	}
	for _, tc := range m.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			args = json.RawMessage("{}")
		}
		out.Content = append(out.Content, message.ToolUseBlock(tc.ID, tc.Function.Name, args))
	}
	return out
}

func fromEinoUsage(u *schema.TokenUsage) stream.Usage {
	if u == nil {
		return stream.Usage{}
	}
	return stream.Usage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
}

// openAIStopReason finish_reason → converse 停止原因；空值视为正常结束
func openAIStopReason(finish string) string {
	switch finish {
	case "", "stop":
		return string(converse.StopEndTurn)
	case "length":
		return string(converse.StopMaxTokens)
	case "tool_calls", "function_call":
		return string(converse.StopToolUse)
	case "content_filter":
		return "content_filtered"
	}
	return finish
}

// openAISource 把 eino 消息块流合成为 converse 事件序列：
// MessageStart, [BlockStart, Delta..., BlockStop]..., MessageStop, Metadata
type openAISource struct {
	sr      *schema.StreamReader[*schema.Message]
	pending []stream.Event
	started bool
	ended   bool

	textOpen bool
	tools    map[int]int // tool call index -> block index
	finish   string
	usage    *stream.Usage
}

func (s *openAISource) Recv() (stream.Event, error) {
	for len(s.pending) == 0 {
		if s.ended {
			return stream.Event{}, io.EOF
		}
		if !s.started {
			s.started = true
			return stream.Event{Kind: stream.KindMessageStart, Role: message.RoleAssistant}, nil
		}
		chunk, err := s.sr.Recv()
		if err == io.EOF {
			s.finishStream()
			continue
		}
		if err != nil {
			return stream.Event{}, err
		}
		s.absorb(chunk)
	}
	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev, nil
}

func (s *openAISource) absorb(chunk *schema.Message) {
	if chunk.Content != "" {
		if !s.textOpen {
			s.textOpen = true
			s.pending = append(s.pending, stream.Event{Kind: stream.KindContentBlockStart, Index: 0})
		}
		s.pending = append(s.pending, stream.Event{Kind: stream.KindContentBlockDelta, Index: 0, Text: chunk.Content})
	}
	for i, tc := range chunk.ToolCalls {
		key := i
		if tc.Index != nil {
			key = *tc.Index
		}
		block, ok := s.tools[key]
		if !ok {
			block = len(s.tools) + 1
			s.tools[key] = block
			s.pending = append(s.pending, stream.Event{
				Kind:    stream.KindContentBlockStart,
				Index:   block,
				ToolUse: &stream.ToolUseStart{ID: tc.ID, Name: tc.Function.Name},
			})
		}
		if tc.Function.Arguments != "" {
			s.pending = append(s.pending, stream.Event{Kind: stream.KindContentBlockDelta, Index: block, ToolInput: tc.Function.Arguments})
		}
	}
	if meta := chunk.ResponseMeta; meta != nil {
		if meta.FinishReason != "" {
			s.finish = meta.FinishReason
		}
		if meta.Usage != nil {
			u := fromEinoUsage(meta.Usage)
			s.usage = &u
		}
	}
}

func (s *openAISource) finishStream() {
	s.ended = true
	if s.textOpen {
		s.pending = append(s.pending, stream.Event{Kind: stream.KindContentBlockStop, Index: 0})
	}
	blocks := make([]int, 0, len(s.tools))
	for _, b := range s.tools {
		blocks = append(blocks, b)
	}
	sort.Ints(blocks)
	for _, b := range blocks {
		s.pending = append(s.pending, stream.Event{Kind: stream.KindContentBlockStop, Index: b})
	}
	s.pending = append(s.pending, stream.Event{Kind: stream.KindMessageStop, StopReason: openAIStopReason(s.finish)})
	if s.usage != nil {
		s.pending = append(s.pending, stream.Event{Kind: stream.KindMetadata, Usage: s.usage})
	}
}

func (s *openAISource) Close() error {
	s.sr.Close()
	return nil
}
