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
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"converser/pkg/converse"
	"converser/pkg/message"
	"converser/pkg/stream"
	"converser/pkg/utils"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicMessagesPath   = "/v1/messages"
	anthropicVersion        = "2023-06-01"
)

// AnthropicClient Anthropic Messages API（批量 + SSE 流式）
type AnthropicClient struct {
	baseURL string
	batch   *resty.Client
	stream  *resty.Client
	logger  *slog.Logger
}

// NewAnthropicClient 创建 Anthropic 客户端；BaseURL 为空时用 ANTHROPIC_BASE_URL 或官方地址
func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	baseURL := strings.TrimRight(utils.Coalesce(cfg.BaseURL, os.Getenv("ANTHROPIC_BASE_URL"), defaultAnthropicBaseURL), "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	headers := map[string]string{
		"Content-Type":      "application/json",
		"x-api-key":         cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}

	batch := resty.New().SetHeaders(headers)
	batch.SetTimeout(timeout)
	batch.SetRetryCount(3)
	batch.SetRetryWaitTime(1 * time.Second)
	batch.SetRetryMaxWaitTime(5 * time.Second)

	// 流式请求的时长由 ctx 控制
	streamer := resty.New().SetHeaders(headers)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AnthropicClient{
		baseURL: baseURL,
		batch:   batch,
		stream:  streamer,
		logger:  logger.With("component", "llm", "provider", ProviderAnthropic),
	}, nil
}

// Provider 实现 Named
func (c *AnthropicClient) Provider() string { return ProviderAnthropic }

// Converse 实现 converse.Client
func (c *AnthropicClient) Converse(ctx context.Context, req *converse.Request) (*converse.Response, error) {
	body, err := buildAnthropicRequest(req, false)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.batch.R().
		SetContext(ctx).
		SetBody(body).
		Post(c.baseURL + anthropicMessagesPath)
	if err != nil {
		return nil, fmt.Errorf("调用 Anthropic API 失败: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, anthropicAPIError(resp.StatusCode(), resp.Body())
	}

	var out anthropicResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("解析 Anthropic 响应失败: %w", err)
	}
	msg := message.Message{Role: message.Role(out.Role)}
	for _, b := range out.Content {
		switch b.Type {
		case "text":
			msg.Content = append(msg.Content, message.Text(b.Text))
		case "tool_use":
			msg.Content = append(msg.Content, message.ToolUseBlock(b.ID, b.Name, b.Input))
		}
	}
	return &converse.Response{
		Message:    msg,
		StopReason: out.StopReason,
		Usage: stream.Usage{
			InputTokens:  out.Usage.InputTokens,
			OutputTokens: out.Usage.OutputTokens,
		},
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// ConverseStream 实现 converse.Client；非 200 时读完响应体并返回 AnthropicAPIError
func (c *AnthropicClient) ConverseStream(ctx context.Context, req *converse.Request) (stream.Source, error) {
	body, err := buildAnthropicRequest(req, true)
	if err != nil {
		return nil, err
	}
	resp, err := c.stream.R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		SetBody(body).
		SetDoNotParseResponse(true).
		Post(c.baseURL + anthropicMessagesPath)
	if err != nil {
		return nil, fmt.Errorf("调用 Anthropic API 失败: %w", err)
	}
	raw := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		defer raw.Close()
		data, _ := io.ReadAll(raw)
		return nil, anthropicAPIError(resp.StatusCode(), data)
	}
	return &anthropicSource{body: raw, sse: newSSEReader(raw)}, nil
}

// AnthropicAPIError 非 200 响应
type AnthropicAPIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *AnthropicAPIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("anthropic API error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("anthropic API error (%d, %s): %s", e.StatusCode, e.Type, e.Message)
}

func anthropicAPIError(status int, body []byte) error {
	var eb struct {
		Error anthropicErrorBody `json:"error"`
	}
	if err := json.Unmarshal(body, &eb); err != nil || eb.Error.Message == "" {
		return &AnthropicAPIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	return &AnthropicAPIError{StatusCode: status, Type: eb.Error.Type, Message: eb.Error.Message}
}

type anthropicRequest struct {
	Model         string             `json:"model"`
	Messages      []anthropicMessage `json:"messages"`
	System        string             `json:"system,omitempty"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   float64            `json:"temperature"`
	TopP          float64            `json:"top_p"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Tools         []anthropicTool    `json:"tools,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type      string           `json:"type"`
	Text      string           `json:"text,omitempty"`
	Source    *anthropicSrc    `json:"source,omitempty"`
	Title     string           `json:"title,omitempty"`
	ID        string           `json:"id,omitempty"`
	Name      string           `json:"name,omitempty"`
	Input     json.RawMessage  `json:"input,omitempty"`
	ToolUseID string           `json:"tool_use_id,omitempty"`
	Content   []anthropicBlock `json:"content,omitempty"`
	IsError   bool             `json:"is_error,omitempty"`
}

type anthropicSrc struct {
	Type      string `json:"type"` // base64 | text
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	ID         string           `json:"id"`
	Role       string           `json:"role"`
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      anthropicUsage   `json:"usage"`
}

type anthropicErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Bedrock 风格的 ID（anthropic.claude-3-haiku-20240307-v1:0）转为 API 模型名
var bedrockVersionSuffix = regexp.MustCompile(`-v\d+:\d+$`)

func anthropicModelName(id string) string {
	id = strings.TrimPrefix(id, "anthropic.")
	return bedrockVersionSuffix.ReplaceAllString(id, "")
}

var anthropicMediaTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"pdf":  "application/pdf",
}

func buildAnthropicRequest(req *converse.Request, streaming bool) (*anthropicRequest, error) {
	out := &anthropicRequest{
		Model:         anthropicModelName(req.ModelID),
		System:        strings.Join(req.System, "\n\n"),
		MaxTokens:     req.Inference.MaxTokens,
		Temperature:   req.Inference.Temperature,
		TopP:          req.Inference.TopP,
		StopSequences: req.Inference.StopSequences,
		Stream:        streaming,
	}
	for _, m := range req.Messages {
		am := anthropicMessage{Role: string(m.Role)}
		for _, b := range m.Content {
			ab, err := toAnthropicBlock(b)
			if err != nil {
				return nil, err
			}
			am.Content = append(am.Content, ab)
		}
		out.Messages = append(out.Messages, am)
	}
	for _, d := range req.Tools {
		out.Tools = append(out.Tools, anthropicTool{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema})
	}
	return out, nil
}

func toAnthropicBlock(b message.ContentBlock) (anthropicBlock, error) {
	switch {
	case b.Type == message.BlockText:
		return anthropicBlock{Type: "text", Text: b.Text}, nil
	case b.Type == message.BlockImage && b.Image != nil:
		mt, ok := anthropicMediaTypes[b.Image.Format]
		if !ok {
			return anthropicBlock{}, fmt.Errorf("anthropic: unsupported image format %q", b.Image.Format)
		}
		return anthropicBlock{Type: "image", Source: &anthropicSrc{
			Type: "base64", MediaType: mt, Data: base64.StdEncoding.EncodeToString(b.Image.Bytes),
		}}, nil
	case b.Type == message.BlockDocument && b.Document != nil:
		return anthropicDocument(b.Document)
	case b.Type == message.BlockToolUse && b.ToolUse != nil:
		input := b.ToolUse.Input
		if len(input) == 0 {
			input = json.RawMessage("{}")
		}
		return anthropicBlock{Type: "tool_use", ID: b.ToolUse.ID, Name: b.ToolUse.Name, Input: input}, nil
	case b.Type == message.BlockToolResult && b.ToolResult != nil:
		return anthropicBlock{
			Type:      "tool_result",
			ToolUseID: b.ToolResult.ToolUseID,
			Content:   []anthropicBlock{{Type: "text", Text: b.ToolResult.Output}},
			IsError:   b.ToolResult.Status == message.ToolResultError,
		}, nil
	}
	return anthropicBlock{}, fmt.Errorf("anthropic: unsupported content block %q", b.Type)
}

// anthropicDocument pdf 走 base64；文本类格式内联为 text source；其余格式需先抽取文本
func anthropicDocument(d *message.Document) (anthropicBlock, error) {
	block := anthropicBlock{Type: "document", Title: d.Name}
	if d.Format == "pdf" {
		block.Source = &anthropicSrc{Type: "base64", MediaType: "application/pdf", Data: base64.StdEncoding.EncodeToString(d.Bytes)}
		return block, nil
	}
	text, err := DocumentText(d)
	if err != nil {
		return anthropicBlock{}, err
	}
	block.Source = &anthropicSrc{Type: "text", MediaType: "text/plain", Data: text}
	return block, nil
}

// anthropicSource SSE → stream.Event；message_delta 映射为携带停止原因与用量的 Metadata
type anthropicSource struct {
	body        io.ReadCloser
	sse         *sseReader
	inputTokens int
}

type anthropicStreamEvent struct {
	Type         string              `json:"type"`
	Index        int                 `json:"index"`
	Message      *anthropicResponse  `json:"message"`
	ContentBlock *anthropicBlock     `json:"content_block"`
	Delta        *anthropicDelta     `json:"delta"`
	Usage        *anthropicUsage     `json:"usage"`
	Error        *anthropicErrorBody `json:"error"`
}

type anthropicDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	PartialJSON string `json:"partial_json"`
	StopReason  string `json:"stop_reason"`
}

func (s *anthropicSource) Recv() (stream.Event, error) {
	for {
		_, data, err := s.sse.Next()
		if err != nil {
			return stream.Event{}, err
		}
		var ev anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return stream.Event{}, fmt.Errorf("解析 Anthropic 流事件失败: %w", err)
		}
		switch ev.Type {
		case "ping":
			continue
		case "error":
			if ev.Error == nil {
				ev.Error = &anthropicErrorBody{}
			}
			return stream.Event{}, &AnthropicAPIError{StatusCode: http.StatusOK, Type: ev.Error.Type, Message: ev.Error.Message}
		case "message_start":
			out := stream.Event{Kind: stream.KindMessageStart, Role: message.RoleAssistant}
			if ev.Message != nil {
				s.inputTokens = ev.Message.Usage.InputTokens
				if ev.Message.Role != "" {
					out.Role = message.Role(ev.Message.Role)
				}
			}
			return out, nil
		case "content_block_start":
			out := stream.Event{Kind: stream.KindContentBlockStart, Index: ev.Index}
			if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
				out.ToolUse = &stream.ToolUseStart{ID: ev.ContentBlock.ID, Name: ev.ContentBlock.Name}
			}
			return out, nil
		case "content_block_delta":
			out := stream.Event{Kind: stream.KindContentBlockDelta, Index: ev.Index}
			if ev.Delta != nil {
				switch ev.Delta.Type {
				case "text_delta":
					out.Text = ev.Delta.Text
				case "input_json_delta":
					out.ToolInput = ev.Delta.PartialJSON
				}
			}
			return out, nil
		case "content_block_stop":
			return stream.Event{Kind: stream.KindContentBlockStop, Index: ev.Index}, nil
		case "message_delta":
			out := stream.Event{Kind: stream.KindMetadata}
			if ev.Delta != nil {
				out.StopReason = ev.Delta.StopReason
			}
			if ev.Usage != nil {
				out.Usage = &stream.Usage{InputTokens: s.inputTokens, OutputTokens: ev.Usage.OutputTokens}
			}
			return out, nil
		case "message_stop":
			return stream.Event{Kind: stream.KindMessageStop}, nil
		default:
			return stream.Event{Kind: stream.Kind(ev.Type)}, nil
		}
	}
}

func (s *anthropicSource) Close() error { return s.body.Close() }
