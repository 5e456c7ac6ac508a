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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"converser/pkg/converse"
	"converser/pkg/message"
	"converser/pkg/stream"
	"converser/pkg/tooluse"
)

// bedrockAPI bedrockruntime 的最小子集，测试中可替换
type bedrockAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, in *bedrockruntime.ConverseStreamInput) (bedrockEvents, error)
}

// bedrockEvents 即 *bedrockruntime.ConverseStreamEventStream
type bedrockEvents interface {
	Events() <-chan types.ConverseStreamOutput
	Close() error
	Err() error
}

type sdkBedrock struct {
	c *bedrockruntime.Client
}

func (s sdkBedrock) Converse(ctx context.Context, in *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error) {
	return s.c.Converse(ctx, in)
}

func (s sdkBedrock) ConverseStream(ctx context.Context, in *bedrockruntime.ConverseStreamInput) (bedrockEvents, error) {
	out, err := s.c.ConverseStream(ctx, in)
	if err != nil {
		return nil, err
	}
	return out.GetStream(), nil
}

// BedrockClient Amazon Bedrock Converse / ConverseStream
type BedrockClient struct {
	api    bedrockAPI
	logger *slog.Logger
}

// NewBedrockClient 使用默认凭证链；Region/Profile/BaseURL 可覆盖
func NewBedrockClient(ctx context.Context, cfg Config) (*BedrockClient, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, awsconfig.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(cfg.Timeout)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("加载 AWS 配置失败: %w", err)
	}
	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if cfg.BaseURL != "" {
			o.BaseEndpoint = aws.String(cfg.BaseURL)
		}
	})
	return newBedrockClient(sdkBedrock{c: client}, cfg.Logger), nil
}

func newBedrockClient(api bedrockAPI, logger *slog.Logger) *BedrockClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BedrockClient{api: api, logger: logger.With("component", "llm", "provider", ProviderBedrock)}
}

// Provider 实现 Named
func (c *BedrockClient) Provider() string { return ProviderBedrock }

// Converse 实现 converse.Client；SDK 错误原样返回
func (c *BedrockClient) Converse(ctx context.Context, req *converse.Request) (*converse.Response, error) {
	p, err := buildBedrockParts(req)
	if err != nil {
		return nil, err
	}
	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(req.ModelID),
		Messages:        p.messages,
		System:          p.system,
		InferenceConfig: p.inference,
		ToolConfig:      p.tools,
	})
	if err != nil {
		return nil, err
	}
	return fromBedrockOutput(out)
}

// ConverseStream 实现 converse.Client
func (c *BedrockClient) ConverseStream(ctx context.Context, req *converse.Request) (stream.Source, error) {
	p, err := buildBedrockParts(req)
	if err != nil {
		return nil, err
	}
	events, err := c.api.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:         aws.String(req.ModelID),
		Messages:        p.messages,
		System:          p.system,
		InferenceConfig: p.inference,
		ToolConfig:      p.tools,
	})
	if err != nil {
		return nil, err
	}
	return &bedrockSource{events: events}, nil
}

type bedrockParts struct {
	messages  []types.Message
	system    []types.SystemContentBlock
	inference *types.InferenceConfiguration
	tools     *types.ToolConfiguration
}

func buildBedrockParts(req *converse.Request) (bedrockParts, error) {
	var p bedrockParts
	for _, m := range req.Messages {
		bm, err := toBedrockMessage(m)
		if err != nil {
			return p, err
		}
		p.messages = append(p.messages, bm)
	}
	for _, s := range req.System {
		p.system = append(p.system, &types.SystemContentBlockMemberText{Value: s})
	}
	inf := req.Inference
	p.inference = &types.InferenceConfiguration{
		MaxTokens:     aws.Int32(int32(inf.MaxTokens)),
		Temperature:   aws.Float32(float32(inf.Temperature)),
		TopP:          aws.Float32(float32(inf.TopP)),
		StopSequences: inf.StopSequences,
	}
	p.tools = toBedrockTools(req.Tools)
	return p, nil
}

func toBedrockMessage(m message.Message) (types.Message, error) {
	out := types.Message{Role: types.ConversationRole(m.Role)}
	for _, b := range m.Content {
		cb, err := toBedrockBlock(b)
		if err != nil {
			return out, err
		}
		out.Content = append(out.Content, cb)
	}
	return out, nil
}

func toBedrockBlock(b message.ContentBlock) (types.ContentBlock, error) {
	switch {
	case b.Type == message.BlockText:
		return &types.ContentBlockMemberText{Value: b.Text}, nil
	case b.Type == message.BlockImage && b.Image != nil:
		return &types.ContentBlockMemberImage{Value: types.ImageBlock{
			Format: types.ImageFormat(b.Image.Format),
			Source: &types.ImageSourceMemberBytes{Value: b.Image.Bytes},
		}}, nil
	case b.Type == message.BlockDocument && b.Document != nil:
		return &types.ContentBlockMemberDocument{Value: types.DocumentBlock{
			Format: types.DocumentFormat(b.Document.Format),
			Name:   aws.String(bedrockDocumentName(b.Document.Name)),
			Source: &types.DocumentSourceMemberBytes{Value: b.Document.Bytes},
		}}, nil
	case b.Type == message.BlockToolUse && b.ToolUse != nil:
		var input any = map[string]any{}
		if len(b.ToolUse.Input) > 0 {
			if err := json.Unmarshal(b.ToolUse.Input, &input); err != nil {
				return nil, fmt.Errorf("tool_use %s input: %w", b.ToolUse.ID, err)
			}
		}
		return &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
			ToolUseId: aws.String(b.ToolUse.ID),
			Name:      aws.String(b.ToolUse.Name),
			Input:     document.NewLazyDocument(input),
		}}, nil
	case b.Type == message.BlockToolResult && b.ToolResult != nil:
		return &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
			ToolUseId: aws.String(b.ToolResult.ToolUseID),
			Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: b.ToolResult.Output}},
			Status:    types.ToolResultStatus(b.ToolResult.Status),
		}}, nil
	}
	return nil, fmt.Errorf("bedrock: unsupported content block %q", b.Type)
}

// bedrockDocumentName Bedrock 文档名不允许 "."，去掉扩展名
func bedrockDocumentName(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" {
		return "document"
	}
	return strings.ReplaceAll(stem, ".", "_")
}

func toBedrockTools(ds []tooluse.Descriptor) *types.ToolConfiguration {
	if len(ds) == 0 {
		return nil
	}
	tc := &types.ToolConfiguration{}
	for _, d := range ds {
		tc.Tools = append(tc.Tools, &types.ToolMemberToolSpec{Value: types.ToolSpecification{
			Name:        aws.String(d.Name),
			Description: aws.String(d.Description),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(d.InputSchema)},
		}})
	}
	return tc
}

func fromBedrockOutput(out *bedrockruntime.ConverseOutput) (*converse.Response, error) {
	om, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("bedrock: unexpected output %T", out.Output)
	}
	msg, err := fromBedrockMessage(om.Value)
	if err != nil {
		return nil, err
	}
	resp := &converse.Response{
		Message:    msg,
		StopReason: string(out.StopReason),
		Usage:      fromBedrockUsage(out.Usage),
	}
	if out.Metrics != nil {
		resp.LatencyMs = aws.ToInt64(out.Metrics.LatencyMs)
	}
	return resp, nil
}

func fromBedrockMessage(m types.Message) (message.Message, error) {
	out := message.Message{Role: message.Role(m.Role)}
	for _, cb := range m.Content {
		switch v := cb.(type) {
		case *types.ContentBlockMemberText:
			out.Content = append(out.Content, message.Text(v.Value))
		case *types.ContentBlockMemberToolUse:
			input := json.RawMessage("{}")
			if v.Value.Input != nil {
				raw, err := v.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return out, fmt.Errorf("tool_use input: %w", err)
				}
				input = raw
			}
			out.Content = append(out.Content, message.ToolUseBlock(aws.ToString(v.Value.ToolUseId), aws.ToString(v.Value.Name), input))
		case *types.ContentBlockMemberImage:
			if src, ok := v.Value.Source.(*types.ImageSourceMemberBytes); ok {
				out.Content = append(out.Content, message.ImageBlock(string(v.Value.Format), src.Value))
			}
		case *types.ContentBlockMemberDocument:
			if src, ok := v.Value.Source.(*types.DocumentSourceMemberBytes); ok {
				out.Content = append(out.Content, message.DocumentBlock(string(v.Value.Format), aws.ToString(v.Value.Name), src.Value))
			}
		}
	}
	return out, nil
}

func fromBedrockUsage(u *types.TokenUsage) stream.Usage {
	if u == nil {
		return stream.Usage{}
	}
	return stream.Usage{
		InputTokens:  int(aws.ToInt32(u.InputTokens)),
		OutputTokens: int(aws.ToInt32(u.OutputTokens)),
		TotalTokens:  int(aws.ToInt32(u.TotalTokens)),
	}
}

// bedrockSource 把 SDK 事件通道适配为 stream.Source
type bedrockSource struct {
	events bedrockEvents
}

func (s *bedrockSource) Recv() (stream.Event, error) {
	ev, ok := <-s.events.Events()
	if !ok {
		if err := s.events.Err(); err != nil {
			return stream.Event{}, err
		}
		return stream.Event{}, io.EOF
	}
	return fromBedrockEvent(ev), nil
}

func (s *bedrockSource) Close() error { return s.events.Close() }

// fromBedrockEvent 未知 union 成员映射为未识别的 Kind，由 Reducer 报错
func fromBedrockEvent(ev types.ConverseStreamOutput) stream.Event {
	switch v := ev.(type) {
	case *types.ConverseStreamOutputMemberMessageStart:
		return stream.Event{Kind: stream.KindMessageStart, Role: message.Role(v.Value.Role)}
	case *types.ConverseStreamOutputMemberContentBlockStart:
		out := stream.Event{Kind: stream.KindContentBlockStart, Index: int(aws.ToInt32(v.Value.ContentBlockIndex))}
		if tu, ok := v.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
			out.ToolUse = &stream.ToolUseStart{ID: aws.ToString(tu.Value.ToolUseId), Name: aws.ToString(tu.Value.Name)}
		}
		return out
	case *types.ConverseStreamOutputMemberContentBlockDelta:
		out := stream.Event{Kind: stream.KindContentBlockDelta, Index: int(aws.ToInt32(v.Value.ContentBlockIndex))}
		switch d := v.Value.Delta.(type) {
		case *types.ContentBlockDeltaMemberText:
			out.Text = d.Value
		case *types.ContentBlockDeltaMemberToolUse:
			out.ToolInput = aws.ToString(d.Value.Input)
		}
		return out
	case *types.ConverseStreamOutputMemberContentBlockStop:
		return stream.Event{Kind: stream.KindContentBlockStop, Index: int(aws.ToInt32(v.Value.ContentBlockIndex))}
	case *types.ConverseStreamOutputMemberMessageStop:
		return stream.Event{Kind: stream.KindMessageStop, StopReason: string(v.Value.StopReason)}
	case *types.ConverseStreamOutputMemberMetadata:
		u := fromBedrockUsage(v.Value.Usage)
		out := stream.Event{Kind: stream.KindMetadata, Usage: &u}
		if v.Value.Metrics != nil {
			out.LatencyMs = aws.ToInt64(v.Value.Metrics.LatencyMs)
		}
		return out
	case *types.UnknownUnionMember:
		return stream.Event{Kind: stream.Kind(v.Tag)}
	}
	return stream.Event{Kind: stream.Kind(fmt.Sprintf("%T", ev))}
}
