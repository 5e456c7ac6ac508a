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

package main

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"converser/pkg/converse"
	"converser/pkg/message"
	"converser/pkg/stream"
	"converser/pkg/tooluse"
)

// TurnInput 回合图输入：Text 与 File 至少一项；File 非空时按 Kind 以文件构造消息
type TurnInput struct {
	Text string `json:"text"`
	File string `json:"file,omitempty"`
	Kind string `json:"kind,omitempty"`
}

// TurnOutput 回合图输出
type TurnOutput struct {
	Reply      string       `json:"reply"`
	StopReason string       `json:"stop_reason"`
	Usage      stream.Usage `json:"usage"`
	ToolUses   []string     `json:"tool_uses,omitempty"`
	History    int          `json:"history"`
}

// buildTurnGraph build → converse → format
func buildTurnGraph(ctx context.Context, c *converse.Converser) (compose.Runnable[*TurnInput, *TurnOutput], error) {
	g := compose.NewGraph[*TurnInput, *TurnOutput]()

	_ = g.AddLambdaNode("build", compose.InvokableLambda(func(ctx context.Context, in *TurnInput) ([]message.Message, error) {
		if in == nil || (in.Text == "" && in.File == "") {
			return nil, fmt.Errorf("text 与 file 不能同时为空")
		}
		if in.File == "" {
			return []message.Message{message.UserText(in.Text)}, nil
		}
		kind, err := converse.ParseContentKind(in.Kind)
		if err != nil {
			return nil, err
		}
		msg, err := converse.BuildFileMessage(in.File, kind, in.Text)
		if err != nil {
			return nil, err
		}
		return []message.Message{msg}, nil
	}))

	_ = g.AddLambdaNode("converse", compose.InvokableLambda(func(ctx context.Context, msgs []message.Message) (*converse.Response, error) {
		return c.Send(ctx, msgs...)
	}))

	_ = g.AddLambdaNode("format", compose.InvokableLambda(func(ctx context.Context, resp *converse.Response) (*TurnOutput, error) {
		out := &TurnOutput{
			Reply:      resp.Message.Text(),
			StopReason: resp.StopReason,
			Usage:      resp.Usage,
		}
		for _, tu := range resp.Message.ToolUses() {
			out.ToolUses = append(out.ToolUses, fmt.Sprintf("%s(%s)", tu.Name, string(tu.Input)))
		}
		if m := c.Memory(); m != nil {
			out.History = m.Len()
		}
		return out, nil
	}))

	_ = g.AddEdge(compose.START, "build")
	_ = g.AddEdge("build", "converse")
	_ = g.AddEdge("converse", "format")
	_ = g.AddEdge("format", compose.END)

	r, err := g.Compile(ctx, compose.WithGraphName("converse_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return r, nil
}

// SchemaInput 工具描述图输入
type SchemaInput struct {
	Name   string          `json:"name"`
	Doc    string          `json:"doc"`
	Params []tooluse.Param `json:"params"`
}

// buildSchemaGraph 单节点图：参数表 → 工具描述
func buildSchemaGraph(ctx context.Context) (compose.Runnable[*SchemaInput, *tooluse.Descriptor], error) {
	g := compose.NewGraph[*SchemaInput, *tooluse.Descriptor]()

	_ = g.AddLambdaNode("generate", compose.InvokableLambda(func(ctx context.Context, in *SchemaInput) (*tooluse.Descriptor, error) {
		if in == nil {
			return nil, fmt.Errorf("输入不能为空")
		}
		d, err := tooluse.FromParams(in.Name, in.Doc, in.Params...)
		if err != nil {
			return nil, err
		}
		return &d, nil
	}))
	_ = g.AddEdge(compose.START, "generate")
	_ = g.AddEdge("generate", compose.END)

	r, err := g.Compile(ctx, compose.WithGraphName("tool_schema"))
	if err != nil {
		return nil, fmt.Errorf("compile schema graph: %w", err)
	}
	return r, nil
}
