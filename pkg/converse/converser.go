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

// Package converse 会话控制器：校验调用方消息、拼接历史、调用模型（批量或流式），
// 按停止原因决定是否把 [最后一条调用方消息, 模型回复] 写入 Memory。
package converse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"converser/pkg/memory"
	"converser/pkg/message"
	"converser/pkg/stream"
	"converser/pkg/tooluse"
)

// Converser 绑定一个模型客户端与可选 Memory 的会话
type Converser struct {
	id       string
	client   Client
	settings Settings
	memory   *memory.Memory
	onCommit CommitHook
	logger   *slog.Logger
}

// CommitHook 回合写入 Memory 后调用，参数为提交后的完整历史；
// 返回的错误只记录日志，不影响本次回合结果
type CommitHook func(ctx context.Context, history []message.Message) error

// Option 构造选项
type Option func(*Converser)

// WithSystemPrompt 追加系统提示
func WithSystemPrompt(prompts ...string) Option {
	return func(c *Converser) {
		for _, p := range prompts {
			if p != "" {
				c.settings.System = append(c.settings.System, p)
			}
		}
	}
}

// WithMemory 挂载 Memory；不挂载时每次调用无状态
func WithMemory(m *memory.Memory) Option {
	return func(c *Converser) { c.memory = m }
}

// WithInferenceConfig 覆盖默认推理参数
func WithInferenceConfig(cfg InferenceConfig) Option {
	return func(c *Converser) { c.settings.Inference = cfg.clone() }
}

// WithTools 绑定工具描述
func WithTools(tools ...tooluse.Descriptor) Option {
	return func(c *Converser) { c.settings.Tools = append(c.settings.Tools, tools...) }
}

// WithCommitHook 设置提交回调（如持久化历史），仅在挂载 Memory 时触发
func WithCommitHook(h CommitHook) Option {
	return func(c *Converser) { c.onCommit = h }
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(c *Converser) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithID 指定会话 ID，默认随机 uuid
func WithID(id string) Option {
	return func(c *Converser) {
		if id != "" {
			c.id = id
		}
	}
}

// New 创建会话；参数在此固定，之后不可修改
func New(client Client, modelID string, opts ...Option) (*Converser, error) {
	if client == nil {
		return nil, fmt.Errorf("converse: client is nil")
	}
	c := &Converser{
		id:     uuid.NewString(),
		client: client,
		settings: Settings{
			ModelID:   modelID,
			Inference: DefaultInferenceConfig(),
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	if err := c.settings.Validate(); err != nil {
		return nil, err
	}
	c.logger = c.logger.With("component", "converse", "session_id", c.id, "model_id", modelID)
	return c, nil
}

// ID 会话 ID
func (c *Converser) ID() string { return c.id }

// Settings 返回参数副本
func (c *Converser) Settings() Settings { return c.settings.Clone() }

// Memory 挂载的 Memory，可能为 nil
func (c *Converser) Memory() *memory.Memory { return c.memory }

// Send 批量调用：校验 → 拼接历史 → 调用模型 → 按停止原因提交
func (c *Converser) Send(ctx context.Context, msgs ...message.Message) (*Response, error) {
	if err := message.ValidateOrder(msgs); err != nil {
		return nil, err
	}
	req := newRequest(c.settings, merge(c.memory, msgs))
	c.logger.Debug("发送消息", "mode", "batch", "messages", len(req.Messages))

	start := time.Now()
	resp, err := c.client.Converse(ctx, req)
	if err != nil {
		c.logger.Warn("模型调用失败", "mode", "batch", "error", err)
		return nil, err
	}
	if resp.Message.Role == "" {
		resp.Message.Role = message.RoleAssistant
	}
	if resp.LatencyMs == 0 {
		resp.LatencyMs = time.Since(start).Milliseconds()
	}
	if err := commit(c.memory, msgs[len(msgs)-1], resp.StopReason, resp.Message); err != nil {
		c.logger.Warn("回合未提交", "mode", "batch", "stop_reason", resp.StopReason, "error", err)
		return nil, err
	}
	c.afterCommit(ctx, "batch")
	c.logger.Debug("回合完成", "mode", "batch", "stop_reason", resp.StopReason,
		"input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)
	return resp, nil
}

// SendStream 流式调用；调用方驱动返回的 Reducer，终止事件时提交 Memory
func (c *Converser) SendStream(ctx context.Context, msgs ...message.Message) (*stream.Reducer, error) {
	return openStream(ctx, c.client, c.settings, c.memory, c.logger, msgs, func() { c.afterCommit(ctx, "stream") })
}

func (c *Converser) afterCommit(ctx context.Context, mode string) {
	if c.onCommit == nil || c.memory == nil {
		return
	}
	if err := c.onCommit(ctx, c.memory.History()); err != nil {
		c.logger.Warn("提交回调失败", "mode", mode, "error", err)
	}
}

// Stream 显式传入参数的流式入口，不依赖 Converser 实例
func Stream(ctx context.Context, client Client, settings Settings, mem *memory.Memory, msgs []message.Message) (*stream.Reducer, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return openStream(ctx, client, settings, mem, slog.New(slog.DiscardHandler), msgs, nil)
}

func openStream(ctx context.Context, client Client, settings Settings, mem *memory.Memory, logger *slog.Logger, msgs []message.Message, committed func()) (*stream.Reducer, error) {
	if err := message.ValidateOrder(msgs); err != nil {
		return nil, err
	}
	req := newRequest(settings, merge(mem, msgs))
	logger.Debug("发送消息", "mode", "stream", "messages", len(req.Messages))

	src, err := client.ConverseStream(ctx, req)
	if err != nil {
		logger.Warn("模型调用失败", "mode", "stream", "error", err)
		return nil, err
	}
	last := msgs[len(msgs)-1].Clone()
	return stream.NewReducer(src, stream.WithFinalizer(func(ev stream.Event, final message.Message) error {
		if err := commit(mem, last, ev.StopReason, final); err != nil {
			logger.Warn("回合未提交", "mode", "stream", "stop_reason", ev.StopReason, "error", err)
			return err
		}
		logger.Debug("回合完成", "mode", "stream", "stop_reason", ev.StopReason)
		if committed != nil {
			committed()
		}
		return nil
	})), nil
}

// merge 历史在前、本批在后；Memory 本身不变
func merge(mem *memory.Memory, msgs []message.Message) []message.Message {
	if mem == nil {
		return message.CloneAll(msgs)
	}
	out := mem.History()
	return append(out, message.CloneAll(msgs)...)
}

// commit 停止原因在白名单内才写入 Memory
func commit(mem *memory.Memory, last message.Message, stopReason string, reply message.Message) error {
	if _, err := ParseStopReason(stopReason); err != nil {
		return err
	}
	if mem == nil {
		return nil
	}
	return mem.Append(last, reply)
}
