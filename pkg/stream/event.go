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

package stream

import (
	"converser/pkg/message"
)

// Kind 流事件类型
type Kind string

const (
	KindMessageStart      Kind = "message_start"
	KindContentBlockStart Kind = "content_block_start"
	KindContentBlockDelta Kind = "content_block_delta"
	KindContentBlockStop  Kind = "content_block_stop"
	KindMessageStop       Kind = "message_stop"
	KindMetadata          Kind = "metadata"
)

// Known 是否为已识别的事件类型
func (k Kind) Known() bool {
	switch k {
	case KindMessageStart, KindContentBlockStart, KindContentBlockDelta,
		KindContentBlockStop, KindMessageStop, KindMetadata:
		return true
	}
	return false
}

// Usage token 用量
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Total 返回总量，TotalTokens 缺失时按输入+输出计算
func (u Usage) Total() int {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.InputTokens + u.OutputTokens
}

// ToolUseStart 工具调用块开始时携带的标识
type ToolUseStart struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Event 单个流事件；Done 仅在终止事件上为 true
type Event struct {
	Kind       Kind          `json:"kind"`
	Done       bool          `json:"done"`
	Role       message.Role  `json:"role,omitempty"`
	Index      int           `json:"index"`
	Text       string        `json:"text,omitempty"`
	ToolUse    *ToolUseStart `json:"tool_use,omitempty"`
	ToolInput  string        `json:"tool_input,omitempty"`
	StopReason string        `json:"stop_reason,omitempty"`
	Usage      *Usage        `json:"usage,omitempty"`
	LatencyMs  int64         `json:"latency_ms,omitempty"`
}

// Source 模型客户端产出的拉取式事件源，结束时 Recv 返回 io.EOF
type Source interface {
	Recv() (Event, error)
	Close() error
}

// Output Reducer 产出：终止项额外携带合成的 assistant 消息
type Output struct {
	Event   Event
	Message *message.Message
}
