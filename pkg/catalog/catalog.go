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

// Package catalog 静态模型能力目录，仅供展示与选择参考；会话层不据此校验请求。
package catalog

// Model 单个模型的能力描述
type Model struct {
	Name             string `json:"model_name"`
	ID               string `json:"model_id"`
	Converse         bool   `json:"converse"`
	ConverseStream   bool   `json:"converse_stream"`
	SystemPrompts    bool   `json:"system_prompts"`
	DocumentChat     bool   `json:"document_chat"`
	Vision           bool   `json:"vision"`
	ToolUse          bool   `json:"tool_use"`
	StreamingToolUse bool   `json:"streaming_tool_use"`
	Guardrails       bool   `json:"guardrails"`
}

// Capability 能力名，与 JSON 字段一致
type Capability string

const (
	CapConverse         Capability = "converse"
	CapConverseStream   Capability = "converse_stream"
	CapSystemPrompts    Capability = "system_prompts"
	CapDocumentChat     Capability = "document_chat"
	CapVision           Capability = "vision"
	CapToolUse          Capability = "tool_use"
	CapStreamingToolUse Capability = "streaming_tool_use"
	CapGuardrails       Capability = "guardrails"
)

// Capabilities 全部能力名
func Capabilities() []Capability {
	return []Capability{
		CapConverse, CapConverseStream, CapSystemPrompts, CapDocumentChat,
		CapVision, CapToolUse, CapStreamingToolUse, CapGuardrails,
	}
}

// Has 模型是否具备能力；未知能力名返回 false
func (m Model) Has(c Capability) bool {
	switch c {
	case CapConverse:
		return m.Converse
	case CapConverseStream:
		return m.ConverseStream
	case CapSystemPrompts:
		return m.SystemPrompts
	case CapDocumentChat:
		return m.DocumentChat
	case CapVision:
		return m.Vision
	case CapToolUse:
		return m.ToolUse
	case CapStreamingToolUse:
		return m.StreamingToolUse
	case CapGuardrails:
		return m.Guardrails
	}
	return false
}

// All 返回目录副本
func All() []Model {
	out := make([]Model, len(all))
	copy(out, all)
	return out
}

// Lookup 按 model id 查找
func Lookup(id string) (Model, bool) {
	for _, m := range all {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// Filter 返回满足 keep 的模型
func Filter(keep func(Model) bool) []Model {
	var out []Model
	for _, m := range all {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// WithCapabilities 返回同时具备全部能力的模型
func WithCapabilities(caps ...Capability) []Model {
	return Filter(func(m Model) bool {
		for _, c := range caps {
			if !m.Has(c) {
				return false
			}
		}
		return true
	})
}
