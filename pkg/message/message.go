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

// Package message 定义对话消息与内容块；一条 Message 交给 History 后视为不可变。
package message

import (
	"encoding/json"
	"strings"
)

// Role 消息角色，仅 user / assistant
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType 内容块判别字段
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockImage      BlockType = "image"
	BlockDocument   BlockType = "document"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ToolResultStatus 工具执行结果状态
const (
	ToolResultSuccess = "success"
	ToolResultError   = "error"
)

// ContentBlock 内容块（tagged union，按 Type 取对应字段）
type ContentBlock struct {
	Type       BlockType   `json:"type"`
	Text       string      `json:"text,omitempty"`
	Image      *Image      `json:"image,omitempty"`
	Document   *Document   `json:"document,omitempty"`
	ToolUse    *ToolUse    `json:"tool_use,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// Image 图片内容
type Image struct {
	Format string `json:"format"`
	Bytes  []byte `json:"bytes"`
}

// Document 文档内容；Name 为清洗后的展示名
type Document struct {
	Format string `json:"format"`
	Name   string `json:"name"`
	Bytes  []byte `json:"bytes"`
}

// ToolUse 模型发起的工具调用
type ToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ToolResult 调用方回传的工具结果
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Output    string `json:"output"`
	Status    string `json:"status,omitempty"`
}

// Message 一轮对话消息
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Text 构造文本块
func Text(s string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: s}
}

// ImageBlock 构造图片块
func ImageBlock(format string, data []byte) ContentBlock {
	return ContentBlock{Type: BlockImage, Image: &Image{Format: format, Bytes: data}}
}

// DocumentBlock 构造文档块
func DocumentBlock(format, name string, data []byte) ContentBlock {
	return ContentBlock{Type: BlockDocument, Document: &Document{Format: format, Name: name, Bytes: data}}
}

// ToolUseBlock 构造工具调用块
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ToolUse: &ToolUse{ID: id, Name: name, Input: input}}
}

// ToolResultBlock 构造工具结果块；status 为空时视为 success
func ToolResultBlock(toolUseID, output, status string) ContentBlock {
	if status == "" {
		status = ToolResultSuccess
	}
	return ContentBlock{Type: BlockToolResult, ToolResult: &ToolResult{ToolUseID: toolUseID, Output: output, Status: status}}
}

// User 构造 user 消息
func User(blocks ...ContentBlock) Message {
	return Message{Role: RoleUser, Content: blocks}
}

// Assistant 构造 assistant 消息
func Assistant(blocks ...ContentBlock) Message {
	return Message{Role: RoleAssistant, Content: blocks}
}

// UserText 单文本 user 消息
func UserText(s string) Message { return User(Text(s)) }

// AssistantText 单文本 assistant 消息
func AssistantText(s string) Message { return Assistant(Text(s)) }

// Text 拼接消息中所有文本块
func (m Message) Text() string {
	var b strings.Builder
	for _, c := range m.Content {
		if c.Type == BlockText {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// ToolUses 返回消息中的工具调用
func (m Message) ToolUses() []ToolUse {
	var out []ToolUse
	for _, c := range m.Content {
		if c.Type == BlockToolUse && c.ToolUse != nil {
			out = append(out, *c.ToolUse)
		}
	}
	return out
}

// Clone 深拷贝，字节与 JSON 负载不与原消息共享
func (m Message) Clone() Message {
	out := Message{Role: m.Role}
	if m.Content != nil {
		out.Content = make([]ContentBlock, len(m.Content))
		for i, c := range m.Content {
			out.Content[i] = c.clone()
		}
	}
	return out
}

func (c ContentBlock) clone() ContentBlock {
	out := ContentBlock{Type: c.Type, Text: c.Text}
	if c.Image != nil {
		out.Image = &Image{Format: c.Image.Format, Bytes: cloneBytes(c.Image.Bytes)}
	}
	if c.Document != nil {
		out.Document = &Document{Format: c.Document.Format, Name: c.Document.Name, Bytes: cloneBytes(c.Document.Bytes)}
	}
	if c.ToolUse != nil {
		out.ToolUse = &ToolUse{ID: c.ToolUse.ID, Name: c.ToolUse.Name, Input: json.RawMessage(cloneBytes(c.ToolUse.Input))}
	}
	if c.ToolResult != nil {
		tr := *c.ToolResult
		out.ToolResult = &tr
	}
	return out
}

// CloneAll 深拷贝消息列表
func CloneAll(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
