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

// Package memory 会话历史：只追加，保持 user/assistant 严格交替。
//
// Memory 不加锁；同一 Memory 同时只允许一个交换在途，由调用方串行化。
package memory

import (
	"converser/pkg/errors"
	"converser/pkg/message"
)

// Memory 有序对话历史
type Memory struct {
	history []message.Message
}

// New 创建空 Memory
func New() *Memory {
	return &Memory{}
}

// FromHistory 用已校验的历史恢复 Memory（例如从持久化存储加载）
func FromHistory(msgs []message.Message) (*Memory, error) {
	m := New()
	if len(msgs) == 0 {
		return m, nil
	}
	if err := m.Append(msgs...); err != nil {
		return nil, err
	}
	return m, nil
}

// Append 整批追加：history+batch 校验失败时历史保持不变
func (m *Memory) Append(batch ...message.Message) error {
	next := make([]message.Message, 0, len(m.history)+len(batch))
	next = append(next, m.history...)
	next = append(next, batch...)
	if err := message.ValidateOrder(next); err != nil {
		return errors.Wrap(err, "append to memory")
	}
	for i := len(m.history); i < len(next); i++ {
		next[i] = next[i].Clone()
	}
	m.history = next
	return nil
}

// History 返回历史的深拷贝
func (m *Memory) History() []message.Message {
	out := message.CloneAll(m.history)
	if out == nil {
		out = []message.Message{}
	}
	return out
}

// Last 返回最后一条消息
func (m *Memory) Last() (message.Message, error) {
	if len(m.history) == 0 {
		return message.Message{}, errors.ErrEmptyHistory
	}
	return m.history[len(m.history)-1].Clone(), nil
}

// Len 历史条数
func (m *Memory) Len() int { return len(m.history) }

// Reset 清空历史
func (m *Memory) Reset() {
	m.history = nil
}
