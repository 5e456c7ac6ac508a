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
	"io"
	"sync"
)

// SliceSource 基于内存切片的事件源，供测试与回放使用
type SliceSource struct {
	mu     sync.Mutex
	events []Event
	err    error
	pos    int
	closed bool
}

// NewSliceSource 依次产出 events，之后返回 io.EOF
func NewSliceSource(events ...Event) *SliceSource {
	return &SliceSource{events: events}
}

// WithError 事件耗尽后返回 err 而非 io.EOF
func (s *SliceSource) WithError(err error) *SliceSource {
	s.err = err
	return s
}

// Recv 实现 Source
func (s *SliceSource) Recv() (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Event{}, io.EOF
	}
	if s.pos >= len(s.events) {
		if s.err != nil {
			return Event{}, s.err
		}
		return Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

// Close 实现 Source
func (s *SliceSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed 是否已关闭
func (s *SliceSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Remaining 尚未读取的事件数
func (s *SliceSource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events) - s.pos
}
