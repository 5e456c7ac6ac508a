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

// Package session 托管多个带 Memory 的会话：同一会话的回合串行执行，
// 每次提交后把历史写入可插拔的 Store。
package session

import (
	"context"
	"sync"
	"time"

	"converser/pkg/converse"
	"converser/pkg/errors"
	"converser/pkg/message"
	"converser/pkg/metrics"
	"converser/pkg/stream"
	"converser/pkg/tracing"
)

// Session 一个会话；流式回合占用会话直到 Reducer 关闭
type Session struct {
	ID        string
	CreatedAt time.Time

	conv  *converse.Converser
	turns chan struct{}

	mu      sync.Mutex
	record  *Record
	store   Store
	deleted bool // 删除后在途回合的提交不再落盘
}

// Info 会话概要
type Info struct {
	ID        string    `json:"id"`
	ModelID   string    `json:"model_id"`
	System    []string  `json:"system,omitempty"`
	Stateless bool      `json:"stateless,omitempty"`
	Messages  int       `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) acquire(ctx context.Context) error {
	select {
	case s.turns <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) release() { <-s.turns }

// Converser 底层会话控制器
func (s *Session) Converser() *converse.Converser { return s.conv }

// Send 批量回合
func (s *Session) Send(ctx context.Context, msgs ...message.Message) (*converse.Response, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	ctx, span := tracing.StartTurnSpan(ctx, s.ID, "batch")
	resp, err := s.conv.Send(ctx, msgs...)
	tracing.EndWithError(span, err)
	metrics.TurnTotal.WithLabelValues("batch", outcome(err, err == nil)).Inc()
	return resp, err
}

// Stream 流式回合；调用方必须关闭返回的 Reducer 以释放会话
func (s *Session) Stream(ctx context.Context, msgs ...message.Message) (*stream.Reducer, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	ctx, span := tracing.StartTurnSpan(ctx, s.ID, "stream")
	r, err := s.conv.SendStream(ctx, msgs...)
	if err != nil {
		tracing.EndWithError(span, err)
		s.release()
		metrics.TurnTotal.WithLabelValues("stream", outcome(err, false)).Inc()
		return nil, err
	}
	r.OnClose(func() {
		tracing.EndWithError(span, r.Err())
		metrics.TurnTotal.WithLabelValues("stream", outcome(r.Err(), r.Finished())).Inc()
		s.release()
	})
	return r, nil
}

// History 已提交历史；无状态会话返回空
func (s *Session) History(ctx context.Context) ([]message.Message, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	if mem := s.conv.Memory(); mem != nil {
		return mem.History(), nil
	}
	return []message.Message{}, nil
}

// Reset 清空历史并持久化
func (s *Session) Reset(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	mem := s.conv.Memory()
	if mem == nil {
		return nil
	}
	mem.Reset()
	return s.persist(ctx, nil)
}

// Info 返回概要
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:        s.ID,
		ModelID:   s.record.ModelID,
		System:    append([]string(nil), s.record.System...),
		Stateless: s.record.Stateless,
		Messages:  len(s.record.History),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.record.UpdatedAt,
	}
}

// persist 作为 Converser 的提交回调；持锁写入，与 markDeleted 互斥
func (s *Session) persist(ctx context.Context, history []message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted {
		return nil
	}
	s.record.History = history
	s.record.UpdatedAt = time.Now()
	return s.store.Put(context.WithoutCancel(ctx), s.record.clone())
}

// markDeleted 返回后不会再有 persist 写入 Store
func (s *Session) markDeleted() {
	s.mu.Lock()
	s.deleted = true
	s.mu.Unlock()
}

func outcome(err error, finished bool) string {
	switch {
	case err == nil && finished:
		return "committed"
	case err == nil:
		return "abandoned"
	case errors.Is(err, errors.ErrUnsupportedStopReason):
		return "rejected"
	default:
		return "error"
	}
}
