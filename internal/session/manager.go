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

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"converser/pkg/converse"
	"converser/pkg/errors"
	"converser/pkg/memory"
	"converser/pkg/metrics"
	"converser/pkg/tooluse"
)

// CreateOptions 创建会话参数；零值字段取 Manager 默认
type CreateOptions struct {
	ModelID   string                    `json:"model_id,omitempty"`
	System    []string                  `json:"system,omitempty"`
	Inference *converse.InferenceConfig `json:"inference,omitempty"`
	Tools     []tooluse.Descriptor      `json:"tools,omitempty"`
	// Stateless 不挂载 Memory，每个回合独立
	Stateless bool `json:"stateless,omitempty"`
}

// Manager 会话管理：内存中缓存活跃会话，Store 中持久化
type Manager struct {
	client   converse.Client
	defaults converse.Settings
	store    Store
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager 创建 Manager；store 为 nil 时使用内存存储
func NewManager(client converse.Client, defaults converse.Settings, store Store, logger *slog.Logger) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		client:   client,
		defaults: defaults.Clone(),
		store:    store,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Defaults 默认会话参数
func (m *Manager) Defaults() converse.Settings { return m.defaults.Clone() }

// Create 新建会话并写入 Store
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Session, error) {
	now := time.Now()
	rec := &Record{
		ID:        "session-" + uuid.New().String(),
		ModelID:   m.defaults.ModelID,
		System:    m.defaults.System,
		Inference: m.defaults.Inference,
		Tools:     m.defaults.Tools,
		Stateless: opts.Stateless,
		History:   nil,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if opts.ModelID != "" {
		rec.ModelID = opts.ModelID
	}
	if len(opts.System) > 0 {
		rec.System = opts.System
	}
	if opts.Inference != nil {
		rec.Inference = *opts.Inference
	}
	if len(opts.Tools) > 0 {
		rec.Tools = opts.Tools
	}
	rec = rec.clone()

	s, err := m.build(rec)
	if err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, rec); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	metrics.SessionsActive.Inc()
	m.logger.Info("会话已创建", "session_id", s.ID, "model_id", rec.ModelID, "stateless", rec.Stateless)
	return s, nil
}

// Get 取会话；不在缓存时从 Store 恢复，均不存在返回 ErrNotFound
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "session %s", id)
	}
	s, err = m.build(rec)
	if err != nil {
		return nil, errors.Wrapf(err, "restore session %s", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[id]; ok {
		return cur, nil
	}
	m.sessions[id] = s
	metrics.SessionsActive.Inc()
	m.logger.Debug("会话已从存储恢复", "session_id", id, "messages", len(rec.History))
	return s, nil
}

// Delete 删除会话及其持久化记录
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, cached := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if cached {
		s.markDeleted()
		metrics.SessionsActive.Dec()
	} else {
		rec, err := m.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return errors.Wrapf(errors.ErrNotFound, "session %s", id)
		}
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("会话已删除", "session_id", id)
	return nil
}

// List 列出已持久化的会话 ID
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Close 释放 Store 连接
func (m *Manager) Close() {
	CloseStore(m.store)
}

func (m *Manager) build(rec *Record) (*Session, error) {
	s := &Session{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		turns:     make(chan struct{}, 1),
		record:    rec,
		store:     m.store,
	}
	opts := []converse.Option{
		converse.WithID(rec.ID),
		converse.WithSystemPrompt(rec.System...),
		converse.WithInferenceConfig(rec.Inference),
		converse.WithTools(rec.Tools...),
		converse.WithLogger(m.logger),
	}
	if !rec.Stateless {
		mem, err := memory.FromHistory(rec.History)
		if err != nil {
			return nil, err
		}
		opts = append(opts, converse.WithMemory(mem), converse.WithCommitHook(s.persist))
	}
	conv, err := converse.New(m.client, rec.ModelID, opts...)
	if err != nil {
		return nil, err
	}
	s.conv = conv
	return s, nil
}
