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
	"fmt"
	"slices"
	"sync"
	"time"

	"converser/pkg/converse"
	"converser/pkg/message"
	"converser/pkg/tooluse"
)

// Record 会话的持久化形态：构造参数 + 已提交历史
type Record struct {
	ID        string                   `json:"id"`
	ModelID   string                   `json:"model_id"`
	System    []string                 `json:"system,omitempty"`
	Inference converse.InferenceConfig `json:"inference"`
	Tools     []tooluse.Descriptor     `json:"tools,omitempty"`
	Stateless bool                     `json:"stateless,omitempty"`
	History   []message.Message        `json:"history"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Settings 还原为 converse.Settings
func (r *Record) Settings() converse.Settings {
	return converse.Settings{
		ModelID:   r.ModelID,
		System:    r.System,
		Inference: r.Inference,
		Tools:     r.Tools,
	}
}

func (r *Record) clone() *Record {
	out := *r
	out.System = slices.Clone(r.System)
	out.Tools = slices.Clone(r.Tools)
	out.Inference.StopSequences = slices.Clone(r.Inference.StopSequences)
	out.History = message.CloneAll(r.History)
	return &out
}

// Store 会话记录存储；Get 不存在时返回 nil, nil
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// StoreConfig 存储后端配置
type StoreConfig struct {
	Type      string
	DSN       string
	Addr      string
	DB        int
	Password  string
	KeyPrefix string
	TTL       time.Duration
}

// NewStore 按类型创建存储：memory（默认）| redis | postgres
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported history store: %s", cfg.Type)
	}
}

// CloseStore 释放存储持有的连接
func CloseStore(s Store) {
	if c, ok := s.(interface{ Close() }); ok {
		c.Close()
	}
}

// MemoryStore 内存实现
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore 创建内存 Store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return rec.clone(), nil
}

func (m *MemoryStore) Put(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("session record without id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec.clone()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
