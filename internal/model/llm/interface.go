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

// Package llm converse.Client 的各家实现（Bedrock、Anthropic、OpenAI 兼容）及限流、监控装饰器
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"converser/pkg/converse"
)

// 内置 provider
const (
	ProviderBedrock   = "bedrock"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config 构造客户端的参数；APIKey 须已解析（secret:// 与 ${ENV} 已展开）
type Config struct {
	Type    string
	Region  string
	Profile string
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Named 暴露 provider 名，供限流与监控打标签
type Named interface {
	Provider() string
}

// Factory 按配置创建客户端
type Factory func(ctx context.Context, cfg Config) (converse.Client, error)

var (
	factories = map[string]Factory{
		ProviderBedrock:   func(ctx context.Context, cfg Config) (converse.Client, error) { return NewBedrockClient(ctx, cfg) },
		ProviderAnthropic: func(ctx context.Context, cfg Config) (converse.Client, error) { return NewAnthropicClient(cfg) },
		ProviderOpenAI:    func(ctx context.Context, cfg Config) (converse.Client, error) { return NewOpenAIClient(ctx, cfg) },
	}
	factoriesMu sync.RWMutex
)

// Register 注册（或替换）provider 实现
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Providers 已注册的 provider 名，升序
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewClient 按 cfg.Type 创建客户端
func NewClient(ctx context.Context, cfg Config) (converse.Client, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Type]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("LLM provider not registered: %s", cfg.Type)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return f(ctx, cfg)
}

// ProviderOf 取客户端的 provider 名，未实现 Named 时为 unknown
func ProviderOf(c converse.Client) string {
	if n, ok := c.(Named); ok {
		return n.Provider()
	}
	return "unknown"
}
