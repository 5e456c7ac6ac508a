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

package app

import (
	"context"
	"fmt"
	"time"

	"converser/internal/model/llm"
	"converser/internal/session"
	"converser/pkg/config"
	"converser/pkg/converse"
	"converser/pkg/log"
	"converser/pkg/secrets"
	"converser/pkg/tracing"
)

// Bootstrap 统一初始化：供 api、cli 与 devops 复用
type Bootstrap struct {
	Config  *config.Config
	Logger  *log.Logger
	Secrets secrets.Store
	Limiter *llm.Throttle
	Client  converse.Client
}

// NewBootstrap 根据配置创建日志、密钥存储与模型客户端
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	store, err := secrets.NewStore(cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("初始化密钥存储失败: %w", err)
	}

	limiter := NewThrottleFromConfig(cfg)
	client, err := NewLLMClientFromConfig(ctx, cfg, store, limiter, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("模型客户端已就绪", "provider", cfg.Provider.Type, "model_id", cfg.Converse.ModelID)

	return &Bootstrap{
		Config:  cfg,
		Logger:  logger,
		Secrets: store,
		Limiter: limiter,
		Client:  client,
	}, nil
}

// NewThrottleFromConfig rate_limits.llm 按 provider 类型配置，其余 provider 用 llm.DefaultLimits
func NewThrottleFromConfig(cfg *config.Config) *llm.Throttle {
	limits := make(map[string]llm.Limits, len(cfg.RateLimits.LLM))
	for provider, l := range cfg.RateLimits.LLM {
		limits[provider] = llm.Limits{
			RequestsPerMinute: l.RequestsPerMinute,
			TokensPerMinute:   l.TokensPerMinute,
			MaxConcurrent:     l.MaxConcurrent,
		}
	}
	return llm.NewThrottle(limits, llm.DefaultLimits)
}

// NewLLMClientFromConfig 创建模型客户端：provider 实现 → 监控 → 限流
func NewLLMClientFromConfig(ctx context.Context, cfg *config.Config, store secrets.Store, limiter *llm.Throttle, logger *log.Logger) (converse.Client, error) {
	apiKey, err := secrets.Resolve(ctx, store, cfg.Provider.APIKey)
	if err != nil {
		return nil, fmt.Errorf("解析 provider.api_key 失败: %w", err)
	}
	timeout, err := time.ParseDuration(cfg.Provider.Timeout)
	if err != nil {
		return nil, fmt.Errorf("provider.timeout %q: %w", cfg.Provider.Timeout, err)
	}
	raw, err := llm.NewClient(ctx, llm.Config{
		Type:    cfg.Provider.Type,
		Region:  cfg.Provider.Region,
		Profile: cfg.Provider.Profile,
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  apiKey,
		Timeout: timeout,
		Logger:  logger.Component("llm"),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化模型客户端失败: %w", err)
	}
	client := converse.Client(llm.NewInstrumentedClient(raw))
	if limiter != nil {
		client = llm.NewThrottledClient(client, limiter)
	}
	return client, nil
}

// Settings 配置中的默认会话参数
func (b *Bootstrap) Settings() converse.Settings {
	c := b.Config.Converse
	return converse.Settings{
		ModelID:   c.ModelID,
		System:    c.SystemPrompt,
		Inference: c.Inference,
	}
}

// NewConverser 以配置默认值创建单个会话（CLI 使用）
func (b *Bootstrap) NewConverser(opts ...converse.Option) (*converse.Converser, error) {
	s := b.Settings()
	base := []converse.Option{
		converse.WithSystemPrompt(s.System...),
		converse.WithInferenceConfig(s.Inference),
		converse.WithLogger(b.Logger.Component("converse")),
	}
	return converse.New(b.Client, s.ModelID, append(base, opts...)...)
}

// NewSessionManager 按 history 配置创建会话管理器
func (b *Bootstrap) NewSessionManager(ctx context.Context) (*session.Manager, error) {
	h := b.Config.History
	password, err := secrets.Resolve(ctx, b.Secrets, h.Password)
	if err != nil {
		return nil, fmt.Errorf("解析 history.password 失败: %w", err)
	}
	dsn, err := secrets.Resolve(ctx, b.Secrets, h.DSN)
	if err != nil {
		return nil, fmt.Errorf("解析 history.dsn 失败: %w", err)
	}
	var ttl time.Duration
	if h.TTL != "" {
		if ttl, err = time.ParseDuration(h.TTL); err != nil {
			return nil, fmt.Errorf("history.ttl %q: %w", h.TTL, err)
		}
	}
	store, err := session.NewStore(ctx, session.StoreConfig{
		Type:      h.Type,
		DSN:       dsn,
		Addr:      h.Addr,
		DB:        h.DB,
		Password:  password,
		KeyPrefix: h.KeyPrefix,
		TTL:       ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化会话存储(%s)失败: %w", h.Type, err)
	}
	b.Logger.Info("会话存储已就绪", "type", h.Type)
	return session.NewManager(b.Client, b.Settings(), store, b.Logger.Component("session")), nil
}

// InitTracing 按 monitoring.tracing 初始化全局 tracer（cli、devops 使用；API 进程由 hertz provider 初始化）。
// 未启用时返回空操作的关闭函数
func (b *Bootstrap) InitTracing() (func(context.Context) error, error) {
	tc := b.Config.Monitoring.Tracing
	if !tc.Enable || tc.ExportEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	shutdown, err := tracing.Setup(context.Background(), tracing.Exporter{
		ServiceName: tc.ServiceName,
		Endpoint:    tc.ExportEndpoint,
		Insecure:    tc.Insecure,
		SampleRatio: tc.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化链路追踪失败: %w", err)
	}
	b.Logger.Info("链路追踪已启用", "service_name", tc.ServiceName, "endpoint", tc.ExportEndpoint)
	return shutdown, nil
}

// Close 释放日志文件
func (b *Bootstrap) Close() error {
	return b.Logger.Close()
}
