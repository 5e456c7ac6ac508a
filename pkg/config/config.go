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

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"converser/pkg/converse"
	"converser/pkg/secrets"
	"converser/pkg/utils"
)

// DefaultPath 默认配置文件路径
const DefaultPath = "configs/converser.yaml"

// Config 应用配置结构体
type Config struct {
	Converse   ConverseConfig   `mapstructure:"converse"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Secrets    secrets.Config   `mapstructure:"secrets"`
	History    HistoryConfig    `mapstructure:"history"`
	API        APIConfig        `mapstructure:"api"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
}

// ConverseConfig 会话默认参数
type ConverseConfig struct {
	ModelID      string                   `mapstructure:"model_id"`
	SystemPrompt []string                 `mapstructure:"system_prompt"`
	Inference    converse.InferenceConfig `mapstructure:"inference"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	Type    string `mapstructure:"type"` // bedrock | anthropic | openai
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"` // 支持 ${ENV} 与 secret://key
	Timeout string `mapstructure:"timeout"` // 如 "60s"
}

// HistoryConfig HTTP 会话历史的持久化
type HistoryConfig struct {
	Type      string `mapstructure:"type"` // memory | redis | postgres
	DSN       string `mapstructure:"dsn"`  // Postgres 连接串
	Addr      string `mapstructure:"addr"` // Redis 地址
	DB        int    `mapstructure:"db"`
	Password  string `mapstructure:"password"`
	KeyPrefix string `mapstructure:"key_prefix"`
	TTL       string `mapstructure:"ttl"` // redis 过期时间，空为不过期
}

// RateLimitsConfig 限流配置，按 provider 类型索引
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	MaxUpload  int              `mapstructure:"max_upload_mb"`
	RateLimit  float64          `mapstructure:"rate_limit_rps"` // 0 为不限流
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth          bool   `mapstructure:"auth"`
	JWTKey        string `mapstructure:"jwt_key"`
	JWTTimeout    string `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string `mapstructure:"jwt_max_refresh"` // 如 "1h"
	// Users 登录用户名 → 密码，密码可写 secret://key 或 ${ENV}
	Users map[string]string `mapstructure:"users"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
	// SampleRatio 0 表示全采
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// PrometheusConfig Prometheus 配置；/metrics 挂在 API 端口上
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("CONVERSER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	applyDefaults(&config)
	if err := config.Converse.Inference.Validate(); err != nil {
		return nil, fmt.Errorf("converse.inference: %w", err)
	}
	return &config, nil
}

// DefaultModelID 未配置 converse.model_id 时使用
const DefaultModelID = "anthropic.claude-3-haiku-20240307-v1:0"

// Default 不读文件时的默认配置
func Default() *Config {
	c := Config{Converse: ConverseConfig{Inference: converse.DefaultInferenceConfig()}}
	applyDefaults(&c)
	return &c
}

// setDefaults 推理参数的零值有意义（temperature 可为 0），默认值须在 Unmarshal 前设置
func setDefaults(v *viper.Viper) {
	d := converse.DefaultInferenceConfig()
	v.SetDefault("converse.inference.temperature", d.Temperature)
	v.SetDefault("converse.inference.max_tokens", d.MaxTokens)
	v.SetDefault("converse.inference.top_p", d.TopP)
}

// replaceEnvVars 替换 ${ENV} 形式的值；secret:// 引用留给 secrets.Resolve
func replaceEnvVars(config *Config) {
	for _, p := range []*string{
		&config.Provider.APIKey,
		&config.Provider.BaseURL,
		&config.Secrets.Vault.Token,
		&config.History.DSN,
		&config.History.Password,
		&config.API.Middleware.JWTKey,
	} {
		*p = expandEnv(*p)
	}
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return s
	}
	if val := os.Getenv(s[2 : len(s)-1]); val != "" {
		return val
	}
	return s
}

// applyDefaults 未配置项取默认值
func applyDefaults(c *Config) {
	c.Converse.ModelID = utils.Coalesce(c.Converse.ModelID, DefaultModelID)
	c.Provider.Type = utils.Coalesce(c.Provider.Type, "bedrock")
	c.Provider.Timeout = utils.Coalesce(c.Provider.Timeout, "60s")
	if c.Provider.Type == "bedrock" {
		c.Provider.Region = utils.Coalesce(c.Provider.Region, os.Getenv("AWS_REGION"), "us-east-1")
	}

	c.History.Type = utils.Coalesce(c.History.Type, "memory")
	c.History.KeyPrefix = utils.Coalesce(c.History.KeyPrefix, "converser:history:")

	c.API.Host = utils.Coalesce(c.API.Host, "0.0.0.0")
	c.API.Port = utils.Coalesce(c.API.Port, 8080)
	c.API.Timeout = utils.Coalesce(c.API.Timeout, "120s")
	c.API.MaxUpload = utils.Coalesce(c.API.MaxUpload, 20)
	c.API.Middleware.JWTTimeout = utils.Coalesce(c.API.Middleware.JWTTimeout, "1h")
	c.API.Middleware.JWTMaxRefresh = utils.Coalesce(c.API.Middleware.JWTMaxRefresh, "1h")

	c.Log.Level = utils.Coalesce(c.Log.Level, "info")
	c.Log.Format = utils.Coalesce(c.Log.Format, "json")
	c.Monitoring.Tracing.ServiceName = utils.Coalesce(c.Monitoring.Tracing.ServiceName, "converser")
}
