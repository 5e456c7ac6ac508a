// Copyright 2026 fanjia1024
// Secret management abstraction

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// RefPrefix 配置中引用 secret 的前缀，如 secret://anthropic/api_key
const RefPrefix = "secret://"

// Store Secret 存储接口
type Store interface {
	// Get 获取 secret 值
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error

	// Delete 删除 secret
	Delete(ctx context.Context, key string) error

	// List 列出所有 secret keys
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config Secret Store 配置
type Config struct {
	Provider string      `mapstructure:"provider"` // memory | env | vault | file
	Vault    VaultConfig `mapstructure:"vault"`
	Dir      string      `mapstructure:"dir"` // file 模式下的挂载目录，如 /etc/secrets
}

// NewStore 创建 Secret Store；provider 为空时使用 env
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(), nil
	case "vault":
		return NewVaultStore(config.Vault)
	case "file", "k8s":
		return NewFileStore(config.Dir)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

// Resolve 解析配置值：secret://key 从 store 读取，${VAR} 读环境变量，其余原样返回
func Resolve(ctx context.Context, store Store, value string) (string, error) {
	switch {
	case strings.HasPrefix(value, RefPrefix):
		if store == nil {
			return "", fmt.Errorf("secret reference %q but no secret store configured", value)
		}
		v, err := store.Get(ctx, strings.TrimPrefix(value, RefPrefix))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(v), nil
	case strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}"):
		return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}")), nil
	}
	return value, nil
}
