// Copyright 2026 fanjia1024
// HashiCorp Vault secret store (KV v2)

package secrets

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig Vault 配置；Mount 为 KV v2 挂载点，默认 secret
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	Mount      string `mapstructure:"mount"`
	PathPrefix string `mapstructure:"path_prefix"` // 如 converser，key 实际位于 <mount>/data/<path_prefix>/<key>
	Field      string `mapstructure:"field"`       // 取值字段，默认 value
	SkipHealth bool   `mapstructure:"skip_health"`
}

type vaultStore struct {
	kv      *vault.KVv2
	logical *vault.Logical
	mount   string
	prefix  string
	field   string
}

// NewVaultStore 创建 Vault secret store
func NewVaultStore(config VaultConfig) (Store, error) {
	cfg := vault.DefaultConfig()
	if config.Address != "" {
		cfg.Address = config.Address
	}
	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}
	if !config.SkipHealth {
		if _, err := client.Sys().Health(); err != nil {
			return nil, fmt.Errorf("failed to connect to vault: %w", err)
		}
	}
	mount := config.Mount
	if mount == "" {
		mount = "secret"
	}
	field := config.Field
	if field == "" {
		field = "value"
	}
	return &vaultStore{
		kv:      client.KVv2(mount),
		logical: client.Logical(),
		mount:   mount,
		prefix:  strings.Trim(config.PathPrefix, "/"),
		field:   field,
	}, nil
}

func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	secret, err := v.kv.Get(ctx, v.keyPath(key))
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s from vault: %w", key, err)
	}
	if s, ok := secret.Data[v.field].(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("secret %s has no string field %q", key, v.field)
}

func (v *vaultStore) Set(ctx context.Context, key string, value string) error {
	if _, err := v.kv.Put(ctx, v.keyPath(key), map[string]any{v.field: value}); err != nil {
		return fmt.Errorf("failed to write secret %s to vault: %w", key, err)
	}
	return nil
}

func (v *vaultStore) Delete(ctx context.Context, key string) error {
	if err := v.kv.DeleteMetadata(ctx, v.keyPath(key)); err != nil {
		return fmt.Errorf("failed to delete secret %s from vault: %w", key, err)
	}
	return nil
}

// List 只列出 prefix 目录下一层
func (v *vaultStore) List(ctx context.Context, prefix string) ([]string, error) {
	dir := path.Join(v.mount, "metadata", v.prefix, prefix)
	secret, err := v.logical.ListWithContext(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets from vault: %w", err)
	}
	if secret == nil {
		return nil, nil
	}
	raw, _ := secret.Data["keys"].([]any)
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if s, ok := k.(string); ok {
			keys = append(keys, path.Join(prefix, s))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (v *vaultStore) keyPath(key string) string {
	return path.Join(v.prefix, key)
}
