// Copyright 2026 fanjia1024
// Process-local secret stores: in-memory map and environment variables

package secrets

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
)

// ErrNotFound 各 Store 在 key 不存在时返回（可用 errors.Is 判断）
var ErrNotFound = errors.New("secret not found")

// MapStore 进程内 secret，仅用于开发与测试
type MapStore struct {
	mu   sync.RWMutex
	vals map[string]string
}

// NewMemoryStore 空的 MapStore
func NewMemoryStore() *MapStore { return NewMemoryStoreFrom(nil) }

// NewMemoryStoreFrom 复制 seed 作为初始内容
func NewMemoryStoreFrom(seed map[string]string) *MapStore {
	vals := maps.Clone(seed)
	if vals == nil {
		vals = map[string]string{}
	}
	return &MapStore{vals: vals}
}

func (s *MapStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	v, ok := s.vals[key]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

func (s *MapStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.vals[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MapStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.vals, key)
	s.mu.Unlock()
	return nil
}

func (s *MapStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.vals {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// EnvStore key 映射为环境变量名：/ . - 变为 _ 后转大写，
// 例如 anthropic/api_key 读取 ANTHROPIC_API_KEY
type EnvStore struct{}

func NewEnvStore() EnvStore { return EnvStore{} }

var envNameReplacer = strings.NewReplacer("/", "_", ".", "_", "-", "_")

// EnvName key 对应的环境变量名
func EnvName(key string) string {
	return strings.ToUpper(envNameReplacer.Replace(key))
}

// Get 空值视同未设置
func (EnvStore) Get(_ context.Context, key string) (string, error) {
	name := EnvName(key)
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: $%s", ErrNotFound, name)
}

func (EnvStore) Set(_ context.Context, key, value string) error {
	return os.Setenv(EnvName(key), value)
}

func (EnvStore) Delete(_ context.Context, key string) error {
	return os.Unsetenv(EnvName(key))
}

// List 返回的是环境变量名而不是原始 key
func (EnvStore) List(_ context.Context, prefix string) ([]string, error) {
	want := EnvName(prefix)
	var names []string
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, want) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}
