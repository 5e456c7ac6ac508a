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
	"os"
	"path/filepath"
	"testing"

	"converser/pkg/converse"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Setenv("CONVERSER_TEST_ANTHROPIC_KEY", "sk-ant-test")
	path := writeConfig(t, `
converse:
  model_id: "anthropic.claude-3-haiku-20240307-v1:0"
  system_prompt:
    - "You are terse."
  inference:
    temperature: 0
    max_tokens: 512
provider:
  type: anthropic
  api_key: "${CONVERSER_TEST_ANTHROPIC_KEY}"
api:
  port: 9000
  host: "127.0.0.1"
log:
  level: "debug"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host: got %q", cfg.API.Host)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
	if cfg.Provider.APIKey != "sk-ant-test" {
		t.Errorf("Provider.APIKey not expanded: %q", cfg.Provider.APIKey)
	}
	inf := cfg.Converse.Inference
	if inf.Temperature != 0 || inf.MaxTokens != 512 || inf.TopP != converse.DefaultTopP {
		t.Errorf("inference: %+v", inf)
	}
	if len(cfg.Converse.SystemPrompt) != 1 {
		t.Errorf("system prompt: %v", cfg.Converse.SystemPrompt)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "converse:\n  model_id: m\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Provider.Type != "bedrock" || cfg.Provider.Region == "" {
		t.Errorf("provider defaults: %+v", cfg.Provider)
	}
	if cfg.History.Type != "memory" || cfg.API.Port != 8080 || cfg.Log.Format != "json" {
		t.Errorf("defaults not applied: %+v %+v %+v", cfg.History, cfg.API, cfg.Log)
	}
	if cfg.Converse.Inference.Temperature != converse.DefaultTemperature ||
		cfg.Converse.Inference.MaxTokens != converse.DefaultMaxTokens {
		t.Errorf("inference defaults: %+v", cfg.Converse.Inference)
	}
}

func TestLoadConfig_RejectsBadInference(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "converse:\n  inference:\n    max_tokens: 99999\n"))
	if err == nil {
		t.Fatal("expected error for max_tokens above limit")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Converse.Inference.MaxTokens != converse.DefaultMaxTokens || cfg.API.Port != 8080 {
		t.Errorf("Default: %+v", cfg)
	}
	if cfg.Converse.ModelID != DefaultModelID {
		t.Errorf("Default model id: %q", cfg.Converse.ModelID)
	}
}
