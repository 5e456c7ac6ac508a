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

package converse

import (
	"converser/pkg/errors"
	"converser/pkg/tooluse"
)

// 推理参数默认值与上限
const (
	DefaultTemperature  = 1.0
	DefaultMaxTokens    = 4096
	DefaultTopP         = 0.999
	MaxTokensLimit      = 4096
	MaxStopSequences    = 4
	DefaultUserFileText = "Please describe the contents of the file in detail"
)

// InferenceConfig 推理参数
type InferenceConfig struct {
	Temperature   float64  `json:"temperature" mapstructure:"temperature"`
	MaxTokens     int      `json:"max_tokens" mapstructure:"max_tokens"`
	TopP          float64  `json:"top_p" mapstructure:"top_p"`
	StopSequences []string `json:"stop_sequences" mapstructure:"stop_sequences"`
}

// DefaultInferenceConfig temperature=1, maxTokens=4096, topP=0.999, 无停止序列
func DefaultInferenceConfig() InferenceConfig {
	return InferenceConfig{
		Temperature:   DefaultTemperature,
		MaxTokens:     DefaultMaxTokens,
		TopP:          DefaultTopP,
		StopSequences: []string{},
	}
}

// Validate 校验取值范围
func (c InferenceConfig) Validate() error {
	if c.Temperature < 0 || c.Temperature > 1 {
		return errors.Wrapf(errors.ErrInvalidArg, "temperature %v out of range [0,1]", c.Temperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > MaxTokensLimit {
		return errors.Wrapf(errors.ErrInvalidArg, "max_tokens %d out of range [1,%d]", c.MaxTokens, MaxTokensLimit)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return errors.Wrapf(errors.ErrInvalidArg, "top_p %v out of range [0,1]", c.TopP)
	}
	if len(c.StopSequences) > MaxStopSequences {
		return errors.Wrapf(errors.ErrInvalidArg, "at most %d stop sequences, got %d", MaxStopSequences, len(c.StopSequences))
	}
	return nil
}

func (c InferenceConfig) clone() InferenceConfig {
	out := c
	out.StopSequences = append([]string{}, c.StopSequences...)
	return out
}

// Settings 构造时固定的会话参数，按值传给每次调用
type Settings struct {
	ModelID   string
	System    []string
	Inference InferenceConfig
	Tools     []tooluse.Descriptor
}

// Clone 深拷贝切片字段
func (s Settings) Clone() Settings {
	out := Settings{
		ModelID:   s.ModelID,
		Inference: s.Inference.clone(),
	}
	if len(s.System) > 0 {
		out.System = append([]string{}, s.System...)
	}
	if len(s.Tools) > 0 {
		out.Tools = append([]tooluse.Descriptor{}, s.Tools...)
	}
	return out
}

// Validate 校验模型 ID 与推理参数
func (s Settings) Validate() error {
	if s.ModelID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "model id is required")
	}
	return s.Inference.Validate()
}
