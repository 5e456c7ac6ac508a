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
	"context"

	"converser/pkg/errors"
	"converser/pkg/message"
	"converser/pkg/stream"
	"converser/pkg/tooluse"
)

// Client 托管模型的 converse 接口；批量返回完整响应，流式返回事件源
type Client interface {
	Converse(ctx context.Context, req *Request) (*Response, error)
	ConverseStream(ctx context.Context, req *Request) (stream.Source, error)
}

// Request 一次模型调用的完整输入
type Request struct {
	ModelID   string
	Messages  []message.Message
	System    []string
	Inference InferenceConfig
	Tools     []tooluse.Descriptor
}

// Response 批量调用结果
type Response struct {
	Message    message.Message `json:"message"`
	StopReason string          `json:"stop_reason"`
	Usage      stream.Usage    `json:"usage"`
	LatencyMs  int64           `json:"latency_ms,omitempty"`
}

// StopReason 可提交到 Memory 的停止原因
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
)

// ParseStopReason 白名单外的原因（如 content_filtered、guardrail_intervened）返回 UnsupportedStopReasonError
func ParseStopReason(s string) (StopReason, error) {
	switch r := StopReason(s); r {
	case StopEndTurn, StopToolUse, StopMaxTokens, StopStopSequence:
		return r, nil
	}
	return "", &errors.UnsupportedStopReasonError{Reason: s}
}

func newRequest(s Settings, msgs []message.Message) *Request {
	s = s.Clone()
	return &Request{
		ModelID:   s.ModelID,
		Messages:  msgs,
		System:    s.System,
		Inference: s.Inference,
		Tools:     s.Tools,
	}
}
