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

package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"converser/internal/session"
	"converser/pkg/message"
	"converser/pkg/stream"
)

// sseEvent 单个 SSE 帧的 data 字段
type sseEvent struct {
	stream.Event
	Message *message.Message `json:"message,omitempty"`
}

// stream 打开流式回合后通过管道写出 SSE；客户端断开时管道关闭，Reducer 随之关闭并释放会话
func (h *Handler) stream(ctx context.Context, c *app.RequestContext, s *session.Session, msgs []message.Message) {
	turnCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r, err := s.Stream(turnCtx, msgs...)
	if err != nil {
		cancel()
		writeError(ctx, c, err)
		return
	}

	pr, pw := io.Pipe()
	go func() {
		err := pumpSSE(pw, r)
		_ = r.Close()
		cancel()
		pw.CloseWithError(err)
	}()

	c.SetStatusCode(consts.StatusOK)
	c.Response.Header.Set("Content-Type", "text/event-stream")
	c.Response.Header.Set("Cache-Control", "no-cache")
	c.Response.Header.Set("X-Session-Id", s.ID)
	c.SetBodyStream(pr, -1)
}

// pumpSSE 逐项写出；模型侧错误以 error 帧结束，写失败（对端关闭）直接返回
func pumpSSE(w io.Writer, r *stream.Reducer) error {
	for {
		out, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			status, code := statusOf(err)
			hlog.Warnf("stream turn failed: status=%d err=%v", status, err)
			return writeSSE(w, "error", errorBody{Error: err.Error(), Code: code})
		}
		if err := writeSSE(w, string(out.Event.Kind), sseEvent{Event: out.Event, Message: out.Message}); err != nil {
			return err
		}
	}
}

func writeSSE(w io.Writer, event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
