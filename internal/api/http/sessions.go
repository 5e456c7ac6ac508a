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
	"io"
	"path/filepath"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"converser/internal/session"
	"converser/pkg/converse"
	"converser/pkg/errors"
	"converser/pkg/message"
)

// sendRequest 发送消息请求：messages 优先，否则以 text 构造单条 user 消息
type sendRequest struct {
	Text     string            `json:"text,omitempty"`
	Messages []message.Message `json:"messages,omitempty"`
}

func (r sendRequest) batch() ([]message.Message, error) {
	if len(r.Messages) > 0 {
		return r.Messages, nil
	}
	if r.Text == "" {
		return nil, errors.Wrap(errors.ErrInvalidArg, "text or messages is required")
	}
	return []message.Message{message.UserText(r.Text)}, nil
}

// CreateSession POST /api/sessions
func (h *Handler) CreateSession(ctx context.Context, c *app.RequestContext) {
	var opts session.CreateOptions
	if len(c.Request.Body()) > 0 {
		if err := c.BindJSON(&opts); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}
	s, err := h.sessions.Create(ctx, opts)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, s.Info())
}

// ListSessions GET /api/sessions
func (h *Handler) ListSessions(ctx context.Context, c *app.RequestContext) {
	ids, err := h.sessions.List(ctx)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"sessions": ids, "total": len(ids)})
}

// GetSession GET /api/sessions/:id
func (h *Handler) GetSession(ctx context.Context, c *app.RequestContext) {
	s, err := h.sessions.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, s.Info())
}

// DeleteSession DELETE /api/sessions/:id
func (h *Handler) DeleteSession(ctx context.Context, c *app.RequestContext) {
	if err := h.sessions.Delete(ctx, c.Param("id")); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.Status(consts.StatusNoContent)
}

// GetHistory GET /api/sessions/:id/history
func (h *Handler) GetHistory(ctx context.Context, c *app.RequestContext) {
	s, err := h.sessions.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	history, err := s.History(ctx)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"messages": history, "total": len(history)})
}

// ResetHistory DELETE /api/sessions/:id/history
func (h *Handler) ResetHistory(ctx context.Context, c *app.RequestContext) {
	s, err := h.sessions.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	if err := s.Reset(ctx); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.Status(consts.StatusNoContent)
}

// SendMessages POST /api/sessions/:id/messages
func (h *Handler) SendMessages(ctx context.Context, c *app.RequestContext) {
	var req sendRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	msgs, err := req.batch()
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	h.send(ctx, c, msgs, false)
}

// StreamMessages POST /api/sessions/:id/stream，以 SSE 返回事件
func (h *Handler) StreamMessages(ctx context.Context, c *app.RequestContext) {
	var req sendRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	msgs, err := req.batch()
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	h.send(ctx, c, msgs, true)
}

// UploadFile POST /api/sessions/:id/files（multipart：file, kind, text；?stream=true 走 SSE）
func (h *Handler) UploadFile(ctx context.Context, c *app.RequestContext) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if fh.Size > h.maxUpload {
		c.JSON(consts.StatusRequestEntityTooLarge, errorBody{Error: "file too large", Code: "too_large"})
		return
	}
	kind, err := converse.ParseContentKind(c.PostForm("kind"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	format, err := converse.CheckFormat(kind, filepath.Ext(fh.Filename))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	msg := converse.FileMessage(fh.Filename, kind, format, data, c.PostForm("text"))
	h.send(ctx, c, []message.Message{msg}, queryBool(c, "stream"))
}

func (h *Handler) send(ctx context.Context, c *app.RequestContext, msgs []message.Message, streaming bool) {
	s, err := h.sessions.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	if streaming {
		h.stream(ctx, c, s, msgs)
		return
	}
	resp, err := s.Send(ctx, msgs...)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, resp)
}
