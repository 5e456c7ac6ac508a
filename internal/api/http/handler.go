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
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"converser/internal/session"
	"converser/pkg/catalog"
	"converser/pkg/errors"
	"converser/pkg/metrics"
	"converser/pkg/tooluse"
)

const defaultMaxUpload = 20 << 20

// Handler HTTP 处理器
type Handler struct {
	sessions  *session.Manager
	provider  string
	maxUpload int64
}

// NewHandler 创建 Handler；maxUpload 为上传上限（字节），<=0 取 20MB
func NewHandler(sessions *session.Manager, provider string, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handler{sessions: sessions, provider: provider, maxUpload: maxUpload}
}

// HealthCheck GET /api/health
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]string{
		"status":   "ok",
		"provider": h.provider,
	})
}

// ListModels GET /api/models?capability=vision,tool_use
// 未知能力名返回 400
func (h *Handler) ListModels(ctx context.Context, c *app.RequestContext) {
	var caps []catalog.Capability
	for _, name := range strings.Split(c.Query("capability"), ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		capability, ok := parseCapability(name)
		if !ok {
			badRequest(c, "unknown capability: "+name)
			return
		}
		caps = append(caps, capability)
	}
	models := catalog.WithCapabilities(caps...)
	if models == nil {
		models = []catalog.Model{}
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"models": models,
		"total":  len(models),
	})
}

// GetModel GET /api/models/:id
func (h *Handler) GetModel(ctx context.Context, c *app.RequestContext) {
	m, ok := catalog.Lookup(c.Param("id"))
	if !ok {
		writeError(ctx, c, errors.Wrapf(errors.ErrNotFound, "model %s", c.Param("id")))
		return
	}
	c.JSON(consts.StatusOK, m)
}

func parseCapability(s string) (catalog.Capability, bool) {
	for _, capability := range catalog.Capabilities() {
		if string(capability) == s {
			return capability, true
		}
	}
	return "", false
}

// toolSchemaRequest 工具描述生成请求
type toolSchemaRequest struct {
	Name   string          `json:"name"`
	Doc    string          `json:"doc"`
	Params []tooluse.Param `json:"params"`
}

// ToolSchema POST /api/tools/schema：按 docstring 与参数表生成工具描述
func (h *Handler) ToolSchema(ctx context.Context, c *app.RequestContext) {
	var req toolSchemaRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	d, err := tooluse.FromParams(req.Name, req.Doc, req.Params...)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, d)
}

// Metrics GET /metrics
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

func queryBool(c *app.RequestContext, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
