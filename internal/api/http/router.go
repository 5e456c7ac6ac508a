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
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/hertz-contrib/jwt"

	"converser/internal/api/http/middleware"
)

// Router HTTP 路由
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	jwt        *jwt.HertzJWTMiddleware
	rps        float64
}

// NewRouter 创建路由
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// SetJWT 启用 JWT：/api/auth/* 开放，其余 /api 路由需携带 token
func (r *Router) SetJWT(m *jwt.HertzJWTMiddleware) { r.jwt = m }

// SetRateLimit 全局每秒请求数上限
func (r *Router) SetRateLimit(rps float64) { r.rps = rps }

// Build 创建 Hertz 实例并注册路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(opts...)
	r.Register(h)
	return h
}

// Register 在已有 Hertz 实例上注册路由
func (r *Router) Register(h *server.Hertz) {
	h.Use(r.middleware.AccessLog(), r.middleware.CORS())

	h.GET("/metrics", r.handler.Metrics)

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)

	if r.jwt != nil {
		auth := api.Group("/auth")
		auth.POST("/login", r.jwt.LoginHandler)
		auth.POST("/refresh", r.jwt.RefreshHandler)
	}

	protected := api.Group("", r.guards()...)
	protected.GET("/models", r.handler.ListModels)
	protected.GET("/models/:id", r.handler.GetModel)
	protected.POST("/tools/schema", r.handler.ToolSchema)

	sessions := protected.Group("/sessions")
	sessions.POST("", r.handler.CreateSession)
	sessions.GET("", r.handler.ListSessions)
	sessions.GET("/:id", r.handler.GetSession)
	sessions.DELETE("/:id", r.handler.DeleteSession)
	sessions.GET("/:id/history", r.handler.GetHistory)
	sessions.DELETE("/:id/history", r.handler.ResetHistory)
	sessions.POST("/:id/messages", r.handler.SendMessages)
	sessions.POST("/:id/stream", r.handler.StreamMessages)
	sessions.POST("/:id/files", r.handler.UploadFile)
}

func (r *Router) guards() []app.HandlerFunc {
	var out []app.HandlerFunc
	if r.rps > 0 {
		out = append(out, r.middleware.RateLimit(r.rps, 0))
	}
	if r.jwt != nil {
		out = append(out, r.jwt.MiddlewareFunc())
	}
	return out
}
