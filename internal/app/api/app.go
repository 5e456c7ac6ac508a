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

package api

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/hertz-contrib/jwt"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"converser/internal/api/http"
	"converser/internal/api/http/middleware"
	"converser/internal/app"
	"converser/internal/model/llm"
	"converser/internal/session"
	"converser/pkg/secrets"
	"converser/pkg/utils"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 Router、Handler、Middleware 与会话管理）
type App struct {
	config       *app.Bootstrap
	sessions     *session.Manager
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(ctx context.Context, bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	sessions, err := bootstrap.NewSessionManager(ctx)
	if err != nil {
		return nil, err
	}

	handler := http.NewHandler(sessions, llm.ProviderOf(bootstrap.Client), int64(cfg.API.MaxUpload)<<20)
	var origins []string
	if cfg.API.CORS.Enable {
		origins = cfg.API.CORS.AllowOrigins
	}
	mw := middleware.NewMiddleware(origins, bootstrap.Logger.Component("http"))
	router := http.NewRouter(handler, mw)
	if cfg.API.RateLimit > 0 {
		router.SetRateLimit(cfg.API.RateLimit)
	}

	if cfg.API.Middleware.Auth {
		jwtAuth, err := newJWTAuth(ctx, bootstrap)
		if err != nil {
			bootstrap.Logger.Warn("JWT 初始化失败，将跳过认证", "error", err)
		} else {
			router.SetJWT(jwtAuth)
			bootstrap.Logger.Info("JWT 认证已启用", "users", len(cfg.API.Middleware.Users))
		}
	}

	return &App{
		config:   bootstrap,
		sessions: sessions,
		router:   router,
	}, nil
}

func newJWTAuth(ctx context.Context, bootstrap *app.Bootstrap) (*jwt.HertzJWTMiddleware, error) {
	mc := bootstrap.Config.API.Middleware
	key, err := secrets.Resolve(ctx, bootstrap.Secrets, mc.JWTKey)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("api.middleware.jwt_key 未配置")
	}
	users := make(map[string]string, len(mc.Users))
	for name, ref := range mc.Users {
		password, err := secrets.Resolve(ctx, bootstrap.Secrets, ref)
		if err != nil {
			return nil, fmt.Errorf("解析用户 %s 的密码失败: %w", name, err)
		}
		users[name] = password
	}
	timeout := utils.DurationOr(mc.JWTTimeout, time.Hour)
	maxRefresh := utils.DurationOr(mc.JWTMaxRefresh, time.Hour)
	return middleware.NewJWTAuth([]byte(key), timeout, maxRefresh, users)
}

// Addr 监听地址 host:port
func (a *App) Addr() string {
	return net.JoinHostPort(a.config.Config.API.Host, strconv.Itoa(a.config.Config.API.Port))
}

// Run 启动 HTTP 服务（阻塞）
func (a *App) Run() error {
	cfg := a.config.Config
	addr := a.Addr()
	a.config.Logger.Info("API 服务启动", "addr", addr)

	// Hertz 日志接入同一 slog 级别
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(a.config.Logger.Writer()),
		hertzslog.WithLevel(a.config.Logger.LevelVar()),
	))

	opts := []config.Option{
		server.WithReadTimeout(utils.DurationOr(cfg.API.Timeout, 120*time.Second)),
		server.WithMaxRequestBodySize((cfg.API.MaxUpload + 1) << 20),
	}
	var tracerCfg *hertztracing.Config
	if cfg.Monitoring.Tracing.Enable && cfg.Monitoring.Tracing.ExportEndpoint != "" {
		popts := []provider.Option{
			provider.WithServiceName(cfg.Monitoring.Tracing.ServiceName),
			provider.WithExportEndpoint(cfg.Monitoring.Tracing.ExportEndpoint),
		}
		if cfg.Monitoring.Tracing.Insecure {
			popts = append(popts, provider.WithInsecure())
		}
		a.otelProvider = provider.NewOpenTelemetryProvider(popts...)
		tracerOpt, tc := hertztracing.NewServerTracer()
		opts = append(opts, tracerOpt)
		tracerCfg = tc
		a.config.Logger.Info("链路追踪已启用", "service_name", cfg.Monitoring.Tracing.ServiceName, "endpoint", cfg.Monitoring.Tracing.ExportEndpoint)
	}

	h := server.Default(append([]config.Option{server.WithHostPorts(addr)}, opts...)...)
	if tracerCfg != nil {
		h.Use(hertztracing.ServerMiddleware(tracerCfg))
	}
	a.router.Register(h)
	a.hertz = h
	return h.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时）
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.hertz != nil {
		err = a.hertz.Shutdown(ctx)
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	a.sessions.Close()
	return err
}
