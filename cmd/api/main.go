package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"converser/internal/app"
	"converser/internal/app/api"
	"converser/pkg/config"
)

const shutdownTimeout = 30 * time.Second

func main() {
	path := flag.StringP("config", "c", os.Getenv("CONVERSER_CONFIG"), "配置文件路径（默认 "+config.DefaultPath+"）")
	flag.Parse()
	if *path == "" {
		*path = config.DefaultPath
	}
	if err := serve(*path); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// serve 运行 API 直到收到 SIGINT/SIGTERM 或服务自身退出
func serve(path string) error {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("初始化失败: %w", err)
	}
	defer b.Close()

	srv, err := api.NewApp(ctx, b)
	if err != nil {
		return fmt.Errorf("创建 API 应用失败: %w", err)
	}

	exited := make(chan error, 1)
	go func() { exited <- srv.Run() }()

	select {
	case err := <-exited:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API 服务异常退出: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	b.Logger.Info("收到退出信号，开始关闭", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("关闭失败: %w", err)
	}
	b.Logger.Info("API 服务已关闭")
	return nil
}
