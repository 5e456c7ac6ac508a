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

// devops 启动 Eino Dev 调试服务并注册会话回合 Graph，供 IDE 插件（Eino Dev）连接后进行可视化调试。
// 使用：go run ./cmd/devops -c configs/converser.yaml；在 IDE 中配置连接地址 127.0.0.1:52538 后选择编排进行 Test Run。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino-ext/devops"
	flag "github.com/spf13/pflag"

	"converser/internal/app"
	"converser/pkg/config"
	"converser/pkg/converse"
	"converser/pkg/memory"
)

// devServerAddr eino-ext devops 默认监听地址
const devServerAddr = "127.0.0.1:52538"

func main() {
	path := flag.StringP("config", "c", config.DefaultPath, "配置文件路径")
	flag.Parse()
	if err := run(*path); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// devops.Init 必须先于任何 Compile
	if err := devops.Init(ctx); err != nil {
		return fmt.Errorf("eino devops init: %w", err)
	}

	b, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("初始化失败: %w", err)
	}
	defer b.Close()
	shutdownTracing, err := b.InitTracing()
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// 多次 Test Run 共用一段历史，便于调试多轮对话
	c, err := b.NewConverser(converse.WithMemory(memory.New()))
	if err != nil {
		return fmt.Errorf("创建会话失败: %w", err)
	}
	if _, err := buildTurnGraph(ctx, c); err != nil {
		return fmt.Errorf("compile turn graph: %w", err)
	}
	if _, err := buildSchemaGraph(ctx); err != nil {
		return fmt.Errorf("compile schema graph: %w", err)
	}

	b.Logger.Info("Eino Dev 调试服务已就绪，在 IDE 插件中连接该地址", "addr", devServerAddr, "graphs", []string{"converse_turn", "tool_schema"})
	<-ctx.Done()
	b.Logger.Info("Eino Dev 调试服务退出")
	return nil
}
