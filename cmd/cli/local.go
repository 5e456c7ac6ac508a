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

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	"converser/internal/app"
	"converser/pkg/catalog"
	"converser/pkg/config"
	"converser/pkg/converse"
	"converser/pkg/errors"
	"converser/pkg/memory"
	"converser/pkg/message"
	"converser/pkg/stream"
	"converser/pkg/tooluse"
)

// turnFlags ask / chat / file 共用参数
type turnFlags struct {
	config string
	model  string
	system []string
	stream bool
}

func (t *turnFlags) register(fs *flag.FlagSet) {
	fs.StringVarP(&t.config, "config", "c", configPath(), "配置文件路径")
	fs.StringVarP(&t.model, "model", "m", "", "模型 ID，默认取配置 converse.model_id")
	fs.StringArrayVarP(&t.system, "system", "s", nil, "追加系统提示（可重复）")
	fs.BoolVar(&t.stream, "stream", false, "流式输出")
}

func configPath() string {
	if p := os.Getenv("CONVERSER_CONFIG"); p != "" {
		return p
	}
	return config.DefaultPath
}

// loadConfig 配置文件不存在时退回默认配置
func loadConfig(path string) *config.Config {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fatalf("加载配置失败: %v", err)
	}
	return cfg
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.SortFlags = false
	return fs
}

// newConverser 按配置创建本地会话；CLI 日志只输出 warn 以上
func newConverser(ctx context.Context, t *turnFlags, opts ...converse.Option) (*converse.Converser, func()) {
	cfg := loadConfig(t.config)
	cfg.Log.Level = "warn"
	cfg.Log.Format = "text"
	if t.model != "" {
		cfg.Converse.ModelID = t.model
	}
	b, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		fatalf("初始化失败: %v", err)
	}
	shutdownTracing, err := b.InitTracing()
	if err != nil {
		_ = b.Close()
		fatalf("%v", err)
	}
	done := func() {
		_ = shutdownTracing(context.Background())
		_ = b.Close()
	}
	opts = append([]converse.Option{converse.WithSystemPrompt(t.system...)}, opts...)
	c, err := b.NewConverser(opts...)
	if err != nil {
		done()
		fatalf("创建会话失败: %v", err)
	}
	return c, done
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runConfig(args []string) {
	fs := newFlagSet("config")
	path := fs.StringP("config", "c", configPath(), "配置文件路径")
	_ = fs.Parse(args)

	cfg := loadConfig(*path)
	fmt.Printf("converse.model_id=%s\n", cfg.Converse.ModelID)
	fmt.Printf("converse.inference=%+v\n", cfg.Converse.Inference)
	fmt.Printf("provider.type=%s\n", cfg.Provider.Type)
	if cfg.Provider.Region != "" {
		fmt.Printf("provider.region=%s\n", cfg.Provider.Region)
	}
	fmt.Printf("secrets.provider=%s\n", cfg.Secrets.Provider)
	fmt.Printf("history.type=%s\n", cfg.History.Type)
	fmt.Printf("api.host=%s\n", cfg.API.Host)
	fmt.Printf("api.port=%d\n", cfg.API.Port)
}

func runModels(args []string) {
	fs := newFlagSet("models")
	caps := fs.StringSlice("capability", nil, "按能力过滤，如 vision,tool_use")
	asJSON := fs.Bool("json", false, "JSON 输出")
	_ = fs.Parse(args)

	filter := make([]catalog.Capability, 0, len(*caps))
	for _, c := range *caps {
		filter = append(filter, catalog.Capability(strings.TrimSpace(c)))
	}
	models := catalog.WithCapabilities(filter...)
	if *asJSON {
		fmt.Println(prettyJSON(models))
		return
	}
	printModels(os.Stdout, models)
}

func printModels(w io.Writer, models []catalog.Model) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tID\tSTREAM\tVISION\tDOCS\tTOOLS")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", m.Name, m.ID,
			yesNo(m.ConverseStream), yesNo(m.Vision), yesNo(m.DocumentChat), yesNo(m.ToolUse))
	}
	_ = tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func runSchema(args []string) {
	fs := newFlagSet("schema")
	name := fs.String("name", "", "工具名")
	doc := fs.String("doc", "", "工具说明，可含 Args: 段落")
	docFile := fs.String("doc-file", "", "从文件读取说明")
	params := fs.StringArray("param", nil, "参数 name:type[:required]（可重复）")
	_ = fs.Parse(args)

	text := *doc
	if *docFile != "" {
		data, err := os.ReadFile(*docFile)
		if err != nil {
			fatalf("读取 %s 失败: %v", *docFile, err)
		}
		text = string(data)
	}
	ps, err := parseParams(*params)
	if err != nil {
		fatalf("%v", err)
	}
	d, err := tooluse.FromParams(*name, text, ps...)
	if err != nil {
		fatalf("生成工具描述失败: %v", err)
	}
	fmt.Println(prettyJSON(d))
}

// parseParams 解析 name:type[:required]，type 缺省为 string
func parseParams(specs []string) ([]tooluse.Param, error) {
	out := make([]tooluse.Param, 0, len(specs))
	for _, s := range specs {
		parts := strings.Split(s, ":")
		if parts[0] == "" || len(parts) > 3 {
			return nil, errors.Wrapf(errors.ErrInvalidArg, "param %q: want name:type[:required]", s)
		}
		p := tooluse.Param{Name: parts[0], Type: "string"}
		if len(parts) > 1 && parts[1] != "" {
			p.Type = parts[1]
		}
		if len(parts) == 3 {
			if parts[2] != "required" {
				return nil, errors.Wrapf(errors.ErrInvalidArg, "param %q: unknown flag %q", s, parts[2])
			}
			p.Required = true
		}
		out = append(out, p)
	}
	return out, nil
}

func runAsk(args []string) {
	fs := newFlagSet("ask")
	var t turnFlags
	t.register(fs)
	_ = fs.Parse(args)
	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		fatalf("Usage: converser ask [--stream] <text>")
	}

	ctx, cancel := signalContext()
	defer cancel()
	c, done := newConverser(ctx, &t)
	defer done()
	if err := turn(ctx, os.Stdout, c, t.stream, message.UserText(text)); err != nil {
		fatalf("调用失败: %v", err)
	}
}

func runFile(args []string) {
	fs := newFlagSet("file")
	var t turnFlags
	t.register(fs)
	kind := fs.StringP("kind", "k", "document", "image 或 document")
	text := fs.StringP("text", "t", "", "随文件发送的文字，默认请求描述文件内容")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fatalf("Usage: converser file --kind image|document [--text t] <path>")
	}
	k, err := converse.ParseContentKind(*kind)
	if err != nil {
		fatalf("%v", err)
	}
	// 在初始化模型客户端前校验格式与读取文件
	msg, err := converse.BuildFileMessage(fs.Arg(0), k, *text)
	if err != nil {
		fatalf("%v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()
	c, done := newConverser(ctx, &t)
	defer done()
	if err := turn(ctx, os.Stdout, c, t.stream, msg); err != nil {
		fatalf("调用失败: %v", err)
	}
}

func runChat(args []string) {
	fs := newFlagSet("chat")
	var t turnFlags
	t.register(fs)
	_ = fs.Parse(args)

	ctx, cancel := signalContext()
	defer cancel()
	mem := memory.New()
	c, done := newConverser(ctx, &t, converse.WithMemory(mem))
	defer done()

	prompt := color.New(color.FgGreen, color.Bold)
	color.New(color.FgCyan).Printf("model: %s  (exit 退出, /reset 清空历史, /history 查看历史)\n", c.Settings().ModelID)
	reader := bufio.NewReader(os.Stdin)
	for ctx.Err() == nil {
		prompt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		msg := strings.TrimSpace(line)
		switch msg {
		case "":
			continue
		case "exit", "quit":
			return
		case "/reset":
			mem.Reset()
			color.Yellow("历史已清空")
			continue
		case "/history":
			printHistory(os.Stdout, mem.History())
			continue
		}
		if err := turn(ctx, os.Stdout, c, t.stream, message.UserText(msg)); err != nil {
			color.Red("调用失败: %v", err)
		}
	}
}

// turn 执行一次回合并输出回复
func turn(ctx context.Context, w io.Writer, c *converse.Converser, streaming bool, msgs ...message.Message) error {
	if !streaming {
		resp, err := c.Send(ctx, msgs...)
		if err != nil {
			return err
		}
		printReply(w, resp.Message, resp.StopReason, resp.Usage)
		return nil
	}
	r, err := c.SendStream(ctx, msgs...)
	if err != nil {
		return err
	}
	return renderStream(w, r)
}

// renderStream 边收边打印文本增量，终止事件后补充停止原因与用量
func renderStream(w io.Writer, r *stream.Reducer) error {
	defer r.Close()
	for out, err := range r.All() {
		if err != nil {
			fmt.Fprintln(w)
			return err
		}
		ev := out.Event
		if ev.Kind == stream.KindContentBlockDelta && ev.Text != "" {
			fmt.Fprint(w, ev.Text)
		}
		if out.Message != nil {
			fmt.Fprintln(w)
			for _, tu := range out.Message.ToolUses() {
				printToolUse(w, tu)
			}
			var usage stream.Usage
			if ev.Usage != nil {
				usage = *ev.Usage
			}
			printFooter(w, ev.StopReason, usage)
		}
	}
	return nil
}

func printReply(w io.Writer, m message.Message, stopReason string, usage stream.Usage) {
	if text := m.Text(); text != "" {
		fmt.Fprintln(w, text)
	}
	for _, tu := range m.ToolUses() {
		printToolUse(w, tu)
	}
	printFooter(w, stopReason, usage)
}

func printToolUse(w io.Writer, tu message.ToolUse) {
	color.New(color.FgMagenta).Fprintf(w, "[tool_use] %s(%s) id=%s\n", tu.Name, string(tu.Input), tu.ID)
}

func printFooter(w io.Writer, stopReason string, usage stream.Usage) {
	color.New(color.Faint).Fprintf(w, "-- %s, tokens in=%d out=%d\n", stopReason, usage.InputTokens, usage.OutputTokens)
}

func printHistory(w io.Writer, history []message.Message) {
	if len(history) == 0 {
		fmt.Fprintln(w, "(empty)")
		return
	}
	user := color.New(color.FgGreen)
	assistant := color.New(color.FgCyan)
	for _, m := range history {
		role := assistant
		if m.Role == message.RoleUser {
			role = user
		}
		role.Fprintf(w, "%s: ", m.Role)
		fmt.Fprintln(w, summarize(m))
	}
}

// summarize 非文本块以 [type] 占位
func summarize(m message.Message) string {
	parts := make([]string, 0, len(m.Content))
	for _, b := range m.Content {
		if b.Type == message.BlockText {
			parts = append(parts, b.Text)
			continue
		}
		parts = append(parts, "["+string(b.Type)+"]")
	}
	return strings.Join(parts, " ")
}
