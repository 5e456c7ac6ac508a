package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"converser/internal/session"
	"converser/pkg/stream"
)

func runHealth() {
	out, err := getHealth()
	if err != nil {
		color.Red("UNREACHABLE (%v)", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runLogin(args []string) {
	if len(args) != 2 {
		fatalf("Usage: converser login <username> <password>")
	}
	token, err := login(args[0], args[1])
	if err != nil {
		fatalf("登录失败: %v", err)
	}
	fmt.Printf("export CONVERSER_TOKEN=%s\n", token)
}

func runSessions(args []string) {
	if len(args) < 1 {
		fatalf("Usage: converser sessions list|create|get|send|history|reset|delete")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list", "ls":
		ids, err := listSessions()
		if err != nil {
			fatalf("列出会话失败: %v", err)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	case "create":
		runSessionCreate(rest)
	case "get":
		id := requireID(sub, rest)
		info, err := getSession(id)
		if err != nil {
			fatalf("获取会话失败: %v", err)
		}
		fmt.Println(prettyJSON(info))
	case "send":
		runSessionSend(rest)
	case "history":
		id := requireID(sub, rest)
		history, err := getHistory(id)
		if err != nil {
			fatalf("获取历史失败: %v", err)
		}
		printHistory(os.Stdout, history)
	case "reset":
		id := requireID(sub, rest)
		if err := resetHistory(id); err != nil {
			fatalf("清空历史失败: %v", err)
		}
		color.Yellow("历史已清空")
	case "delete", "rm":
		id := requireID(sub, rest)
		if err := deleteSession(id); err != nil {
			fatalf("删除会话失败: %v", err)
		}
		color.Yellow("已删除 %s", id)
	default:
		fatalf("unknown sessions command: %s", sub)
	}
}

func requireID(sub string, args []string) string {
	if len(args) < 1 || args[0] == "" {
		fatalf("Usage: converser sessions %s <id>", sub)
	}
	return args[0]
}

func runSessionCreate(args []string) {
	fs := newFlagSet("sessions create")
	model := fs.StringP("model", "m", "", "模型 ID，默认取服务端配置")
	system := fs.StringArrayP("system", "s", nil, "系统提示（可重复）")
	stateless := fs.Bool("stateless", false, "不保留历史")
	_ = fs.Parse(args)

	info, err := createSession(session.CreateOptions{
		ModelID:   *model,
		System:    *system,
		Stateless: *stateless,
	})
	if err != nil {
		fatalf("创建会话失败: %v", err)
	}
	fmt.Println(info.ID)
}

func runSessionSend(args []string) {
	fs := newFlagSet("sessions send")
	streaming := fs.Bool("stream", false, "以 SSE 流式接收")
	_ = fs.Parse(args)
	if fs.NArg() < 2 {
		fatalf("Usage: converser sessions send [--stream] <id> <text>")
	}
	id := fs.Arg(0)
	text := strings.Join(fs.Args()[1:], " ")

	if !*streaming {
		reply, err := sendMessage(id, text)
		if err != nil {
			fatalf("发送失败: %v", err)
		}
		printReply(os.Stdout, reply.Message, reply.StopReason, stream.Usage{
			InputTokens:  reply.Usage.InputTokens,
			OutputTokens: reply.Usage.OutputTokens,
		})
		return
	}
	err := streamMessage(id, text, func(f sseFrame) error {
		var ev sseEvent
		if err := json.Unmarshal([]byte(f.Data), &ev); err != nil {
			return fmt.Errorf("decode %s frame: %w", f.Event, err)
		}
		if ev.Kind == stream.KindContentBlockDelta && ev.Text != "" {
			fmt.Print(ev.Text)
		}
		if ev.Message != nil {
			fmt.Println()
			for _, tu := range ev.Message.ToolUses() {
				printToolUse(os.Stdout, tu)
			}
			var usage stream.Usage
			if ev.Usage != nil {
				usage = *ev.Usage
			}
			printFooter(os.Stdout, ev.StopReason, usage)
		}
		return nil
	})
	if err != nil {
		fmt.Println()
		fatalf("流式发送失败: %v", err)
	}
}
