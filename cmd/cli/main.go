package main

import (
	"fmt"
	"os"
)

const version = "converser cli 0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println(version)
	case "config":
		runConfig(args)
	case "models":
		runModels(args)
	case "schema":
		runSchema(args)
	case "ask":
		runAsk(args)
	case "chat":
		runChat(args)
	case "file":
		runFile(args)
	case "health":
		runHealth()
	case "login":
		runLogin(args)
	case "sessions", "session":
		runSessions(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`converser - LLM 会话命令行

本地（直接调用模型，读取 -c 配置）:
  converser version
  converser config [-c path]                      打印生效配置
  converser models [--capability vision,tool_use] [--json]
  converser schema --name N --doc D [--param name:type[:required]]...
  converser ask [--stream] [--model id] [--system s] <text>
  converser chat [--stream] [--model id] [--system s]   交互式多轮对话（/reset /history exit）
  converser file --kind image|document [--text t] [--stream] <path>

远程（调用 API 服务，CONVERSER_API_URL / CONVERSER_TOKEN）:
  converser health
  converser login <username> <password>
  converser sessions list
  converser sessions create [--model id] [--system s] [--stateless]
  converser sessions get <id>
  converser sessions send [--stream] <id> <text>
  converser sessions history <id>
  converser sessions reset <id>
  converser sessions delete <id>`)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
