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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"converser/internal/session"
	"converser/pkg/message"
	"converser/pkg/stream"
)

func apiBaseURL() string {
	if u := os.Getenv("CONVERSER_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func newClient() *resty.Client {
	c := resty.New().
		SetBaseURL(apiBaseURL()).
		SetTimeout(120 * time.Second).
		SetHeader("Content-Type", "application/json")
	if token := os.Getenv("CONVERSER_TOKEN"); token != "" {
		c.SetAuthToken(token)
	}
	return c
}

// apiError 非预期状态码时附带服务端 error 字段
func apiError(method, path string, resp *resty.Response) error {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(resp.Body(), &body) == nil && body.Error != "" {
		return fmt.Errorf("%s %s: %d %s (%s)", method, path, resp.StatusCode(), body.Error, body.Code)
	}
	return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode(), resp.String())
}

// call 发起 JSON 请求；状态码不在 want 中时返回 apiError。out 为 nil 时不解析响应体
func call(method, path string, body, out interface{}, want ...int) error {
	req := newClient().R()
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if len(want) == 0 {
		want = []int{http.StatusOK}
	}
	if !slices.Contains(want, resp.StatusCode()) {
		return apiError(method, path, resp)
	}
	return nil
}

func getHealth() (map[string]interface{}, error) {
	var out map[string]interface{}
	err := call(http.MethodGet, "/api/health", nil, &out)
	return out, err
}

func login(username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := call(http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password}, &out)
	return out.Token, err
}

func listSessions() ([]string, error) {
	var out struct {
		Sessions []string `json:"sessions"`
	}
	err := call(http.MethodGet, "/api/sessions", nil, &out)
	return out.Sessions, err
}

func createSession(opts session.CreateOptions) (*session.Info, error) {
	var out session.Info
	if err := call(http.MethodPost, "/api/sessions", opts, &out, http.StatusCreated, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func getSession(id string) (*session.Info, error) {
	var out session.Info
	if err := call(http.MethodGet, "/api/sessions/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// turnReply POST /messages 的响应
type turnReply struct {
	Message    message.Message `json:"message"`
	StopReason string          `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func sendMessage(id, text string) (*turnReply, error) {
	var out turnReply
	if err := call(http.MethodPost, "/api/sessions/"+id+"/messages", map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// sseFrame 一个 SSE 帧
type sseFrame struct {
	Event string
	Data  string
}

// sseEvent 帧 data：流事件，终止帧附带合成消息
type sseEvent struct {
	stream.Event
	Message *message.Message `json:"message,omitempty"`
}

// streamMessage 发送并逐帧回调 SSE；error 帧转为错误返回
func streamMessage(id, text string, onFrame func(sseFrame) error) error {
	path := "/api/sessions/" + id + "/stream"
	resp, err := newClient().R().
		SetBody(map[string]string{"text": text}).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Post(path)
	if err != nil {
		return err
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.StatusCode() != http.StatusOK {
		data, _ := io.ReadAll(body)
		return fmt.Errorf("POST %s: %d %s", path, resp.StatusCode(), strings.TrimSpace(string(data)))
	}
	return readSSE(body, func(f sseFrame) error {
		if f.Event == "error" {
			var e struct {
				Error string `json:"error"`
				Code  string `json:"code"`
			}
			if json.Unmarshal([]byte(f.Data), &e) == nil && e.Error != "" {
				return fmt.Errorf("stream: %s (%s)", e.Error, e.Code)
			}
			return fmt.Errorf("stream: %s", f.Data)
		}
		return onFrame(f)
	})
}

// readSSE 按空行切分帧，只识别 event 与 data 字段
func readSSE(r io.Reader, onFrame func(sseFrame) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	var cur sseFrame
	var data []string
	flush := func() error {
		if cur.Event == "" && len(data) == 0 {
			return nil
		}
		cur.Data = strings.Join(data, "\n")
		err := onFrame(cur)
		cur, data = sseFrame{}, nil
		return err
	}
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "event:"):
			cur.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return flush()
}

func getHistory(id string) ([]message.Message, error) {
	var out struct {
		Messages []message.Message `json:"messages"`
	}
	err := call(http.MethodGet, "/api/sessions/"+id+"/history", nil, &out)
	return out.Messages, err
}

func resetHistory(id string) error {
	return call(http.MethodDelete, "/api/sessions/"+id+"/history", nil, nil, http.StatusNoContent, http.StatusOK)
}

func deleteSession(id string) error {
	return call(http.MethodDelete, "/api/sessions/"+id, nil, nil, http.StatusNoContent, http.StatusOK)
}

func prettyJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
