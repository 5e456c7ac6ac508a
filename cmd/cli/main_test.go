package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fatih/color"

	"converser/internal/session"
	"converser/pkg/catalog"
	"converser/pkg/message"
	"converser/pkg/stream"
	"converser/pkg/tooluse"
)

func init() {
	color.NoColor = true
}

func TestParseParams(t *testing.T) {
	ps, err := parseParams([]string{"city:string:required", "days:integer", "tags:"})
	if err != nil {
		t.Fatalf("parseParams: %v", err)
	}
	want := []tooluse.Param{
		{Name: "city", Type: "string", Required: true},
		{Name: "days", Type: "integer"},
		{Name: "tags", Type: "string"},
	}
	if len(ps) != len(want) {
		t.Fatalf("len = %d, want %d", len(ps), len(want))
	}
	for i := range want {
		if ps[i] != want[i] {
			t.Errorf("param[%d] = %+v, want %+v", i, ps[i], want[i])
		}
	}

	for _, bad := range []string{":string", "a:string:optional", "a:b:c:d"} {
		if _, err := parseParams([]string{bad}); err == nil {
			t.Errorf("parseParams(%q) expected error", bad)
		}
	}
}

func TestReadSSE(t *testing.T) {
	raw := "event: message_start\ndata: {\"kind\":\"message_start\"}\n\n" +
		": comment\n" +
		"event: content_block_delta\ndata: {\"kind\":\"content_block_delta\",\n" +
		"data: \"text\":\"hi\"}\n\n" +
		"event: message_stop\ndata: {}"
	var frames []sseFrame
	err := readSSE(strings.NewReader(raw), func(f sseFrame) error {
		frames = append(frames, f)
		return nil
	})
	if err != nil {
		t.Fatalf("readSSE: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	if frames[1].Event != "content_block_delta" || frames[1].Data != "{\"kind\":\"content_block_delta\",\n\"text\":\"hi\"}" {
		t.Errorf("frame[1] = %+v", frames[1])
	}
	if frames[2].Event != "message_stop" || frames[2].Data != "{}" {
		t.Errorf("trailing frame without blank line = %+v", frames[2])
	}
}

func TestRenderStream(t *testing.T) {
	r := stream.NewReducer(stream.NewSliceSource(
		stream.Event{Kind: stream.KindMessageStart, Role: message.RoleAssistant},
		stream.Event{Kind: stream.KindContentBlockDelta, Text: "Hel"},
		stream.Event{Kind: stream.KindContentBlockDelta, Text: "lo"},
		stream.Event{Kind: stream.KindContentBlockStop},
		stream.Event{Kind: stream.KindMessageStop, StopReason: "end_turn"},
		stream.Event{Kind: stream.KindMetadata, Usage: &stream.Usage{InputTokens: 5, OutputTokens: 2}},
	))
	var buf bytes.Buffer
	if err := renderStream(&buf, r); err != nil {
		t.Fatalf("renderStream: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "Hello\n") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "end_turn, tokens in=5 out=2") {
		t.Errorf("footer missing: %q", out)
	}
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	if buf.String() != "(empty)\n" {
		t.Errorf("empty history = %q", buf.String())
	}

	buf.Reset()
	printHistory(&buf, []message.Message{
		message.User(message.Text("look"), message.ImageBlock("png", []byte{1})),
		message.AssistantText("a cat"),
	})
	want := "user: look [image]\nassistant: a cat\n"
	if buf.String() != want {
		t.Errorf("history = %q, want %q", buf.String(), want)
	}
}

func TestPrintModels(t *testing.T) {
	var buf bytes.Buffer
	printModels(&buf, catalog.WithCapabilities(catalog.CapVision))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) < 2 || !strings.HasPrefix(lines[0], "MODEL") {
		t.Fatalf("table = %q", buf.String())
	}
}

func newTestAPI(t *testing.T, mux *http.ServeMux) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Setenv("CONVERSER_API_URL", srv.URL)
	t.Setenv("CONVERSER_TOKEN", "tok")
}

func TestClient_CreateAndSend(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var opts session.CreateOptions
		_ = json.NewDecoder(r.Body).Decode(&opts)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(session.Info{ID: "s1", ModelID: opts.ModelID})
	})
	mux.HandleFunc("/api/sessions/s1/messages", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message":     message.AssistantText("echo: " + body["text"]),
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 3, "output_tokens": 4},
		})
	})
	newTestAPI(t, mux)

	info, err := createSession(session.CreateOptions{ModelID: "m1"})
	if err != nil {
		t.Fatalf("createSession: %v", err)
	}
	if info.ID != "s1" || info.ModelID != "m1" {
		t.Errorf("info = %+v", info)
	}

	reply, err := sendMessage("s1", "hi")
	if err != nil {
		t.Fatalf("sendMessage: %v", err)
	}
	if reply.Message.Text() != "echo: hi" || reply.StopReason != "end_turn" || reply.Usage.OutputTokens != 4 {
		t.Errorf("reply = %+v", reply)
	}
}

func TestClient_ErrorBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions/missing/history", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"session missing not found","code":"not_found"}`))
	})
	newTestAPI(t, mux)

	_, err := getHistory("missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "not_found") {
		t.Errorf("err = %v", err)
	}
}

func TestClient_StreamMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions/s1/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: content_block_delta\ndata: {\"kind\":\"content_block_delta\",\"done\":false,\"index\":0,\"text\":\"Hi\"}\n\n"))
		_, _ = w.Write([]byte("event: message_stop\ndata: {\"kind\":\"message_stop\",\"done\":true,\"index\":0,\"stop_reason\":\"end_turn\",\"message\":{\"role\":\"assistant\",\"content\":[{\"type\":\"text\",\"text\":\"Hi\"}]}}\n\n"))
	})
	mux.HandleFunc("/api/sessions/s2/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: error\ndata: {\"error\":\"unsupported stop reason: content_filtered\",\"code\":\"unsupported_stop_reason\"}\n\n"))
	})
	newTestAPI(t, mux)

	var events []sseEvent
	err := streamMessage("s1", "hello", func(f sseFrame) error {
		var ev sseEvent
		if err := json.Unmarshal([]byte(f.Data), &ev); err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("streamMessage: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	last := events[1]
	if !last.Done || last.Message == nil || last.Message.Text() != "Hi" {
		t.Errorf("terminal event = %+v", last)
	}

	err = streamMessage("s2", "hello", func(sseFrame) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "unsupported_stop_reason") {
		t.Errorf("err = %v", err)
	}
}
