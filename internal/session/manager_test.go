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

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"converser/pkg/converse"
	"converser/pkg/errors"
	"converser/pkg/message"
	"converser/pkg/stream"
)

// echoClient 回复 "re: <最后一条文本>"
type echoClient struct {
	mu       sync.Mutex
	stop     string
	requests []*converse.Request
}

func (c *echoClient) reply(req *converse.Request) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return "re: " + req.Messages[len(req.Messages)-1].Text()
}

func (c *echoClient) stopReason() string {
	if c.stop == "" {
		return "end_turn"
	}
	return c.stop
}

func (c *echoClient) Converse(ctx context.Context, req *converse.Request) (*converse.Response, error) {
	text := c.reply(req)
	return &converse.Response{Message: message.AssistantText(text), StopReason: c.stopReason()}, nil
}

func (c *echoClient) ConverseStream(ctx context.Context, req *converse.Request) (stream.Source, error) {
	text := c.reply(req)
	return stream.NewSliceSource(
		stream.Event{Kind: stream.KindMessageStart, Role: message.RoleAssistant},
		stream.Event{Kind: stream.KindContentBlockDelta, Text: text},
		stream.Event{Kind: stream.KindContentBlockStop},
		stream.Event{Kind: stream.KindMessageStop, StopReason: c.stopReason()},
	), nil
}

func testDefaults() converse.Settings {
	return converse.Settings{
		ModelID:   "anthropic.claude-3-haiku-20240307-v1:0",
		System:    []string{"be brief"},
		Inference: converse.DefaultInferenceConfig(),
	}
}

func TestManager_CreateAppliesDefaultsAndOverrides(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&echoClient{}, testDefaults(), nil, nil)

	s, err := m.Create(ctx, CreateOptions{})
	require.NoError(t, err)
	assert.Contains(t, s.ID, "session-")
	assert.Equal(t, testDefaults().ModelID, s.Converser().Settings().ModelID)
	assert.Equal(t, []string{"be brief"}, s.Converser().Settings().System)

	inf := converse.DefaultInferenceConfig()
	inf.Temperature = 0
	s2, err := m.Create(ctx, CreateOptions{ModelID: "other", System: []string{"x"}, Inference: &inf})
	require.NoError(t, err)
	settings := s2.Converser().Settings()
	assert.Equal(t, "other", settings.ModelID)
	assert.Equal(t, []string{"x"}, settings.System)
	assert.Equal(t, 0.0, settings.Inference.Temperature)

	bad := converse.DefaultInferenceConfig()
	bad.MaxTokens = 99999
	_, err = m.Create(ctx, CreateOptions{Inference: &bad})
	assert.ErrorIs(t, err, errors.ErrInvalidArg)

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{s.ID, s2.ID}, ids)
}

func TestSession_SendPersistsHistory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(&echoClient{}, testDefaults(), store, nil)
	s, err := m.Create(ctx, CreateOptions{})
	require.NoError(t, err)

	resp, err := s.Send(ctx, message.UserText("hello"))
	require.NoError(t, err)
	assert.Equal(t, "re: hello", resp.Message.Text())

	rec, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, rec.History, 2)
	assert.Equal(t, "re: hello", rec.History[1].Text())
	assert.Equal(t, 2, s.Info().Messages)
}

func TestSession_StreamPersistsAndReleases(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(&echoClient{}, testDefaults(), store, nil)
	s, err := m.Create(ctx, CreateOptions{})
	require.NoError(t, err)

	r, err := s.Stream(ctx, message.UserText("hi"))
	require.NoError(t, err)

	// 流未关闭时会话被占用
	busy, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = s.Send(busy, message.UserText("x"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	outs, err := stream.Collect(r)
	require.NoError(t, err)
	assert.Equal(t, "re: hi", outs[len(outs)-1].Message.Text())

	rec, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, rec.History, 2)

	_, err = s.Send(ctx, message.UserText("next"))
	require.NoError(t, err)
	history, err := s.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestSession_RejectedTurnIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(&echoClient{stop: "guardrail_intervened"}, testDefaults(), store, nil)
	s, err := m.Create(ctx, CreateOptions{})
	require.NoError(t, err)

	_, err = s.Send(ctx, message.UserText("hello"))
	assert.ErrorIs(t, err, errors.ErrUnsupportedStopReason)
	rec, _ := store.Get(ctx, s.ID)
	assert.Empty(t, rec.History)
}

func TestSession_Stateless(t *testing.T) {
	ctx := context.Background()
	client := &echoClient{}
	m := NewManager(client, testDefaults(), nil, nil)
	s, err := m.Create(ctx, CreateOptions{Stateless: true})
	require.NoError(t, err)

	_, err = s.Send(ctx, message.UserText("one"))
	require.NoError(t, err)
	_, err = s.Send(ctx, message.UserText("two"))
	require.NoError(t, err)
	assert.Len(t, client.requests[1].Messages, 1)

	history, err := s.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSession_Reset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(&echoClient{}, testDefaults(), store, nil)
	s, err := m.Create(ctx, CreateOptions{})
	require.NoError(t, err)
	_, err = s.Send(ctx, message.UserText("hello"))
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))
	history, err := s.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
	rec, _ := store.Get(ctx, s.ID)
	assert.Empty(t, rec.History)
}

func TestManager_GetRestoresFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	client := &echoClient{}
	first := NewManager(client, testDefaults(), store, nil)
	s, err := first.Create(ctx, CreateOptions{System: []string{"restored"}})
	require.NoError(t, err)
	_, err = s.Send(ctx, message.UserText("hello"))
	require.NoError(t, err)

	// 新 Manager 共享同一 Store，模拟进程重启
	second := NewManager(client, testDefaults(), store, nil)
	got, err := second.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"restored"}, got.Converser().Settings().System)

	_, err = got.Send(ctx, message.UserText("again"))
	require.NoError(t, err)
	last := client.requests[len(client.requests)-1]
	require.Len(t, last.Messages, 3)
	assert.Equal(t, "re: hello", last.Messages[1].Text())

	again, err := second.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Same(t, got, again)
}

func TestManager_GetRejectsCorruptHistory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rec := sampleRecord("session-bad")
	rec.History = []message.Message{message.AssistantText("orphan")}
	require.NoError(t, store.Put(ctx, rec))

	m := NewManager(&echoClient{}, testDefaults(), store, nil)
	_, err := m.Get(ctx, "session-bad")
	assert.ErrorIs(t, err, errors.ErrInvalidOrder)
}

func TestManager_NotFoundAndDelete(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&echoClient{}, testDefaults(), nil, nil)

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "missing"), errors.ErrNotFound)

	s, err := m.Create(ctx, CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, s.ID))
	_, err = m.Get(ctx, s.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestManager_DeleteDuringStreamStaysDeleted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(&echoClient{}, testDefaults(), store, nil)
	s, err := m.Create(ctx, CreateOptions{})
	require.NoError(t, err)

	r, err := s.Stream(ctx, message.UserText("hi"))
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, s.ID))

	// 在途回合照常完成，但提交不能把记录写回
	outs, err := stream.Collect(r)
	require.NoError(t, err)
	assert.Equal(t, "re: hi", outs[len(outs)-1].Message.Text())

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, s.ID)
	rec, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)
	_, err = m.Get(ctx, s.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestSession_ConcurrentTurnsAreSerialized(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&echoClient{}, testDefaults(), nil, nil)
	s, err := m.Create(ctx, CreateOptions{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Send(ctx, message.UserText("ping"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	history, err := s.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 16)
}
