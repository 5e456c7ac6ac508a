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


package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limits 单个 provider 的配额；零值字段表示不限
type Limits struct {
	RequestsPerMinute float64
	TokensPerMinute   int
	MaxConcurrent     int
}

// DefaultLimits 未单独配置的 provider 使用
var DefaultLimits = Limits{
	RequestsPerMinute: 3500,
	TokensPerMinute:   90000,
	MaxConcurrent:     50,
}

// Throttle 按 provider 维护请求速率、token 预算与并发上限
type Throttle struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	fallback Limits
}

type bucket struct {
	limits   Limits
	requests *rate.Limiter
	tokens   *rate.Limiter
	slots    chan struct{}

	mu          sync.Mutex
	windowStart time.Time
	windowUsed  int
}

// Usage 某 provider 当前窗口的用量快照
type Usage struct {
	Limits           Limits `json:"limits"`
	TokensThisMinute int    `json:"tokens_this_minute"`
	InFlight         int    `json:"in_flight"`
}

// NewThrottle perProvider 中未出现的 provider 首次使用时按 fallback 建桶
func NewThrottle(perProvider map[string]Limits, fallback Limits) *Throttle {
	t := &Throttle{buckets: make(map[string]*bucket, len(perProvider)), fallback: fallback}
	for name, l := range perProvider {
		t.buckets[name] = newBucket(l)
	}
	return t
}

// perSecond 每分钟配额换算为 limiter，桶容量取两秒的量
func perSecond(perMinute float64) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perMinute/60), max(int(perMinute/30), 1))
}

func newBucket(l Limits) *bucket {
	b := &bucket{
		limits:      l,
		requests:    perSecond(l.RequestsPerMinute),
		tokens:      perSecond(float64(l.TokensPerMinute)),
		windowStart: time.Now(),
	}
	if l.MaxConcurrent > 0 {
		b.slots = make(chan struct{}, l.MaxConcurrent)
	}
	return b
}

func (t *Throttle) bucket(provider string, create bool) *bucket {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.buckets[provider]
	if !ok && create {
		b = newBucket(t.fallback)
		t.buckets[provider] = b
	}
	return b
}

// Acquire 阻塞直到拿到许可。返回的 release 必须恰好调用一次，
// 参数为本次实际消耗的 token 数
func (t *Throttle) Acquire(ctx context.Context, provider string, estimate int) (release func(used int), err error) {
	b := t.bucket(provider, true)
	if b.requests != nil {
		if err := b.requests.Wait(ctx); err != nil {
			return nil, fmt.Errorf("throttle %s: requests: %w", provider, err)
		}
	}
	if b.tokens != nil && estimate > 0 {
		// 单次预扣不能超过桶容量，否则 WaitN 直接报错
		if err := b.tokens.WaitN(ctx, min(estimate, b.tokens.Burst())); err != nil {
			return nil, fmt.Errorf("throttle %s: tokens: %w", provider, err)
		}
	}
	if b.slots != nil {
		select {
		case b.slots <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func(used int) {
		once.Do(func() {
			b.charge(used)
			if b.slots != nil {
				<-b.slots
			}
		})
	}, nil
}

func (b *bucket) charge(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now := time.Now(); now.Sub(b.windowStart) >= time.Minute {
		b.windowStart, b.windowUsed = now, 0
	}
	b.windowUsed += n
}

// Snapshot provider 从未使用过时 ok 为 false
func (t *Throttle) Snapshot(provider string) (Usage, bool) {
	b := t.bucket(provider, false)
	if b == nil {
		return Usage{}, false
	}
	b.mu.Lock()
	u := Usage{Limits: b.limits, TokensThisMinute: b.windowUsed}
	if time.Since(b.windowStart) >= time.Minute {
		u.TokensThisMinute = 0
	}
	b.mu.Unlock()
	u.InFlight = len(b.slots)
	return u, true
}
