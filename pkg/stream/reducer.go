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

// Package stream 将模型的流式事件折叠为带注解的透传事件加唯一一条最终消息。
package stream

import (
	"io"
	"iter"
	"strings"
	"sync"

	"converser/pkg/errors"
	"converser/pkg/message"
)

// Finalizer 在终止事件发出前调用；返回错误时终止项不再发出
type Finalizer func(ev Event, final message.Message) error

// Option Reducer 选项
type Option func(*Reducer)

// WithFinalizer 设置终止回调（如写入 Memory）
func WithFinalizer(f Finalizer) Option {
	return func(r *Reducer) { r.finalize = f }
}

// Reducer 拉取式折叠器，调用方逐个 Next 驱动。
// MessageStop 之后到达的 Metadata 只并入终止项，不单独发出
type Reducer struct {
	src      Source
	finalize Finalizer

	buf        strings.Builder
	stopReason string
	usage      *Usage
	latencyMs  int64

	done      bool
	finished  bool
	err       error
	closeOnce sync.Once
	closeErr  error
	onClose   []func()
}

// NewReducer 包装事件源
func NewReducer(src Source, opts ...Option) *Reducer {
	r := &Reducer{src: src}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Next 返回下一个输出项；终止项之后或源结束时返回 io.EOF
func (r *Reducer) Next() (Output, error) {
	if r.err != nil {
		return Output{}, r.err
	}
	if r.done {
		return Output{}, io.EOF
	}
	ev, err := r.src.Recv()
	if err != nil {
		if err == io.EOF {
			r.done = true
			return Output{}, io.EOF
		}
		r.err = err
		return Output{}, err
	}

	switch ev.Kind {
	case KindMessageStart, KindContentBlockStart, KindContentBlockStop:
		ev.Done = false
		return Output{Event: ev}, nil
	case KindMetadata:
		r.observe(ev)
		ev.Done = false
		return Output{Event: ev}, nil
	case KindContentBlockDelta:
		r.buf.WriteString(ev.Text)
		ev.Done = false
		return Output{Event: ev}, nil
	case KindMessageStop:
		return r.terminate(ev)
	default:
		r.err = &errors.UnrecognizedStreamEventError{Kind: string(ev.Kind)}
		return Output{}, r.err
	}
}

// terminate 合成最终消息，吸收 MessageStop 之后的尾部 Metadata，保证终止项最后发出
func (r *Reducer) terminate(ev Event) (Output, error) {
	final := message.AssistantText(r.buf.String())
	r.buf.Reset()
	r.done = true

	if err := r.drain(); err != nil {
		r.err = err
		return Output{}, err
	}
	if ev.StopReason == "" {
		ev.StopReason = r.stopReason
	}
	if ev.Usage == nil && r.usage != nil {
		u := *r.usage
		ev.Usage = &u
	}
	if ev.LatencyMs == 0 {
		ev.LatencyMs = r.latencyMs
	}
	ev.Done = true

	if r.finalize != nil {
		if err := r.finalize(ev, final); err != nil {
			r.err = err
			return Output{}, err
		}
	}
	r.finished = true
	return Output{Event: ev, Message: &final}, nil
}

// Finished 终止项是否已成功发出
func (r *Reducer) Finished() bool { return r.finished }

// Err 返回使 Reducer 停止的错误（io.EOF 不计）
func (r *Reducer) Err() error { return r.err }

func (r *Reducer) drain() error {
	for {
		ev, err := r.src.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !ev.Kind.Known() {
			return &errors.UnrecognizedStreamEventError{Kind: string(ev.Kind)}
		}
		if ev.Kind == KindMetadata {
			r.observe(ev)
		}
	}
}

func (r *Reducer) observe(ev Event) {
	if ev.StopReason != "" {
		r.stopReason = ev.StopReason
	}
	if ev.Usage != nil {
		u := *ev.Usage
		r.usage = &u
	}
	if ev.LatencyMs > 0 {
		r.latencyMs = ev.LatencyMs
	}
}

// OnClose 注册关闭回调，Close 时按注册顺序执行一次；须在 Close 之前注册
func (r *Reducer) OnClose(f func()) {
	if f != nil {
		r.onClose = append(r.onClose, f)
	}
}

// Close 关闭底层事件源；终止项之前关闭则不会触发 Finalizer
func (r *Reducer) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.src.Close()
		for _, f := range r.onClose {
			f()
		}
	})
	return r.closeErr
}

// All 以 range-over-func 方式遍历输出，遇错产出一次错误后结束
func (r *Reducer) All() iter.Seq2[Output, error] {
	return func(yield func(Output, error) bool) {
		for {
			out, err := r.Next()
			if err == io.EOF {
				return
			}
			if !yield(out, err) || err != nil {
				return
			}
		}
	}
}

// Collect 读取全部输出并关闭 Reducer
func Collect(r *Reducer) ([]Output, error) {
	defer r.Close()
	var outs []Output
	for out, err := range r.All() {
		if err != nil {
			return outs, err
		}
		outs = append(outs, out)
	}
	return outs, nil
}
