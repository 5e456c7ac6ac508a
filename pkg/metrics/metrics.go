// Package metrics converse 指标，注册在 DefaultRegistry 上
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 与 CLI 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		TurnTotal, TurnDuration,
		LLMTokensTotal, StreamEventsTotal,
		RateLimitWaitSeconds, SessionsActive,
	)
}

// TurnTotal 回合数（mode: batch | stream；outcome: committed | rejected | abandoned | error）
var TurnTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "converse_turn_total",
		Help: "会话回合总数",
	},
	[]string{"mode", "outcome"},
)

// TurnDuration 模型调用耗时（秒），流式为打开到终止事件
var TurnDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "converse_turn_duration_seconds",
		Help:    "模型调用耗时（秒）",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	},
	[]string{"mode"},
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "converse_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"direction"}, // input | output
)

// StreamEventsTotal 流式事件数（按类型）
var StreamEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "converse_stream_events_total",
		Help: "流式事件总数",
	},
	[]string{"kind"},
)

// RateLimitWaitSeconds 限流等待耗时
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "converse_rate_limit_wait_seconds",
		Help:    "LLM 限流等待耗时（秒）",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
	},
	[]string{"provider"},
)

// SessionsActive 当前 HTTP 会话数
var SessionsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "converse_sessions_active",
		Help: "当前活跃会话数",
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
