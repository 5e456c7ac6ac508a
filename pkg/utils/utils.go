// Package utils 通用小工具，不依赖 internal
package utils

import "time"

// Coalesce 返回第一个非零值，全为零值时返回零值
func Coalesce[T comparable](vs ...T) T {
	var zero T
	for _, v := range vs {
		if v != zero {
			return v
		}
	}
	return zero
}

// DurationOr 解析时长字符串；空串或无法解析时返回 def
func DurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
