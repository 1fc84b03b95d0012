// Package retry 为网络后端提供瞬时故障重试。
// 只重试网络层错误和 5xx/429 响应，4xx 一律视为永久失败；
// 每次重试重新构造请求，避免已消费的请求体被复用。
package retry

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// Config 重试配置
type Config struct {
	// 最大重试次数（不含首次请求）
	MaxRetries int `json:"max_retries"`

	// 初始延迟时间
	InitialDelay time.Duration `json:"initial_delay"`

	// 最大延迟时间
	MaxDelay time.Duration `json:"max_delay"`

	// 退避因子（指数退避）
	BackoffFactor float64 `json:"backoff_factor"`
}

// DefaultConfig 返回默认重试配置
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Retrier 网络重试器
type Retrier struct {
	config Config
}

// New 创建重试器
func New(config Config) *Retrier {
	return &Retrier{config: config}
}

// Do 执行带重试的 HTTP 请求。
// build 在每次尝试时被调用一次，返回一个全新的请求。
func (r *Retrier) Do(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.delay(attempt)):
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			if !isNetworkError(err) {
				return nil, err
			}
			lastErr = err
			continue
		}

		// 5xx 和 429 可重试；最后一次尝试把响应留给调用方处理
		if (resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests) &&
			attempt < r.config.MaxRetries {
			resp.Body.Close()
			lastErr = errors.New("server returned " + resp.Status)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// delay 计算第 attempt 次重试前的等待时间（指数退避，有上限）
func (r *Retrier) delay(attempt int) time.Duration {
	factor := r.config.BackoffFactor
	if factor <= 1.0 {
		factor = 2.0
	}

	delay := time.Duration(float64(r.config.InitialDelay) * math.Pow(factor, float64(attempt-1)))
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}

// isNetworkError 判断是否为可重试的网络层错误
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isNetworkError(urlErr.Err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"network is unreachable",
		"no such host",
		"broken pipe",
		"eof",
	}
	for _, pattern := range patterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
