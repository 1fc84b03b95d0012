package providers

import (
	"context"
	"time"
)

// BaseConfig 基础配置
type BaseConfig struct {
	// API配置
	APIKey      string `json:"api_key,omitempty"`
	APIEndpoint string `json:"api_endpoint,omitempty"`

	// 超时
	Timeout time.Duration `json:"timeout"`

	// 自定义头部
	Headers map[string]string `json:"headers,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() BaseConfig {
	return BaseConfig{
		Timeout: 5 * time.Minute, // LLM 请求可能很慢
		Headers: make(map[string]string),
	}
}

// Request 翻译请求。
// 单元是 notebook 的一个 Markdown 单元格，整体作为不透明文本翻译。
type Request struct {
	Text string `json:"text"`
}

// Response 翻译响应
type Response struct {
	// Text 清理后的译文
	Text string `json:"text"`

	// RawText 清理前的原始模型输出（传统翻译 API 与 Text 相同）
	RawText string `json:"raw_text,omitempty"`

	// Model 实际使用的模型标识
	Model string `json:"model,omitempty"`
}

// Provider 翻译后端接口。
// 变体集合是封闭的：mock、openai、ollama、baidu，由 factory 构建，
// 不提供开放式插件注册。
type Provider interface {
	// Translate 翻译一段文本
	Translate(ctx context.Context, req *Request) (*Response, error)

	// Name 后端名称
	Name() string

	// HealthCheck 连通性探测，用于切换配置档后的验证
	HealthCheck(ctx context.Context) error
}

// Capabilities 后端能力
type Capabilities struct {
	// 是否需要API密钥
	RequiresAPIKey bool `json:"requires_api_key"`

	// 是否为本地后端
	Local bool `json:"local"`

	// 最小请求间隔（配额策略要求，0 表示无要求）
	MinRequestInterval time.Duration `json:"min_request_interval,omitempty"`
}

// CapabilityProvider 可报告能力的后端
type CapabilityProvider interface {
	Provider
	GetCapabilities() Capabilities
}
