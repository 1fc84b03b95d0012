package factory

import (
	"fmt"
	"time"

	"github.com/nerdneilsfield/notebook-translator/pkg/providers"
	"github.com/nerdneilsfield/notebook-translator/pkg/providers/baidu"
	"github.com/nerdneilsfield/notebook-translator/pkg/providers/mock"
	"github.com/nerdneilsfield/notebook-translator/pkg/providers/ollama"
	"github.com/nerdneilsfield/notebook-translator/pkg/providers/openai"
)

// 提供商标识，集合封闭
const (
	ProviderMock        = "mock"
	ProviderChatAPI     = "chat-completion"
	ProviderLocalChat   = "local-chat"
	ProviderSignedQuery = "signed-query"
)

// Options 构建后端所需的全部参数。
// Secret 由调用方从安全存储取出后传入，不落在任何持久化记录里。
type Options struct {
	Provider    string        // 提供商标识
	Endpoint    string        // 基础 URL 或本地端点
	Model       string        // 模型标识
	AppID       string        // signed-query 的应用 ID
	Instruction string        // 自定义指令，可为空
	Secret      string        // API 密钥或签名密钥
	Timeout     time.Duration // 0 表示使用各后端默认值
}

// SupportedProviders 返回支持的提供商标识
func SupportedProviders() []string {
	return []string{ProviderMock, ProviderChatAPI, ProviderLocalChat, ProviderSignedQuery}
}

// IsSupported 判断提供商标识是否有效
func IsSupported(provider string) bool {
	switch provider {
	case ProviderMock, ProviderChatAPI, ProviderLocalChat, ProviderSignedQuery:
		return true
	default:
		return false
	}
}

// New 根据选项构建后端实例
func New(opts Options) (providers.CapabilityProvider, error) {
	switch opts.Provider {
	case ProviderMock:
		return mock.New(mock.DefaultConfig()), nil

	case ProviderChatAPI:
		config := openai.DefaultConfig()
		config.APIEndpoint = opts.Endpoint
		config.APIKey = opts.Secret
		config.Instruction = opts.Instruction
		if opts.Model != "" {
			config.Model = opts.Model
		}
		if opts.Timeout > 0 {
			config.Timeout = opts.Timeout
		}
		return openai.New(config), nil

	case ProviderLocalChat:
		config := ollama.DefaultConfig()
		config.APIEndpoint = opts.Endpoint
		config.Instruction = opts.Instruction
		if opts.Model != "" {
			config.Model = opts.Model
		}
		if opts.Timeout > 0 {
			config.Timeout = opts.Timeout
		}
		return ollama.New(config), nil

	case ProviderSignedQuery:
		config := baidu.DefaultConfig()
		if opts.Endpoint != "" {
			config.APIEndpoint = opts.Endpoint
		}
		config.AppID = opts.AppID
		config.APIKey = opts.Secret
		if opts.Timeout > 0 {
			config.Timeout = opts.Timeout
		}
		return baidu.New(config), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", opts.Provider)
	}
}
