package mock

import (
	"context"
	"time"

	"github.com/nerdneilsfield/notebook-translator/pkg/providers"
)

// Marker 模拟译文前缀
const Marker = "[模拟翻译]"

// Config Mock配置
type Config struct {
	// Delay 人为延迟，模拟网络调用的挂起点
	Delay time.Duration `json:"delay"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Delay: 50 * time.Millisecond,
	}
}

// Provider 模拟后端。
// 对输入做确定性变换（加固定前缀），用于离线测试编排逻辑，永不失败。
type Provider struct {
	config Config
}

var _ providers.CapabilityProvider = (*Provider)(nil)

// New 创建模拟后端
func New(config Config) *Provider {
	return &Provider{config: config}
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	if p.config.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.config.Delay):
		}
	}

	text := Marker + "\n" + req.Text
	return &providers.Response{
		Text:    text,
		RawText: text,
		Model:   "mock",
	}, nil
}

// Name 后端名称
func (p *Provider) Name() string {
	return "mock"
}

// HealthCheck 健康检查，永远成功
func (p *Provider) HealthCheck(ctx context.Context) error {
	return nil
}

// GetCapabilities 后端能力
func (p *Provider) GetCapabilities() providers.Capabilities {
	return providers.Capabilities{
		RequiresAPIKey: false,
		Local:          true,
	}
}
