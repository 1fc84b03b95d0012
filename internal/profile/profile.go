// Package profile 管理命名的翻译配置档。
// 配置档描述如何到达一个后端（提供商、端点、模型），密钥单独存放在
// secrets.Store 里，配置文件中不出现明文密钥。
package profile

import (
	"errors"
	"fmt"

	"github.com/nerdneilsfield/notebook-translator/pkg/providers/factory"
)

var (
	// ErrProfileNotFound 指定名称的配置档不存在
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileExists 同名配置档已存在
	ErrProfileExists = errors.New("profile already exists")
	// ErrNoRollback 没有可以回退的目标
	ErrNoRollback = errors.New("no profile to roll back to")
)

// Profile 一个命名的后端配置。
// APIKey 是历史遗留字段：早期版本把密钥写在配置文件里，
// 构造管理器时会把它迁移进安全存储并从记录中抹掉。
type Profile struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	BaseURL  string `json:"base_url,omitempty"`
	Model    string `json:"model,omitempty"`
	AppID    string `json:"app_id,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

// Validate 按提供商检查必填字段
func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New("profile name is required")
	}
	if !factory.IsSupported(p.Provider) {
		return fmt.Errorf("unsupported provider %q, supported: %v", p.Provider, factory.SupportedProviders())
	}

	switch p.Provider {
	case factory.ProviderChatAPI:
		if p.BaseURL == "" {
			return fmt.Errorf("profile %s: chat-completion provider requires base_url", p.Name)
		}
		if p.Model == "" {
			return fmt.Errorf("profile %s: chat-completion provider requires model", p.Name)
		}
	case factory.ProviderLocalChat:
		if p.BaseURL == "" {
			return fmt.Errorf("profile %s: local-chat provider requires base_url", p.Name)
		}
		if p.Model == "" {
			return fmt.Errorf("profile %s: local-chat provider requires model", p.Name)
		}
	case factory.ProviderSignedQuery:
		if p.AppID == "" {
			return fmt.Errorf("profile %s: signed-query provider requires app_id", p.Name)
		}
	}
	return nil
}

// DefaultProfile 内置的占位配置档，列表为空时兜底使用
func DefaultProfile() Profile {
	return Profile{
		Name:     "default",
		Provider: factory.ProviderMock,
	}
}
