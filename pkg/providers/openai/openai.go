package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nerdneilsfield/notebook-translator/pkg/providers"
	"github.com/nerdneilsfield/notebook-translator/pkg/providers/retry"
	"github.com/nerdneilsfield/notebook-translator/pkg/translation"
)

// systemPrompt 固定的系统指令：保留 Markdown 语法、代码段和 LaTeX，输出流畅中文
const systemPrompt = "You are a professional translator. Translate the following Markdown text from English to Chinese. " +
	"Preserve all Markdown syntax, inline code, code blocks, and LaTeX formulas exactly as they are. " +
	"Produce fluent, natural Chinese. Output only the translated text without any explanations."

// Config OpenAI兼容后端配置
type Config struct {
	providers.BaseConfig
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	// Instruction 追加到系统指令后的自定义说明，可为空
	Instruction string `json:"instruction,omitempty"`
	// RetryConfig 瞬时故障重试配置
	RetryConfig retry.Config `json:"retry_config"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		BaseConfig:  providers.DefaultConfig(),
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		RetryConfig: retry.DefaultConfig(),
	}
}

// Provider 聊天补全后端，兼容 OpenAI 风格的 /chat/completions 协议
type Provider struct {
	config     Config
	httpClient *http.Client
	retrier    *retry.Retrier
}

var _ providers.CapabilityProvider = (*Provider)(nil)

// New 创建聊天补全后端
func New(config Config) *Provider {
	if config.APIEndpoint == "" {
		config.APIEndpoint = "https://api.openai.com/v1"
	}
	if config.Temperature == 0 {
		config.Temperature = 0.3
	}

	return &Provider{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		retrier: retry.New(config.RetryConfig),
	}
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	if p.config.APIKey == "" {
		return nil, translation.NewError(translation.ErrCodeCredential, translation.ErrMissingCredential,
			"API key is not configured for this profile")
	}

	system := systemPrompt
	if p.config.Instruction != "" {
		system += "\n\n" + p.config.Instruction
	}

	chatReq := ChatRequest{
		Model: p.config.Model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: req.Text},
		},
		Temperature: p.config.Temperature,
	}

	resp, err := p.chat(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, translation.NewError(translation.ErrCodeProtocol, translation.ErrProtocol,
			"response contains no choices")
	}

	raw := resp.Choices[0].Message.Content
	cleaned := translation.CleanReasoning(raw)

	// 清理后为空但原始输出非空：模型只输出了思考过程，按失败处理
	if translation.IsReasoningOnly(raw) {
		return nil, translation.NewError(translation.ErrCodeReasoning, translation.ErrReasoningOnly,
			"model produced reasoning but no translation")
	}

	return &providers.Response{
		Text:    cleaned,
		RawText: raw,
		Model:   resp.Model,
	}, nil
}

// Name 后端名称
func (p *Provider) Name() string {
	return "openai"
}

// HealthCheck 健康检查
func (p *Provider) HealthCheck(ctx context.Context) error {
	if p.config.APIKey == "" {
		return translation.NewError(translation.ErrCodeCredential, translation.ErrMissingCredential,
			"API key is not configured for this profile")
	}

	req := ChatRequest{
		Model: p.config.Model,
		Messages: []Message{
			{Role: "user", Content: "Hello"},
		},
		Temperature: p.config.Temperature,
	}

	_, err := p.chat(ctx, req)
	return err
}

// GetCapabilities 后端能力
func (p *Provider) GetCapabilities() providers.Capabilities {
	return providers.Capabilities{
		RequiresAPIKey: true,
	}
}

// chat 执行聊天请求
func (p *Provider) chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, translation.WrapError(err, translation.ErrCodeProtocol, translation.ErrProtocol,
			"failed to marshal request")
	}

	build := func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, "POST",
			p.config.APIEndpoint+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
		for k, v := range p.config.Headers {
			httpReq.Header.Set(k, v)
		}
		return httpReq, nil
	}

	resp, err := p.retrier.Do(ctx, p.httpClient, build)
	if err != nil {
		return nil, translation.WrapError(err, translation.ErrCodeNetwork, translation.ErrConnectivity,
			"failed to reach API endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)

		message := resp.Status
		var apiErr APIError
		if json.Unmarshal(errBody, &apiErr) == nil && apiErr.ErrorInfo.Message != "" {
			message = apiErr.ErrorInfo.Message
		}

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, translation.NewError(translation.ErrCodeAuth, translation.ErrAuthentication,
				"API key rejected: "+message)
		case http.StatusTooManyRequests:
			return nil, translation.NewError(translation.ErrCodeRateLimit, translation.ErrRateLimited,
				message)
		default:
			return nil, translation.NewError(translation.ErrCodeUnknown, nil,
				fmt.Sprintf("API error: %s", message))
		}
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, translation.WrapError(err, translation.ErrCodeProtocol, translation.ErrProtocol,
			"failed to decode response")
	}

	return &chatResp, nil
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 聊天请求
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
}

// ChatResponse 聊天响应
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// APIError API错误
type APIError struct {
	ErrorInfo struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (e *APIError) Error() string {
	return e.ErrorInfo.Message
}
