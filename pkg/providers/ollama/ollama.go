package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"

	"github.com/nerdneilsfield/notebook-translator/pkg/providers"
	"github.com/nerdneilsfield/notebook-translator/pkg/providers/retry"
	"github.com/nerdneilsfield/notebook-translator/pkg/translation"
)

// systemPrompt 与聊天补全后端一致的系统指令
const systemPrompt = "You are a professional translator. Translate the following Markdown text from English to Chinese. " +
	"Preserve all Markdown syntax, inline code, code blocks, and LaTeX formulas exactly as they are. " +
	"Produce fluent, natural Chinese. Output only the translated text without any explanations."

// Config Ollama配置
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
		Model:       "qwen2.5",
		Temperature: 0.3,
		RetryConfig: retry.DefaultConfig(),
	}
}

// Provider 本地 Ollama 后端，走 /api/chat 协议，无需认证
type Provider struct {
	config     Config
	httpClient *http.Client
	retrier    *retry.Retrier
}

var _ providers.CapabilityProvider = (*Provider)(nil)

// New 创建Ollama后端
func New(config Config) *Provider {
	if config.APIEndpoint == "" {
		config.APIEndpoint = "http://localhost:11434"
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
		Stream: false, // 明确禁用流式传输
		Options: map[string]interface{}{
			"temperature": p.config.Temperature,
		},
	}

	resp, err := p.chat(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	raw := resp.Message.Content
	cleaned := translation.CleanReasoning(raw)

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
	return "ollama"
}

// HealthCheck 健康检查
func (p *Provider) HealthCheck(ctx context.Context) error {
	req := ChatRequest{
		Model: p.config.Model,
		Messages: []Message{
			{Role: "user", Content: "Hello"},
		},
		Stream: false,
		Options: map[string]interface{}{
			"num_predict": 5,
		},
	}

	_, err := p.chat(ctx, req)
	return err
}

// GetCapabilities 后端能力
func (p *Provider) GetCapabilities() providers.Capabilities {
	return providers.Capabilities{
		RequiresAPIKey: false,
		Local:          true,
	}
}

// chat 执行聊天请求。
// 两类最常见的现场故障必须给出可区分的指引：服务没启动（连接被拒绝）
// 和模型没拉取（model not found），不能混入一般的协议错误。
func (p *Provider) chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, translation.WrapError(err, translation.ErrCodeProtocol, translation.ErrProtocol,
			"failed to marshal request")
	}

	build := func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, "POST",
			p.config.APIEndpoint+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		for k, v := range p.config.Headers {
			httpReq.Header.Set(k, v)
		}
		return httpReq, nil
	}

	resp, err := p.retrier.Do(ctx, p.httpClient, build)
	if err != nil {
		if isConnectionRefused(err) {
			return nil, translation.NewError(translation.ErrCodeNetwork, translation.ErrConnectivity,
				fmt.Sprintf("cannot connect to Ollama at %s, start it with `ollama serve`", p.config.APIEndpoint))
		}
		return nil, translation.WrapError(err, translation.ErrCodeNetwork, translation.ErrConnectivity,
			"failed to reach Ollama")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)

		message := resp.Status
		var apiErr APIError
		if json.Unmarshal(errBody, &apiErr) == nil && apiErr.ErrorMsg != "" {
			message = apiErr.ErrorMsg
		}

		if resp.StatusCode == http.StatusNotFound || strings.Contains(message, "not found") {
			return nil, translation.NewError(translation.ErrCodeNotFound, translation.ErrModelNotFound,
				fmt.Sprintf("model %q is not available, fetch it with `ollama pull %s`", p.config.Model, p.config.Model))
		}

		return nil, translation.NewError(translation.ErrCodeUnknown, nil,
			fmt.Sprintf("Ollama error: %s", message))
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, translation.WrapError(err, translation.ErrCodeProtocol, translation.ErrProtocol,
			"failed to decode response")
	}

	return &chatResp, nil
}

// isConnectionRefused 判断是否为连接被拒绝
func isConnectionRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 聊天请求
type ChatRequest struct {
	Model    string                 `json:"model"`
	Messages []Message              `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// ChatResponse 聊天响应
type ChatResponse struct {
	Model   string  `json:"model"`
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// APIError API错误
type APIError struct {
	ErrorMsg string `json:"error"`
}

func (e *APIError) Error() string {
	return e.ErrorMsg
}
