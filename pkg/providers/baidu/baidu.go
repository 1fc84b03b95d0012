package baidu

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerdneilsfield/notebook-translator/pkg/providers"
	"github.com/nerdneilsfield/notebook-translator/pkg/translation"
)

// MinRequestInterval 连续两次请求之间的最小间隔。
// 这是提供商配额政策的硬性要求，不是优化。
const MinRequestInterval = 1100 * time.Millisecond

// Config 百度翻译配置
type Config struct {
	providers.BaseConfig
	AppID string `json:"app_id"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	config := Config{
		BaseConfig: providers.DefaultConfig(),
	}
	config.APIEndpoint = "https://fanyi-api.baidu.com"
	config.Timeout = 30 * time.Second
	return config
}

// Provider 百度通用翻译后端（英→中），URL 参数传输加 MD5 签名。
// 限速状态是实例本地的，不跨实例或进程共享。
type Provider struct {
	config     Config
	httpClient *http.Client

	// 限速：记录本实例上一次请求的时刻
	mutex       sync.Mutex
	lastRequest time.Time
}

var _ providers.CapabilityProvider = (*Provider)(nil)

// New 创建百度翻译后端
func New(config Config) *Provider {
	if config.APIEndpoint == "" {
		config.APIEndpoint = "https://fanyi-api.baidu.com"
	}

	return &Provider{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	if p.config.APIKey == "" {
		return nil, translation.NewError(translation.ErrCodeCredential, translation.ErrMissingCredential,
			"secret key is not configured for this profile")
	}
	if p.config.AppID == "" {
		return nil, translation.NewError(translation.ErrCodeCredential, translation.ErrMissingCredential,
			"app ID is not configured for this profile")
	}

	if err := p.throttle(ctx); err != nil {
		return nil, err
	}

	resp, err := p.translate(ctx, req.Text)
	if err != nil {
		return nil, err
	}

	if resp.ErrorCode != "" && resp.ErrorCode != "52000" {
		return nil, errorFromCode(resp.ErrorCode, resp.ErrorMsg)
	}

	if len(resp.TransResult) == 0 {
		return nil, translation.NewError(translation.ErrCodeProtocol, translation.ErrProtocol,
			"response contains no translation result")
	}

	// 提供商按源文本行拆分结果，按换行拼回
	segments := make([]string, 0, len(resp.TransResult))
	for _, r := range resp.TransResult {
		segments = append(segments, r.Dst)
	}
	text := strings.Join(segments, "\n")

	return &providers.Response{
		Text:    text,
		RawText: text,
		Model:   "baidu-translate",
	}, nil
}

// Name 后端名称
func (p *Provider) Name() string {
	return "baidu"
}

// HealthCheck 健康检查，翻译一个短文本
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.Translate(ctx, &providers.Request{Text: "Hello"})
	return err
}

// GetCapabilities 后端能力
func (p *Provider) GetCapabilities() providers.Capabilities {
	return providers.Capabilities{
		RequiresAPIKey:     true,
		MinRequestInterval: MinRequestInterval,
	}
}

// throttle 在发出请求前阻塞，保证与上一次请求的最小间隔
func (p *Provider) throttle(ctx context.Context) error {
	p.mutex.Lock()
	wait := MinRequestInterval - time.Since(p.lastRequest)
	if p.lastRequest.IsZero() {
		wait = 0
	}
	p.lastRequest = time.Now().Add(wait)
	p.mutex.Unlock()

	if wait <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// translate 执行签名 GET 请求
func (p *Provider) translate(ctx context.Context, text string) (*TranslateResponse, error) {
	salt := uuid.NewString()
	sign := Sign(p.config.AppID, text, salt, p.config.APIKey)

	params := url.Values{}
	params.Set("q", text)
	params.Set("from", "en")
	params.Set("to", "zh")
	params.Set("appid", p.config.AppID)
	params.Set("salt", salt)
	params.Set("sign", sign)

	httpReq, err := http.NewRequestWithContext(ctx, "GET",
		p.config.APIEndpoint+"/api/trans/vip/translate?"+params.Encode(), nil)
	if err != nil {
		return nil, translation.WrapError(err, translation.ErrCodeUnknown, nil, "failed to create request")
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, translation.WrapError(err, translation.ErrCodeNetwork, translation.ErrConnectivity,
			"failed to reach translation API")
	}
	defer resp.Body.Close()

	var translateResp TranslateResponse
	if err := json.NewDecoder(resp.Body).Decode(&translateResp); err != nil {
		return nil, translation.WrapError(err, translation.ErrCodeProtocol, translation.ErrProtocol,
			"failed to decode response")
	}

	return &translateResp, nil
}

// Sign 计算请求签名：MD5(appid + q + salt + 密钥)
func Sign(appID, query, salt, secret string) string {
	hash := md5.Sum([]byte(appID + query + salt + secret))
	return fmt.Sprintf("%x", hash)
}

// errorFromCode 把提供商的数字错误码翻译成具体的人类可读类别
func errorFromCode(code, msg string) error {
	switch code {
	case "52001":
		return translation.NewError(translation.ErrCodeNetwork, translation.ErrConnectivity,
			"请求超时，请重试 (52001)")
	case "52002":
		return translation.NewError(translation.ErrCodeUnknown, nil,
			"系统错误，请重试 (52002)")
	case "52003":
		return translation.NewError(translation.ErrCodeAuth, translation.ErrAuthentication,
			"未授权用户，请检查 APP ID 是否正确 (52003)")
	case "54000":
		return translation.NewError(translation.ErrCodeProtocol, translation.ErrProtocol,
			"必填参数为空 (54000)")
	case "54001":
		return translation.NewError(translation.ErrCodeAuth, translation.ErrAuthentication,
			"签名错误，请检查密钥是否正确 (54001)")
	case "54003":
		return translation.NewError(translation.ErrCodeRateLimit, translation.ErrRateLimited,
			"访问频率受限，请降低调用频率 (54003)")
	case "54004":
		return translation.NewError(translation.ErrCodeQuota, translation.ErrQuotaExceeded,
			"账户余额不足 (54004)")
	case "54005":
		return translation.NewError(translation.ErrCodeRateLimit, translation.ErrRateLimited,
			"长query请求频繁，请降低长文本的发送频率 (54005)")
	case "58000":
		return translation.NewError(translation.ErrCodeAuth, translation.ErrAuthentication,
			"客户端IP非法，请检查IP白名单设置 (58000)")
	case "58001":
		return translation.NewError(translation.ErrCodeProtocol, translation.ErrProtocol,
			"译文语言方向不支持 (58001)")
	case "58002":
		return translation.NewError(translation.ErrCodeAuth, translation.ErrAuthentication,
			"服务当前已关闭，请前往管理控制台开启服务 (58002)")
	case "90107":
		return translation.NewError(translation.ErrCodeAuth, translation.ErrAuthentication,
			"认证未通过或未生效 (90107)")
	default:
		if msg != "" {
			return translation.NewError(translation.ErrCodeUnknown, nil,
				fmt.Sprintf("未知错误 (%s): %s", code, msg))
		}
		return translation.NewError(translation.ErrCodeUnknown, nil,
			fmt.Sprintf("未知错误 (%s)", code))
	}
}

// TranslateResponse 翻译响应
type TranslateResponse struct {
	From        string `json:"from"`
	To          string `json:"to"`
	ErrorCode   string `json:"error_code,omitempty"`
	ErrorMsg    string `json:"error_msg,omitempty"`
	TransResult []struct {
		Src string `json:"src"`
		Dst string `json:"dst"`
	} `json:"trans_result"`
}
