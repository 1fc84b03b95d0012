package translation

import (
	"errors"
	"fmt"
)

// 预定义错误，按失败类别划分。
// 调用方用 errors.Is 区分类别，以便提供不同的处理动作
// （例如缺少密钥时引导用户去配置，而不是简单报错）。
var (
	// ErrMissingCredential 配置档需要密钥但安全存储中不存在
	ErrMissingCredential = errors.New("missing credential")

	// ErrAuthentication 远端拒绝了提供的密钥
	ErrAuthentication = errors.New("authentication failed")

	// ErrConnectivity 远端不可达（如连接被拒绝）
	ErrConnectivity = errors.New("remote unreachable")

	// ErrModelNotFound 本地后端缺少指定模型
	ErrModelNotFound = errors.New("model not found")

	// ErrRateLimited 提供商限流
	ErrRateLimited = errors.New("rate limited")

	// ErrQuotaExceeded 余额不足或配额耗尽
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrProtocol 响应格式不符合预期
	ErrProtocol = errors.New("protocol error")

	// ErrReasoningOnly 清理推理块后内容为空，模型没有产出可用译文
	ErrReasoningOnly = errors.New("reasoning-only output")

	// ErrEmptyText 空文本
	ErrEmptyText = errors.New("empty text provided")
)

// 错误代码常量
const (
	ErrCodeCredential = "CREDENTIAL_ERROR"
	ErrCodeAuth       = "AUTH_ERROR"
	ErrCodeNetwork    = "NETWORK_ERROR"
	ErrCodeNotFound   = "NOT_FOUND_ERROR"
	ErrCodeRateLimit  = "RATE_LIMIT_ERROR"
	ErrCodeQuota      = "QUOTA_ERROR"
	ErrCodeProtocol   = "PROTOCOL_ERROR"
	ErrCodeReasoning  = "REASONING_ERROR"
	ErrCodeUnknown    = "UNKNOWN_ERROR"
)

// TranslationError 翻译错误
type TranslationError struct {
	Code     string // 错误代码
	Message  string // 面向用户的错误消息
	Category error  // 所属类别（上面的预定义错误之一，可为 nil）
	Cause    error  // 底层原因
}

// Error 实现 error 接口
func (e *TranslationError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Is 按类别和底层原因匹配
func (e *TranslationError) Unwrap() []error {
	var errs []error
	if e.Category != nil {
		errs = append(errs, e.Category)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// NewError 创建指定类别的翻译错误
func NewError(code string, category error, message string) *TranslationError {
	return &TranslationError{
		Code:     code,
		Message:  message,
		Category: category,
	}
}

// WrapError 包装底层错误
func WrapError(err error, code string, category error, message string) *TranslationError {
	if err == nil {
		return nil
	}
	return &TranslationError{
		Code:     code,
		Message:  message + ": " + err.Error(),
		Category: category,
		Cause:    err,
	}
}
