package translation

import (
	"regexp"
	"strings"
)

// 推理模型把思考过程放在成对的 <think> 标签里输出。
// (?is) 忽略大小写并让 . 匹配换行，非贪婪以支持多段。
var reasoningPattern = regexp.MustCompile(`(?is)<think>.*?</think>`)

// CleanReasoning 移除推理模型输出中的思考块并修剪首尾空白。
// 纯函数，幂等：对已清理的文本再次调用不会改变结果。
func CleanReasoning(content string) string {
	cleaned := reasoningPattern.ReplaceAllString(content, "")
	return strings.TrimSpace(cleaned)
}

// IsReasoningOnly 判断原始输出是否只包含思考过程。
// 原始内容非空但清理后为空，说明模型没有产出可用译文，
// 应作为失败处理而不是当成空译文。
func IsReasoningOnly(raw string) bool {
	return strings.TrimSpace(raw) != "" && CleanReasoning(raw) == ""
}
