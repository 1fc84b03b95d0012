// Package stats 记录可选的用量日志。
// 每次完成的翻译调用追加一行自包含的 JSON 记录，文件只追加不改写，
// 方便用任意行式工具事后统计。
package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record 一次翻译调用的用量记录
type Record struct {
	Time       time.Time `json:"time"`
	Model      string    `json:"model"`
	Profile    string    `json:"profile"`
	Chars      int       `json:"chars"`
	DurationMS int64     `json:"duration_ms"`
}

// Logger 用量日志写入器
type Logger interface {
	Log(record Record) error
}

// FileLogger 追加写入 JSON-lines 文件
type FileLogger struct {
	path  string
	mutex sync.Mutex
}

var _ Logger = (*FileLogger)(nil)

// NewFileLogger 创建文件写入器
func NewFileLogger(path string) *FileLogger {
	return &FileLogger{path: path}
}

// Log 追加一条记录
func (l *FileLogger) Log(record Record) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create stats directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open stats file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(&record)
	if err != nil {
		return fmt.Errorf("failed to encode stats record: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append stats record: %w", err)
	}
	return nil
}

// NopLogger 统计关闭时的空实现
type NopLogger struct{}

var _ Logger = NopLogger{}

// Log 丢弃记录
func (NopLogger) Log(Record) error { return nil }
