package translation

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Cache 译文缓存接口。
// key 是源文本的精确哈希（不做任何归一化，对空白敏感），
// 条目永不过期、永不淘汰，只能显式 Clear。
// 注意：缓存只按源文本寻址，切换后端/配置档后旧译文仍会命中，
// 这是沿用原有行为的有意决定，清缓存是逃生通道。
type Cache interface {
	Get(source string) (string, bool)
	Put(source, translated string) error
	Clear() error
	Size() int
}

// CacheKey 计算源文本的缓存键
func CacheKey(source string) string {
	hash := md5.Sum([]byte(source))
	return fmt.Sprintf("%x", hash)
}

// MemoryCache 内存缓存实现
type MemoryCache struct {
	data  map[string]string
	mutex sync.RWMutex
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]string),
	}
}

// Get 按源文本查询译文
func (c *MemoryCache) Get(source string) (string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	value, ok := c.data[CacheKey(source)]
	return value, ok
}

// Put 写入译文
func (c *MemoryCache) Put(source, translated string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[CacheKey(source)] = translated
	return nil
}

// Clear 清空缓存
func (c *MemoryCache) Clear() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]string)
	return nil
}

// Size 返回条目数
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.data)
}

// FileCache 文件缓存实现。
// 整个缓存是一个 JSON 文件，每次写入后刷盘（临时文件 + 重命名保证原子性）。
type FileCache struct {
	path  string
	data  map[string]string
	mutex sync.RWMutex
}

// NewFileCache 创建文件缓存，读取已有内容
func NewFileCache(path string) (*FileCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &FileCache{
		path: path,
		data: make(map[string]string),
	}

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	if len(content) > 0 {
		if err := json.Unmarshal(content, &c.data); err != nil {
			return nil, fmt.Errorf("failed to parse cache file: %w", err)
		}
	}

	return c, nil
}

// Get 按源文本查询译文
func (c *FileCache) Get(source string) (string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	value, ok := c.data[CacheKey(source)]
	return value, ok
}

// Put 写入译文并刷盘
func (c *FileCache) Put(source, translated string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[CacheKey(source)] = translated
	return c.flushUnsafe()
}

// Clear 清空缓存并刷盘
func (c *FileCache) Clear() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]string)
	return c.flushUnsafe()
}

// Size 返回条目数
func (c *FileCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.data)
}

// flushUnsafe 写入磁盘，调用方必须已持有写锁
func (c *FileCache) flushUnsafe() error {
	payload, err := json.Marshal(c.data)
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// NewCache 根据配置创建缓存实例
func NewCache(useCache bool, cacheDir string) (Cache, error) {
	if !useCache {
		return nil, nil
	}

	if cacheDir != "" {
		return NewFileCache(filepath.Join(cacheDir, "translations.json"))
	}

	return NewMemoryCache(), nil
}
