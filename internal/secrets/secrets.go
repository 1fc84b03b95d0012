// Package secrets 定义密钥的安全存储。
// 存储是注入的外部协作者，契约只有对不透明字符串的 Get/Set/Delete，
// 不假定任何具体的后备机制。
package secrets

import (
	"errors"
	"sync"

	"github.com/zalando/go-keyring"
)

// ErrNotFound 密钥不存在。不存在是合法状态（尚未配置）。
var ErrNotFound = errors.New("secret not found")

// Store 密钥存储接口，按配置档名称寻址
type Store interface {
	// Get 读取密钥，不存在时返回 ErrNotFound
	Get(name string) (string, error)

	// Set 写入密钥，已存在则覆盖
	Set(name, value string) error

	// Delete 删除密钥，幂等：不存在时不报错
	Delete(name string) error
}

// KeyringStore 基于操作系统钥匙串的实现
type KeyringStore struct {
	service string
}

var _ Store = (*KeyringStore)(nil)

// NewKeyringStore 创建钥匙串存储，service 用于隔离本应用的条目
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = "notebook-translator"
	}
	return &KeyringStore{service: service}
}

// Get 读取密钥
func (s *KeyringStore) Get(name string) (string, error) {
	value, err := keyring.Get(s.service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set 写入密钥
func (s *KeyringStore) Set(name, value string) error {
	return keyring.Set(s.service, name, value)
}

// Delete 删除密钥
func (s *KeyringStore) Delete(name string) error {
	err := keyring.Delete(s.service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// MemoryStore 内存实现，用于测试和没有钥匙串守护进程的环境
type MemoryStore struct {
	data  map[string]string
	mutex sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]string),
	}
}

// Get 读取密钥
func (s *MemoryStore) Get(name string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, ok := s.data[name]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set 写入密钥
func (s *MemoryStore) Set(name, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.data[name] = value
	return nil
}

// Delete 删除密钥
func (s *MemoryStore) Delete(name string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.data, name)
	return nil
}
