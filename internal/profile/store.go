package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// state 持久化到磁盘的全部配置档状态
type state struct {
	Profiles []Profile `json:"profiles"`
	Active   string    `json:"active,omitempty"`
	Previous string    `json:"previous,omitempty"`
}

// Store 配置档的 JSON 文件存储
type Store struct {
	path  string
	state state
	mutex sync.RWMutex
}

// OpenStore 打开（或初始化）配置档文件
func OpenStore(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file %s: %w", path, err)
	}
	return s, nil
}

// persistUnsafe 原子写回磁盘，调用方必须持有写锁
func (s *Store) persistUnsafe() error {
	data, err := json.MarshalIndent(&s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create profiles directory: %w", err)
		}
	}

	// 先写临时文件再改名，断电不会留下半个文件
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace profiles file: %w", err)
	}
	return nil
}

// findUnsafe 返回配置档在切片中的下标，不存在时 -1
func (s *Store) findUnsafe(name string) int {
	for i := range s.state.Profiles {
		if s.state.Profiles[i].Name == name {
			return i
		}
	}
	return -1
}
